package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/api"
	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/history"
	"github.com/jjshay/music-videos-app/internal/jobstore"
	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
	"github.com/jjshay/music-videos-app/internal/render"
	"github.com/jjshay/music-videos-app/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(false)
		logger.L().Fatal("failed to load config", zap.Error(err))
	}
	logger.Init(cfg.Verbose)
	defer logger.Sync()
	log := logger.L()

	log.Info("starting music video API", zap.String("port", cfg.APIPort))

	jobs, err := jobstore.New(cfg.WorkDir)
	if err != nil {
		log.Fatal("failed to initialize job store", zap.Error(err))
	}

	// Edit history is advisory — degrade to no style guide when redis is
	// down rather than refusing to start.
	var hist history.Store
	if redisStore, err := history.NewRedis(cfg.RedisURL); err != nil {
		log.Warn("redis unavailable, edit history disabled", zap.Error(err))
	} else {
		hist = redisStore
		defer redisStore.Close()
		log.Info("connected to redis edit history")
	}

	runner := media.NewFFmpeg(cfg.FFmpegPath)
	prober := media.NewProber(cfg.FFprobePath)

	var vision services.VisionClient
	switch cfg.VisionProvider {
	case "gemini":
		vision, err = services.NewGeminiVision(context.Background(), cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal("failed to initialize gemini vision client", zap.Error(err))
		}
		log.Info("vision provider: gemini", zap.String("model", cfg.GeminiModel))
	default:
		vision = services.NewOpenAIVision(cfg.OpenAIKey, cfg.OpenAIModel)
		log.Info("vision provider: openai", zap.String("model", cfg.OpenAIModel))
	}
	analyzer := services.NewAnalyzer(vision, hist, runner)

	var pexels *services.PexelsClient
	if cfg.PexelsKey != "" {
		pexels = services.NewPexelsClient(cfg.PexelsKey, services.NewDownloader())
		log.Info("stock footage fetch enabled")
	} else {
		log.Warn("no PEXELS_API_KEY set — crowd footage must be uploaded manually")
	}

	ytdlp := services.NewYtDlp(cfg.YtDlpPath)

	assets, err := render.NewAssetRenderer(cfg.Render)
	if err != nil {
		log.Fatal("failed to initialize asset renderer", zap.Error(err))
	}
	orchestrator := render.NewOrchestrator(cfg.Render, runner, jobs, assets, analyzer)

	handler := api.NewHandler(cfg, jobs, prober, runner, analyzer, pexels, ytdlp, hist, orchestrator)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Info("API key authentication enabled")
	} else {
		log.Warn("no BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Info("API server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
