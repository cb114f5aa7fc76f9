package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	Verbose            bool

	// Redis (edit-history store)
	RedisURL string

	// Job working directories (one subdirectory per job)
	WorkDir string

	// Vision providers — OpenAI preferred, Gemini as alternative
	VisionProvider string // "openai" or "gemini"
	OpenAIKey      string
	OpenAIModel    string
	GeminiKey      string
	GeminiModel    string

	// Pexels (stock crowd footage; optional — crowd fetch degrades without it)
	PexelsKey string

	// External tools
	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string

	Render Render
}

// Render holds the brand constants and pipeline tuning. Defaults produce the
// standard ~30s vertical (1080x1920) video.
type Render struct {
	Width  int
	Height int
	FPS    int

	IntroDuration      float64
	OutroDuration      float64
	TransitionDuration float64
	TargetTotal        float64

	CaptionFontSize int
	CaptionPosY     float64 // vertical anchor as a fraction of frame height
	CaptionFade     float64 // alpha fade in/out, seconds
	CaptionAnim     float64 // positional animation window, seconds

	MusicVolume  float64
	MusicFadeIn  float64
	MusicFadeOut float64

	ReviewEnabled     bool
	ReviewMaxRetries  int
	ReviewFrameMargin float64

	BeatSyncEnabled    bool
	BeatMaxShift       float64
	MinSegmentDuration float64

	MinSpeed     float64
	MaxSpeed     float64
	KenBurnsZoom float64

	// Per external step (ffmpeg/ffprobe/yt-dlp/vision call). Exceeding it
	// cancels the job rather than failing it.
	StepTimeout time.Duration

	PreviewWidth  int
	PreviewHeight int

	NavyHex    string
	GoldHex    string
	OutroLines []string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		Verbose:            getEnvBool("VERBOSE", false),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		WorkDir:            getEnv("WORK_DIR", "temp"),
		VisionProvider:     getEnv("VISION_PROVIDER", "openai"),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_VISION_MODEL", "gemini-2.0-flash"),
		PexelsKey:          getEnv("PEXELS_API_KEY", ""),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        getEnv("FFPROBE_PATH", "ffprobe"),
		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		Render: Render{
			Width:              getEnvInt("RENDER_WIDTH", 1080),
			Height:             getEnvInt("RENDER_HEIGHT", 1920),
			FPS:                getEnvInt("RENDER_FPS", 30),
			IntroDuration:      getEnvFloat("INTRO_DURATION", 3.0),
			OutroDuration:      getEnvFloat("OUTRO_DURATION", 4.0),
			TransitionDuration: getEnvFloat("TRANSITION_DURATION", 0.5),
			TargetTotal:        getEnvFloat("TARGET_TOTAL_DURATION", 30.0),
			CaptionFontSize:    getEnvInt("CAPTION_FONT_SIZE", 55),
			CaptionPosY:        0.72,
			CaptionFade:        0.3,
			CaptionAnim:        0.4,
			MusicVolume:        getEnvFloat("MUSIC_VOLUME", 0.5),
			MusicFadeIn:        1.0,
			MusicFadeOut:       2.0,
			ReviewEnabled:      getEnvBool("REVIEW_ENABLED", true),
			ReviewMaxRetries:   getEnvInt("REVIEW_MAX_RETRIES", 1),
			ReviewFrameMargin:  0.3,
			BeatSyncEnabled:    getEnvBool("BEAT_SYNC_ENABLED", true),
			BeatMaxShift:       getEnvFloat("BEAT_MAX_SHIFT", 0.5),
			MinSegmentDuration: 2.0,
			MinSpeed:           0.7,
			MaxSpeed:           1.3,
			KenBurnsZoom:       getEnvFloat("KEN_BURNS_ZOOM", 1.15),
			StepTimeout:        time.Duration(getEnvInt("STEP_TIMEOUT_SECONDS", 600)) * time.Second,
			PreviewWidth:       540,
			PreviewHeight:      960,
			NavyHex:            "#1a3a6b",
			GoldHex:            "#c9a227",
			OutroLines: []string{
				"Thanks for watching",
				"Follow for more",
				"New videos every week",
				"Turn on notifications",
			},
		},
	}

	// At least one vision provider must be configured
	if cfg.OpenAIKey == "" && cfg.GeminiKey == "" {
		return nil, fmt.Errorf("either OPENAI_API_KEY or GEMINI_API_KEY is required for clip analysis")
	}

	if cfg.VisionProvider != "openai" && cfg.VisionProvider != "gemini" {
		return nil, fmt.Errorf("VISION_PROVIDER must be 'openai' or 'gemini', got %q", cfg.VisionProvider)
	}

	if cfg.VisionProvider == "openai" && cfg.OpenAIKey == "" {
		cfg.VisionProvider = "gemini"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
