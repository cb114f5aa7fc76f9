package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/history"
	"github.com/jjshay/music-videos-app/internal/jobstore"
	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
	"github.com/jjshay/music-videos-app/internal/models"
	"github.com/jjshay/music-videos-app/internal/render"
	"github.com/jjshay/music-videos-app/internal/services"
)

const maxUploadSize = 512 << 20 // across all clip slots in one request

type Handler struct {
	cfg          *config.Config
	jobs         *jobstore.Store
	prober       *media.Prober
	runner       media.Runner
	analyzer     *services.Analyzer
	pexels       *services.PexelsClient // nil when no API key is configured
	ytdlp        *services.YtDlp
	history      history.Store // nil when redis is unavailable
	orchestrator *render.Orchestrator
}

func NewHandler(cfg *config.Config, jobs *jobstore.Store, prober *media.Prober, runner media.Runner,
	analyzer *services.Analyzer, pexels *services.PexelsClient, ytdlp *services.YtDlp,
	hist history.Store, orchestrator *render.Orchestrator) *Handler {
	return &Handler{
		cfg:          cfg,
		jobs:         jobs,
		prober:       prober,
		runner:       runner,
		analyzer:     analyzer,
		pexels:       pexels,
		ytdlp:        ytdlp,
		history:      hist,
		orchestrator: orchestrator,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateJob handles POST /v1/jobs: a multipart upload with any subset of
// the three clip slots (artist, guitar, crowd) plus an optional
// artistName field. The artist clip must carry an audio track — it
// supplies the entire soundtrack.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart upload: "+err.Error())
		return
	}

	job, err := h.jobs.Create()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}
	job.ArtistName = r.FormValue("artistName")

	for _, role := range models.AllClipRoles {
		file, header, err := r.FormFile(string(role))
		if err != nil {
			continue // slot not supplied
		}
		attachErr := h.attachClip(r, job, role, file, header.Filename)
		file.Close()
		if attachErr != nil {
			respondError(w, http.StatusBadRequest, attachErr.Error())
			return
		}
	}

	if err := h.jobs.Save(job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to persist job")
		return
	}
	respondJSON(w, http.StatusCreated, job)
}

// attachClip stores an uploaded clip in the job directory, probes it, and
// enforces the artist-audio requirement before any pipeline work begins.
func (h *Handler) attachClip(r *http.Request, job *models.Job, role models.ClipRole, file multipart.File, filename string) error {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".mp4"
	}
	dest := filepath.Join(h.jobs.Dir(job.ID), string(role)+ext)

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to store %s clip: %w", role, err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return fmt.Errorf("failed to store %s clip: %w", role, err)
	}
	out.Close()

	info, err := h.prober.Probe(r.Context(), dest)
	if err != nil {
		os.Remove(dest)
		if errors.Is(err, media.ErrNoVideoStream) {
			return fmt.Errorf("%s upload has no video stream", role)
		}
		return fmt.Errorf("failed to probe %s clip: %v", role, err)
	}
	if role == models.ClipArtist && !info.HasAudio {
		os.Remove(dest)
		return fmt.Errorf("artist clip must include an audio track — it supplies the soundtrack")
	}

	job.Clips[role] = dest
	job.ClipInfo[role] = info
	return nil
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// AnalyzeJob handles POST /v1/jobs/{id}/analyze: samples frames from the
// uploaded clips and asks the vision model for creative direction.
// Malformed model output is surfaced, not papered over.
func (h *Handler) AnalyzeJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	var body struct {
		ArtistName string `json:"artistName"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body) // body is optional
	if body.ArtistName != "" {
		job.ArtistName = body.ArtistName
	}

	if len(job.Clips) == 0 {
		respondError(w, http.StatusBadRequest, "Job has no clips to analyze")
		return
	}

	analysis, err := h.analyzer.AnalyzeJob(r.Context(), job, h.jobs.Dir(job.ID))
	if err != nil {
		respondError(w, http.StatusBadGateway, "Analysis failed: "+err.Error())
		return
	}

	job.Analysis = analysis
	job.Status = models.JobStatusAnalyzed
	if job.ArtistName == "" && analysis.SuggestedArtistName != "" {
		job.ArtistName = analysis.SuggestedArtistName
	}
	if err := h.jobs.Save(job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to persist analysis")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// FetchCrowd handles POST /v1/jobs/{id}/crowd. A multipart upload
// short-circuits the stock search; otherwise the search query (supplied
// or taken from the analysis) goes to the stock-footage service. Zero
// results is a 404 prompting manual upload, not a failure.
func (h *Handler) FetchCrowd(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid multipart upload: "+err.Error())
			return
		}
		file, header, err := r.FormFile("crowd")
		if err != nil {
			respondError(w, http.StatusBadRequest, "Missing crowd file")
			return
		}
		defer file.Close()
		if err := h.attachClip(r, job, models.ClipCrowd, file, header.Filename); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.jobs.Save(job); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to persist job")
			return
		}
		respondJSON(w, http.StatusOK, job)
		return
	}

	if h.pexels == nil {
		respondError(w, http.StatusServiceUnavailable, "Stock footage service not configured — upload a crowd clip instead")
		return
	}

	var body struct {
		Query string `json:"query"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	query := body.Query
	if query == "" && job.Analysis != nil {
		query = job.Analysis.Mood.SearchQuery
	}
	if query == "" {
		respondError(w, http.StatusBadRequest, "No search query — analyze the job first or supply one")
		return
	}

	result, err := h.pexels.FetchBest(r.Context(), query, h.jobs.Dir(job.ID))
	if err != nil {
		if errors.Is(err, services.ErrNoResults) {
			respondJSON(w, http.StatusNotFound, map[string]interface{}{
				"notFound": true,
				"message":  "No stock footage matched — upload a crowd clip manually",
			})
			return
		}
		respondError(w, http.StatusBadGateway, "Stock footage fetch failed: "+err.Error())
		return
	}

	info, err := h.prober.Probe(r.Context(), result.FilePath)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Downloaded footage unreadable: "+err.Error())
		return
	}
	job.Clips[models.ClipCrowd] = result.FilePath
	job.ClipInfo[models.ClipCrowd] = info
	if err := h.jobs.Save(job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to persist job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"job": job, "stock": result})
}

// FetchRemote handles POST /v1/jobs/{id}/fetch: downloads a remote video
// into a clip slot, streaming download progress as server-sent events.
func (h *Handler) FetchRemote(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	var body struct {
		URL   string  `json:"url"`
		Role  string  `json:"role"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	role := models.ClipRole(body.Role)
	if role != models.ClipArtist && role != models.ClipGuitar && role != models.ClipCrowd {
		respondError(w, http.StatusBadRequest, "Role must be artist, guitar or crowd")
		return
	}
	if err := h.ytdlp.ValidateURL(body.URL); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stream, err := newSSEStream(w)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fail := func(msg string) {
		stream.send(models.Event{Type: models.EventError, Stage: models.StageDownload, Message: msg})
	}

	dir := h.jobs.Dir(job.ID)
	dest := filepath.Join(dir, string(role)+"_remote.mp4")
	title, err := h.ytdlp.Download(r.Context(), body.URL, dest, func(pct int) {
		stream.send(models.Event{
			Type:    models.EventProgress,
			Stage:   models.StageDownload,
			Percent: pct,
			Message: "downloading",
		})
	})
	if err != nil {
		fail(err.Error())
		return
	}

	if body.End > body.Start {
		trimmed := filepath.Join(dir, string(role)+"_trimmed.mp4")
		if err := h.ytdlp.Trim(r.Context(), h.runner, dest, body.Start, body.End, trimmed); err != nil {
			fail(err.Error())
			return
		}
		dest = trimmed
	}

	info, err := h.prober.Probe(r.Context(), dest)
	if err != nil {
		fail("downloaded video unreadable: " + err.Error())
		return
	}
	if role == models.ClipArtist && !info.HasAudio {
		fail("artist clip must include an audio track")
		return
	}

	job.Clips[role] = dest
	job.ClipInfo[role] = info
	if err := h.jobs.Save(job); err != nil {
		fail(err.Error())
		return
	}
	stream.send(models.Event{Type: models.EventComplete, Stage: models.StageDownload, Percent: 100, Title: title})
}

// RenderJob handles POST /v1/jobs/{id}/render: runs the full pipeline,
// streaming progress as server-sent events. Structural problems are
// rejected synchronously before the stream opens.
func (h *Handler) RenderJob(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, false)
}

// PreviewJob handles POST /v1/jobs/{id}/preview: the reduced-quality
// pipeline variant.
func (h *Handler) PreviewJob(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, true)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, preview bool) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	var req models.RenderRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid render request: "+err.Error())
			return
		}
	}

	if err := job.Renderable(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.recordCaptionEdits(r, job, req)

	stream, err := newSSEStream(w)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if preview {
		stream.forward(h.orchestrator.Preview(r.Context(), job, req))
	} else {
		stream.forward(h.orchestrator.Render(r.Context(), job, req))
	}
}

// recordCaptionEdits logs every caller caption that overrides the stored
// AI suggestion, feeding the style guide for future analyses.
func (h *Handler) recordCaptionEdits(r *http.Request, job *models.Job, req models.RenderRequest) {
	if h.history == nil || job.Analysis == nil || len(req.Segments) == 0 {
		return
	}
	suggested := make(map[models.ClipRole]string, len(job.Analysis.Segments))
	for _, s := range job.Analysis.Segments {
		suggested[s.ClipRole] = s.Caption
	}
	for _, seg := range req.Segments {
		orig, found := suggested[seg.ClipRole]
		if !found || seg.Caption == "" || seg.Caption == orig {
			continue
		}
		err := h.history.Record(r.Context(), history.Edit{
			JobID:     job.ID,
			Field:     "caption",
			Suggested: orig,
			Final:     seg.Caption,
		})
		if err != nil {
			logger.L().Warn("failed to record caption edit", zap.String("jobID", job.ID), zap.Error(err))
		}
	}
}

// DownloadJob handles GET /v1/jobs/{id}/download?format=: serves a
// finished deliverable with an artist-slug filename.
func (h *Handler) DownloadJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "vertical"
	}
	path, found := job.Outputs[format]
	if !found {
		respondError(w, http.StatusNotFound, "No "+format+" output for this job")
		return
	}

	name := slugify(job.ArtistName)
	if name == "" {
		name = "music-video"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.mp4"`, name, format))
	http.ServeFile(w, r, path)
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := h.jobs.Load(id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
		} else {
			respondError(w, http.StatusInternalServerError, "Failed to load job")
		}
		return nil, false
	}
	return job, true
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases and collapses non-alphanumerics for download
// filenames.
func slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
