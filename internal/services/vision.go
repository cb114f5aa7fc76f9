package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/history"
	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
	"github.com/jjshay/music-videos-app/internal/models"
	"github.com/jjshay/music-videos-app/internal/render"
)

// framesPerClip is the sampling density for analysis: enough to read mood
// and framing without an oversized payload.
const framesPerClip = 5

// LabeledImage is one frame plus the label the model sees next to it.
type LabeledImage struct {
	Label string
	Path  string
}

// VisionClient sends labeled images and instructions to a vision model and
// returns its raw text response. Implemented per provider.
type VisionClient interface {
	Complete(ctx context.Context, images []LabeledImage, prompt string) (string, error)
}

// Analyzer turns probed clips and sampled frames into validated creative
// direction, and judges concatenated drafts for the review loop.
type Analyzer struct {
	client  VisionClient
	history history.Store // may be nil
	runner  media.Runner
}

func NewAnalyzer(client VisionClient, hist history.Store, r media.Runner) *Analyzer {
	return &Analyzer{client: client, history: hist, runner: r}
}

// AnalyzeJob extracts representative frames from each clip, asks the model
// for creative direction, and validates/clamps the result. A malformed
// response is fatal here — everything downstream depends on these fields.
func (a *Analyzer) AnalyzeJob(ctx context.Context, job *models.Job, dir string) (*models.Analysis, error) {
	var images []LabeledImage
	for _, role := range models.AllClipRoles {
		info := job.ClipInfo[role]
		if info == nil {
			return nil, fmt.Errorf("%s clip has not been probed", role)
		}
		paths, err := media.ExtractFrames(ctx, a.runner, job.Clips[role], info.Duration, framesPerClip, dir, string(role))
		if err != nil {
			return nil, fmt.Errorf("frame sampling failed for %s clip: %w", role, err)
		}
		for i, p := range paths {
			images = append(images, LabeledImage{
				Label: fmt.Sprintf("%s clip, frame %d of %d", role, i+1, framesPerClip),
				Path:  p,
			})
		}
	}

	styleGuide := ""
	if a.history != nil {
		guide, err := a.history.StyleGuide(ctx)
		if err != nil {
			logger.L().Warn("edit-history style guide unavailable", zap.Error(err))
		} else {
			styleGuide = guide
		}
	}

	prompt := a.buildAnalysisPrompt(job, styleGuide)
	raw, err := a.client.Complete(ctx, images, prompt)
	if err != nil {
		return nil, fmt.Errorf("clip analysis request failed: %w", err)
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		logger.L().Error("malformed analysis response", zap.String("raw", truncate(raw, 500)))
		return nil, fmt.Errorf("clip analysis returned malformed response: %w", err)
	}

	clampAnalysis(analysis, job)
	return analysis, nil
}

func (a *Analyzer) buildAnalysisPrompt(job *models.Job, styleGuide string) string {
	var b strings.Builder
	b.WriteString("You are directing a ~30 second vertical music video promo for a guitarist. ")
	b.WriteString("You are given sampled frames from three clips: the artist performing (supplies the soundtrack), a close-up of the guitar, and crowd/atmosphere footage.\n\n")

	b.WriteString("Clip durations:\n")
	for _, role := range models.AllClipRoles {
		if info := job.ClipInfo[role]; info != nil {
			fmt.Fprintf(&b, "- %s: %.1f seconds\n", role, info.Duration)
		}
	}
	if job.ArtistName != "" {
		fmt.Fprintf(&b, "\nArtist name: %s\n", job.ArtistName)
	}

	if styleGuide != "" {
		b.WriteString("\n")
		b.WriteString(styleGuide)
	}

	b.WriteString("\nRespond with a single JSON object, no prose, matching exactly:\n")
	b.WriteString(`{
  "mood": {"genre": "...", "energy": "...", "description": "...", "searchQuery": "stock footage search phrase"},
  "segments": [
    {"clipRole": "artist|guitar|crowd", "startTime": 0.0, "duration": 8.0, "caption": "short on-screen text", "captionReason": "...", "trimReason": "..."}
  ],
  "segmentOrder": ["artist", "guitar", "crowd"],
  "orderReason": "...",
  "transitions": [{"from": "artist", "to": "guitar", "type": "fade", "reason": "..."}],
  "overallNotes": "...",
  "suggestedArtistName": "...",
  "guitarType": "...",
  "outro": {"line1": "...", "line2": "...", "line3": "...", "line4": "..."},
  "kenBurns": {"guitar": {"enabled": true, "direction": "in"}},
  "colorGrade": {"crowd": {"brightness": 0.03, "contrast": 1.05, "saturation": 1.1}},
  "heroFrame": {"clipRole": "artist", "timestamp": 4.2}
}`)
	fmt.Fprintf(&b, "\nRules: exactly 3 segments (one per clip role); exactly 2 transitions; transition types only from: %s; startTime + duration must stay inside each clip's duration; captions are 3-6 punchy words.",
		strings.Join(render.ProfessionalTransitions, ", "))
	return b.String()
}

// parseAnalysis strictly decodes the model output. Markdown fences are
// tolerated; missing structural fields are not.
func parseAnalysis(raw string) (*models.Analysis, error) {
	cleaned := stripFences(raw)

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(analysis.Segments) != len(models.AllClipRoles) {
		return nil, fmt.Errorf("expected %d segments, got %d", len(models.AllClipRoles), len(analysis.Segments))
	}
	if len(analysis.Transitions) != len(analysis.Segments)-1 {
		return nil, fmt.Errorf("expected %d transitions, got %d", len(analysis.Segments)-1, len(analysis.Transitions))
	}
	if analysis.Outro.Line1 == "" {
		return nil, fmt.Errorf("missing outro copy")
	}
	return &analysis, nil
}

// clampAnalysis applies the trust boundary: numeric suggestions slightly
// out of bounds are clamped, unknown transition types coerced to fade.
func clampAnalysis(analysis *models.Analysis, job *models.Job) {
	for i := range analysis.Segments {
		seg := &analysis.Segments[i]
		info := job.ClipInfo[seg.ClipRole]
		if info == nil {
			continue
		}
		if seg.StartTime+seg.Duration > info.Duration {
			seg.StartTime = info.Duration - seg.Duration
		}
		if seg.StartTime < 0 {
			seg.StartTime = 0
		}
	}
	for i := range analysis.Transitions {
		analysis.Transitions[i].Type = render.NormalizeTransition(analysis.Transitions[i].Type)
	}
	if analysis.HeroFrame != nil {
		if info := job.ClipInfo[analysis.HeroFrame.ClipRole]; info != nil {
			if analysis.HeroFrame.Timestamp > info.Duration {
				analysis.HeroFrame.Timestamp = info.Duration / 2
			}
			if analysis.HeroFrame.Timestamp < 0 {
				analysis.HeroFrame.Timestamp = 0
			}
		}
	}
}

// ReviewTransitions asks the model to judge the boundary frames of a
// concatenated draft. Errors here are expected to be swallowed by the
// caller — review is advisory.
func (a *Analyzer) ReviewTransitions(ctx context.Context, frames []models.BoundaryFrames) (*models.ReviewVerdict, error) {
	var images []LabeledImage
	var b strings.Builder
	b.WriteString("You are reviewing crossfade transitions in a draft music video. For each transition you get three frames: just before, at, and just after the blend midpoint.\n\n")
	for _, group := range frames {
		fmt.Fprintf(&b, "Transition %d: %s → %s, type %q\n", group.Index, group.From, group.To, group.Type)
		for j, p := range group.Frames {
			images = append(images, LabeledImage{
				Label: fmt.Sprintf("transition %d frame %d", group.Index, j+1),
				Path:  p,
			})
		}
	}
	fmt.Fprintf(&b, `
Respond with a single JSON object, no prose:
{"approved": true, "overallQuality": "good|acceptable|poor", "transitions": [{"index": 0, "quality": "...", "issue": "...", "suggestedType": "..."}]}
suggestedType must come from: %s — leave it empty when the current transition works.`,
		strings.Join(render.ProfessionalTransitions, ", "))

	raw, err := a.client.Complete(ctx, images, b.String())
	if err != nil {
		return nil, fmt.Errorf("transition review request failed: %w", err)
	}

	var verdict models.ReviewVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &verdict); err != nil {
		logger.L().Warn("malformed review response", zap.String("raw", truncate(raw, 300)))
		return nil, fmt.Errorf("transition review returned malformed response: %w", err)
	}
	return &verdict, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// truncate limits a string for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
