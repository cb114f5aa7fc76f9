package render

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
	"github.com/jjshay/music-videos-app/internal/models"
)

// ReviewService judges a concatenated draft from its boundary frames.
type ReviewService interface {
	ReviewTransitions(ctx context.Context, frames []models.BoundaryFrames) (*models.ReviewVerdict, error)
}

// TransitionReviewer drives the bounded quality loop around the
// Concatenator: extract boundary frames, ask the vision service for a
// verdict, apply suggested transition substitutions, re-concatenate, and
// try again — at most maxRetries times. The loop is cosmetic
// self-correction: every infrastructure failure accepts the current draft
// rather than failing the render.
type TransitionReviewer struct {
	runner     media.Runner
	concat     *Concatenator
	review     ReviewService
	margin     float64
	maxRetries int
}

func NewTransitionReviewer(r media.Runner, concat *Concatenator, review ReviewService, margin float64, maxRetries int) *TransitionReviewer {
	return &TransitionReviewer{
		runner:     r,
		concat:     concat,
		review:     review,
		margin:     margin,
		maxRetries: maxRetries,
	}
}

// extractBoundaryFrames grabs three frames around every transition
// midpoint (before/at/after, using the configured margin). A single
// failed extraction is logged and omitted, never fatal.
func (tr *TransitionReviewer) extractBoundaryFrames(ctx context.Context, tl Timeline, videoPath, dir string, attempt int) []models.BoundaryFrames {
	var groups []models.BoundaryFrames
	for i, t := range tl.Transitions {
		mid := tl.Midpoint(i)
		group := models.BoundaryFrames{
			Index: i,
			Type:  t.Type,
			From:  tl.Items[i].Label,
			To:    tl.Items[i+1].Label,
		}
		for j, ts := range []float64{mid - tr.margin, mid, mid + tr.margin} {
			if ts < 0 {
				ts = 0
			}
			out := filepath.Join(dir, fmt.Sprintf("review_a%d_t%d_f%d.jpg", attempt, i, j))
			if err := media.ExtractFrameAt(ctx, tr.runner, videoPath, ts, out); err != nil {
				logger.L().Warn("boundary frame extraction failed, omitting frame",
					zap.Int("transition", i), zap.Float64("ts", ts), zap.Error(err))
				continue
			}
			group.Frames = append(group.Frames, out)
		}
		if len(group.Frames) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

// Run reviews the draft at videoPath and returns the timeline and path of
// the accepted result. Modeled as a fold: each iteration produces a fresh
// transition-type list rather than mutating shared state.
func (tr *TransitionReviewer) Run(ctx context.Context, tl Timeline, videoPath, dir string, onProgress func(percent int, message string)) (Timeline, string) {
	progress := func(pct int, msg string) {
		if onProgress != nil {
			onProgress(pct, msg)
		}
	}

	for attempt := 0; ; attempt++ {
		progress(10+attempt*40, "extracting transition frames")
		frames := tr.extractBoundaryFrames(ctx, tl, videoPath, dir, attempt)
		if len(frames) == 0 {
			logger.L().Warn("no boundary frames extracted, accepting draft without review")
			return tl, videoPath
		}

		progress(25+attempt*40, "reviewing transitions")
		verdict, err := tr.review.ReviewTransitions(ctx, frames)
		if err != nil {
			logger.L().Warn("transition review unavailable, accepting draft", zap.Error(err))
			return tl, videoPath
		}

		logger.L().Info("transition review verdict",
			zap.Bool("approved", verdict.Approved),
			zap.String("quality", verdict.OverallQuality),
			zap.Int("attempt", attempt))

		if verdict.Approved || attempt >= tr.maxRetries {
			return tl, videoPath
		}

		next, changed := applySuggestions(tl, verdict)
		if !changed {
			// nothing actionable in the verdict
			return tl, videoPath
		}

		retryPath := filepath.Join(dir, fmt.Sprintf("concat_retry_%d.mp4", attempt+1))
		progress(35+attempt*40, "re-rendering with suggested transitions")
		if err := tr.concat.Concatenate(ctx, next, retryPath, nil); err != nil {
			logger.L().Warn("re-concatenation failed, keeping previous draft", zap.Error(err))
			return tl, videoPath
		}

		tl = next
		videoPath = retryPath
	}
}

// applySuggestions returns a timeline with every actionable suggested type
// applied: in the professional set, different from the current type, and
// at a valid index.
func applySuggestions(tl Timeline, verdict *models.ReviewVerdict) (Timeline, bool) {
	types := make([]string, len(tl.Transitions))
	for i, t := range tl.Transitions {
		types[i] = t.Type
	}

	changed := false
	for _, s := range verdict.Transitions {
		if s.Index < 0 || s.Index >= len(types) {
			continue
		}
		if s.SuggestedType == "" || s.SuggestedType == types[s.Index] {
			continue
		}
		if !IsProfessionalTransition(s.SuggestedType) {
			continue
		}
		logger.L().Info("applying suggested transition",
			zap.Int("index", s.Index),
			zap.String("from", types[s.Index]),
			zap.String("to", s.SuggestedType),
			zap.String("issue", s.Issue))
		types[s.Index] = s.SuggestedType
		changed = true
	}
	return tl.WithTransitionTypes(types), changed
}
