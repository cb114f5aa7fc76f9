package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjshay/music-videos-app/internal/models"
)

// scriptedReview returns pre-baked verdicts (or errors) in order.
type scriptedReview struct {
	verdicts []*models.ReviewVerdict
	errs     []error
	calls    int
}

func (s *scriptedReview) ReviewTransitions(ctx context.Context, frames []models.BoundaryFrames) (*models.ReviewVerdict, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.verdicts) {
		return s.verdicts[i], nil
	}
	return &models.ReviewVerdict{Approved: true}, nil
}

func newReviewFixture(review ReviewService, maxRetries int) (*TransitionReviewer, *fakeRunner) {
	runner := &fakeRunner{}
	return NewTransitionReviewer(runner, NewConcatenator(runner), review, 0.3, maxRetries), runner
}

func TestReviewApprovedFirstPass(t *testing.T) {
	review := &scriptedReview{verdicts: []*models.ReviewVerdict{
		{Approved: true, OverallQuality: "good"},
	}}
	tr, _ := newReviewFixture(review, 1)
	tl := standardTimeline(t)

	gotTL, gotPath := tr.Run(context.Background(), tl, "draft.mp4", t.TempDir(), nil)
	assert.Equal(t, "draft.mp4", gotPath)
	assert.Equal(t, tl.Transitions, gotTL.Transitions)
	assert.Equal(t, 1, review.calls)
}

func TestReviewAppliesSuggestionThenExhaustsRetries(t *testing.T) {
	rejected := &models.ReviewVerdict{
		Approved:       false,
		OverallQuality: "poor",
		Transitions: []models.TransitionReview{
			{Index: 1, Quality: "poor", Issue: "jarring cut", SuggestedType: "smoothleft"},
		},
	}
	review := &scriptedReview{verdicts: []*models.ReviewVerdict{rejected, rejected}}
	tr, runner := newReviewFixture(review, 1)
	tl := standardTimeline(t)

	var percents []int
	gotTL, gotPath := tr.Run(context.Background(), tl, "draft.mp4", t.TempDir(), func(pct int, msg string) {
		percents = append(percents, pct)
	})

	assert.Equal(t, 2, review.calls, "one retry means at most two review passes")
	assert.Contains(t, gotPath, "concat_retry_1.mp4")
	assert.Equal(t, "smoothleft", gotTL.Transitions[1].Type)
	assert.Equal(t, "fade", gotTL.Transitions[0].Type, "untouched boundaries keep their type")

	// The retry re-concatenated through the shared runner.
	var sawXfade bool
	for _, cmd := range runner.commands {
		for _, a := range cmd.Args {
			if a == "-filter_complex" {
				sawXfade = true
			}
		}
	}
	assert.True(t, sawXfade)

	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress never goes backwards")
	}
}

func TestReviewInfrastructureFailureAcceptsDraft(t *testing.T) {
	review := &scriptedReview{errs: []error{errors.New("vision service down")}}
	tr, _ := newReviewFixture(review, 3)
	tl := standardTimeline(t)

	_, gotPath := tr.Run(context.Background(), tl, "draft.mp4", t.TempDir(), nil)
	assert.Equal(t, "draft.mp4", gotPath, "review is advisory, the draft survives")
	assert.Equal(t, 1, review.calls)
}

func TestReviewNothingActionableAcceptsDraft(t *testing.T) {
	review := &scriptedReview{verdicts: []*models.ReviewVerdict{
		{
			Approved: false,
			Transitions: []models.TransitionReview{
				{Index: 0, SuggestedType: "sparkle-explosion"}, // not in the curated set
				{Index: 99, SuggestedType: "dissolve"},         // out of range
				{Index: 1, SuggestedType: "dissolve"},          // same as current
			},
		},
	}}
	tr, _ := newReviewFixture(review, 3)
	tl := standardTimeline(t)

	gotTL, gotPath := tr.Run(context.Background(), tl, "draft.mp4", t.TempDir(), nil)
	assert.Equal(t, "draft.mp4", gotPath)
	assert.Equal(t, tl.Transitions, gotTL.Transitions)
	assert.Equal(t, 1, review.calls, "no actionable change ends the loop immediately")
}

func TestApplySuggestions(t *testing.T) {
	tl := standardTimeline(t)
	next, changed := applySuggestions(tl, &models.ReviewVerdict{
		Transitions: []models.TransitionReview{
			{Index: 0, SuggestedType: "slideup"},
			{Index: 2, SuggestedType: "fadeblack"}, // valid engine type, but not professional
		},
	})
	require.True(t, changed)
	assert.Equal(t, "slideup", next.Transitions[0].Type)
	assert.Equal(t, "wipeleft", next.Transitions[2].Type)

	_, changed = applySuggestions(tl, &models.ReviewVerdict{})
	assert.False(t, changed)
}
