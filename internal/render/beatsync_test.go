package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignToBeatsSnapsBoundary(t *testing.T) {
	tl := standardTimeline(t)

	// Boundary 0 midpoint is 2.75; a beat at 2.95 is within reach.
	out := AlignToBeats(tl, []float64{2.95}, 0.5, 2.0)

	// The 0.2s shift is split: intro grows, first segment shrinks.
	assert.InDelta(t, 3.1, out.Items[0].Duration, 1e-9)
	assert.InDelta(t, 9.9, out.Items[1].Duration, 1e-9)
	assert.InDelta(t, tl.TotalDuration(), out.TotalDuration(), 1e-9)

	// Untouched boundaries keep their durations.
	assert.InDelta(t, 10.0, out.Items[2].Duration, 1e-9)
	assert.InDelta(t, 6.0, out.Items[4].Duration, 1e-9)
}

func TestAlignToBeatsRespectsMaxShift(t *testing.T) {
	tl := standardTimeline(t)
	out := AlignToBeats(tl, []float64{5.0}, 0.5, 2.0)
	for i := range tl.Items {
		assert.InDelta(t, tl.Items[i].Duration, out.Items[i].Duration, 1e-9,
			"a beat over 2s from every midpoint must not move boundary durations")
	}
}

func TestAlignToBeatsRespectsMinimumDuration(t *testing.T) {
	tl, err := NewTimeline(
		[]Item{
			{Label: "intro", Duration: 3},
			{Label: "artist", Duration: 2.1},
			{Label: "outro", Duration: 6},
		},
		[]Transition{
			{Type: "fade", Duration: 0.5},
			{Type: "dissolve", Duration: 0.5},
		},
	)
	require.NoError(t, err)

	// Boundary 0 midpoint is 2.75; snapping to 3.05 would shrink the
	// 2.1s segment below the 2s floor, so the boundary stays put.
	out := AlignToBeats(tl, []float64{3.05}, 0.5, 2.0)
	assert.InDelta(t, 3.0, out.Items[0].Duration, 1e-9)
	assert.InDelta(t, 2.1, out.Items[1].Duration, 1e-9)
}

func TestAlignToBeatsNoBeats(t *testing.T) {
	tl := standardTimeline(t)
	out := AlignToBeats(tl, nil, 0.5, 2.0)
	assert.Equal(t, tl.Items, out.Items)
}
