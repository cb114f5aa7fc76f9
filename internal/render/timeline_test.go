package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// standardTimeline mirrors the default plan: 3s intro, three 10s segments,
// 6s outro, 0.5s joins and a 1.5s outro dissolve.
func standardTimeline(t *testing.T) Timeline {
	t.Helper()
	tl, err := NewTimeline(
		[]Item{
			{Label: "intro", Duration: 3},
			{Label: "artist", Duration: 10},
			{Label: "guitar", Duration: 10},
			{Label: "crowd", Duration: 10},
			{Label: "outro", Duration: 6},
		},
		[]Transition{
			{Type: "fade", Duration: 0.5},
			{Type: "dissolve", Duration: 0.5},
			{Type: "wipeleft", Duration: 0.5},
			{Type: "dissolve", Duration: 1.5},
		},
	)
	require.NoError(t, err)
	return tl
}

func TestNewTimelineValidation(t *testing.T) {
	_, err := NewTimeline(nil, nil)
	assert.Error(t, err)

	_, err = NewTimeline(
		[]Item{{Duration: 3}, {Duration: 4}},
		nil,
	)
	assert.Error(t, err, "two items need exactly one transition")

	_, err = NewTimeline([]Item{{Duration: 3}}, nil)
	assert.NoError(t, err, "single item needs no transitions")
}

func TestTimelineOffsets(t *testing.T) {
	tl := standardTimeline(t)

	// The intro fade starts 0.5s before the intro card's time is up.
	assert.InDelta(t, 2.5, tl.Offset(0), 1e-9)
	// Transition 1: 3 + 10 minus the 1.0s of blend consumed so far.
	assert.InDelta(t, 12.0, tl.Offset(1), 1e-9)
	assert.InDelta(t, 21.5, tl.Offset(2), 1e-9)
	assert.InDelta(t, 30.0, tl.Offset(3), 1e-9)
}

func TestTimelineOffsetMatchesXfade(t *testing.T) {
	// Two 10s clips joined by a 1s crossfade: xfade wants offset=9 so the
	// blend consumes the first clip's last second rather than freezing on
	// its final frame.
	tl, err := NewTimeline(
		[]Item{{Duration: 10}, {Duration: 10}},
		[]Transition{{Type: "fade", Duration: 1}},
	)
	require.NoError(t, err)

	assert.InDelta(t, 9.0, tl.Offset(0), 1e-9)
	assert.InDelta(t, 19.0, tl.TotalDuration(), 1e-9)
}

func TestTimelineMidpoints(t *testing.T) {
	tl := standardTimeline(t)

	assert.InDelta(t, 2.75, tl.Midpoint(0), 1e-9)
	assert.InDelta(t, 12.25, tl.Midpoint(1), 1e-9)
	// The outro dissolve is longer, so its midpoint sits deeper in.
	assert.InDelta(t, 30.75, tl.Midpoint(3), 1e-9)
}

func TestTimelineItemStart(t *testing.T) {
	tl := standardTimeline(t)

	assert.InDelta(t, 0.0, tl.ItemStart(0), 1e-9)
	// The artist segment starts appearing when the intro fade begins.
	assert.InDelta(t, 2.5, tl.ItemStart(1), 1e-9)
	assert.InDelta(t, 12.0, tl.ItemStart(2), 1e-9)
	assert.InDelta(t, 21.5, tl.ItemStart(3), 1e-9)
	assert.InDelta(t, 30.0, tl.ItemStart(4), 1e-9)

	// ItemStart of item i+1 and Offset of transition i are the same
	// boundary; crossfades, captions and beat snapping all rely on it.
	for i := range tl.Transitions {
		assert.InDelta(t, tl.Offset(i), tl.ItemStart(i+1), 1e-9)
	}
}

func TestTimelineTotalDuration(t *testing.T) {
	tl := standardTimeline(t)
	// 39 seconds of items minus 3 seconds of overlap.
	assert.InDelta(t, 36.0, tl.TotalDuration(), 1e-9)

	// The last item plays out from its transition offset to the very end.
	last := len(tl.Transitions) - 1
	assert.InDelta(t, tl.TotalDuration(),
		tl.Offset(last)+tl.Items[len(tl.Items)-1].Duration, 1e-9)
}

func TestWithTransitionTypes(t *testing.T) {
	tl := standardTimeline(t)
	out := tl.WithTransitionTypes([]string{"slideup", "", "smoothleft"})

	assert.Equal(t, "slideup", out.Transitions[0].Type)
	assert.Equal(t, "dissolve", out.Transitions[1].Type, "empty entries keep the original type")
	assert.Equal(t, "smoothleft", out.Transitions[2].Type)
	assert.Equal(t, "dissolve", out.Transitions[3].Type, "short lists leave the tail untouched")

	// Durations and the source timeline are untouched.
	assert.Equal(t, 0.5, out.Transitions[0].Duration)
	assert.Equal(t, "fade", tl.Transitions[0].Type)
}

func TestWithItemDurations(t *testing.T) {
	tl := standardTimeline(t)
	out := tl.WithItemDurations([]float64{3, 10.2, 9.8, 10, 6})

	assert.InDelta(t, 10.2, out.Items[1].Duration, 1e-9)
	assert.InDelta(t, 9.8, out.Items[2].Duration, 1e-9)
	assert.InDelta(t, tl.TotalDuration(), out.TotalDuration(), 1e-9,
		"redistributed durations keep the total constant")
	assert.Equal(t, 10.0, tl.Items[1].Duration, "source timeline is untouched")
}
