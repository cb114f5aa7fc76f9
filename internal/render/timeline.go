package render

import "fmt"

// Item is one entry of the render-time timeline: intro card, the three body
// segments, outro card.
type Item struct {
	Label    string
	Path     string
	Duration float64
}

// Transition describes the crossfade joining two adjacent items.
type Transition struct {
	Type     string
	Duration float64
}

// Timeline is the ordered item list plus the N-1 transitions between them.
//
// Crossfade placement, beat-snap midpoints, review frame timestamps and
// caption enable-windows must all come from this one type — the same
// arithmetic computed anywhere else will eventually drift.
type Timeline struct {
	Items       []Item
	Transitions []Transition
}

func NewTimeline(items []Item, transitions []Transition) (Timeline, error) {
	if len(items) == 0 {
		return Timeline{}, fmt.Errorf("timeline needs at least one item")
	}
	if len(transitions) != len(items)-1 {
		return Timeline{}, fmt.Errorf("timeline with %d items needs %d transitions, got %d",
			len(items), len(items)-1, len(transitions))
	}
	return Timeline{Items: items, Transitions: transitions}, nil
}

// Offset is the timestamp in the concatenated output at which transition i
// begins blending: the sum of item durations through item i minus the
// crossfade overlap through transition i. This is the xfade offset operand
// (the blend starts one transition-duration before the left operand runs
// out), and it always equals ItemStart(i+1).
func (t Timeline) Offset(i int) float64 {
	var durations, overlap float64
	for j := 0; j <= i; j++ {
		durations += t.Items[j].Duration
		overlap += t.Transitions[j].Duration
	}
	return durations - overlap
}

// Midpoint is the visual center of transition i in the output timeline.
func (t Timeline) Midpoint(i int) float64 {
	return t.Offset(i) + t.Transitions[i].Duration/2
}

// ItemStart is the output timestamp at which item i begins to appear (the
// start of the transition blending it in, or 0 for the first item).
func (t Timeline) ItemStart(i int) float64 {
	var durations, overlap float64
	for j := 0; j < i; j++ {
		durations += t.Items[j].Duration
		overlap += t.Transitions[j].Duration
	}
	return durations - overlap
}

// TotalDuration is the final output length: item durations minus all
// crossfade overlaps.
func (t Timeline) TotalDuration() float64 {
	var total float64
	for _, it := range t.Items {
		total += it.Duration
	}
	for _, tr := range t.Transitions {
		total -= tr.Duration
	}
	return total
}

// WithTransitionTypes returns a copy whose transition types are replaced by
// the given list. Durations are preserved. Used by the review loop, which
// folds over iterations producing a fresh timeline each time.
func (t Timeline) WithTransitionTypes(types []string) Timeline {
	out := Timeline{
		Items:       t.Items,
		Transitions: make([]Transition, len(t.Transitions)),
	}
	copy(out.Transitions, t.Transitions)
	for i := range out.Transitions {
		if i < len(types) && types[i] != "" {
			out.Transitions[i].Type = types[i]
		}
	}
	return out
}

// WithItemDurations returns a copy with replaced item durations (the beat
// aligner's output). Paths, labels and transitions are preserved.
func (t Timeline) WithItemDurations(durations []float64) Timeline {
	out := Timeline{
		Items:       make([]Item, len(t.Items)),
		Transitions: t.Transitions,
	}
	copy(out.Items, t.Items)
	for i := range out.Items {
		if i < len(durations) {
			out.Items[i].Duration = durations[i]
		}
	}
	return out
}
