package render

import (
	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/beat"
	"github.com/jjshay/music-videos-app/internal/logger"
)

// AlignToBeats nudges timeline item durations so that transition midpoints
// land on detected beats. For each internal boundary the crossfade-adjusted
// midpoint is computed from the current (possibly already adjusted)
// durations, snapped to the nearest beat within maxShift, and a successful
// snap redistributes the shift half into the preceding item and half into
// the following one. Items never shrink below minDuration. Best-effort: no
// beats, or a clamping conflict, leaves that boundary untouched.
func AlignToBeats(tl Timeline, beats []float64, maxShift, minDuration float64) Timeline {
	if len(beats) == 0 || len(tl.Items) < 2 {
		return tl
	}

	durations := make([]float64, len(tl.Items))
	for i, it := range tl.Items {
		durations[i] = it.Duration
	}

	for i := 0; i < len(tl.Items)-1; i++ {
		cur := tl.WithItemDurations(durations)
		mid := cur.Midpoint(i)

		snapped, ok := beat.SnapToNearest(beats, mid, maxShift)
		if !ok {
			continue
		}
		shift := snapped - mid
		if shift == 0 {
			continue
		}

		newPrev := durations[i] + shift/2
		newNext := durations[i+1] - shift/2
		if newPrev < minDuration || newNext < minDuration {
			continue
		}

		logger.L().Debug("snapped boundary to beat",
			zap.Int("boundary", i),
			zap.Float64("midpoint", mid),
			zap.Float64("beat", snapped))
		durations[i] = newPrev
		durations[i+1] = newNext
	}

	return tl.WithItemDurations(durations)
}
