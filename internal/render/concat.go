package render

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
)

// ProfessionalTransitions is the curated set the AI may pick from, both in
// initial analysis and in review suggestions.
var ProfessionalTransitions = []string{
	"fade", "dissolve", "wipeleft", "wiperight",
	"slideup", "slidedown", "smoothleft", "smoothright",
}

// validTransitions are the types the crossfade engine accepts. Anything
// else silently falls back to fade — unknown types are coerced, never
// rejected.
var validTransitions = map[string]bool{
	"fade": true, "dissolve": true,
	"wipeleft": true, "wiperight": true,
	"slideup": true, "slidedown": true,
	"smoothleft": true, "smoothright": true,
	"fadeblack": true, "fadewhite": true,
	"circleopen": true, "circleclose": true,
}

// IsProfessionalTransition reports whether a suggested type is in the
// curated set (the only suggestions the review loop acts on).
func IsProfessionalTransition(t string) bool {
	for _, p := range ProfessionalTransitions {
		if t == p {
			return true
		}
	}
	return false
}

// NormalizeTransition coerces unknown transition types to fade.
func NormalizeTransition(t string) string {
	if !validTransitions[t] {
		return "fade"
	}
	return t
}

// Concatenator crossfade-joins an ordered list of silent segments into one
// continuous silent video.
type Concatenator struct {
	runner media.Runner
}

func NewConcatenator(r media.Runner) *Concatenator {
	return &Concatenator{runner: r}
}

// Concatenate renders the timeline to out. Each crossfade's start offset
// comes from the shared timeline arithmetic; the output of each crossfade
// becomes the left operand of the next.
func (c *Concatenator) Concatenate(ctx context.Context, tl Timeline, out string, onProgress func(float64)) error {
	if len(tl.Items) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}

	// Degenerate single-item timeline: plain copy, no crossfade.
	if len(tl.Items) == 1 {
		cmd := media.Command{Args: []string{
			"-i", tl.Items[0].Path,
			"-c", "copy",
			out,
		}}
		if err := c.runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("copy of single segment failed: %w", err)
		}
		return nil
	}

	args := make([]string, 0, len(tl.Items)*2+8)
	for _, item := range tl.Items {
		args = append(args, "-i", item.Path)
	}

	var filters []string
	prev := "[0:v]"
	for i, tr := range tl.Transitions {
		label := fmt.Sprintf("[vx%d]", i+1)
		if i == len(tl.Transitions)-1 {
			label = "[vout]"
		}
		filters = append(filters, fmt.Sprintf(
			"%s[%d:v]xfade=transition=%s:duration=%.3f:offset=%.3f%s",
			prev, i+1, NormalizeTransition(tr.Type), tr.Duration, tl.Offset(i), label,
		))
		prev = label
	}

	logger.L().Debug("concatenating timeline",
		zap.Int("items", len(tl.Items)),
		zap.Float64("totalDuration", tl.TotalDuration()))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[vout]",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		out,
	)

	cmd := media.Command{
		Args:          args,
		TotalDuration: tl.TotalDuration(),
		OnProgress:    onProgress,
	}
	if err := c.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("crossfade concatenation failed: %w", err)
	}
	return nil
}
