package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/media"
)

// CaptionOverlay is one caption image with its on-screen window in the
// output timeline and its animation style.
type CaptionOverlay struct {
	Image string
	Start float64
	End   float64
	Style string // fade, slideUp, slideDown, fadeSlide, scaleBounce
}

// ComposeSpec is the final composite: captions overlaid on the silent
// concatenated master, the artist soundtrack mixed underneath.
type ComposeSpec struct {
	Video         string
	Audio         string // empty → silent output (preview renders)
	AudioOffset   float64
	Captions      []CaptionOverlay
	TotalDuration float64
}

// FinalComposer produces the deliverables: the captioned master with
// soundtrack, optional square/widescreen exports, and the branded
// thumbnail.
type FinalComposer struct {
	runner media.Runner
	assets *AssetRenderer
	cfg    config.Render
}

func NewFinalComposer(r media.Runner, assets *AssetRenderer, cfg config.Render) *FinalComposer {
	return &FinalComposer{runner: r, assets: assets, cfg: cfg}
}

// captionMotion returns the overlay y-expression for a caption's animation
// style. All styles share the alpha fade envelope; motion styles add a
// positional layer over the first CaptionAnim seconds on screen.
func (f *FinalComposer) captionMotion(style string, start float64) string {
	anim := f.cfg.CaptionAnim
	p := fmt.Sprintf("(t-%.3f)/%.3f", start, anim) // 0→1 entry progress
	gate := fmt.Sprintf("lt(t,%.3f)", start+anim)

	switch style {
	case "slideUp":
		return fmt.Sprintf("if(%s,60*(1-%s),0)", gate, p)
	case "slideDown":
		return fmt.Sprintf("if(%s,-60*(1-%s),0)", gate, p)
	case "fadeSlide":
		return fmt.Sprintf("if(%s,30*(1-%s),0)", gate, p)
	case "scaleBounce":
		// The overlay filter cannot animate the caption's scale per frame,
		// so the bounce is a damped overshoot in the position domain.
		return fmt.Sprintf("if(%s,40*(1-%s)*cos(12*%s),0)", gate, p, p)
	default: // fade
		return "0"
	}
}

// buildCompositeFilter assembles the overlay + audio filter graph. Each
// caption input is alpha-faded in and out, then overlaid only during its
// enable window.
func (f *FinalComposer) buildCompositeFilter(spec ComposeSpec, audioIdx int) string {
	var filters []string
	prev := "[0:v]"

	for i, c := range spec.Captions {
		faded := fmt.Sprintf("[cap%d]", i)
		filters = append(filters, fmt.Sprintf(
			"[%d:v]format=argb,fade=t=in:st=%.3f:d=%.3f:alpha=1,fade=t=out:st=%.3f:d=%.3f:alpha=1%s",
			i+1, c.Start, f.cfg.CaptionFade, c.End-f.cfg.CaptionFade, f.cfg.CaptionFade, faded))

		out := fmt.Sprintf("[v%d]", i+1)
		if i == len(spec.Captions)-1 {
			out = "[vout]"
		}
		filters = append(filters, fmt.Sprintf(
			"%s%soverlay=0:%s:enable='between(t,%.3f,%.3f)'%s",
			prev, faded, f.captionMotion(c.Style, c.Start), c.Start, c.End, out))
		prev = out
	}
	if len(spec.Captions) == 0 {
		filters = append(filters, "[0:v]null[vout]")
	}

	if spec.Audio != "" {
		fadeOutStart := spec.TotalDuration - f.cfg.MusicFadeOut
		if fadeOutStart < 0 {
			fadeOutStart = 0
		}
		filters = append(filters, fmt.Sprintf(
			"[%d:a]atrim=0:%.3f,asetpts=PTS-STARTPTS,afade=t=in:st=0:d=%.3f,afade=t=out:st=%.3f:d=%.3f,volume=%.2f[aout]",
			audioIdx, spec.TotalDuration,
			f.cfg.IntroDuration+f.cfg.MusicFadeIn,
			fadeOutStart, f.cfg.MusicFadeOut,
			f.cfg.MusicVolume))
	}

	return strings.Join(filters, ";")
}

// Compose renders the final deliverable. Failure here is fatal for the
// render.
func (f *FinalComposer) Compose(ctx context.Context, spec ComposeSpec, out string, onProgress func(float64)) error {
	args := []string{"-i", spec.Video}
	for _, c := range spec.Captions {
		args = append(args, "-loop", "1", "-i", c.Image)
	}

	audioIdx := len(spec.Captions) + 1
	if spec.Audio != "" {
		if spec.AudioOffset > 0 {
			args = append(args, "-ss", fmt.Sprintf("%.3f", spec.AudioOffset))
		}
		args = append(args, "-i", spec.Audio)
	}

	args = append(args, "-filter_complex", f.buildCompositeFilter(spec, audioIdx))
	args = append(args, "-map", "[vout]")
	if spec.Audio != "" {
		args = append(args, "-map", "[aout]", "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-t", fmt.Sprintf("%.3f", spec.TotalDuration),
		out,
	)

	cmd := media.Command{
		Args:          args,
		TotalDuration: spec.TotalDuration,
		OnProgress:    onProgress,
	}
	if err := f.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("final composite failed: %w", err)
	}
	return nil
}

// ExportSquare crops the finished 9:16 master to 1:1 with a fixed vertical
// offset. Always a transform of the master, never a re-render.
func (f *FinalComposer) ExportSquare(ctx context.Context, master, out string) error {
	cmd := media.Command{Args: []string{
		"-i", master,
		"-vf", "crop=iw:iw:0:ih*0.22",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-c:a", "copy",
		out,
	}}
	if err := f.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("square export failed: %w", err)
	}
	return nil
}

// ExportWide places the master centered over a blurred, scaled copy of
// itself to fill a 16:9 canvas.
func (f *FinalComposer) ExportWide(ctx context.Context, master, out string) error {
	filter := "[0:v]scale=1920:1080,boxblur=20:5[bg];" +
		"[0:v]scale=-2:1080[fg];" +
		"[bg][fg]overlay=(W-w)/2:0[vout]"
	cmd := media.Command{Args: []string{
		"-i", master,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "medium",
		"-c:a", "copy",
		out,
	}}
	if err := f.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("widescreen export failed: %w", err)
	}
	return nil
}

// Thumbnail extracts the hero frame from a source clip and composites it
// into a branded thumbnail image.
func (f *FinalComposer) Thumbnail(ctx context.Context, sourceClip string, ts float64, title, framePath, out string) error {
	if err := media.ExtractFrameAt(ctx, f.runner, sourceClip, ts, framePath); err != nil {
		return fmt.Errorf("hero frame extraction failed: %w", err)
	}
	if err := f.assets.Thumbnail(framePath, title, out); err != nil {
		return fmt.Errorf("thumbnail composition failed: %w", err)
	}
	return nil
}
