package render

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
	"github.com/jjshay/music-videos-app/internal/models"
)

// SegmentSpec is one body-segment transform: a slice of a source clip
// turned into a fixed-duration, fixed-resolution, silent segment.
type SegmentSpec struct {
	Source         string
	SourceDuration float64 // probed clip duration, used for clamping
	Seek           float64 // in-source start offset
	OutputDuration float64
	Speed          float64 // playback multiplier; 0 means 1.0
	FitMode        string  // "crop" (default) or "fit"
	KenBurns       *models.KenBurns
	ColorGrade     *models.ColorGrade
}

// SegmentCompositor transforms source clips into concatenation-ready
// segments: trim, crop/fit, Ken Burns, color grade, speed ramp, frame-rate
// and pixel-format normalization, audio stripped.
type SegmentCompositor struct {
	runner media.Runner
	cfg    config.Render

	width  int
	height int
	crf    string
	preset string
}

func NewSegmentCompositor(r media.Runner, cfg config.Render) *SegmentCompositor {
	return &SegmentCompositor{
		runner: r,
		cfg:    cfg,
		width:  cfg.Width,
		height: cfg.Height,
		crf:    "18",
		preset: "medium",
	}
}

// NewPreviewCompositor trades quality for speed: reduced resolution,
// fast preset, higher CRF.
func NewPreviewCompositor(r media.Runner, cfg config.Render) *SegmentCompositor {
	return &SegmentCompositor{
		runner: r,
		cfg:    cfg,
		width:  cfg.PreviewWidth,
		height: cfg.PreviewHeight,
		crf:    "28",
		preset: "ultrafast",
	}
}

// clampSpeed enforces the configured playback-multiplier bounds.
func (s *SegmentCompositor) clampSpeed(speed float64) float64 {
	if speed == 0 {
		return 1.0
	}
	if speed < s.cfg.MinSpeed {
		return s.cfg.MinSpeed
	}
	if speed > s.cfg.MaxSpeed {
		return s.cfg.MaxSpeed
	}
	return speed
}

// resolveWindow computes the in-source seek and slice length. The required
// source duration is outputDuration/speed; if seek + required overruns the
// probed clip, the seek shifts backward (floored at 0) and the slice is
// capped to what the clip can supply. Violations clamp, never reject.
func (s *SegmentCompositor) resolveWindow(spec SegmentSpec) (seek, slice float64) {
	speed := s.clampSpeed(spec.Speed)
	required := spec.OutputDuration / speed

	seek = spec.Seek
	if seek < 0 {
		seek = 0
	}
	if spec.SourceDuration > 0 && seek+required > spec.SourceDuration {
		seek = spec.SourceDuration - required
		if seek < 0 {
			seek = 0
		}
		if required > spec.SourceDuration {
			required = spec.SourceDuration
		}
	}
	return seek, required
}

// buildFilter assembles the transform chain. Order matters: geometry first,
// then Ken Burns (fed 2x-resolution frames), then color grade, then the
// speed time-remap, then frame-rate/pixel-format normalization.
func (s *SegmentCompositor) buildFilter(spec SegmentSpec) string {
	speed := s.clampSpeed(spec.Speed)
	var chain []string

	kenBurns := spec.KenBurns != nil && spec.KenBurns.Enabled

	switch spec.FitMode {
	case "fit":
		chain = append(chain, fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s",
			s.width, s.height, s.width, s.height, hexToFFmpegColor(s.cfg.NavyHex)))
	default: // crop-to-fill
		chain = append(chain, fmt.Sprintf(
			"crop='min(iw,ih*%d/%d)':'min(ih,iw*%d/%d)'",
			s.width, s.height, s.height, s.width))
		if kenBurns {
			// 2x headroom so the zoom never upscales visibly
			chain = append(chain, fmt.Sprintf("scale=%d:%d", s.width*2, s.height*2))
		} else {
			chain = append(chain, fmt.Sprintf("scale=%d:%d", s.width, s.height))
		}
	}

	if kenBurns {
		frames := int(spec.OutputDuration * float64(s.cfg.FPS))
		if frames < 1 {
			frames = 1
		}
		maxZoom := s.cfg.KenBurnsZoom
		var zExpr string
		if spec.KenBurns.Direction == "out" {
			zExpr = fmt.Sprintf("max(%.3f-%.3f*on/%d,1.0)", maxZoom, maxZoom-1, frames)
		} else {
			zExpr = fmt.Sprintf("min(1.0+%.3f*on/%d,%.3f)", maxZoom-1, frames, maxZoom)
		}
		chain = append(chain, fmt.Sprintf(
			"zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d",
			zExpr, s.width, s.height, s.cfg.FPS))
	}

	if g := spec.ColorGrade; g != nil {
		chain = append(chain, fmt.Sprintf(
			"eq=brightness=%.2f:contrast=%.2f:saturation=%.2f",
			g.Brightness, g.Contrast, g.Saturation))
	}

	if speed != 1.0 {
		// setpts must run before fps normalization or the remap is lost
		chain = append(chain, fmt.Sprintf("setpts=%.4f*PTS", speed))
	}

	chain = append(chain, fmt.Sprintf("fps=%d", s.cfg.FPS), "format=yuv420p")
	return strings.Join(chain, ",")
}

// Render executes the transform. Any failure here is fatal for the job —
// there is no lower-quality fallback.
func (s *SegmentCompositor) Render(ctx context.Context, spec SegmentSpec, out string, onProgress func(float64)) error {
	seek, slice := s.resolveWindow(spec)

	logger.L().Debug("transforming segment",
		zap.String("source", spec.Source),
		zap.Float64("seek", seek),
		zap.Float64("slice", slice),
		zap.Float64("outputDuration", spec.OutputDuration))

	args := []string{
		"-ss", fmt.Sprintf("%.3f", seek),
		"-i", spec.Source,
		"-t", fmt.Sprintf("%.3f", slice),
		"-vf", s.buildFilter(spec),
		"-an",
		"-c:v", "libx264",
		"-crf", s.crf,
		"-preset", s.preset,
		out,
	}

	cmd := media.Command{
		Args:          args,
		TotalDuration: spec.OutputDuration,
		OnProgress:    onProgress,
	}
	if err := s.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("segment transform failed for %s: %w", spec.Source, err)
	}
	return nil
}

// hexToFFmpegColor converts "#1a3a6b" to the 0x1a3a6b form filters expect.
func hexToFFmpegColor(hex string) string {
	return "0x" + strings.TrimPrefix(hex, "#")
}
