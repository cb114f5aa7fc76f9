package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/models"
)

func testRenderConfig() config.Render {
	return config.Render{
		Width: 1080, Height: 1920, FPS: 30,
		MinSpeed: 0.7, MaxSpeed: 1.3,
		KenBurnsZoom:  1.15,
		NavyHex:       "#1a3a6b",
		PreviewWidth:  540,
		PreviewHeight: 960,
	}
}

func TestClampSpeed(t *testing.T) {
	s := NewSegmentCompositor(&fakeRunner{}, testRenderConfig())

	assert.Equal(t, 1.0, s.clampSpeed(0), "unset speed means normal playback")
	assert.Equal(t, 1.0, s.clampSpeed(1.0))
	assert.Equal(t, 0.7, s.clampSpeed(0.3))
	assert.Equal(t, 1.3, s.clampSpeed(2.5))
	assert.Equal(t, 0.9, s.clampSpeed(0.9))
}

func TestResolveWindow(t *testing.T) {
	s := NewSegmentCompositor(&fakeRunner{}, testRenderConfig())

	t.Run("fits", func(t *testing.T) {
		seek, slice := s.resolveWindow(SegmentSpec{
			SourceDuration: 60, Seek: 10, OutputDuration: 10, Speed: 1.0,
		})
		assert.InDelta(t, 10.0, seek, 1e-9)
		assert.InDelta(t, 10.0, slice, 1e-9)
	})

	t.Run("slow motion needs more source", func(t *testing.T) {
		_, slice := s.resolveWindow(SegmentSpec{
			SourceDuration: 60, Seek: 0, OutputDuration: 10, Speed: 0.8,
		})
		assert.InDelta(t, 12.5, slice, 1e-9)
	})

	t.Run("overrun shifts seek backward", func(t *testing.T) {
		seek, slice := s.resolveWindow(SegmentSpec{
			SourceDuration: 20, Seek: 15, OutputDuration: 10, Speed: 1.0,
		})
		assert.InDelta(t, 10.0, seek, 1e-9)
		assert.InDelta(t, 10.0, slice, 1e-9)
	})

	t.Run("short clip caps the slice", func(t *testing.T) {
		// An 8s clip cannot supply the 12.5s a slowed 10s segment needs:
		// seek floors at 0 and the slice caps at the clip duration.
		seek, slice := s.resolveWindow(SegmentSpec{
			SourceDuration: 8, Seek: 2, OutputDuration: 10, Speed: 0.8,
		})
		assert.InDelta(t, 0.0, seek, 1e-9)
		assert.InDelta(t, 8.0, slice, 1e-9)
	})

	t.Run("negative seek floors at zero", func(t *testing.T) {
		seek, _ := s.resolveWindow(SegmentSpec{
			SourceDuration: 60, Seek: -3, OutputDuration: 10,
		})
		assert.InDelta(t, 0.0, seek, 1e-9)
	})
}

func TestBuildFilterCropDefault(t *testing.T) {
	s := NewSegmentCompositor(&fakeRunner{}, testRenderConfig())
	filter := s.buildFilter(SegmentSpec{OutputDuration: 10})

	assert.Contains(t, filter, "crop=")
	assert.Contains(t, filter, "scale=1080:1920")
	assert.Contains(t, filter, "fps=30")
	assert.True(t, strings.HasSuffix(filter, "format=yuv420p"))
	assert.NotContains(t, filter, "setpts", "normal speed needs no remap")
	assert.NotContains(t, filter, "zoompan")
	assert.NotContains(t, filter, "eq=")
}

func TestBuildFilterFitPadsWithBrandColor(t *testing.T) {
	s := NewSegmentCompositor(&fakeRunner{}, testRenderConfig())
	filter := s.buildFilter(SegmentSpec{OutputDuration: 10, FitMode: "fit"})

	assert.Contains(t, filter, "force_original_aspect_ratio=decrease")
	assert.Contains(t, filter, "pad=1080:1920")
	assert.Contains(t, filter, "color=0x1a3a6b")
	assert.NotContains(t, filter, "crop=")
}

func TestBuildFilterKenBurns(t *testing.T) {
	s := NewSegmentCompositor(&fakeRunner{}, testRenderConfig())
	filter := s.buildFilter(SegmentSpec{
		OutputDuration: 10,
		KenBurns:       &models.KenBurns{Enabled: true, Direction: "in"},
	})

	// Zoom gets 2x-resolution frames so it never upscales visibly.
	assert.Contains(t, filter, "scale=2160:3840")
	assert.Contains(t, filter, "zoompan=")
	assert.Contains(t, filter, "s=1080x1920")
	assert.Contains(t, filter, "d=1")

	out := s.buildFilter(SegmentSpec{
		OutputDuration: 10,
		KenBurns:       &models.KenBurns{Enabled: true, Direction: "out"},
	})
	assert.Contains(t, out, "max(1.150-")
}

func TestBuildFilterOrder(t *testing.T) {
	s := NewSegmentCompositor(&fakeRunner{}, testRenderConfig())
	filter := s.buildFilter(SegmentSpec{
		OutputDuration: 10,
		Speed:          0.8,
		ColorGrade:     &models.ColorGrade{Brightness: 0.03, Contrast: 1.05, Saturation: 1.1},
	})

	grade := strings.Index(filter, "eq=")
	remap := strings.Index(filter, "setpts=")
	norm := strings.Index(filter, "fps=")
	require.True(t, grade >= 0 && remap >= 0 && norm >= 0)
	assert.Less(t, grade, remap, "color grade runs before the speed remap")
	assert.Less(t, remap, norm, "speed remap runs before fps normalization")
	assert.Contains(t, filter, "setpts=0.8000*PTS")
	assert.Contains(t, filter, "eq=brightness=0.03:contrast=1.05:saturation=1.10")
}

func TestSegmentRenderArgs(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSegmentCompositor(runner, testRenderConfig())

	err := s.Render(context.Background(), SegmentSpec{
		Source: "artist.mp4", SourceDuration: 60,
		Seek: 5, OutputDuration: 10,
	}, "seg.mp4", nil)
	require.NoError(t, err)

	args := runner.lastArgs()
	assert.Contains(t, args, "-ss 5.000 -i artist.mp4 -t 10.000")
	assert.Contains(t, args, "-an", "segments are always silent")
	assert.Contains(t, args, "-crf 18 -preset medium")
}

func TestPreviewCompositorTradesQuality(t *testing.T) {
	runner := &fakeRunner{}
	s := NewPreviewCompositor(runner, testRenderConfig())

	err := s.Render(context.Background(), SegmentSpec{
		Source: "artist.mp4", SourceDuration: 60, OutputDuration: 10,
	}, "seg.mp4", nil)
	require.NoError(t, err)

	args := runner.lastArgs()
	assert.Contains(t, args, "scale=540:960")
	assert.Contains(t, args, "-crf 28 -preset ultrafast")
}
