package render

import (
	"context"
	"fmt"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/media"
)

// AssetRenderer rasterizes the branded graphics: intro card, outro
// call-to-action card, and per-segment caption overlays. Pure function of
// text + dimensions + brand config — identical inputs produce identical
// bytes.
type AssetRenderer struct {
	cfg     config.Render
	regular *truetype.Font
	bold    *truetype.Font
}

func NewAssetRenderer(cfg config.Render) (*AssetRenderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return &AssetRenderer{cfg: cfg, regular: regular, bold: bold}, nil
}

func (a *AssetRenderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// IntroCard renders the opening title card: artist name over the brand
// navy, with an accent rule and optional subtitle (genre/mood line).
func (a *AssetRenderer) IntroCard(title, subtitle, path string) error {
	w, h := a.cfg.Width, a.cfg.Height
	dc := gg.NewContext(w, h)

	dc.SetHexColor(a.cfg.NavyHex)
	dc.Clear()

	cx, cy := float64(w)/2, float64(h)/2

	dc.SetFontFace(a.face(a.bold, float64(w)/10))
	dc.SetHexColor(a.cfg.GoldHex)
	dc.DrawStringWrapped(title, cx, cy-float64(h)/20, 0.5, 1, float64(w)*0.85, 1.2, gg.AlignCenter)

	// accent rule under the title
	dc.SetLineWidth(6)
	dc.DrawLine(cx-float64(w)/6, cy+float64(h)/40, cx+float64(w)/6, cy+float64(h)/40)
	dc.Stroke()

	if subtitle != "" {
		dc.SetFontFace(a.face(a.regular, float64(w)/22))
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(subtitle, cx, cy+float64(h)/12, 0.5, 0.5)
	}

	return dc.SavePNG(path)
}

// OutroCard renders the closing call-to-action card with up to four lines:
// the first line large in gold, the rest smaller in white.
func (a *AssetRenderer) OutroCard(lines []string, path string) error {
	w, h := a.cfg.Width, a.cfg.Height
	dc := gg.NewContext(w, h)

	dc.SetHexColor(a.cfg.NavyHex)
	dc.Clear()

	cx := float64(w) / 2
	y := float64(h) * 0.38
	for i, line := range lines {
		if i >= 4 {
			break
		}
		if i == 0 {
			dc.SetFontFace(a.face(a.bold, float64(w)/12))
			dc.SetHexColor(a.cfg.GoldHex)
		} else {
			dc.SetFontFace(a.face(a.regular, float64(w)/20))
			dc.SetRGB(1, 1, 1)
		}
		dc.DrawStringAnchored(line, cx, y, 0.5, 0.5)
		if i == 0 {
			y += float64(h) / 11
		} else {
			y += float64(h) / 16
		}
	}

	return dc.SavePNG(path)
}

// Caption renders one word-wrapped caption on a transparent canvas the size
// of the output frame. Text is bold, centered at the configured vertical
// anchor, with a drop shadow and dark outline for legibility over video.
func (a *AssetRenderer) Caption(text, path string) error {
	w, h := a.cfg.Width, a.cfg.Height
	dc := gg.NewContext(w, h)

	size := float64(a.cfg.CaptionFontSize)
	dc.SetFontFace(a.face(a.bold, size))

	cx := float64(w) / 2
	cy := float64(h) * a.cfg.CaptionPosY
	maxWidth := float64(w) * 0.85
	lineSpacing := 1.3

	// drop shadow
	dc.SetRGBA(0, 0, 0, 0.55)
	dc.DrawStringWrapped(text, cx+3, cy+3, 0.5, 0.5, maxWidth, lineSpacing, gg.AlignCenter)

	// outline: redraw offset in eight directions behind the fill
	dc.SetHexColor(a.cfg.NavyHex)
	for _, d := range [][2]float64{{-2, -2}, {0, -2}, {2, -2}, {-2, 0}, {2, 0}, {-2, 2}, {0, 2}, {2, 2}} {
		dc.DrawStringWrapped(text, cx+d[0], cy+d[1], 0.5, 0.5, maxWidth, lineSpacing, gg.AlignCenter)
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(text, cx, cy, 0.5, 0.5, maxWidth, lineSpacing, gg.AlignCenter)

	return dc.SavePNG(path)
}

// Thumbnail composites a hero frame into a branded thumbnail: the frame
// scaled to fill the canvas, a gold accent bar, and the title along the
// bottom over a navy band.
func (a *AssetRenderer) Thumbnail(framePath, title, out string) error {
	w, h := a.cfg.Width, a.cfg.Height
	dc := gg.NewContext(w, h)

	dc.SetHexColor(a.cfg.NavyHex)
	dc.Clear()

	img, err := gg.LoadImage(framePath)
	if err != nil {
		return fmt.Errorf("failed to load hero frame: %w", err)
	}
	b := img.Bounds()
	scale := float64(w) / float64(b.Dx())
	if s := float64(h) / float64(b.Dy()); s > scale {
		scale = s
	}
	dc.Push()
	dc.Translate(float64(w)/2, float64(h)/2)
	dc.Scale(scale, scale)
	dc.DrawImageAnchored(img, 0, 0, 0.5, 0.5)
	dc.Pop()

	bandTop := float64(h) * 0.86
	dc.SetRGBA(0.1, 0.23, 0.42, 0.9)
	dc.DrawRectangle(0, bandTop, float64(w), float64(h)-bandTop)
	dc.Fill()

	dc.SetHexColor(a.cfg.GoldHex)
	dc.DrawRectangle(0, bandTop, float64(w), 8)
	dc.Fill()

	if title != "" {
		dc.SetFontFace(a.face(a.bold, float64(w)/14))
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(title, float64(w)/2, bandTop+(float64(h)-bandTop)/2, 0.5, 0.5)
	}

	return dc.SavePNG(out)
}

// CardVideo turns a still card image into a silent fixed-duration segment
// at the target resolution, ready for concatenation.
func CardVideo(ctx context.Context, r media.Runner, image string, duration float64, fps, width, height int, out string) error {
	if _, err := os.Stat(image); err != nil {
		return fmt.Errorf("card image missing: %w", err)
	}
	cmd := media.Command{
		Args: []string{
			"-loop", "1",
			"-i", image,
			"-t", fmt.Sprintf("%.3f", duration),
			"-vf", fmt.Sprintf("scale=%d:%d,fps=%d,format=yuv420p", width, height, fps),
			"-c:v", "libx264",
			"-crf", "18",
			"-preset", "medium",
			out,
		},
		TotalDuration: duration,
	}
	if err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("card video build failed: %w", err)
	}
	return nil
}
