package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jjshay/music-videos-app/internal/models"
)

// ErrNoVideoStream is returned when a probed file carries no video stream.
var ErrNoVideoStream = errors.New("no video stream found")

// Prober inspects media files with ffprobe.
type Prober struct {
	bin string
}

func NewProber(bin string) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{bin: bin}
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Probe returns the clip metadata the pipeline relies on. Fails with
// ErrNoVideoStream when the file has no video stream.
func (p *Prober) Probe(ctx context.Context, path string) (*models.ClipInfo, error) {
	args := []string{
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		path,
	}

	out, err := exec.CommandContext(ctx, p.bin, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed for %s: %w (%s)", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var video *probeStream
	hasAudio := false
	for i := range probed.Streams {
		switch probed.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &probed.Streams[i]
			}
		case "audio":
			hasAudio = true
		}
	}
	if video == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoVideoStream)
	}

	duration := parseFloatField(probed.Format.Duration)
	if duration == 0 {
		duration = parseFloatField(video.Duration)
	}

	return &models.ClipInfo{
		Duration: duration,
		Width:    video.Width,
		Height:   video.Height,
		FPS:      parseFrameRate(video.AvgFrameRate),
		Codec:    video.CodecName,
		HasAudio: hasAudio,
		FileSize: parseIntField(probed.Format.Size),
		BitRate:  parseIntField(probed.Format.BitRate),
	}, nil
}

// parseFrameRate converts ffprobe's fractional rate ("30000/1001") to fps.
func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

func parseFloatField(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseIntField(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
