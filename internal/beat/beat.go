// Package beat derives rhythmic onsets from a soundtrack's loudness
// envelope. Results are advisory: no beats, or too little signal, simply
// means downstream boundary nudging is skipped.
package beat

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
)

const (
	sampleWindow  = 0.02 // RMS sampling window, seconds
	smoothingSpan = 0.2  // moving-average baseline span, seconds
	peakMargin    = 1.3  // amplitude must exceed baseline by 30%
	minBeatGap    = 0.25 // suppress double-triggers
	minSamples    = 10   // below this, report "no beat data"
)

type Detector struct {
	runner media.Runner
}

func NewDetector(r media.Runner) *Detector {
	return &Detector{runner: r}
}

// Detect returns an ascending list of beat timestamps found in the first
// window seconds of the audio file. An empty list means "no beat data",
// not an error.
func (d *Detector) Detect(ctx context.Context, audioPath string, window float64, workDir string) ([]float64, error) {
	statsPath := filepath.Join(workDir, "loudness_stats.txt")
	defer os.Remove(statsPath)

	cmd := media.Command{Args: []string{
		"-t", fmt.Sprintf("%.3f", window),
		"-i", audioPath,
		"-af", fmt.Sprintf(
			"astats=metadata=1:reset=1:length=%.3f,ametadata=mode=print:key=lavfi.astats.Overall.RMS_level:file=%s",
			sampleWindow, statsPath),
		"-f", "null", "-",
	}}
	if err := d.runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("loudness sampling failed: %w", err)
	}

	times, levels, err := parseLoudnessStats(statsPath)
	if err != nil {
		return nil, err
	}
	if len(levels) < minSamples {
		logger.L().Debug("too few loudness samples for beat detection",
			zap.Int("samples", len(levels)))
		return nil, nil
	}

	beats := pickPeaks(times, levels)
	logger.L().Debug("beat detection complete",
		zap.Int("samples", len(levels)), zap.Int("beats", len(beats)))
	return beats, nil
}

// parseLoudnessStats reads the ametadata dump: alternating frame header
// lines (carrying pts_time) and key=value lines with the RMS level in dB.
func parseLoudnessStats(path string) ([]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open loudness stats: %w", err)
	}
	defer f.Close()

	var times, levels []float64
	var curTime float64
	haveTime := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.Index(line, "pts_time:"); idx >= 0 {
			field := line[idx+len("pts_time:"):]
			if sp := strings.IndexByte(field, ' '); sp >= 0 {
				field = field[:sp]
			}
			if t, err := strconv.ParseFloat(field, 64); err == nil {
				curTime = t
				haveTime = true
			}
			continue
		}
		if haveTime && strings.HasPrefix(line, "lavfi.astats.Overall.RMS_level=") {
			v := strings.TrimPrefix(line, "lavfi.astats.Overall.RMS_level=")
			db, err := strconv.ParseFloat(v, 64)
			linear := 0.0
			if err == nil && !math.IsInf(db, -1) {
				// dBFS → linear amplitude
				linear = math.Pow(10, db/20)
			}
			times = append(times, curTime)
			levels = append(levels, linear)
			haveTime = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read loudness stats: %w", err)
	}
	return times, levels, nil
}

// pickPeaks marks a sample as a beat when it is a strict local maximum over
// a 5-sample neighborhood and exceeds the centered moving-average baseline
// by the configured margin, with a minimum inter-beat gap.
func pickPeaks(times, levels []float64) []float64 {
	baseline := movingAverage(levels, int(smoothingSpan/sampleWindow))

	var beats []float64
	lastBeat := -minBeatGap
	for i := 2; i < len(levels)-2; i++ {
		v := levels[i]
		if v <= levels[i-2] || v <= levels[i-1] || v <= levels[i+1] || v <= levels[i+2] {
			continue
		}
		if v <= baseline[i]*peakMargin {
			continue
		}
		if times[i]-lastBeat < minBeatGap {
			continue
		}
		beats = append(beats, times[i])
		lastBeat = times[i]
	}
	return beats
}

// movingAverage computes a centered moving average with the given span.
func movingAverage(values []float64, span int) []float64 {
	if span < 1 {
		span = 1
	}
	half := span / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// SnapToNearest finds the beat closest to target via binary search and
// returns it when within maxShift. The second return is false when no beat
// qualifies.
func SnapToNearest(beats []float64, target, maxShift float64) (float64, bool) {
	if len(beats) == 0 {
		return 0, false
	}
	i := sort.SearchFloat64s(beats, target)

	best := -1
	for _, cand := range []int{i - 1, i} {
		if cand < 0 || cand >= len(beats) {
			continue
		}
		if best == -1 || math.Abs(beats[cand]-target) < math.Abs(beats[best]-target) {
			best = cand
		}
	}
	if best == -1 || math.Abs(beats[best]-target) > maxShift {
		return 0, false
	}
	return beats[best], true
}
