package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
)

// stderrTail is how many trailing diagnostic lines are surfaced on failure.
const stderrTail = 6

// Command is one external transcode invocation. Filter-graph builders
// produce Commands; the Runner executes them. Keeping construction separate
// from execution keeps the graph logic pure and testable.
type Command struct {
	Args []string

	// TotalDuration is the expected output duration in seconds, used to
	// turn elapsed-time markers into percentages. Zero means no progress
	// reporting.
	TotalDuration float64

	// OnProgress receives elapsed output seconds parsed from the engine's
	// diagnostic stream. May be nil.
	OnProgress func(seconds float64)
}

// Runner executes media-engine commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// FFmpeg runs commands against the ffmpeg binary, parsing time= markers
// from stderr for progress.
type FFmpeg struct {
	bin string
}

func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{bin: bin}
}

// timeMarkRe matches the elapsed-time marker ffmpeg prints on its stats line.
var timeMarkRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

func (f *FFmpeg) Run(ctx context.Context, cmd Command) error {
	args := append([]string{"-hide_banner", "-y"}, cmd.Args...)
	c := exec.CommandContext(ctx, f.bin, args...)

	stderr, err := c.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// ffmpeg rewrites its stats line with carriage returns, so split on
	// both \r and \n.
	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tail = append(tail, line)
		if len(tail) > stderrTail {
			tail = tail[1:]
		}

		if cmd.OnProgress != nil {
			if secs, ok := ParseTimeMark(line); ok {
				cmd.OnProgress(secs)
			}
		}
	}

	if err := c.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		logger.L().Warn("ffmpeg failed",
			zap.Error(err),
			zap.String("tail", strings.Join(tail, " | ")))
		return fmt.Errorf("ffmpeg exited with error: %w (%s)", err, strings.Join(tail, " | "))
	}

	return nil
}

// ParseTimeMark extracts the elapsed output seconds from one diagnostic
// line, if it carries a time= marker.
func ParseTimeMark(line string) (float64, bool) {
	m := timeMarkRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	min, _ := strconv.ParseFloat(m[2], 64)
	s, _ := strconv.ParseFloat(m[3], 64)
	return h*3600 + min*60 + s, true
}

// scanLines is bufio.ScanLines extended to treat a bare carriage return as
// a line terminator too.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
