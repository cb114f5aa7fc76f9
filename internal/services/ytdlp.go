package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
)

// ErrInvalidURL rejects URLs outside the accepted shapes before any
// external process runs.
var ErrInvalidURL = errors.New("unsupported video URL")

// downloadPctRe matches yt-dlp's per-line progress output.
var downloadPctRe = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// YtDlp downloads remote videos via the yt-dlp binary.
type YtDlp struct {
	bin string
}

func NewYtDlp(bin string) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlp{bin: bin}
}

// ValidateURL accepts the small set of URL shapes the product supports.
func (y *YtDlp) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%q: %w", raw, ErrInvalidURL)
	}
	host := strings.TrimPrefix(u.Host, "www.")
	switch {
	case host == "youtube.com" && u.Path == "/watch" && u.Query().Get("v") != "":
		return nil
	case host == "youtube.com" && strings.HasPrefix(u.Path, "/shorts/"):
		return nil
	case host == "youtu.be" && len(u.Path) > 1:
		return nil
	}
	return fmt.Errorf("%q: %w", raw, ErrInvalidURL)
}

// Title fetches the remote video's title without downloading.
func (y *YtDlp) Title(ctx context.Context, rawURL string) (string, error) {
	if err := y.ValidateURL(rawURL); err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, y.bin, "--print", "%(title)s", "--skip-download", rawURL).Output()
	if err != nil {
		return "", fmt.Errorf("failed to fetch video title: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Download fetches the best combined mp4+m4a stream to dest, reporting
// integer download percent via onProgress. Returns the video title.
func (y *YtDlp) Download(ctx context.Context, rawURL, dest string, onProgress func(percent int)) (string, error) {
	if err := y.ValidateURL(rawURL); err != nil {
		return "", err
	}

	title, err := y.Title(ctx, rawURL)
	if err != nil {
		logger.L().Warn("could not fetch video title", zap.Error(err))
		title = ""
	}

	args := []string{
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--newline",
		"--no-playlist",
		"-o", dest,
		rawURL,
	}
	cmd := exec.CommandContext(ctx, y.bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start downloader: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	lastPct := -1
	for scanner.Scan() {
		m := downloadPctRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		pct, _ := strconv.ParseFloat(m[1], 64)
		if p := int(pct); p > lastPct {
			lastPct = p
			if onProgress != nil {
				onProgress(p)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		tail := stderr.String()
		if len(tail) > 400 {
			tail = tail[len(tail)-400:]
		}
		return "", fmt.Errorf("video download failed: %w (%s)", err, strings.TrimSpace(tail))
	}
	return title, nil
}

// Trim cuts [start, end) out of a downloaded file with a lossless stream
// copy.
func (y *YtDlp) Trim(ctx context.Context, r media.Runner, src string, start, end float64, out string) error {
	if end <= start {
		return fmt.Errorf("invalid trim window [%.2f, %.2f)", start, end)
	}
	cmd := media.Command{Args: []string{
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", src,
		"-t", fmt.Sprintf("%.3f", end-start),
		"-c", "copy",
		out,
	}}
	if err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("lossless trim failed: %w", err)
	}
	return nil
}
