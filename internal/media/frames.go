package media

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ExtractFrameAt grabs a single frame at the given timestamp as a JPEG.
func ExtractFrameAt(ctx context.Context, r Runner, src string, ts float64, out string) error {
	cmd := Command{Args: []string{
		"-ss", fmt.Sprintf("%.3f", ts),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}}
	if err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to extract frame at %.2fs from %s: %w", ts, src, err)
	}
	return nil
}

// ExtractFrames grabs count frames at evenly spaced timestamps across the
// clip, in parallel. Returned paths are ordered by timestamp.
func ExtractFrames(ctx context.Context, r Runner, src string, duration float64, count int, dir, prefix string) ([]string, error) {
	type frame struct {
		idx  int
		path string
	}

	var mu sync.Mutex
	frames := make([]frame, 0, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			ts := duration * float64(i+1) / float64(count+1)
			out := filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", prefix, i))
			if err := ExtractFrameAt(gctx, r, src, ts, out); err != nil {
				return err
			}
			mu.Lock()
			frames = append(frames, frame{idx: i, path: out})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(frames, func(a, b int) bool { return frames[a].idx < frames[b].idx })
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.path
	}
	return paths, nil
}

// ExtractAudio pulls the audio track out of a video file as AAC.
func ExtractAudio(ctx context.Context, r Runner, src, out string) error {
	cmd := Command{Args: []string{
		"-i", src,
		"-vn",
		"-c:a", "aac",
		"-b:a", "192k",
		out,
	}}
	if err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to extract audio from %s: %w", src, err)
	}
	return nil
}
