package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/logger"
)

// ErrNoResults signals an empty stock-footage search. It is a prompt for
// manual input, not a failure — only transport/auth problems are real
// errors.
var ErrNoResults = errors.New("no stock footage results")

// StockResult describes a downloaded stock clip.
type StockResult struct {
	FilePath     string  `json:"filePath"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	SourceURL    string  `json:"sourceUrl"`
	Duration     float64 `json:"duration"`
}

type pexelsVideoFile struct {
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Link    string `json:"link"`
}

type pexelsVideo struct {
	ID         int               `json:"id"`
	Duration   float64           `json:"duration"`
	Image      string            `json:"image"`
	URL        string            `json:"url"`
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsSearchResponse struct {
	Videos []pexelsVideo `json:"videos"`
}

// PexelsClient searches and downloads portrait stock footage.
type PexelsClient struct {
	http       *resty.Client
	downloader *Downloader
}

func NewPexelsClient(apiKey string, downloader *Downloader) *PexelsClient {
	return &PexelsClient{
		http: resty.New().
			SetBaseURL("https://api.pexels.com").
			SetHeader("Authorization", apiKey).
			SetRetryCount(2),
		downloader: downloader,
	}
}

// FetchBest searches for the query and downloads the best match into
// destDir. Returns ErrNoResults (wrapped) when the search comes back
// empty.
func (c *PexelsClient) FetchBest(ctx context.Context, query, destDir string) (*StockResult, error) {
	var result pexelsSearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":       query,
			"per_page":    "3",
			"orientation": "portrait",
		}).
		SetResult(&result).
		Get("/videos/search")
	if err != nil {
		return nil, fmt.Errorf("stock footage search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("stock footage search failed with status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if len(result.Videos) == 0 {
		return nil, fmt.Errorf("%q: %w", query, ErrNoResults)
	}

	video := result.Videos[0]
	file, ok := bestFile(video.VideoFiles)
	if !ok {
		return nil, fmt.Errorf("%q: %w", query, ErrNoResults)
	}

	dest := filepath.Join(destDir, fmt.Sprintf("stock_%d.mp4", video.ID))
	logger.L().Info("downloading stock footage",
		zap.String("query", query), zap.Int("videoID", video.ID), zap.String("quality", file.Quality))
	if err := c.downloader.Fetch(ctx, file.Link, dest); err != nil {
		return nil, fmt.Errorf("stock footage download failed: %w", err)
	}

	return &StockResult{
		FilePath:     dest,
		ThumbnailURL: video.Image,
		SourceURL:    video.URL,
		Duration:     video.Duration,
	}, nil
}

// bestFile prefers the hd quality tier, then the tallest (most portrait)
// frame among the preferred tier.
func bestFile(files []pexelsVideoFile) (pexelsVideoFile, bool) {
	if len(files) == 0 {
		return pexelsVideoFile{}, false
	}
	candidates := lo.Filter(files, func(f pexelsVideoFile, _ int) bool {
		return f.Quality == "hd"
	})
	if len(candidates) == 0 {
		candidates = files
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Height > candidates[b].Height
	})
	return candidates[0], true
}
