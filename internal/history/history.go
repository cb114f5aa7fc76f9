// Package history keeps a bounded ring of human edits to past AI
// suggestions. The analyzer injects a style guide derived from recent
// edits into its prompts so suggestions drift toward what editors actually
// keep.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	listKey = "musicvideos:edit_history"

	// Ring bound: the oldest entries beyond this are trimmed on every write.
	maxEntries = 50

	// Only the most recent edits shape the style guide.
	styleGuideWindow = 20
)

// Edit records one human override of an AI suggestion.
type Edit struct {
	JobID     string    `json:"jobId"`
	Field     string    `json:"field"` // e.g. "caption"
	Suggested string    `json:"suggested"`
	Final     string    `json:"final"`
	EditedAt  time.Time `json:"editedAt"`
}

// Store is the bounded edit-history ring.
type Store interface {
	Record(ctx context.Context, edit Edit) error
	StyleGuide(ctx context.Context) (string, error)
}

// RedisStore implements Store on a redis list: LPUSH newest-first, LTRIM
// enforcing the cap on every write.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Record(ctx context.Context, edit Edit) error {
	if edit.EditedAt.IsZero() {
		edit.EditedAt = time.Now().UTC()
	}
	data, err := json.Marshal(edit)
	if err != nil {
		return fmt.Errorf("failed to marshal edit: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, listKey, data)
	pipe.LTrim(ctx, listKey, 0, maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record edit: %w", err)
	}
	return nil
}

// StyleGuide summarizes the most recent edits as prompt text. An empty
// history yields an empty guide (the analyzer simply omits it).
func (s *RedisStore) StyleGuide(ctx context.Context) (string, error) {
	raw, err := s.client.LRange(ctx, listKey, 0, styleGuideWindow-1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read edit history: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Past human edits to your suggestions (newest first). Match the phrasing and length editors prefer:\n")
	shorter := 0
	for _, item := range raw {
		var edit Edit
		if err := json.Unmarshal([]byte(item), &edit); err != nil {
			continue
		}
		fmt.Fprintf(&b, "- %s: replaced %q with %q\n", edit.Field, edit.Suggested, edit.Final)
		if len(edit.Final) < len(edit.Suggested) {
			shorter++
		}
	}
	if shorter > len(raw)/2 {
		b.WriteString("Editors usually shorten your text — keep suggestions concise.\n")
	}
	return b.String(), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
