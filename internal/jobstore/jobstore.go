// Package jobstore manages per-job working directories. Each job owns one
// directory for its lifetime — source clips, intermediate renders and the
// job.json record all live there, so no cross-job locking is needed.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jjshay/music-videos-app/internal/models"
)

var ErrNotFound = errors.New("job not found")

const recordName = "job.json"

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Dir returns the job's private working directory.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// Create allocates a new job with its working directory.
func (s *Store) Create() (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.NewString(),
		Status:    models.JobStatusCreated,
		Clips:     make(map[models.ClipRole]string),
		ClipInfo:  make(map[models.ClipRole]*models.ClipInfo),
		CreatedAt: time.Now().UTC(),
	}
	if err := os.MkdirAll(s.Dir(job.ID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create job dir: %w", err)
	}
	if err := s.Save(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Save persists the record, replacing any previous version atomically.
func (s *Store) Save(job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	path := filepath.Join(s.Dir(job.ID), recordName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write job record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace job record: %w", err)
	}
	return nil
}

// Load reads a job record by ID.
func (s *Store) Load(id string) (*models.Job, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), recordName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job record: %w", err)
	}
	if job.Clips == nil {
		job.Clips = make(map[models.ClipRole]string)
	}
	if job.ClipInfo == nil {
		job.ClipInfo = make(map[models.ClipRole]*models.ClipInfo)
	}
	return &job, nil
}
