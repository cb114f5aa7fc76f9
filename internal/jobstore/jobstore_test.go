package jobstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjshay/music-videos-app/internal/models"
)

func TestCreateSaveLoadRoundtrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	job, err := store.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusCreated, job.Status)
	assert.DirExists(t, store.Dir(job.ID))

	job.ArtistName = "Dana Reyes"
	job.Clips[models.ClipArtist] = "artist.mp4"
	job.ClipInfo[models.ClipArtist] = &models.ClipInfo{Duration: 30, HasAudio: true}
	require.NoError(t, store.Save(job))

	loaded, err := store.Load(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", loaded.ArtistName)
	assert.Equal(t, "artist.mp4", loaded.Clips[models.ClipArtist])
	assert.InDelta(t, 30.0, loaded.ClipInfo[models.ClipArtist].Duration, 1e-9)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoadMissingJob(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("no-such-job")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadRepairsNilMaps(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	// A hand-written record without clip maps must not panic downstream.
	dir := filepath.Join(root, "legacy")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.json"),
		[]byte(`{"id": "legacy", "status": "created"}`), 0644))

	job, err := store.Load("legacy")
	require.NoError(t, err)
	assert.NotNil(t, job.Clips)
	assert.NotNil(t, job.ClipInfo)
}

func TestSaveIsAtomic(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	job, err := store.Create()
	require.NoError(t, err)
	require.NoError(t, store.Save(job))

	entries, err := os.ReadDir(store.Dir(job.ID))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "no temp files left behind")
	}
}
