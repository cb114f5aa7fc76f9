package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func renderableJob() *Job {
	return &Job{
		Clips: map[ClipRole]string{
			ClipArtist: "artist.mp4",
			ClipGuitar: "guitar.mp4",
			ClipCrowd:  "crowd.mp4",
		},
		ClipInfo: map[ClipRole]*ClipInfo{
			ClipArtist: {Duration: 30, HasAudio: true},
			ClipGuitar: {Duration: 20},
			ClipCrowd:  {Duration: 25},
		},
	}
}

func TestRenderable(t *testing.T) {
	assert.NoError(t, renderableJob().Renderable())

	missing := renderableJob()
	delete(missing.Clips, ClipGuitar)
	assert.ErrorContains(t, missing.Renderable(), "missing guitar clip")

	unprobed := renderableJob()
	unprobed.ClipInfo[ClipCrowd] = nil
	assert.ErrorContains(t, unprobed.Renderable(), "not been probed")

	mute := renderableJob()
	mute.ClipInfo[ClipArtist].HasAudio = false
	assert.ErrorContains(t, mute.Renderable(), "no audio track")
}

func TestOutroLines(t *testing.T) {
	assert.Empty(t, Outro{}.Lines())

	o := Outro{Line1: "New single out now", Line3: "Follow for more"}
	assert.Equal(t, []string{"New single out now", "Follow for more"}, o.Lines(),
		"blank lines collapse out")
}

func TestEventTerminal(t *testing.T) {
	assert.False(t, Event{Type: EventProgress}.Terminal())
	assert.True(t, Event{Type: EventComplete}.Terminal())
	assert.True(t, Event{Type: EventError}.Terminal())
	assert.True(t, Event{Type: EventCancelled}.Terminal())
}
