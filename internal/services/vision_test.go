package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjshay/music-videos-app/internal/models"
)

const validAnalysisJSON = `{
  "mood": {"genre": "blues rock", "energy": "high", "description": "sweaty club set", "searchQuery": "concert crowd cheering"},
  "segments": [
    {"clipRole": "artist", "startTime": 4.0, "duration": 10.0, "caption": "Live and loud"},
    {"clipRole": "guitar", "startTime": 1.0, "duration": 10.0, "caption": "Strings on fire"},
    {"clipRole": "crowd", "startTime": 0.0, "duration": 10.0, "caption": "Feel the room"}
  ],
  "transitions": [
    {"from": "artist", "to": "guitar", "type": "dissolve"},
    {"from": "guitar", "to": "crowd", "type": "laser-wipe"}
  ],
  "outro": {"line1": "New single out now"},
  "heroFrame": {"clipRole": "artist", "timestamp": 45.0}
}`

func analysisJob() *models.Job {
	return &models.Job{
		ClipInfo: map[models.ClipRole]*models.ClipInfo{
			models.ClipArtist: {Duration: 30, HasAudio: true},
			models.ClipGuitar: {Duration: 8},
			models.ClipCrowd:  {Duration: 40},
		},
	}
}

func TestParseAnalysis(t *testing.T) {
	analysis, err := parseAnalysis(validAnalysisJSON)
	require.NoError(t, err)
	assert.Equal(t, "blues rock", analysis.Mood.Genre)
	assert.Len(t, analysis.Segments, 3)
	assert.Equal(t, "New single out now", analysis.Outro.Line1)
}

func TestParseAnalysisToleratesFences(t *testing.T) {
	fenced := "```json\n" + validAnalysisJSON + "\n```"
	_, err := parseAnalysis(fenced)
	assert.NoError(t, err)
}

func TestParseAnalysisRejectsMalformedResponses(t *testing.T) {
	_, err := parseAnalysis("I think the artist clip looks great!")
	assert.Error(t, err, "prose is not a plan")

	_, err = parseAnalysis(`{"mood": {}, "segments": [{"clipRole": "artist"}], "transitions": [], "outro": {"line1": "x"}}`)
	assert.Error(t, err, "wrong segment count is structural")

	_, err = parseAnalysis(`{
	  "segments": [{"clipRole":"artist"},{"clipRole":"guitar"},{"clipRole":"crowd"}],
	  "transitions": [{"type":"fade"},{"type":"fade"},{"type":"fade"}],
	  "outro": {"line1": "x"}}`)
	assert.Error(t, err, "wrong transition count is structural")

	_, err = parseAnalysis(`{
	  "segments": [{"clipRole":"artist"},{"clipRole":"guitar"},{"clipRole":"crowd"}],
	  "transitions": [{"type":"fade"},{"type":"fade"}],
	  "outro": {}}`)
	assert.Error(t, err, "missing outro copy is structural")
}

func TestClampAnalysis(t *testing.T) {
	analysis, err := parseAnalysis(validAnalysisJSON)
	require.NoError(t, err)

	clampAnalysis(analysis, analysisJob())

	// Guitar segment wants 10s starting at 1.0 out of an 8s clip: the
	// start pulls back and floors at zero.
	assert.InDelta(t, 0.0, analysis.Segments[1].StartTime, 1e-9)

	// In-bounds segments are untouched.
	assert.InDelta(t, 4.0, analysis.Segments[0].StartTime, 1e-9)

	// Unknown transition types coerce to fade; known ones survive.
	assert.Equal(t, "dissolve", analysis.Transitions[0].Type)
	assert.Equal(t, "fade", analysis.Transitions[1].Type)

	// Hero frame beyond the clip recenters.
	assert.InDelta(t, 15.0, analysis.HeroFrame.Timestamp, 1e-9)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}
