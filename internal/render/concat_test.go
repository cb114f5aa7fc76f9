package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjshay/music-videos-app/internal/media"
)

// fakeRunner records commands instead of executing them. Shared by the
// concatenation, review and compose tests.
type fakeRunner struct {
	commands []media.Command
	errs     []error // popped per call; nil beyond the list
}

func (f *fakeRunner) Run(ctx context.Context, cmd media.Command) error {
	f.commands = append(f.commands, cmd)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeRunner) lastArgs() string {
	if len(f.commands) == 0 {
		return ""
	}
	return strings.Join(f.commands[len(f.commands)-1].Args, " ")
}

func TestNormalizeTransition(t *testing.T) {
	assert.Equal(t, "dissolve", NormalizeTransition("dissolve"))
	assert.Equal(t, "fadeblack", NormalizeTransition("fadeblack"), "extended set is accepted")
	assert.Equal(t, "fade", NormalizeTransition("sparkle-explosion"), "unknown types coerce to fade")
	assert.Equal(t, "fade", NormalizeTransition(""))
}

func TestIsProfessionalTransition(t *testing.T) {
	for _, p := range ProfessionalTransitions {
		assert.True(t, IsProfessionalTransition(p), p)
	}
	assert.False(t, IsProfessionalTransition("fadeblack"), "valid but not in the curated set")
	assert.False(t, IsProfessionalTransition("sparkle-explosion"))
}

func TestConcatenateFilterGraph(t *testing.T) {
	runner := &fakeRunner{}
	c := NewConcatenator(runner)
	tl := standardTimeline(t)
	for i := range tl.Items {
		tl.Items[i].Path = tl.Items[i].Label + ".mp4"
	}

	require.NoError(t, c.Concatenate(context.Background(), tl, "out.mp4", nil))
	require.Len(t, runner.commands, 1)

	args := runner.lastArgs()
	assert.Contains(t, args, "-i intro.mp4 -i artist.mp4 -i guitar.mp4 -i crowd.mp4 -i outro.mp4")
	assert.Contains(t, args, "xfade=transition=fade:duration=0.500:offset=2.500[vx1]")
	assert.Contains(t, args, "[vx1][2:v]xfade=transition=dissolve:duration=0.500:offset=12.000[vx2]")
	assert.Contains(t, args, "xfade=transition=dissolve:duration=1.500:offset=30.000[vout]")
	assert.Contains(t, args, "-map [vout]")

	// Progress scaling needs the output duration.
	assert.InDelta(t, 36.0, runner.commands[0].TotalDuration, 1e-9)
}

func TestConcatenateCoercesUnknownTypes(t *testing.T) {
	runner := &fakeRunner{}
	c := NewConcatenator(runner)
	tl, err := NewTimeline(
		[]Item{{Path: "a.mp4", Duration: 5}, {Path: "b.mp4", Duration: 5}},
		[]Transition{{Type: "sparkle-explosion", Duration: 0.5}},
	)
	require.NoError(t, err)

	require.NoError(t, c.Concatenate(context.Background(), tl, "out.mp4", nil))
	assert.Contains(t, runner.lastArgs(), "xfade=transition=fade:")
}

func TestConcatenateSingleItemCopies(t *testing.T) {
	runner := &fakeRunner{}
	c := NewConcatenator(runner)
	tl, err := NewTimeline([]Item{{Path: "only.mp4", Duration: 5}}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Concatenate(context.Background(), tl, "out.mp4", nil))
	args := runner.lastArgs()
	assert.Contains(t, args, "-c copy")
	assert.NotContains(t, args, "xfade")
}

func TestConcatenateEmptyTimeline(t *testing.T) {
	c := NewConcatenator(&fakeRunner{})
	err := c.Concatenate(context.Background(), Timeline{}, "out.mp4", nil)
	assert.Error(t, err)
}
