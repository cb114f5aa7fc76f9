package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeMark(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{
			name: "stats line",
			line: "frame=  120 fps= 30 q=28.0 size=    1024kB time=00:00:04.02 bitrate=2087.9kbits/s",
			want: 4.02,
			ok:   true,
		},
		{
			name: "hours and minutes",
			line: "time=01:02:03.50",
			want: 3723.5,
			ok:   true,
		},
		{
			name: "no marker",
			line: "Press [q] to stop, [?] for help",
			ok:   false,
		},
		{
			name: "negative placeholder ignored",
			line: "time=N/A bitrate=N/A",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimeMark(tt.line)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.01)
	assert.InDelta(t, 30.0, parseFrameRate("30/1"), 1e-9)
	assert.Zero(t, parseFrameRate("0/0"))
	assert.Zero(t, parseFrameRate(""))
	assert.Zero(t, parseFrameRate("junk"))
}
