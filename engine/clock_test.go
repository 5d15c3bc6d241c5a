package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JudithKBrennan/buffalo-bus-accessibility/engine"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"00:00:00", 0},
		{"07:00:00", 25200},
		{"07:13:20", 26000},
		{"23:59:59", 86399},
		{" 06:30:00 ", 23400},
	}
	for _, c := range cases {
		got, err := engine.ParseClock(c.in)
		assert.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "07:00", "7:0", "aa:bb:cc", "07:61:00", "07:00:-1", "07:00:60"} {
		_, err := engine.ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", engine.FormatClock(0))
	assert.Equal(t, "07:13:20", engine.FormatClock(26000))
	assert.Equal(t, "23:59:59", engine.FormatClock(86399))
}

func TestClockRoundTrip(t *testing.T) {
	for _, s := range []string{"05:00:00", "12:34:56", "22:00:00"} {
		seconds, err := engine.ParseClock(s)
		assert.NoError(t, err)
		assert.Equal(t, s, engine.FormatClock(seconds))
	}
}
