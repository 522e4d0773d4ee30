package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps_HalfOpen(t *testing.T) {
	assert.False(t, Overlaps(0, 60, 60, 120), "touching endpoints never conflict")
	assert.True(t, Overlaps(0, 61, 60, 120))
	assert.True(t, Overlaps(10, 20, 0, 100), "containment overlaps")
	assert.False(t, Overlaps(0, 10, 20, 30))
}

func TestOverlaps_Symmetric(t *testing.T) {
	points := []int{0, 30, 60, 90, 120}
	for _, a0 := range points {
		for _, a1 := range points {
			for _, b0 := range points {
				for _, b1 := range points {
					assert.Equal(t, Overlaps(a0, a1, b0, b1), Overlaps(b0, b1, a0, a1),
						"[%d,%d) vs [%d,%d)", a0, a1, b0, b1)
				}
			}
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"07:30", 450, true},
		{"7:30", 450, true},
		{"16:30:59", 990, true},
		{" 12:00 ", 720, true},
		{"00:00", 0, true},
		{"24:00", 1440, true},
		{"24:01", InvalidMinutes, false},
		{"12:60", InvalidMinutes, false},
		{"-1:00", InvalidMinutes, false},
		{"12", InvalidMinutes, false},
		{"1:2:3:4", InvalidMinutes, false},
		{"ab:cd", InvalidMinutes, false},
		{"", InvalidMinutes, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseClock(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "07:30", FormatClock(450))
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "--:--", FormatClock(InvalidMinutes))
}

func TestMustParseClock_Panics(t *testing.T) {
	assert.Equal(t, 720, MustParseClock("12:00"))
	assert.Panics(t, func() { MustParseClock("noon") })
}
