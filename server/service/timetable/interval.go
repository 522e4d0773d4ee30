package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Overlaps reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// ParseClock converts "HH:MM" or "HH:MM:SS" to minutes since midnight.
// Seconds are ignored. It returns false for anything it cannot read.
func ParseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return InvalidMinutes, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return InvalidMinutes, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return InvalidMinutes, false
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return InvalidMinutes, false
	}
	total := hour*60 + minute
	if total > MinutesPerDay {
		return InvalidMinutes, false
	}
	return total, true
}

// MustParseClock is ParseClock for constants. It panics on bad input.
func MustParseClock(s string) int {
	m, ok := ParseClock(s)
	if !ok {
		panic(fmt.Sprintf("timetable: invalid clock %q", s))
	}
	return m
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	if !validMinutes(minutes) {
		return "--:--"
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func validMinutes(m int) bool {
	return m >= 0 && m <= MinutesPerDay
}
