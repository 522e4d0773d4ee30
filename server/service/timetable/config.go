package timetable

import (
	"github.com/pkg/errors"
)

// WindowConfig holds the institutional time bounds, in minutes since midnight.
type WindowConfig struct {
	WorkStart  int `json:"work_start"`
	WorkEnd    int `json:"work_end"`
	LunchStart int `json:"lunch_start"`
	LunchEnd   int `json:"lunch_end"`
	// LunchRule enables the lunch-exclusion rule for Onsite meetings.
	LunchRule bool `json:"lunch_rule"`
}

// DefaultWindowConfig is 07:30-16:30 with lunch 12:00-13:00.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		WorkStart:  7*60 + 30,
		WorkEnd:    16*60 + 30,
		LunchStart: 12 * 60,
		LunchEnd:   13 * 60,
		LunchRule:  true,
	}
}

// ParseWindowConfig builds a config from clock strings.
func ParseWindowConfig(workStart, workEnd, lunchStart, lunchEnd string, lunchRule bool) (WindowConfig, error) {
	cfg := WindowConfig{LunchRule: lunchRule}
	fields := []struct {
		name  string
		value string
		dst   *int
	}{
		{"work start", workStart, &cfg.WorkStart},
		{"work end", workEnd, &cfg.WorkEnd},
		{"lunch start", lunchStart, &cfg.LunchStart},
		{"lunch end", lunchEnd, &cfg.LunchEnd},
	}
	for _, f := range fields {
		m, ok := ParseClock(f.value)
		if !ok {
			return WindowConfig{}, errors.Errorf("invalid %s %q", f.name, f.value)
		}
		*f.dst = m
	}
	if err := cfg.Validate(); err != nil {
		return WindowConfig{}, err
	}
	return cfg, nil
}

// Validate rejects inverted or out-of-day windows.
func (c WindowConfig) Validate() error {
	if !validMinutes(c.WorkStart) || !validMinutes(c.WorkEnd) || c.WorkEnd <= c.WorkStart {
		return errors.Errorf("invalid working window %s-%s", FormatClock(c.WorkStart), FormatClock(c.WorkEnd))
	}
	if c.LunchRule && (!validMinutes(c.LunchStart) || !validMinutes(c.LunchEnd) || c.LunchEnd <= c.LunchStart) {
		return errors.Errorf("invalid lunch window %s-%s", FormatClock(c.LunchStart), FormatClock(c.LunchEnd))
	}
	return nil
}

// crossesLunch reports whether an interval hits the lunch break. Only Online
// meetings are exempt; an unset mode counts as Onsite.
func (c WindowConfig) crossesLunch(mode DeliveryMode, start, end int) bool {
	if !c.LunchRule || mode == Online {
		return false
	}
	return Overlaps(start, end, c.LunchStart, c.LunchEnd)
}

func (c WindowConfig) withinWorkHours(minutes int) bool {
	return minutes >= c.WorkStart && minutes <= c.WorkEnd
}
