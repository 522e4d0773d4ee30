package timetable

import (
	"strings"

	"github.com/spf13/cast"
)

// Weekday is a lowercase weekday token.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

// CanonicalDays is the scan order used everywhere output must be deterministic.
var CanonicalDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var weekdayAliases = map[string]Weekday{
	"monday":    Monday,
	"mon":       Monday,
	"tuesday":   Tuesday,
	"tue":       Tuesday,
	"tues":      Tuesday,
	"wednesday": Wednesday,
	"wed":       Wednesday,
	"thursday":  Thursday,
	"thu":       Thursday,
	"thurs":     Thursday,
	"friday":    Friday,
	"fri":       Friday,
	"saturday":  Saturday,
	"sat":       Saturday,
}

// ParseWeekday maps a token to a Weekday. Sunday and unknown tokens are rejected.
func ParseWeekday(token string) (Weekday, bool) {
	day, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(token))]
	return day, ok
}

// ParseDays accepts a []string, a []any or a comma-delimited string and returns
// the recognized days, deduplicated, in canonical order.
func ParseDays(raw any) []Weekday {
	var tokens []string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		tokens = strings.Split(v, ",")
	case []string:
		tokens = v
	case []Weekday:
		for _, d := range v {
			tokens = append(tokens, string(d))
		}
	case []any:
		for _, item := range v {
			s, err := cast.ToStringE(item)
			if err != nil {
				continue
			}
			tokens = append(tokens, s)
		}
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil
		}
		tokens = strings.Split(s, ",")
	}

	seen := make(map[Weekday]bool, len(tokens))
	for _, token := range tokens {
		if day, ok := ParseWeekday(token); ok {
			seen[day] = true
		}
	}
	return orderDays(seen)
}

// SortDays returns days deduplicated in canonical order, dropping unknown values.
func SortDays(days []Weekday) []Weekday {
	seen := make(map[Weekday]bool, len(days))
	for _, d := range days {
		if day, ok := ParseWeekday(string(d)); ok {
			seen[day] = true
		}
	}
	return orderDays(seen)
}

func orderDays(seen map[Weekday]bool) []Weekday {
	if len(seen) == 0 {
		return nil
	}
	days := make([]Weekday, 0, len(seen))
	for _, d := range CanonicalDays {
		if seen[d] {
			days = append(days, d)
		}
	}
	return days
}

// sharesDay reports whether the two day sets intersect.
func sharesDay(a, b []Weekday) bool {
	for _, x := range a {
		if hasDay(b, x) {
			return true
		}
	}
	return false
}

func hasDay(days []Weekday, day Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
