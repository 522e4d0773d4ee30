package timetable

// Package-level constants for timetable validation.

const (
	// SuggestionCount is the default number of alternative slots returned by the suggester.
	SuggestionCount = 5

	// StepMinutes is the granularity of the slot scan. A legal slot that does not
	// start on a step boundary is not discovered.
	StepMinutes = 10

	// DefaultDurationMinutes is used when the candidate has no usable start/end.
	DefaultDurationMinutes = 60

	// MinutesPerDay bounds every canonical time value.
	MinutesPerDay = 24 * 60

	// InvalidMinutes marks a time that could not be parsed.
	InvalidMinutes = -1
)
