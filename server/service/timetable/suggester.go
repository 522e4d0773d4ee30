package timetable

// SuggestParams describes the slot being searched for.
type SuggestParams struct {
	Term            Term
	SectionID       string
	ProfessorID     string
	Days            []Weekday
	DurationMinutes int
	DeliveryMode    DeliveryMode
	// StepMinutes overrides the scan granularity; zero means StepMinutes.
	StepMinutes int
}

// Slot is a legal window on one day.
type Slot struct {
	Day   Weekday `json:"day"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Label renders the slot as "monday 08:00-09:00".
func (s Slot) Label() string {
	return string(s.Day) + " " + FormatClock(s.Start) + "-" + FormatClock(s.End)
}

// DurationFor derives the search duration from the candidate's times, falling
// back to DefaultDurationMinutes.
func DurationFor(candidate Meeting) int {
	if d := candidate.Duration(); d > 0 {
		return d
	}
	return DefaultDurationMinutes
}

// ParamsFor builds suggester params from a candidate meeting.
func ParamsFor(candidate Meeting) SuggestParams {
	return SuggestParams{
		Term:            candidate.Term,
		SectionID:       candidate.SectionID,
		ProfessorID:     candidate.ProfessorID,
		Days:            candidate.Days,
		DurationMinutes: DurationFor(candidate),
		DeliveryMode:    candidate.DeliveryMode,
	}
}

// SuggestSlots scans the working window day by day (Monday first) and returns
// up to maxSuggestions legal windows in discovery order. It is first-fit, not
// best-fit. A non-positive maxSuggestions means SuggestionCount.
func SuggestSlots(params SuggestParams, committed []Meeting, cfg WindowConfig, maxSuggestions int) []Slot {
	slots := []Slot{}
	days := SortDays(params.Days)
	if params.SectionID == "" || params.ProfessorID == "" || len(days) == 0 || params.DurationMinutes <= 0 {
		return slots
	}
	if maxSuggestions <= 0 {
		maxSuggestions = SuggestionCount
	}
	step := params.StepMinutes
	if step <= 0 {
		step = StepMinutes
	}

	// Only meetings that can block this actor pair matter.
	var busy []Meeting
	for _, m := range committed {
		if !sameTerm(params.Term, m.Term) {
			continue
		}
		if m.SectionID == params.SectionID || m.ProfessorID == params.ProfessorID {
			busy = append(busy, m)
		}
	}

	duration := params.DurationMinutes
	for _, day := range days {
		for t := cfg.WorkStart; t <= cfg.WorkEnd-duration; t += step {
			end := t + duration
			if cfg.crossesLunch(params.DeliveryMode, t, end) {
				continue
			}
			if blocked(busy, day, t, end) {
				continue
			}
			slots = append(slots, Slot{Day: day, Start: t, End: end})
			if len(slots) >= maxSuggestions {
				return slots
			}
		}
	}
	return slots
}

func blocked(busy []Meeting, day Weekday, start, end int) bool {
	for _, m := range busy {
		if busyOn(m, day, start, end) {
			return true
		}
	}
	return false
}
