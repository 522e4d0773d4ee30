package timetable

// RuleID identifies one conflict rule.
type RuleID string

// Rules in evaluation order.
const (
	RuleOutsideWorkHours      RuleID = "OUTSIDE_WORK_HOURS"
	RuleEndNotAfterStart      RuleID = "END_NOT_AFTER_START"
	RuleCrossesLunchBreak     RuleID = "CROSSES_LUNCH_BREAK"
	RuleDuplicateSubject      RuleID = "DUPLICATE_SUBJECT"
	RuleSectionTimeConflict   RuleID = "SECTION_TIME_CONFLICT"
	RuleProfessorTimeConflict RuleID = "PROFESSOR_TIME_CONFLICT"
)

var ruleMessages = map[RuleID]string{
	RuleOutsideWorkHours:      "outside working hours",
	RuleEndNotAfterStart:      "end not after start",
	RuleCrossesLunchBreak:     "crosses lunch break",
	RuleDuplicateSubject:      "subject already scheduled for this section",
	RuleSectionTimeConflict:   "section time conflict",
	RuleProfessorTimeConflict: "professor time conflict",
}

// Violation describes one broken rule.
type Violation struct {
	Rule    RuleID `json:"rule" yaml:"rule"`
	Message string `json:"message" yaml:"message"`
	// ConflictIDs lists the committed meetings that triggered the rule, when they carry an id.
	ConflictIDs []string `json:"conflict_ids,omitempty" yaml:"conflict_ids,omitempty"`
}

func newViolation(rule RuleID, ids []string) Violation {
	return Violation{Rule: rule, Message: ruleMessages[rule], ConflictIDs: ids}
}

// CheckConflicts evaluates every rule against the candidate and returns the
// violations in rule order. An empty result means the candidate is legal.
//
// Each rule is reported at most once; offending committed meetings are
// aggregated into ConflictIDs. Room conflicts are not checked here.
func CheckConflicts(candidate Meeting, committed []Meeting, cfg WindowConfig) []Violation {
	var violations []Violation
	// The window rule only needs parsed clocks. Lunch and overlap tests need
	// a real interval, so an inverted candidate reports only the ordering rule.
	timed := candidate.HasValidTimes()
	ordered := candidate.IsOrdered()

	if timed && (!cfg.withinWorkHours(candidate.Start) || !cfg.withinWorkHours(candidate.End)) {
		violations = append(violations, newViolation(RuleOutsideWorkHours, nil))
	}

	if !ordered {
		violations = append(violations, newViolation(RuleEndNotAfterStart, nil))
	}

	if ordered && cfg.crossesLunch(candidate.DeliveryMode, candidate.Start, candidate.End) {
		violations = append(violations, newViolation(RuleCrossesLunchBreak, nil))
	}

	var (
		duplicate, sectionHit, professorHit    bool
		duplicateIDs, sectionIDs, professorIDs []string
	)
	for _, m := range committed {
		if !sameTerm(candidate.Term, m.Term) {
			continue
		}
		sameSection := candidate.SectionID != "" && m.SectionID == candidate.SectionID

		if sameSection && candidate.SubjectID != "" && m.SubjectID == candidate.SubjectID {
			duplicate = true
			duplicateIDs = appendID(duplicateIDs, m.ID)
		}

		if !ordered || !clashes(candidate, m) {
			continue
		}
		if sameSection {
			sectionHit = true
			sectionIDs = appendID(sectionIDs, m.ID)
		}
		if candidate.ProfessorID != "" && m.ProfessorID == candidate.ProfessorID {
			professorHit = true
			professorIDs = appendID(professorIDs, m.ID)
		}
	}

	if duplicate {
		violations = append(violations, newViolation(RuleDuplicateSubject, duplicateIDs))
	}
	if sectionHit {
		violations = append(violations, newViolation(RuleSectionTimeConflict, sectionIDs))
	}
	if professorHit {
		violations = append(violations, newViolation(RuleProfessorTimeConflict, professorIDs))
	}
	return violations
}

// IsLegal is shorthand for an empty CheckConflicts result.
func IsLegal(candidate Meeting, committed []Meeting, cfg WindowConfig) bool {
	return len(CheckConflicts(candidate, committed, cfg)) == 0
}

// clashes reports whether two meetings share a day and overlap in time.
func clashes(a, b Meeting) bool {
	return sharesDay(a.Days, b.Days) && Overlaps(a.Start, a.End, b.Start, b.End)
}

// busyOn reports whether m occupies day during [start,end).
func busyOn(m Meeting, day Weekday, start, end int) bool {
	return hasDay(m.Days, day) && Overlaps(start, end, m.Start, m.End)
}

func appendID(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	return append(ids, id)
}
