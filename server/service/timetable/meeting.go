package timetable

import (
	"strings"

	"github.com/pkg/errors"
)

// DeliveryMode is how a meeting is held.
type DeliveryMode string

const (
	Onsite DeliveryMode = "Onsite"
	Online DeliveryMode = "Online"
)

// ParseDeliveryMode is case-insensitive. Unknown values fall back to Onsite,
// which carries the stricter rule set.
func ParseDeliveryMode(s string) DeliveryMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "remote", "virtual":
		return Online
	default:
		return Onsite
	}
}

// Origin records how a meeting was created. It plays no part in conflict logic.
type Origin string

const (
	OriginAuto   Origin = "auto"
	OriginManual Origin = "manual"
)

// Term is the (school year, semester) scope of a meeting.
type Term struct {
	SchoolYear string `json:"school_year" yaml:"school_year"`
	Semester   string `json:"semester" yaml:"semester"`
}

// IsZero reports whether the term is unset.
func (t Term) IsZero() bool {
	return t.SchoolYear == "" && t.Semester == ""
}

func (t Term) String() string {
	return t.SchoolYear + "/" + t.Semester
}

// sameTerm reports whether two meetings are comparable. An unset term matches anything.
func sameTerm(a, b Term) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	return a.SchoolYear == b.SchoolYear && strings.EqualFold(a.Semester, b.Semester)
}

// Meeting is one scheduled (or candidate) class occurrence in canonical form.
type Meeting struct {
	ID           string       `json:"id,omitempty"`
	Term         Term         `json:"term"`
	SubjectID    string       `json:"subject_id"`
	ProfessorID  string       `json:"professor_id"`
	SectionID    string       `json:"section_id"`
	RoomID       string       `json:"room_id,omitempty"`
	DeliveryMode DeliveryMode `json:"delivery_mode"`
	Days         []Weekday    `json:"days"`
	Start        int          `json:"start"`
	End          int          `json:"end"`
	Origin       Origin       `json:"origin,omitempty"`
}

// HasValidTimes reports whether Start and End are parsed clock values.
func (m Meeting) HasValidTimes() bool {
	return validMinutes(m.Start) && validMinutes(m.End)
}

// IsOrdered reports whether the meeting has valid times with End after Start.
func (m Meeting) IsOrdered() bool {
	return m.HasValidTimes() && m.End > m.Start
}

// Duration returns End-Start in minutes, or 0 when the meeting is not ordered.
func (m Meeting) Duration() int {
	if !m.IsOrdered() {
		return 0
	}
	return m.End - m.Start
}

// ErrInvalidCandidate is returned for a candidate the rules cannot judge.
var ErrInvalidCandidate = errors.New("invalid candidate")

// ValidateCandidate rejects a candidate without its section, professor or
// subject, or without a single recognised weekday. Such a candidate matches
// no rule and would otherwise pass as legal. Times are not required here;
// the rules report those.
func ValidateCandidate(m Meeting) error {
	var missing []string
	if m.SectionID == "" {
		missing = append(missing, "section_id")
	}
	if m.ProfessorID == "" {
		missing = append(missing, "professor_id")
	}
	if m.SubjectID == "" {
		missing = append(missing, "subject_id")
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrInvalidCandidate, "missing %s", strings.Join(missing, ", "))
	}
	if len(m.Days) == 0 {
		return errors.Wrap(ErrInvalidCandidate, "days contains no recognised weekday")
	}
	return nil
}

// ExcludeIDs returns committed without the meetings whose id is listed.
// Callers re-validating an existing record use it to drop that record first.
func ExcludeIDs(committed []Meeting, ids ...string) []Meeting {
	if len(ids) == 0 {
		return committed
	}
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			skip[id] = true
		}
	}
	out := make([]Meeting, 0, len(committed))
	for _, m := range committed {
		if m.ID != "" && skip[m.ID] {
			continue
		}
		out = append(out, m)
	}
	return out
}
