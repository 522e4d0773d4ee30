package timetable

import (
	"log/slog"
	"strings"

	"github.com/spf13/cast"

	"github.com/hrygo/timetable/store"
)

// Accepted field names per attribute, in lookup order.
var (
	idKeys         = []string{"id", "_id", "schedule_id", "scheduleId"}
	schoolYearKeys = []string{"school_year", "schoolYear", "sy", "academic_year"}
	semesterKeys   = []string{"semester", "sem", "term"}
	subjectKeys    = []string{"subject_id", "subjectId", "subject"}
	professorKeys  = []string{"professor_id", "professorId", "professor", "teacher_id", "faculty_id"}
	sectionKeys    = []string{"section_id", "sectionId", "section", "class_id"}
	roomKeys       = []string{"room_id", "roomId", "room"}
	deliveryKeys   = []string{"delivery_mode", "deliveryMode", "mode", "modality"}
	dayKeys        = []string{"days", "day", "day_of_week", "weekdays"}
	startKeys      = []string{"start_time", "startTime", "time_start", "start"}
	endKeys        = []string{"end_time", "endTime", "time_end", "end"}
	originKeys     = []string{"origin", "source"}
)

// Normalize converts a raw record into a canonical Meeting. It returns false
// when the record cannot take part in conflict checking.
func Normalize(rec store.Record) (Meeting, bool) {
	m := NormalizeCandidate(rec)
	if reason := rejectReason(m); reason != "" {
		slog.Debug("dropping schedule record",
			"id", m.ID,
			"reason", reason,
		)
		return Meeting{}, false
	}
	return m, true
}

// NormalizeAll normalizes every record and silently drops the unusable ones.
func NormalizeAll(records []store.Record) []Meeting {
	meetings := make([]Meeting, 0, len(records))
	for _, rec := range records {
		if m, ok := Normalize(rec); ok {
			meetings = append(meetings, m)
		}
	}
	return meetings
}

// NormalizeCandidate shapes a record like Normalize but keeps unparsable times
// as InvalidMinutes so the checker can report them.
func NormalizeCandidate(rec store.Record) Meeting {
	m := Meeting{
		ID: identifier(rec, idKeys),
		Term: Term{
			SchoolYear: scalar(rec, schoolYearKeys),
			Semester:   scalar(rec, semesterKeys),
		},
		SubjectID:    identifier(rec, subjectKeys),
		ProfessorID:  identifier(rec, professorKeys),
		SectionID:    identifier(rec, sectionKeys),
		RoomID:       identifier(rec, roomKeys),
		DeliveryMode: ParseDeliveryMode(scalar(rec, deliveryKeys)),
		Days:         ParseDays(lookup(rec, dayKeys)),
		Start:        clock(lookup(rec, startKeys)),
		End:          clock(lookup(rec, endKeys)),
		Origin:       parseOrigin(scalar(rec, originKeys)),
	}
	return m
}

func rejectReason(m Meeting) string {
	switch {
	case m.SectionID == "" || m.ProfessorID == "" || m.SubjectID == "":
		return "missing identifier"
	case !m.HasValidTimes():
		return "unparsable time"
	case m.Start < 0 || m.End > MinutesPerDay || m.End <= m.Start:
		return "invalid time range"
	case len(m.Days) == 0:
		return "no usable days"
	}
	return ""
}

func lookup(rec store.Record, keys []string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func scalar(rec store.Record, keys []string) string {
	s, err := cast.ToStringE(lookup(rec, keys))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// identifier accepts plain ids as well as embedded objects such as {"id": 3, "name": "..."}.
func identifier(rec store.Record, keys []string) string {
	v := lookup(rec, keys)
	if obj, ok := v.(map[string]any); ok {
		v = lookup(obj, idKeys)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// clock reads "HH:MM[:SS]" strings; bare numbers are taken as minutes since midnight.
func clock(v any) int {
	switch t := v.(type) {
	case nil:
		return InvalidMinutes
	case string:
		m, _ := ParseClock(t)
		return m
	default:
		n, err := cast.ToIntE(t)
		if err != nil || !validMinutes(n) {
			return InvalidMinutes
		}
		return n
	}
}

func parseOrigin(s string) Origin {
	if strings.EqualFold(s, string(OriginAuto)) {
		return OriginAuto
	}
	return OriginManual
}
