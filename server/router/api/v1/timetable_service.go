package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/timetable/server/internal/errors"
	"github.com/hrygo/timetable/server/service/timetable"
)

// MeetingPayload is the wire form of a candidate meeting. Times are "HH:MM";
// a missing or malformed time is not a request error, the checker reports it.
type MeetingPayload struct {
	ID           string   `json:"id"`
	SchoolYear   string   `json:"school_year"`
	Semester     string   `json:"semester"`
	SubjectID    string   `json:"subject_id" validate:"required"`
	ProfessorID  string   `json:"professor_id" validate:"required"`
	SectionID    string   `json:"section_id" validate:"required"`
	RoomID       string   `json:"room_id"`
	DeliveryMode string   `json:"delivery_mode"`
	Days         []string `json:"days" validate:"required,min=1,dive,required"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Origin       string   `json:"origin"`
}

func (p *MeetingPayload) toMeeting() (timetable.Meeting, error) {
	days := timetable.ParseDays(p.Days)
	if len(days) == 0 {
		return timetable.Meeting{}, errors.InvalidArgument("days contains no recognised weekday")
	}
	origin := timetable.OriginManual
	if strings.EqualFold(p.Origin, string(timetable.OriginAuto)) {
		origin = timetable.OriginAuto
	}
	return timetable.Meeting{
		ID:           p.ID,
		Term:         timetable.Term{SchoolYear: p.SchoolYear, Semester: p.Semester},
		SubjectID:    p.SubjectID,
		ProfessorID:  p.ProfessorID,
		SectionID:    p.SectionID,
		RoomID:       p.RoomID,
		DeliveryMode: timetable.ParseDeliveryMode(p.DeliveryMode),
		Days:         days,
		Start:        clockOrInvalid(p.StartTime),
		End:          clockOrInvalid(p.EndTime),
		Origin:       origin,
	}, nil
}

func clockOrInvalid(s string) int {
	if m, ok := timetable.ParseClock(s); ok {
		return m
	}
	return timetable.InvalidMinutes
}

// CheckPayload is the body of POST /check.
type CheckPayload struct {
	Candidate  MeetingPayload `json:"candidate"`
	ExcludeIDs []string       `json:"exclude_ids"`
}

// SuggestPayload is the body of POST /suggest.
type SuggestPayload struct {
	SchoolYear      string   `json:"school_year"`
	Semester        string   `json:"semester"`
	SectionID       string   `json:"section_id" validate:"required"`
	ProfessorID     string   `json:"professor_id" validate:"required"`
	Days            []string `json:"days" validate:"required,min=1,dive,required"`
	DurationMinutes int      `json:"duration_minutes" validate:"gt=0,lte=1440"`
	DeliveryMode    string   `json:"delivery_mode"`
	Max             int      `json:"max" validate:"gte=0,lte=50"`
	ExcludeIDs      []string `json:"exclude_ids"`
}

// PrecheckPayload is the body of POST /precheck and one item of a batch.
type PrecheckPayload struct {
	Candidate      MeetingPayload `json:"candidate"`
	ExcludeIDs     []string       `json:"exclude_ids"`
	MaxSuggestions int            `json:"max_suggestions" validate:"gte=0,lte=50"`
}

// PrecheckBatchPayload is the body of POST /precheck/batch.
type PrecheckBatchPayload struct {
	Items []PrecheckPayload `json:"items" validate:"required,min=1,max=50,dive"`
}

// CommitPayload is the body of POST /schedules.
type CommitPayload struct {
	Candidate MeetingPayload `json:"candidate"`
	ReplaceID string         `json:"replace_id"`
}

// bindAndValidate decodes the JSON body into payload and validates it.
func (s *APIV1Service) bindAndValidate(c echo.Context, payload any) error {
	if err := c.Bind(payload); err != nil {
		return err
	}
	return s.validatePayload(payload)
}

// CheckCandidate reports the violations of a candidate.
// POST /api/v1/timetable/check
func (s *APIV1Service) CheckCandidate(c echo.Context) error {
	var payload CheckPayload
	if err := s.bindAndValidate(c, &payload); err != nil {
		return err
	}
	candidate, err := payload.Candidate.toMeeting()
	if err != nil {
		return err
	}
	result, err := s.TimetableService.Check(c.Request().Context(), &timetable.CheckRequest{
		Candidate:  candidate,
		ExcludeIDs: payload.ExcludeIDs,
	})
	if err != nil {
		return err
	}
	if !result.Legal {
		s.metrics.RecordRejection()
	}
	return c.JSON(http.StatusOK, result)
}

// SuggestSlots lists legal windows for a section/professor pair.
// POST /api/v1/timetable/suggest
func (s *APIV1Service) SuggestSlots(c echo.Context) error {
	var payload SuggestPayload
	if err := s.bindAndValidate(c, &payload); err != nil {
		return err
	}
	days := timetable.ParseDays(payload.Days)
	if len(days) == 0 {
		return errors.InvalidArgument("days contains no recognised weekday")
	}
	slots, err := s.TimetableService.Suggest(c.Request().Context(), &timetable.SuggestRequest{
		Params: timetable.SuggestParams{
			Term:            timetable.Term{SchoolYear: payload.SchoolYear, Semester: payload.Semester},
			SectionID:       payload.SectionID,
			ProfessorID:     payload.ProfessorID,
			Days:            days,
			DurationMinutes: payload.DurationMinutes,
			DeliveryMode:    timetable.ParseDeliveryMode(payload.DeliveryMode),
		},
		Max:        payload.Max,
		ExcludeIDs: payload.ExcludeIDs,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": slotViews(slots)})
}

// PrecheckCandidate checks a candidate and proposes alternatives.
// POST /api/v1/timetable/precheck
func (s *APIV1Service) PrecheckCandidate(c echo.Context) error {
	var payload PrecheckPayload
	if err := s.bindAndValidate(c, &payload); err != nil {
		return err
	}
	req, err := payload.toRequest()
	if err != nil {
		return err
	}
	result, err := s.TimetableService.Precheck(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, precheckView(result))
}

// PrecheckBatch prechecks several candidates independently.
// POST /api/v1/timetable/precheck/batch
func (s *APIV1Service) PrecheckBatch(c echo.Context) error {
	var payload PrecheckBatchPayload
	if err := s.bindAndValidate(c, &payload); err != nil {
		return err
	}
	reqs := make([]*timetable.PrecheckRequest, 0, len(payload.Items))
	for i := range payload.Items {
		req, err := payload.Items[i].toRequest()
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}
	results, err := s.TimetableService.PrecheckBatch(c.Request().Context(), reqs)
	if err != nil {
		return err
	}
	views := make([]map[string]any, 0, len(results))
	for _, result := range results {
		views = append(views, precheckView(result))
	}
	return c.JSON(http.StatusOK, map[string]any{"results": views})
}

func (p *PrecheckPayload) toRequest() (*timetable.PrecheckRequest, error) {
	candidate, err := p.Candidate.toMeeting()
	if err != nil {
		return nil, err
	}
	return &timetable.PrecheckRequest{
		Candidate:      candidate,
		ExcludeIDs:     p.ExcludeIDs,
		MaxSuggestions: p.MaxSuggestions,
	}, nil
}

// GetSnapshot returns the normalized committed meetings of a term.
// GET /api/v1/timetable/snapshot?school_year=&semester=
func (s *APIV1Service) GetSnapshot(c echo.Context) error {
	term := timetable.Term{SchoolYear: c.QueryParam("school_year"), Semester: c.QueryParam("semester")}
	snap, err := s.TimetableService.Snapshot(c.Request().Context(), term)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// CommitSchedule persists a candidate after re-checking it.
// POST /api/v1/timetable/schedules
func (s *APIV1Service) CommitSchedule(c echo.Context) error {
	var payload CommitPayload
	if err := s.bindAndValidate(c, &payload); err != nil {
		return err
	}
	candidate, err := payload.Candidate.toMeeting()
	if err != nil {
		return err
	}
	result, err := s.TimetableService.Commit(c.Request().Context(), &timetable.CommitRequest{
		Candidate: candidate,
		ReplaceID: payload.ReplaceID,
	})
	if err != nil {
		return err
	}
	if !result.Committed {
		s.metrics.RecordRejection()
		return errors.ScheduleConflict("schedule conflicts with committed records").
			WithDetail("violations", result.Violations)
	}
	return c.JSON(http.StatusCreated, result)
}

// DeleteSchedule removes a committed record.
// DELETE /api/v1/timetable/schedules/:id?school_year=&semester=
func (s *APIV1Service) DeleteSchedule(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return errors.InvalidArgument("id is required")
	}
	term := timetable.Term{SchoolYear: c.QueryParam("school_year"), Semester: c.QueryParam("semester")}
	if err := s.TimetableService.Delete(c.Request().Context(), term, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type slotView struct {
	Day   timetable.Weekday `json:"day"`
	Start string            `json:"start"`
	End   string            `json:"end"`
	Label string            `json:"label"`
}

func slotViews(slots []timetable.Slot) []slotView {
	views := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, slotView{
			Day:   slot.Day,
			Start: timetable.FormatClock(slot.Start),
			End:   timetable.FormatClock(slot.End),
			Label: slot.Label(),
		})
	}
	return views
}

func precheckView(result *timetable.PrecheckResult) map[string]any {
	return map[string]any{
		"legal":            result.Legal,
		"violations":       result.Violations,
		"suggestions":      slotViews(result.Suggestions),
		"duration_minutes": result.DurationMinutes,
	}
}
