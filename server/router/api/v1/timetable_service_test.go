package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/server/internal/errors"
	"github.com/hrygo/timetable/server/internal/observability"
	"github.com/hrygo/timetable/server/service/timetable"
	"github.com/hrygo/timetable/store"
	"github.com/hrygo/timetable/store/db/sqlite"
)

type testAPI struct {
	echo  *echo.Echo
	store *store.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	p := &profile.Profile{
		Mode:            "dev",
		Driver:          "sqlite",
		DSN:             ":memory:",
		SchoolYear:      "2024-2025",
		Semester:        "1st",
		WorkStart:       "07:30",
		WorkEnd:         "16:30",
		LunchStart:      "12:00",
		LunchEnd:        "13:00",
		LunchRule:       true,
		SuggestionCount: 5,
		APIRateLimit:    1000,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	t.Cleanup(func() { st.Close() })

	service, err := timetable.NewServiceFromProfile(st, p)
	require.NoError(t, err)

	e := echo.New()
	api := NewAPIV1Service(p, service)
	api.RegisterRoutes(e)
	t.Cleanup(api.Close)
	return &testAPI{echo: e, store: st}
}

func (a *testAPI) seed(t *testing.T, create *store.CreateRecord) string {
	t.Helper()
	rec, err := a.store.CreateRecord(context.Background(), create)
	require.NoError(t, err)
	return rec["id"].(string)
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func mathMonday() *store.CreateRecord {
	return &store.CreateRecord{
		SchoolYear:   "2024-2025",
		Semester:     "1st",
		SubjectID:    "SUBJ1",
		ProfessorID:  "P1",
		SectionID:    "S1",
		DeliveryMode: "Onsite",
		Days:         []string{"monday"},
		StartTime:    "08:00:00",
		EndTime:      "09:00:00",
		Origin:       "manual",
	}
}

func violationRules(t *testing.T, body map[string]any) []string {
	t.Helper()
	raw, ok := body["violations"].([]any)
	require.True(t, ok, "violations missing: %v", body)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, v.(map[string]any)["rule"].(string))
	}
	return out
}

func TestCheckCandidate(t *testing.T) {
	api := newTestAPI(t)
	id := api.seed(t, mathMonday())

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/check", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2",
			"days": ["Mon"], "start_time": "08:30", "end_time": "09:30", "delivery_mode": "onsite"
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["legal"])
	assert.Equal(t, []string{"SECTION_TIME_CONFLICT"}, violationRules(t, body))
	conflict := body["violations"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{id}, conflict["conflict_ids"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/timetable/check", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2",
			"days": ["monday"], "start_time": "08:30", "end_time": "09:30"
		},
		"exclude_ids": ["`+id+`"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["legal"])
	assert.Empty(t, body["violations"])
}

func TestCheckCandidate_UnsetTimeIsAViolation(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/check", `{
		"candidate": {"section_id": "S1", "professor_id": "P1", "subject_id": "X", "days": ["friday"]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"END_NOT_AFTER_START"}, violationRules(t, body))
}

func TestCheckCandidate_InvalidPayload(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing section", `{"candidate": {"professor_id": "P1", "subject_id": "X", "days": ["monday"]}}`},
		{"no days", `{"candidate": {"section_id": "S1", "professor_id": "P1", "subject_id": "X", "days": []}}`},
		{"unknown days", `{"candidate": {"section_id": "S1", "professor_id": "P1", "subject_id": "X", "days": ["someday"]}}`},
		{"malformed json", `{"candidate": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/check", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_ARGUMENT", body["code"])
		})
	}
}

func TestSuggestSlots(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, mathMonday())

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/suggest", `{
		"section_id": "S1", "professor_id": "P9", "days": ["monday"], "duration_minutes": 60, "max": 2
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	suggestions := body["suggestions"].([]any)
	require.Len(t, suggestions, 2)
	first := suggestions[0].(map[string]any)
	assert.Equal(t, "monday", first["day"])
	assert.Equal(t, "09:00", first["start"])
	assert.Equal(t, "10:00", first["end"])
	assert.Equal(t, "monday 09:00-10:00", first["label"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/timetable/suggest", `{
		"section_id": "S1", "professor_id": "P9", "days": ["monday"], "duration_minutes": 0
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
}

func TestPrecheckCandidate(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, mathMonday())

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/precheck", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2",
			"days": ["monday"], "start_time": "08:30", "end_time": "09:30"
		},
		"max_suggestions": 3
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["legal"])
	assert.EqualValues(t, 60, body["duration_minutes"])
	assert.Len(t, body["suggestions"], 3)
}

func TestPrecheckBatch(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, mathMonday())

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/precheck/batch", `{
		"items": [
			{"candidate": {"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2", "days": ["monday"], "start_time": "08:30", "end_time": "09:30"}},
			{"candidate": {"section_id": "S2", "professor_id": "P2", "subject_id": "SUBJ2", "days": ["monday"], "start_time": "08:30", "end_time": "09:30"}}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, false, results[0].(map[string]any)["legal"])
	assert.Equal(t, true, results[1].(map[string]any)["legal"])

	rec, _ = api.do(t, http.MethodPost, "/api/v1/timetable/precheck/batch", `{"items": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitAndDeleteSchedule(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, mathMonday())

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/schedules", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2",
			"days": ["monday"], "start_time": "08:30", "end_time": "09:30"
		}
	}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SCHEDULE_CONFLICT", body["code"])
	assert.NotEmpty(t, body["details"].(map[string]any)["violations"])

	rec, body = api.do(t, http.MethodPost, "/api/v1/timetable/schedules", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2",
			"days": ["monday"], "start_time": "09:00", "end_time": "10:00"
		}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["committed"])
	meeting := body["meeting"].(map[string]any)
	newID := meeting["id"].(string)
	require.NotEmpty(t, newID)

	rec, body = api.do(t, http.MethodGet, "/api/v1/timetable/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["meetings"], 2, "commit invalidates the cached snapshot")

	rec, _ = api.do(t, http.MethodDelete, "/api/v1/timetable/schedules/"+newID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = api.do(t, http.MethodDelete, "/api/v1/timetable/schedules/"+newID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestCommitSchedule_Replace(t *testing.T) {
	api := newTestAPI(t)
	id := api.seed(t, mathMonday())

	rec, body := api.do(t, http.MethodPost, "/api/v1/timetable/schedules", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P1", "subject_id": "SUBJ1",
			"days": ["monday"], "start_time": "08:30", "end_time": "09:30"
		},
		"replace_id": "`+id+`"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["committed"])

	_, body = api.do(t, http.MethodGet, "/api/v1/timetable/snapshot?school_year=2024-2025&semester=1st", "")
	meetings := body["meetings"].([]any)
	require.Len(t, meetings, 1)
	assert.NotEqual(t, id, meetings[0].(map[string]any)["id"])
}

func TestGetMetrics(t *testing.T) {
	observability.GlobalMetrics().Reset()
	api := newTestAPI(t)

	api.do(t, http.MethodGet, "/api/v1/timetable/snapshot", "")
	rec, body := api.do(t, http.MethodGet, "/api/v1/timetable/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["request_total"])
	ops := body["operations"].([]any)
	require.Len(t, ops, 1)
	assert.Equal(t, "snapshot", ops[0].(map[string]any)["operation"])
	assert.EqualValues(t, 1, body["tracked_clients"])
}

func TestGetMetrics_ConflictIsNotAFailure(t *testing.T) {
	observability.GlobalMetrics().Reset()
	api := newTestAPI(t)
	api.seed(t, mathMonday())

	rec, _ := api.do(t, http.MethodPost, "/api/v1/timetable/schedules", `{
		"candidate": {
			"section_id": "S1", "professor_id": "P2", "subject_id": "SUBJ2",
			"days": ["monday"], "start_time": "08:30", "end_time": "09:30"
		}
	}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	_, body := api.do(t, http.MethodGet, "/api/v1/timetable/metrics", "")
	assert.EqualValues(t, 1, body["request_total"])
	assert.EqualValues(t, 0, body["request_failed"])
	assert.EqualValues(t, 1, body["rejected"])
}

func TestToAPIError_InvalidCandidate(t *testing.T) {
	err := pkgerrors.Wrap(timetable.ValidateCandidate(timetable.Meeting{SectionID: "S1"}), "precheck 0")

	apiErr := toAPIError(err)
	assert.Equal(t, errors.ErrCodeInvalidArgument, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus())
	assert.Contains(t, apiErr.Message, "professor_id")
}
