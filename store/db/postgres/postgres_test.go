package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/store"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$12", placeholder(12))
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
}

func TestListQuery(t *testing.T) {
	tests := []struct {
		name      string
		find      *store.FindRecord
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "all terms",
			find:      &store.FindRecord{},
			wantWhere: "WHERE 1 = 1 ORDER BY",
			wantArgs:  []any{},
		},
		{
			name:      "school year",
			find:      &store.FindRecord{SchoolYear: "2024-2025"},
			wantWhere: "WHERE 1 = 1 AND school_year = $1 ORDER BY",
			wantArgs:  []any{"2024-2025"},
		},
		{
			name:      "semester only",
			find:      &store.FindRecord{Semester: "1st"},
			wantWhere: "WHERE 1 = 1 AND LOWER(semester) = LOWER($1) ORDER BY",
			wantArgs:  []any{"1st"},
		},
		{
			name:      "term",
			find:      &store.FindRecord{SchoolYear: "2024-2025", Semester: "1ST"},
			wantWhere: "WHERE 1 = 1 AND school_year = $1 AND LOWER(semester) = LOWER($2) ORDER BY",
			wantArgs:  []any{"2024-2025", "1ST"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := listQuery(tt.find)
			assert.Contains(t, strings.Join(strings.Fields(query), " "), tt.wantWhere)
			assert.True(t, strings.HasPrefix(query, "SELECT "+recordColumns))
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestStatements(t *testing.T) {
	assert.Contains(t, insertStmt, "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)")
	assert.Contains(t, insertStmt, "RETURNING created_ts")
	assert.Equal(t, 13, len(strings.Split(recordColumns, ",")))
	assert.Equal(t, "DELETE FROM schedule_record WHERE id = $1", deleteStmt)
}

// TestScheduleRecordLifecycle runs against a live database when
// TIMETABLE_TEST_POSTGRES_DSN is set.
func TestScheduleRecordLifecycle(t *testing.T) {
	dsn := os.Getenv("TIMETABLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TIMETABLE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	driver, err := NewDB(&profile.Profile{Mode: "dev", Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	created, err := driver.CreateRecord(ctx, &store.CreateRecord{
		SchoolYear:   "1999-2000",
		Semester:     "1st",
		SubjectID:    "MATH101",
		ProfessorID:  "P1",
		SectionID:    "S1",
		DeliveryMode: "Onsite",
		Days:         []string{"monday", "wednesday"},
		StartTime:    "08:00:00",
		EndTime:      "09:30:00",
		Origin:       "manual",
	})
	require.NoError(t, err)
	id := created["id"].(string)

	list, err := driver.ListRecords(ctx, &store.FindRecord{SchoolYear: "1999-2000", Semester: "1ST"})
	require.NoError(t, err)
	ids := make([]any, 0, len(list))
	for _, rec := range list {
		ids = append(ids, rec["id"])
	}
	assert.Contains(t, ids, id)

	require.NoError(t, driver.DeleteRecord(ctx, &store.DeleteRecord{ID: id}))
	assert.ErrorIs(t, driver.DeleteRecord(ctx, &store.DeleteRecord{ID: id}), store.ErrNotFound)
}
