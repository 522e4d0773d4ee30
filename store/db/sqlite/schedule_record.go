package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/timetable/store"
)

const recordColumns = `id, school_year, semester, subject_id, professor_id, section_id,
	room_id, delivery_mode, days, start_time, end_time, origin, created_ts`

func (d *DB) ListRecords(ctx context.Context, find *store.FindRecord) ([]store.Record, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.SchoolYear; v != "" {
		where, args = append(where, "school_year = "+placeholder(len(args)+1)), append(args, v)
	}
	if v := find.Semester; v != "" {
		where, args = append(where, "LOWER(semester) = LOWER("+placeholder(len(args)+1)+")"), append(args, v)
	}

	query := `SELECT ` + recordColumns + ` FROM schedule_record
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule records: %w", err)
	}
	defer rows.Close()

	list := make([]store.Record, 0)
	for rows.Next() {
		var (
			id, schoolYear, semester, subjectID, professorID, sectionID string
			roomID, deliveryMode, days, startTime, endTime, origin      string
			createdTs                                                   int64
		)
		if err := rows.Scan(
			&id, &schoolYear, &semester, &subjectID, &professorID, &sectionID,
			&roomID, &deliveryMode, &days, &startTime, &endTime, &origin, &createdTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule record: %w", err)
		}
		list = append(list, store.Record{
			"id":            id,
			"school_year":   schoolYear,
			"semester":      semester,
			"subject_id":    subjectID,
			"professor_id":  professorID,
			"section_id":    sectionID,
			"room_id":       roomID,
			"delivery_mode": deliveryMode,
			"days":          days,
			"start_time":    startTime,
			"end_time":      endTime,
			"origin":        origin,
			"created_ts":    createdTs,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CreateRecord(ctx context.Context, create *store.CreateRecord) (store.Record, error) {
	id := shortuuid.New()
	createdTs := time.Now().Unix()
	days := strings.Join(create.Days, ",")

	stmt := `INSERT INTO schedule_record (` + recordColumns + `) VALUES (` + placeholders(13) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		id, create.SchoolYear, create.Semester, create.SubjectID, create.ProfessorID, create.SectionID,
		create.RoomID, create.DeliveryMode, days, create.StartTime, create.EndTime, create.Origin, createdTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create schedule record: %w", err)
	}

	return store.Record{
		"id":            id,
		"school_year":   create.SchoolYear,
		"semester":      create.Semester,
		"subject_id":    create.SubjectID,
		"professor_id":  create.ProfessorID,
		"section_id":    create.SectionID,
		"room_id":       create.RoomID,
		"delivery_mode": create.DeliveryMode,
		"days":          days,
		"start_time":    create.StartTime,
		"end_time":      create.EndTime,
		"origin":        create.Origin,
		"created_ts":    createdTs,
	}, nil
}

func (d *DB) DeleteRecord(ctx context.Context, delete *store.DeleteRecord) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM schedule_record WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
