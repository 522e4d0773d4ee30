package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("schedule record not found")

// Record is one schedule row as delivered by a backend. Field names and value
// shapes vary between backends; the timetable normalizer reconciles them.
type Record map[string]any

// FindRecord is the find condition for schedule records. Records are always
// listed per term.
type FindRecord struct {
	SchoolYear string
	Semester   string
}

// CacheKey is the snapshot cache key for the term.
func (f *FindRecord) CacheKey() string {
	return fmt.Sprintf("records:%s:%s", f.SchoolYear, strings.ToLower(f.Semester))
}

// CreateRecord is the create request for a schedule record.
type CreateRecord struct {
	SchoolYear   string   `json:"school_year"`
	Semester     string   `json:"semester"`
	SubjectID    string   `json:"subject_id"`
	ProfessorID  string   `json:"professor_id"`
	SectionID    string   `json:"section_id"`
	RoomID       string   `json:"room_id,omitempty"`
	DeliveryMode string   `json:"delivery_mode"`
	Days         []string `json:"days"`
	// StartTime and EndTime are "HH:MM:SS".
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Origin    string `json:"origin"`
}

// DeleteRecord is the delete request for a schedule record.
type DeleteRecord struct {
	ID         string
	SchoolYear string
	Semester   string
}

// ListRecords lists the records of a term, served from the snapshot cache when fresh.
// Concurrent misses for the same term share one driver call. The shared call
// is detached from the callers' contexts, so one caller giving up does not
// fail the others.
func (s *Store) ListRecords(ctx context.Context, find *FindRecord) ([]Record, error) {
	key := find.CacheKey()
	if cached, ok := s.snapshotCache.Get(key); ok {
		return cached.([]Record), nil
	}

	// Keying on the generation keeps callers that arrive after a write from
	// joining a load that started before it.
	gen := s.generation.Load()
	ch := s.loadGroup.DoChan(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		list, err := s.driver.ListRecords(loadCtx, find)
		if err != nil {
			return nil, err
		}
		s.storeSnapshot(key, list, gen)
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "failed to list schedule records for %s/%s", find.SchoolYear, find.Semester)
	case res := <-ch:
		if res.Err != nil {
			return nil, errors.Wrapf(res.Err, "failed to list schedule records for %s/%s", find.SchoolYear, find.Semester)
		}
		return res.Val.([]Record), nil
	}
}

// ListRecordsFresh always reads through to the driver and refreshes the cache.
// It never joins a load already in flight.
func (s *Store) ListRecordsFresh(ctx context.Context, find *FindRecord) ([]Record, error) {
	gen := s.generation.Load()
	list, err := s.driver.ListRecords(ctx, find)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list schedule records for %s/%s", find.SchoolYear, find.Semester)
	}
	s.storeSnapshot(find.CacheKey(), list, gen)
	return list, nil
}

// storeSnapshot caches list unless the store was invalidated after gen was read.
func (s *Store) storeSnapshot(key string, list []Record, gen uint64) {
	s.invalidateMu.Lock()
	defer s.invalidateMu.Unlock()
	if s.generation.Load() != gen {
		return
	}
	s.snapshotCache.Set(key, list, s.snapshotTTL)
}

// CreateRecord creates a record and drops the cached snapshot of its term.
func (s *Store) CreateRecord(ctx context.Context, create *CreateRecord) (Record, error) {
	rec, err := s.driver.CreateRecord(ctx, create)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schedule record")
	}
	s.InvalidateTerm(&FindRecord{SchoolYear: create.SchoolYear, Semester: create.Semester})
	return rec, nil
}

// DeleteRecord deletes a record and drops the cached snapshot of its term.
func (s *Store) DeleteRecord(ctx context.Context, delete *DeleteRecord) error {
	if err := s.driver.DeleteRecord(ctx, delete); err != nil {
		return errors.Wrapf(err, "failed to delete schedule record %s", delete.ID)
	}
	s.InvalidateTerm(&FindRecord{SchoolYear: delete.SchoolYear, Semester: delete.Semester})
	return nil
}

// InvalidateTerm forgets the cached snapshots that can contain records of the
// term: the term itself and the wider listings around it. An empty semester
// drops every snapshot of the school year.
func (s *Store) InvalidateTerm(find *FindRecord) {
	s.invalidateMu.Lock()
	defer s.invalidateMu.Unlock()

	s.generation.Add(1)
	if find.Semester == "" {
		s.snapshotCache.Invalidate(fmt.Sprintf("records:%s:*", find.SchoolYear))
	} else {
		s.snapshotCache.Delete(find.CacheKey())
		s.snapshotCache.Delete((&FindRecord{SchoolYear: find.SchoolYear}).CacheKey())
	}
	s.snapshotCache.Delete((&FindRecord{}).CacheKey())
}
