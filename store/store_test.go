package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/timetable/internal/profile"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Close() error {
	return m.Called().Error(0)
}

func (m *mockDriver) ListRecords(ctx context.Context, find *FindRecord) ([]Record, error) {
	args := m.Called(ctx, find)
	if list, ok := args.Get(0).([]Record); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDriver) CreateRecord(ctx context.Context, create *CreateRecord) (Record, error) {
	args := m.Called(ctx, create)
	if rec, ok := args.Get(0).(Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDriver) DeleteRecord(ctx context.Context, delete *DeleteRecord) error {
	return m.Called(ctx, delete).Error(0)
}

func newTestStore(driver Driver) *Store {
	return New(driver, &profile.Profile{SnapshotTTL: time.Minute})
}

func TestStore_ListRecordsCached(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	records := []Record{{"id": "1"}}
	driver.On("ListRecords", mock.Anything, find).Return(records, nil).Once()

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	first, err := s.ListRecords(ctx, find)
	require.NoError(t, err)
	second, err := s.ListRecords(ctx, find)
	require.NoError(t, err)

	assert.Equal(t, records, first)
	assert.Equal(t, records, second)
	driver.AssertNumberOfCalls(t, "ListRecords", 1)
}

func TestStore_ListRecordsFresh(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	driver.On("ListRecords", mock.Anything, find).Return([]Record{{"id": "1"}}, nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	_, err := s.ListRecords(ctx, find)
	require.NoError(t, err)
	_, err = s.ListRecordsFresh(ctx, find)
	require.NoError(t, err)

	driver.AssertNumberOfCalls(t, "ListRecords", 2)
}

func TestStore_ListRecordsError(t *testing.T) {
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025"}
	driver.On("ListRecords", mock.Anything, find).Return(nil, errors.New("upstream down"))

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	_, err := s.ListRecords(context.Background(), find)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	// Failures are not cached.
	_, err = s.ListRecords(context.Background(), find)
	require.Error(t, err)
	driver.AssertNumberOfCalls(t, "ListRecords", 2)
}

func TestStore_CreateInvalidatesTerm(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	create := &CreateRecord{SchoolYear: "2024-2025", Semester: "1st", SectionID: "S1"}
	driver.On("ListRecords", mock.Anything, mock.Anything).Return([]Record{}, nil)
	driver.On("CreateRecord", mock.Anything, create).Return(Record{"id": "new"}, nil)
	driver.On("DeleteRecord", mock.Anything, mock.Anything).Return(nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	_, err := s.ListRecords(ctx, find)
	require.NoError(t, err)

	rec, err := s.CreateRecord(ctx, create)
	require.NoError(t, err)
	assert.Equal(t, "new", rec["id"])

	_, err = s.ListRecords(ctx, find)
	require.NoError(t, err)
	driver.AssertNumberOfCalls(t, "ListRecords", 2)

	require.NoError(t, s.DeleteRecord(ctx, &DeleteRecord{ID: "new", SchoolYear: "2024-2025", Semester: "1st"}))
	_, err = s.ListRecords(ctx, find)
	require.NoError(t, err)
	driver.AssertNumberOfCalls(t, "ListRecords", 3)
}

func TestStore_ConcurrentLoadsShareOneFetch(t *testing.T) {
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	release := make(chan struct{})
	driver.On("ListRecords", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return([]Record{{"id": "1"}}, nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ListRecords(context.Background(), find)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	driver.AssertNumberOfCalls(t, "ListRecords", 1)
}

func TestStore_FreshReadAfterWriteSkipsStaleLoad(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	create := &CreateRecord{SchoolYear: "2024-2025", Semester: "1st", SectionID: "S1"}

	entered := make(chan struct{})
	release := make(chan struct{})
	// The first read observes the term before the write and stalls.
	driver.On("ListRecords", mock.Anything, find).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]Record{}, nil).Once()
	driver.On("ListRecords", mock.Anything, find).Return([]Record{{"id": "new"}}, nil)
	driver.On("CreateRecord", mock.Anything, create).Return(Record{"id": "new"}, nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	staleDone := make(chan []Record)
	go func() {
		list, err := s.ListRecords(ctx, find)
		assert.NoError(t, err)
		staleDone <- list
	}()
	<-entered

	_, err := s.CreateRecord(ctx, create)
	require.NoError(t, err)

	fresh, err := s.ListRecordsFresh(ctx, find)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)

	close(release)
	assert.Empty(t, <-staleDone)

	cached, err := s.ListRecords(ctx, find)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	driver.AssertNumberOfCalls(t, "ListRecords", 2)
}

func TestStore_ReadAfterWriteDoesNotJoinOlderLoad(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}

	entered := make(chan struct{})
	release := make(chan struct{})
	driver.On("ListRecords", mock.Anything, find).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]Record{}, nil).Once()
	driver.On("ListRecords", mock.Anything, find).Return([]Record{{"id": "new"}}, nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	staleDone := make(chan struct{})
	go func() {
		defer close(staleDone)
		_, err := s.ListRecords(ctx, find)
		assert.NoError(t, err)
	}()
	<-entered

	s.InvalidateTerm(find)
	list, err := s.ListRecords(ctx, find)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	close(release)
	<-staleDone
}

func TestStore_SharedLoadSurvivesCallerCancel(t *testing.T) {
	driver := &mockDriver{}
	find := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	release := make(chan struct{})
	driver.On("ListRecords", mock.Anything, find).
		Run(func(args mock.Arguments) {
			<-release
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return([]Record{{"id": "1"}}, nil).Once()

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := s.ListRecords(ctxA, find)
		errA <- err
	}()
	time.Sleep(10 * time.Millisecond)

	resultB := make(chan []Record, 1)
	go func() {
		list, err := s.ListRecords(context.Background(), find)
		assert.NoError(t, err)
		resultB <- list
	}()
	time.Sleep(10 * time.Millisecond)

	cancelA()
	err := <-errA
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.Len(t, <-resultB, 1)
	driver.AssertNumberOfCalls(t, "ListRecords", 1)
}

func TestStore_InvalidateSchoolYear(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	first := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	second := &FindRecord{SchoolYear: "2024-2025", Semester: "2nd"}
	other := &FindRecord{SchoolYear: "2025-2026", Semester: "1st"}
	driver.On("ListRecords", mock.Anything, mock.Anything).Return([]Record{}, nil)
	driver.On("DeleteRecord", mock.Anything, mock.Anything).Return(nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	for _, find := range []*FindRecord{first, second, other} {
		_, err := s.ListRecords(ctx, find)
		require.NoError(t, err)
	}
	driver.AssertNumberOfCalls(t, "ListRecords", 3)

	// A delete that only knows the school year drops both of its semesters.
	require.NoError(t, s.DeleteRecord(ctx, &DeleteRecord{ID: "x", SchoolYear: "2024-2025"}))
	for _, find := range []*FindRecord{first, second, other} {
		_, err := s.ListRecords(ctx, find)
		require.NoError(t, err)
	}
	driver.AssertNumberOfCalls(t, "ListRecords", 5)
}

func TestStore_TermWriteDropsYearListing(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	year := &FindRecord{SchoolYear: "2024-2025"}
	create := &CreateRecord{SchoolYear: "2024-2025", Semester: "1st"}
	driver.On("ListRecords", mock.Anything, year).Return([]Record{}, nil)
	driver.On("CreateRecord", mock.Anything, create).Return(Record{"id": "new"}, nil)

	s := newTestStore(driver)
	defer s.snapshotCache.Close()

	_, err := s.ListRecords(ctx, year)
	require.NoError(t, err)
	_, err = s.CreateRecord(ctx, create)
	require.NoError(t, err)
	_, err = s.ListRecords(ctx, year)
	require.NoError(t, err)
	driver.AssertNumberOfCalls(t, "ListRecords", 2)
}

func TestFindRecord_CacheKey(t *testing.T) {
	a := &FindRecord{SchoolYear: "2024-2025", Semester: "1st"}
	b := &FindRecord{SchoolYear: "2024-2025", Semester: "1ST"}
	assert.Equal(t, a.CacheKey(), b.CacheKey())
}
