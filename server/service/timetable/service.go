package timetable

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/store"
)

// maxBatchParallelism bounds PrecheckBatch fan-out.
const maxBatchParallelism = 4

// RecordStore defines the storage operations the service depends on.
type RecordStore interface {
	ListRecords(ctx context.Context, find *store.FindRecord) ([]store.Record, error)
	ListRecordsFresh(ctx context.Context, find *store.FindRecord) ([]store.Record, error)
	CreateRecord(ctx context.Context, create *store.CreateRecord) (store.Record, error)
	DeleteRecord(ctx context.Context, delete *store.DeleteRecord) error
}

// Service runs the checker and suggester against per-term snapshots read from
// the store. The engine functions stay pure; the service only fetches, filters
// and persists around them.
type Service struct {
	store           RecordStore
	config          WindowConfig
	defaultTerm     Term
	suggestionCount int
}

// NewService creates a service with an explicit window config.
func NewService(st RecordStore, cfg WindowConfig, defaultTerm Term, suggestionCount int) *Service {
	if suggestionCount <= 0 {
		suggestionCount = SuggestionCount
	}
	return &Service{
		store:           st,
		config:          cfg,
		defaultTerm:     defaultTerm,
		suggestionCount: suggestionCount,
	}
}

// NewServiceFromProfile reads the window, term and suggestion settings from the profile.
func NewServiceFromProfile(st RecordStore, p *profile.Profile) (*Service, error) {
	cfg, err := WindowConfigFromProfile(p)
	if err != nil {
		return nil, err
	}
	schoolYear, semester := p.Term()
	return NewService(st, cfg, Term{SchoolYear: schoolYear, Semester: semester}, p.SuggestionCount), nil
}

// WindowConfigFromProfile parses the profile's clock strings.
func WindowConfigFromProfile(p *profile.Profile) (WindowConfig, error) {
	cfg, err := ParseWindowConfig(p.WorkStart, p.WorkEnd, p.LunchStart, p.LunchEnd, p.LunchRule)
	if err != nil {
		return WindowConfig{}, errors.Wrap(err, "invalid window configuration")
	}
	return cfg, nil
}

// Config returns the window config in use.
func (s *Service) Config() WindowConfig {
	return s.config
}

// Snapshot is the normalized committed set of one term.
type Snapshot struct {
	Term     Term      `json:"term"`
	Meetings []Meeting `json:"meetings"`
	Records  int       `json:"records"`
	Dropped  int       `json:"dropped"`
}

// Snapshot returns the committed meetings of a term, served from the store cache.
func (s *Service) Snapshot(ctx context.Context, term Term) (*Snapshot, error) {
	return s.snapshot(ctx, s.resolveTerm(term), false)
}

func (s *Service) snapshot(ctx context.Context, term Term, fresh bool) (*Snapshot, error) {
	find := &store.FindRecord{SchoolYear: term.SchoolYear, Semester: term.Semester}

	var (
		records []store.Record
		err     error
	)
	if fresh {
		records, err = s.store.ListRecordsFresh(ctx, find)
	} else {
		records, err = s.store.ListRecords(ctx, find)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load snapshot for term %s", term)
	}

	meetings := NormalizeAll(records)
	snap := &Snapshot{
		Term:     term,
		Meetings: meetings,
		Records:  len(records),
		Dropped:  len(records) - len(meetings),
	}
	if snap.Dropped > 0 {
		slog.Info("snapshot loaded with dropped records",
			"term", term.String(),
			"records", snap.Records,
			"meetings", len(meetings),
			"dropped", snap.Dropped,
		)
	}
	return snap, nil
}

func (s *Service) resolveTerm(term Term) Term {
	if term.IsZero() {
		return s.defaultTerm
	}
	return term
}

// CheckRequest asks whether a candidate is legal.
type CheckRequest struct {
	Candidate Meeting
	// ExcludeIDs drops committed records, normally the one being edited.
	ExcludeIDs []string
}

// CheckResult is the outcome of a check.
type CheckResult struct {
	Legal      bool        `json:"legal"`
	Violations []Violation `json:"violations"`
}

// Check validates a candidate against the term snapshot.
func (s *Service) Check(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	candidate := req.Candidate
	if err := ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	candidate.Term = s.resolveTerm(candidate.Term)

	snap, err := s.snapshot(ctx, candidate.Term, false)
	if err != nil {
		return nil, err
	}
	violations := CheckConflicts(candidate, ExcludeIDs(snap.Meetings, req.ExcludeIDs...), s.config)
	return &CheckResult{Legal: len(violations) == 0, Violations: nonNil(violations)}, nil
}

// SuggestRequest asks for alternative slots.
type SuggestRequest struct {
	Params     SuggestParams
	Max        int
	ExcludeIDs []string
}

// Suggest returns legal alternative windows for the actor pair.
func (s *Service) Suggest(ctx context.Context, req *SuggestRequest) ([]Slot, error) {
	params := req.Params
	params.Term = s.resolveTerm(params.Term)

	snap, err := s.snapshot(ctx, params.Term, false)
	if err != nil {
		return nil, err
	}
	return SuggestSlots(params, ExcludeIDs(snap.Meetings, req.ExcludeIDs...), s.config, s.maxOr(req.Max)), nil
}

// PrecheckRequest validates a candidate and proposes alternatives.
type PrecheckRequest struct {
	Candidate      Meeting
	ExcludeIDs     []string
	MaxSuggestions int
}

// PrecheckResult combines violations and suggestions.
type PrecheckResult struct {
	Legal           bool        `json:"legal"`
	Violations      []Violation `json:"violations"`
	Suggestions     []Slot      `json:"suggestions"`
	DurationMinutes int         `json:"duration_minutes"`
}

// Precheck checks the candidate and, when it is illegal or its time is not
// yet set, suggests legal windows of the same duration.
func (s *Service) Precheck(ctx context.Context, req *PrecheckRequest) (*PrecheckResult, error) {
	candidate := req.Candidate
	if err := ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	candidate.Term = s.resolveTerm(candidate.Term)

	snap, err := s.snapshot(ctx, candidate.Term, false)
	if err != nil {
		return nil, err
	}
	committed := ExcludeIDs(snap.Meetings, req.ExcludeIDs...)

	violations := CheckConflicts(candidate, committed, s.config)
	result := &PrecheckResult{
		Legal:           len(violations) == 0,
		Violations:      nonNil(violations),
		Suggestions:     []Slot{},
		DurationMinutes: DurationFor(candidate),
	}
	if !result.Legal || !candidate.IsOrdered() {
		result.Suggestions = SuggestSlots(ParamsFor(candidate), committed, s.config, s.maxOr(req.MaxSuggestions))
	}
	return result, nil
}

// PrecheckBatch runs independent prechecks in parallel. Results keep the
// request order; the first failure cancels the rest.
func (s *Service) PrecheckBatch(ctx context.Context, reqs []*PrecheckRequest) ([]*PrecheckResult, error) {
	results := make([]*PrecheckResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchParallelism)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			result, err := s.Precheck(gctx, req)
			if err != nil {
				return errors.Wrapf(err, "precheck %d", i)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CommitRequest persists a candidate after an authoritative re-check.
type CommitRequest struct {
	Candidate Meeting
	// ReplaceID names an existing record the candidate supersedes. It is
	// excluded from the re-check and deleted after the new record is created.
	ReplaceID string
}

// CommitResult reports whether the candidate was persisted.
type CommitResult struct {
	Committed  bool         `json:"committed"`
	Violations []Violation  `json:"violations"`
	Record     store.Record `json:"record,omitempty"`
	Meeting    *Meeting     `json:"meeting,omitempty"`
}

// Commit re-checks the candidate against a freshly fetched snapshot and
// creates the record only if it is still legal. The backend remains the
// final authority; a concurrent writer can still slip in between.
func (s *Service) Commit(ctx context.Context, req *CommitRequest) (*CommitResult, error) {
	candidate := req.Candidate
	if err := ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	candidate.Term = s.resolveTerm(candidate.Term)

	snap, err := s.snapshot(ctx, candidate.Term, true)
	if err != nil {
		return nil, err
	}
	var exclude []string
	if req.ReplaceID != "" {
		exclude = append(exclude, req.ReplaceID)
	}
	violations := CheckConflicts(candidate, ExcludeIDs(snap.Meetings, exclude...), s.config)
	if len(violations) > 0 {
		slog.Info("commit rejected",
			"term", candidate.Term.String(),
			"section_id", candidate.SectionID,
			"professor_id", candidate.ProfessorID,
			"violations", len(violations),
		)
		return &CommitResult{Violations: violations}, nil
	}

	rec, err := s.store.CreateRecord(ctx, toCreateRecord(candidate))
	if err != nil {
		return nil, err
	}
	if req.ReplaceID != "" {
		if err := s.Delete(ctx, candidate.Term, req.ReplaceID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("failed to remove replaced schedule record",
				"id", req.ReplaceID,
				"error", err,
			)
		}
	}

	committed, ok := Normalize(rec)
	if !ok {
		// Backends may echo only the id; fall back to the candidate itself.
		committed = candidate
		committed.ID = NormalizeCandidate(rec).ID
	}
	return &CommitResult{
		Committed:  true,
		Violations: []Violation{},
		Record:     rec,
		Meeting:    &committed,
	}, nil
}

// Delete removes a committed record.
func (s *Service) Delete(ctx context.Context, term Term, id string) error {
	term = s.resolveTerm(term)
	return s.store.DeleteRecord(ctx, &store.DeleteRecord{
		ID:         id,
		SchoolYear: term.SchoolYear,
		Semester:   term.Semester,
	})
}

func (s *Service) maxOr(n int) int {
	if n > 0 {
		return n
	}
	return s.suggestionCount
}

func toCreateRecord(m Meeting) *store.CreateRecord {
	days := make([]string, 0, len(m.Days))
	for _, d := range m.Days {
		days = append(days, string(d))
	}
	origin := m.Origin
	if origin == "" {
		origin = OriginManual
	}
	mode := m.DeliveryMode
	if mode == "" {
		mode = Onsite
	}
	return &store.CreateRecord{
		SchoolYear:   m.Term.SchoolYear,
		Semester:     m.Term.Semester,
		SubjectID:    m.SubjectID,
		ProfessorID:  m.ProfessorID,
		SectionID:    m.SectionID,
		RoomID:       m.RoomID,
		DeliveryMode: string(mode),
		Days:         days,
		StartTime:    fmt.Sprintf("%s:00", FormatClock(m.Start)),
		EndTime:      fmt.Sprintf("%s:00", FormatClock(m.End)),
		Origin:       string(origin),
	}
}

func nonNil(v []Violation) []Violation {
	if v == nil {
		return []Violation{}
	}
	return v
}
