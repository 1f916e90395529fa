package traininglog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/telemetry/tracing"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 100
	DefaultMaxAttempts  = 3
)

type ServiceParams struct {
	Store   Store
	Cache   *PRCache
	Metrics *metrics.Manager
	// MaxAttempts bounds how many times a conflicting atomic scope is run.
	MaxAttempts int
	// Now and NewID default to the wall clock and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Service is the ingestion coordinator: it is the only writer of training
// entries and the only caller of the PR resolver.
type Service struct {
	store       Store
	resolver    *Resolver
	cache       *PRCache
	metrics     *metrics.Manager
	maxAttempts int
	now         func() time.Time
	newID       func() string

	stampMu     sync.Mutex
	lastCreated time.Time
}

func NewService(params ServiceParams) *Service {
	s := &Service{
		store:       params.Store,
		resolver:    NewResolver(params.Metrics),
		cache:       params.Cache,
		metrics:     params.Metrics,
		maxAttempts: params.MaxAttempts,
		now:         params.Now,
		newID:       params.NewID,
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) CreateEntry(ctx context.Context, params CreateParams) (_ *CreateResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := params.validate(); err != nil {
		return nil, err
	}

	base := Entry{
		ID:         s.newID(),
		UserID:     params.UserID,
		ExerciseID: params.ExerciseID,
		Weight:     *params.Weight,
		Reps:       *params.Reps,
		Sets:       *params.Sets,
		Notes:      params.Notes,
	}
	deriveMetrics(&base)
	span.SetAttributes(attribute.String("entry.id", base.ID))

	var created Entry
	err = s.atomic(ctx, "create", func(ctx context.Context, tx Tx) error {
		created = base
		if err := tx.LockPair(ctx, created.UserID, created.ExerciseID); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}
		// Stamped under the pair lock, so createdAt order is the order in
		// which creates are resolved and a tie keeps the earliest entry.
		created.CreatedAt = s.creationTime()
		created.Date = created.CreatedAt
		if params.Date != nil && !params.Date.IsZero() {
			created.Date = params.Date.UTC()
		}
		if err := tx.Insert(ctx, &created); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		_, err := s.resolver.Resolve(ctx, tx, &created)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(created.Pair())
	s.metrics.CounterEntries.WithLabelValues("create").Inc()
	if created.IsPR {
		s.metrics.CounterPRsSet.Inc()
	}
	log.Debugf("entry [%s] created for [%s], weight %.1f, pr: %t", created.ID, created.Pair(), created.Weight, created.IsPR)

	return &CreateResult{
		Entry:   &created,
		IsNewPR: created.IsPR,
	}, nil
}

func (s *Service) EditEntry(ctx context.Context, id, requesterUserID string, fields EditFields) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.edit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("entry.id", id))

	if err := fields.validate(); err != nil {
		return nil, err
	}

	var edited Entry
	var wasPR bool
	err = s.atomic(ctx, "edit", func(ctx context.Context, tx Tx) error {
		current, err := s.lockOwned(ctx, tx, id, requesterUserID)
		if err != nil {
			return err
		}
		wasPR = current.IsPR

		edited = *current
		if fields.Weight != nil {
			edited.Weight = *fields.Weight
		}
		if fields.Reps != nil {
			edited.Reps = *fields.Reps
		}
		if fields.Sets != nil {
			edited.Sets = *fields.Sets
		}
		if fields.Notes != nil {
			edited.Notes = *fields.Notes
		}
		deriveMetrics(&edited)
		editedAt := s.timestamp()
		edited.IsEdited = true
		edited.EditedAt = &editedAt

		if err := tx.Update(ctx, &edited); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		if fields.Weight == nil {
			return nil
		}
		_, err = s.resolver.ResolveEdited(ctx, tx, &edited)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(edited.Pair())
	s.metrics.CounterEntries.WithLabelValues("edit").Inc()
	if edited.IsPR && !wasPR {
		s.metrics.CounterPRsSet.Inc()
	}
	log.Debugf("entry [%s] edited, pr: %t -> %t", edited.ID, wasPR, edited.IsPR)

	return &edited, nil
}

// DeleteEntry removes an entry. Deleting the PR holder promotes the next best
// entry of the pair in the same atomic scope.
func (s *Service) DeleteEntry(ctx context.Context, id, requesterUserID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("entry.id", id))

	var deleted *Entry
	var promoted *Entry
	err = s.atomic(ctx, "delete", func(ctx context.Context, tx Tx) error {
		promoted = nil
		current, err := s.lockOwned(ctx, tx, id, requesterUserID)
		if err != nil {
			return err
		}
		deleted = current

		if err := tx.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if !current.IsPR {
			return nil
		}
		promoted, err = s.resolver.Repair(ctx, tx, current.Pair())
		return err
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(deleted.Pair())
	s.metrics.CounterEntries.WithLabelValues("delete").Inc()
	if promoted != nil {
		s.metrics.CounterPRsSet.Inc()
		log.Debugf("entry [%s] deleted, pr moved to [%s]", id, promoted.ID)
	} else {
		log.Debugf("entry [%s] deleted", id)
	}

	return nil
}

func (s *Service) GetEntry(ctx context.Context, id, requesterUserID string) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != requesterUserID {
		return nil, ErrForbidden
	}
	return entry, nil
}

// CurrentPR returns the PR holder of the pair, or nil if the pair has no
// entries. A pair found with several holders is repaired before returning.
func (s *Service) CurrentPR(ctx context.Context, userID, exerciseID string) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.current-pr")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validatePair(userID, exerciseID); err != nil {
		return nil, err
	}

	pair := Pair{UserID: userID, ExerciseID: exerciseID}
	if pr, ok := s.cache.Get(pair); ok {
		return pr, nil
	}

	generation := s.cache.Generation(pair)
	pr, err := s.store.FindCurrentPR(ctx, userID, exerciseID)
	var violation *InvariantViolationError
	if errors.As(err, &violation) {
		log.Errorf("current pr: %s", violation)
		return s.RepairPair(ctx, pair)
	}
	if err != nil {
		return nil, fmt.Errorf("find current pr: %w", err)
	}

	if pr == nil {
		entries, err := s.store.List(ctx, ListParams{UserID: userID, ExerciseID: exerciseID, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("list pair entries: %w", err)
		}
		if len(entries) > 0 {
			violation := &InvariantViolationError{Pair: pair, Holders: 0}
			log.Errorf("current pr: %s", violation)
			s.metrics.CounterInvariantRepairs.Inc()
			return s.RepairPair(ctx, pair)
		}
	}

	s.cache.Set(pair, pr, generation)
	return pr, nil
}

// RepairPair re-runs full PR resolution over every entry of the pair.
func (s *Service) RepairPair(ctx context.Context, pair Pair) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.repair")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var holder *Entry
	err = s.atomic(ctx, "repair", func(ctx context.Context, tx Tx) error {
		if err := tx.LockPair(ctx, pair.UserID, pair.ExerciseID); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}
		repaired, err := s.resolver.Repair(ctx, tx, pair)
		holder = repaired
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(pair)
	return holder, nil
}

// History returns the pair's entries ordered by estimated 1RM, best first.
func (s *Service) History(ctx context.Context, userID, exerciseID string, limit int) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("limit", limit))

	if err := validatePair(userID, exerciseID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return nil, NewValidationError("limit", fmt.Sprintf("must not exceed %d", MaxHistoryLimit))
	}

	return s.list(ctx, ListParams{
		UserID:     userID,
		ExerciseID: exerciseID,
		Order:      OrderEstimated1RMDesc,
		Limit:      limit,
	})
}

func (s *Service) OneRepMax(ctx context.Context, userID, exerciseID string) (*OneRepMaxSummary, error) {
	history, err := s.History(ctx, userID, exerciseID, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	summary := &OneRepMaxSummary{
		History: make([]OneRepMaxBasis, 0, len(history)),
	}
	for _, e := range history {
		summary.History = append(summary.History, OneRepMaxBasis{
			Estimated1RM: e.Estimated1RM,
			Weight:       e.Weight,
			Reps:         e.Reps,
			Date:         e.Date,
		})
	}
	if len(summary.History) > 0 {
		summary.Estimated1RM = summary.History[0].Estimated1RM
		summary.BasedOn = &summary.History[0]
	}
	return summary, nil
}

func (s *Service) ListEntries(ctx context.Context, userID string) ([]Entry, error) {
	return s.list(ctx, ListParams{UserID: userID, Order: OrderDateDesc})
}

func (s *Service) ListPRs(ctx context.Context, userID string) ([]Entry, error) {
	return s.list(ctx, ListParams{UserID: userID, PROnly: true, Order: OrderDateDesc})
}

func (s *Service) ListByExercise(ctx context.Context, userID, exerciseID string) ([]Entry, error) {
	if err := validatePair(userID, exerciseID); err != nil {
		return nil, err
	}
	return s.list(ctx, ListParams{UserID: userID, ExerciseID: exerciseID, Order: OrderDateAsc})
}

func (s *Service) ListByDay(ctx context.Context, userID string, day time.Time) ([]Entry, error) {
	from, to := DayBounds(day)
	return s.list(ctx, ListParams{UserID: userID, From: &from, To: &to, Order: OrderDateDesc})
}

// PairReport describes the PR state of one pair as found by Verify.
type PairReport struct {
	Pair     Pair
	Entries  int
	Expected string
	Flagged  []string
}

func (r PairReport) Consistent() bool {
	return len(r.Flagged) == 1 && r.Flagged[0] == r.Expected
}

// Verify checks the PR invariant for every pair of a user, or of all users
// when userID is empty. It does not modify anything.
func (s *Service) Verify(ctx context.Context, userID string) (_ []PairReport, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.verify")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := s.store.List(ctx, ListParams{UserID: userID, Order: OrderDateAsc})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	reports := make(map[Pair]*PairReport)
	best := make(map[Pair]*Entry)
	for i := range entries {
		e := &entries[i]
		pair := e.Pair()
		report, ok := reports[pair]
		if !ok {
			report = &PairReport{Pair: pair}
			reports[pair] = report
		}
		report.Entries++
		if e.IsPR {
			report.Flagged = append(report.Flagged, e.ID)
		}
		if b, ok := best[pair]; !ok || e.Outranks(b) {
			best[pair] = e
		}
	}

	result := make([]PairReport, 0, len(reports))
	for pair, report := range reports {
		report.Expected = best[pair].ID
		result = append(result, *report)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Pair.String() < result[j].Pair.String()
	})
	return result, nil
}

func (s *Service) list(ctx context.Context, params ListParams) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.traininglog.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user_id", params.UserID))
	span.SetAttributes(attribute.String("exercise_id", params.ExerciseID))
	span.SetAttributes(attribute.Bool("pr_only", params.PROnly))

	if params.UserID == "" {
		return nil, NewValidationError("userId", "required")
	}

	entries, err := s.store.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// lockOwned loads an entry, checks ownership, locks its pair and reloads it,
// so the returned state cannot change before the scope ends.
func (s *Service) lockOwned(ctx context.Context, tx Tx, id, requesterUserID string) (*Entry, error) {
	current, err := tx.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != requesterUserID {
		return nil, ErrForbidden
	}
	if err := tx.LockPair(ctx, current.UserID, current.ExerciseID); err != nil {
		return nil, fmt.Errorf("lock pair: %w", err)
	}
	return tx.FindByID(ctx, id)
}

// atomic runs fn in one store transaction, retrying it from scratch while
// the store reports conflicts. Request errors pass through untouched; any
// other failure becomes a transaction error.
func (s *Service) atomic(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	defer func(begin time.Time) {
		s.metrics.HistogramTxDuration.WithLabelValues(op).Observe(time.Since(begin).Seconds())
	}(time.Now())

	attempt := 0
	operation := func() error {
		attempt++
		err := s.store.RunAtomic(ctx, fn)
		switch {
		case err == nil:
			return nil
		case isCallerError(err):
			return backoff.Permanent(err)
		case errors.Is(err, ErrConflict) && attempt < s.maxAttempts:
			log.Debugf("%s: attempt %d conflicted, retrying: %s", op, attempt, err)
			s.metrics.CounterTxRetries.WithLabelValues(op).Inc()
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = 5 * time.Millisecond
	retryBackoff.MaxInterval = 100 * time.Millisecond

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(retryBackoff, uint64(s.maxAttempts-1)), ctx),
	)
	if err == nil {
		return nil
	}
	if isCallerError(err) {
		return err
	}

	s.metrics.CounterTxFailures.WithLabelValues(op).Inc()
	log.Errorf("%s: atomic scope failed after %d attempt(s): %s", op, attempt, err)
	return newTransactionError(err)
}

// timestamp truncates to microseconds, the finest precision every store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// creationTime is a timestamp strictly after every previous one of this
// service, so creates locked one after another never share a createdAt.
func (s *Service) creationTime() time.Time {
	now := s.timestamp()

	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = now
	return now
}

func validatePair(userID, exerciseID string) error {
	if userID == "" {
		return NewValidationError("userId", "required")
	}
	if exerciseID == "" {
		return NewValidationError("exerciseId", "required")
	}
	return nil
}
