package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/2beens/traininglog/internal/telemetry/tracing"
	"github.com/2beens/traininglog/internal/traininglog"
	"github.com/2beens/traininglog/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

//go:embed schema.sql
var schema string

const entryColumns = `id, user_id, exercise_id, weight, reps, sets, notes, date, volume,
	estimated_1rm, is_pr, is_edited, edited_at, created_at`

// Store keeps training entries in PostgreSQL. Transactions run at READ
// COMMITTED; PR resolution for a pair is serialized with a transaction scoped
// advisory lock, and a partial unique index rejects a second PR holder.
type Store struct {
	reader
	db *pgxpool.Pool
}

var _ traininglog.Store = (*Store)(nil)

func New(db *pgxpool.Pool) *Store {
	return &Store{
		reader: reader{q: db},
		db:     db,
	}
}

// Migrate creates the table and indexes if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx traininglog.Tx) error) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.traininglog.atomic")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	pgTx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(ctx, &tx{reader: reader{q: pgTx}}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type reader struct {
	q querier
}

func (r reader) FindByID(ctx context.Context, id string) (_ *traininglog.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.traininglog.find")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("entry.id", id))

	row := r.q.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM training_log_entry
		WHERE id = $1
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, traininglog.ErrNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("find [%s]: %w", id, err))
	}
	return e, nil
}

func (r reader) FindCurrentPR(ctx context.Context, userID, exerciseID string) (*traininglog.Entry, error) {
	flagged, err := r.List(ctx, traininglog.ListParams{
		UserID:     userID,
		ExerciseID: exerciseID,
		PROnly:     true,
	})
	if err != nil {
		return nil, err
	}

	switch len(flagged) {
	case 0:
		return nil, nil
	case 1:
		return &flagged[0], nil
	default:
		return nil, &traininglog.InvariantViolationError{
			Pair:    traininglog.Pair{UserID: userID, ExerciseID: exerciseID},
			Holders: len(flagged),
		}
	}
}

func (r reader) List(ctx context.Context, params traininglog.ListParams) (_ []traininglog.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.traininglog.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user_id", params.UserID))
	span.SetAttributes(attribute.String("exercise_id", params.ExerciseID))
	span.SetAttributes(attribute.Bool("pr_only", params.PROnly))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}

	var limit *int
	if params.Limit > 0 {
		limit = &params.Limit
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM training_log_entry
		WHERE ($1::text = '' OR user_id = $1)
		  AND ($2::text = '' OR exercise_id = $2)
		  AND ($3::boolean IS FALSE OR is_pr)
		  AND ($4::timestamptz IS NULL OR date >= $4)
		  AND ($5::timestamptz IS NULL OR date <= $5)
		ORDER BY `+orderBy(params.Order)+`
		LIMIT $6
	`,
		params.UserID, params.ExerciseID,
		params.PROnly,
		params.From, params.To,
		limit,
	)
	if err != nil {
		return nil, mapError(fmt.Errorf("list: %w", err))
	}
	defer rows.Close()

	entries := make([]traininglog.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("list rows: %w", err))
	}
	return entries, nil
}

func orderBy(order traininglog.Order) string {
	switch order {
	case traininglog.OrderEstimated1RMDesc:
		return "estimated_1rm DESC, created_at ASC, id ASC"
	case traininglog.OrderDateAsc:
		return "date ASC, created_at ASC, id ASC"
	default:
		return "date DESC, created_at ASC, id ASC"
	}
}

type tx struct {
	reader
}

// LockPair takes an advisory lock released at commit or rollback.
func (t *tx) LockPair(ctx context.Context, userID, exerciseID string) error {
	_, err := t.q.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || '/' || $2, 0))`,
		userID, exerciseID,
	)
	if err != nil {
		return mapError(fmt.Errorf("advisory lock: %w", err))
	}
	return nil
}

func (t *tx) FindMaxWeightExcluding(ctx context.Context, userID, exerciseID, excludeID string) (_ *traininglog.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.traininglog.max-weight")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := t.q.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM training_log_entry
		WHERE user_id = $1 AND exercise_id = $2 AND id <> $3
		ORDER BY weight DESC, created_at ASC, id ASC
		LIMIT 1
	`, userID, exerciseID, excludeID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("find max weight: %w", err))
	}
	return e, nil
}

func (t *tx) Insert(ctx context.Context, e *traininglog.Entry) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.traininglog.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := e.Validate(); err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO training_log_entry (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		e.ID, e.UserID, e.ExerciseID,
		e.Weight, e.Reps, e.Sets, e.Notes, e.Date,
		e.Volume, e.Estimated1RM,
		e.IsPR, e.IsEdited, e.EditedAt, e.CreatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("insert [%s]: %w", e.ID, err))
	}
	return nil
}

func (t *tx) Update(ctx context.Context, e *traininglog.Entry) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.traininglog.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := e.Validate(); err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, `
		UPDATE training_log_entry
		SET weight = $2, reps = $3, sets = $4, notes = $5, date = $6,
			volume = $7, estimated_1rm = $8, is_edited = $9, edited_at = $10
		WHERE id = $1
	`,
		e.ID,
		e.Weight, e.Reps, e.Sets, e.Notes, e.Date,
		e.Volume, e.Estimated1RM, e.IsEdited, e.EditedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("update [%s]: %w", e.ID, err))
	}
	return requireAffected(tag)
}

func (t *tx) SetPR(ctx context.Context, id string, isPR bool) error {
	tag, err := t.q.Exec(ctx, `UPDATE training_log_entry SET is_pr = $2 WHERE id = $1`, id, isPR)
	if err != nil {
		return mapError(fmt.Errorf("set pr [%s]: %w", id, err))
	}
	return requireAffected(tag)
}

func (t *tx) Delete(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM training_log_entry WHERE id = $1`, id)
	if err != nil {
		return mapError(fmt.Errorf("delete [%s]: %w", id, err))
	}
	return requireAffected(tag)
}

func scanEntry(row pgx.Row) (*traininglog.Entry, error) {
	var e traininglog.Entry
	if err := row.Scan(
		&e.ID, &e.UserID, &e.ExerciseID,
		&e.Weight, &e.Reps, &e.Sets, &e.Notes, &e.Date,
		&e.Volume, &e.Estimated1RM,
		&e.IsPR, &e.IsEdited, &e.EditedAt, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	if e.EditedAt != nil {
		editedAt := e.EditedAt.UTC()
		e.EditedAt = &editedAt
	}
	return &e, nil
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return traininglog.ErrNotFound
	}
	return nil
}

// mapError marks errors after which the whole transaction can be rerun.
func mapError(err error) error {
	if pkg.IsRetryableTxError(err) || pkg.IsUniqueViolationError(err) {
		return fmt.Errorf("%w: %w", traininglog.ErrConflict, err)
	}
	return err
}
