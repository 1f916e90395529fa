// Package sqlitestore keeps training entries in an embedded SQLite database.
// The pool holds a single connection, so transactions never interleave and
// LockPair has nothing to do.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/traininglog/internal/traininglog"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

const entryColumns = `id, user_id, exercise_id, weight, reps, sets, notes, date, volume,
	estimated_1rm, is_pr, is_edited, edited_at, created_at`

type Store struct {
	reader
	db *sql.DB
}

var _ traininglog.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite [%s]: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return nil, multierr.Append(fmt.Errorf("set busy timeout: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("apply schema: %w", err), db.Close())
	}

	log.Debugf("sqlite store opened at [%s]", path)
	return &Store{
		reader: reader{q: db},
		db:     db,
	}, nil
}

func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx traininglog.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(ctx, &tx{reader: reader{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type reader struct {
	q querier
}

func (r reader) FindByID(ctx context.Context, id string) (*traininglog.Entry, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM training_log_entry WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
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

func (r reader) List(ctx context.Context, params traininglog.ListParams) ([]traininglog.Entry, error) {
	query, args := listQuery(params)
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("list: %w", err))
	}
	defer rows.Close()

	var entries []traininglog.Entry
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

func listQuery(params traininglog.ListParams) (string, []any) {
	var where []string
	var args []any
	if params.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, params.UserID)
	}
	if params.ExerciseID != "" {
		where = append(where, "exercise_id = ?")
		args = append(args, params.ExerciseID)
	}
	if params.PROnly {
		where = append(where, "is_pr = 1")
	}
	if params.From != nil {
		where = append(where, "date >= ?")
		args = append(args, params.From.UnixNano())
	}
	if params.To != nil {
		where = append(where, "date <= ?")
		args = append(args, params.To.UnixNano())
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + entryColumns + " FROM training_log_entry")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	switch params.Order {
	case traininglog.OrderEstimated1RMDesc:
		sb.WriteString(" ORDER BY estimated_1rm DESC, created_at ASC, id ASC")
	case traininglog.OrderDateAsc:
		sb.WriteString(" ORDER BY date ASC, created_at ASC, id ASC")
	default:
		sb.WriteString(" ORDER BY date DESC, created_at ASC, id ASC")
	}

	if params.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, params.Limit)
	}
	return sb.String(), args
}

type tx struct {
	reader
}

func (t *tx) LockPair(context.Context, string, string) error {
	return nil
}

func (t *tx) FindMaxWeightExcluding(ctx context.Context, userID, exerciseID, excludeID string) (*traininglog.Entry, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM training_log_entry
		WHERE user_id = ? AND exercise_id = ? AND id <> ?
		ORDER BY weight DESC, created_at ASC, id ASC
		LIMIT 1`,
		userID, exerciseID, excludeID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("find max weight: %w", err))
	}
	return e, nil
}

func (t *tx) Insert(ctx context.Context, e *traininglog.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO training_log_entry (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.ExerciseID, e.Weight, e.Reps, e.Sets, e.Notes, e.Date.UnixNano(),
		e.Volume, e.Estimated1RM, boolInt(e.IsPR), boolInt(e.IsEdited), nullableNanos(e.EditedAt),
		e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return mapError(fmt.Errorf("insert [%s]: %w", e.ID, err))
	}
	return nil
}

func (t *tx) Update(ctx context.Context, e *traininglog.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE training_log_entry
		SET weight = ?, reps = ?, sets = ?, notes = ?, date = ?, volume = ?, estimated_1rm = ?,
			is_edited = ?, edited_at = ?
		WHERE id = ?`,
		e.Weight, e.Reps, e.Sets, e.Notes, e.Date.UnixNano(), e.Volume, e.Estimated1RM,
		boolInt(e.IsEdited), nullableNanos(e.EditedAt), e.ID,
	)
	if err != nil {
		return mapError(fmt.Errorf("update [%s]: %w", e.ID, err))
	}
	return requireAffected(res)
}

func (t *tx) SetPR(ctx context.Context, id string, isPR bool) error {
	res, err := t.q.ExecContext(ctx, `UPDATE training_log_entry SET is_pr = ? WHERE id = ?`, boolInt(isPR), id)
	if err != nil {
		return mapError(fmt.Errorf("set pr [%s]: %w", id, err))
	}
	return requireAffected(res)
}

func (t *tx) Delete(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM training_log_entry WHERE id = ?`, id)
	if err != nil {
		return mapError(fmt.Errorf("delete [%s]: %w", id, err))
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*traininglog.Entry, error) {
	var e traininglog.Entry
	var date, createdAt int64
	var isPR, isEdited int64
	var editedAt sql.NullInt64
	if err := row.Scan(
		&e.ID, &e.UserID, &e.ExerciseID, &e.Weight, &e.Reps, &e.Sets, &e.Notes, &date,
		&e.Volume, &e.Estimated1RM, &isPR, &isEdited, &editedAt, &createdAt,
	); err != nil {
		return nil, err
	}

	e.Date = time.Unix(0, date).UTC()
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.IsPR = isPR != 0
	e.IsEdited = isEdited != 0
	if editedAt.Valid {
		t := time.Unix(0, editedAt.Int64).UTC()
		e.EditedAt = &t
	}
	return &e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return traininglog.ErrNotFound
	}
	return nil
}

// mapError turns lock contention and PR index collisions into retryable
// conflicts.
func mapError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	code := sqliteErr.Code()
	switch {
	case code&0xff == sqlite3.SQLITE_BUSY,
		code&0xff == sqlite3.SQLITE_LOCKED,
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %w", traininglog.ErrConflict, err)
	default:
		return err
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
