package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"montage/internal/config"
	"montage/internal/services"
)

// ErrInvalidTransition reports an illegal state change.
var ErrInvalidTransition = errors.New("invalid status transition")

// InterruptedReason is recorded when a stale in-flight request is failed.
const InterruptedReason = "interrupted before completion"

// Store manages the render ledger.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open connects to the ledger configured in cfg, creating it if needed.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.HistoryPath())
}

// OpenPath connects to the ledger at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Create inserts a new record in the planning state.
func (s *Store) Create(ctx context.Context, rec Record) (*Record, error) {
	if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.OutputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "history", "create", "id and output path are required", nil)
	}
	now := timestamp(time.Now())
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO renders (id, manifest_path, output_path, subtitles_path, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, nullableString(rec.ManifestPath), rec.OutputPath, nullableString(rec.SubtitlesPath),
			StatusPlanning, now, now,
		); err != nil {
			return fmt.Errorf("insert render: %w", err)
		}
		return insertTransition(ctx, tx, rec.ID, StatusPlanning, "", now)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, rec.ID)
}

// Advance moves a record to the next status, rejecting illegal moves.
// Moving to StatusFailed stores message as the error.
func (s *Store) Advance(ctx context.Context, id string, to Status, message string) error {
	now := timestamp(time.Now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM renders WHERE id = ?`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "history", "advance", id, err)
			}
			return fmt.Errorf("read status: %w", err)
		}
		from := Status(current)
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		var errMessage any
		if to == StatusFailed {
			errMessage = message
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE renders SET status = ?, error_message = COALESCE(?, error_message), updated_at = ? WHERE id = ?`,
			to, errMessage, now, id,
		); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return insertTransition(ctx, tx, id, to, message, now)
	})
}

// SetSummary stores the outcome counters for a record.
func (s *Store) SetSummary(ctx context.Context, id string, sum Summary) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE renders SET segments = ?, matched = ?, dropped = ?, fallback_reason = ?,
             overlays = ?, cues = ?, output_duration = ?, updated_at = ? WHERE id = ?`,
			sum.Segments, sum.Matched, sum.Dropped, nullableString(sum.FallbackReason),
			sum.Overlays, sum.Cues, sum.OutputDuration, timestamp(time.Now()), id,
		)
		return err
	})
}

// Get returns a record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "history", "get", id, err)
		}
		return nil, err
	}
	return rec, nil
}

// ResolveID expands a unique id prefix to the full record id.
func (s *Store) ResolveID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", services.Wrap(services.ErrValidation, "history", "resolve id", "empty id", nil)
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM renders WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("resolve id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", services.Wrap(services.ErrNotFound, "history", "resolve id", prefix, nil)
	case 1:
		return ids[0], nil
	default:
		return "", services.Wrap(services.ErrValidation, "history", "resolve id", "ambiguous id prefix "+prefix, nil)
	}
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list renders: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Transitions returns the state changes of a record in order.
func (s *Store) Transitions(ctx context.Context, id string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, message, created_at FROM transitions WHERE render_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			status    string
			message   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&status, &message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, Transition{Status: Status(status), Message: message.String, CreatedAt: parseTime(createdAt)})
	}
	return out, rows.Err()
}

// FailInterrupted fails every non-terminal record last updated before cutoff.
// A process killed mid-render leaves such rows behind.
func (s *Store) FailInterrupted(ctx context.Context, cutoff time.Time) (int64, error) {
	now := timestamp(time.Now())
	var affected int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM renders WHERE status IN (?, ?, ?) AND updated_at < ?`,
			StatusPlanning, StatusRenderingBase, StatusRenderingSubtitles, timestamp(cutoff))
		if err != nil {
			return fmt.Errorf("select interrupted: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan interrupted: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE renders SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
				StatusFailed, InterruptedReason, now, id,
			); err != nil {
				return fmt.Errorf("fail interrupted: %w", err)
			}
			if err := insertTransition(ctx, tx, id, StatusFailed, InterruptedReason, now); err != nil {
				return err
			}
		}
		affected = int64(len(ids))
		return nil
	})
	return affected, err
}

const selectRecord = `SELECT id, manifest_path, output_path, subtitles_path, status, error_message,
    segments, matched, dropped, fallback_reason, overlays, cues, output_duration, created_at, updated_at
    FROM renders`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                  Record
		manifestPath, subs   sql.NullString
		errMessage, fallback sql.NullString
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&rec.ID, &manifestPath, &rec.OutputPath, &subs, &status, &errMessage,
		&rec.Summary.Segments, &rec.Summary.Matched, &rec.Summary.Dropped, &fallback,
		&rec.Summary.Overlays, &rec.Summary.Cues, &rec.Summary.OutputDuration,
		&createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan render: %w", err)
	}
	rec.ManifestPath = manifestPath.String
	rec.SubtitlesPath = subs.String
	rec.ErrorMessage = errMessage.String
	rec.Summary.FallbackReason = fallback.String
	rec.Status = Status(status)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, id string, status Status, message, at string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transitions (render_id, status, message, created_at) VALUES (?, ?, ?, ?)`,
		id, status, nullableString(message), at,
	); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
