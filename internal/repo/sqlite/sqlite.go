package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/repo"
)

//go:embed schema.sql
var schemaSQL string

var _ repo.EndpointStore = (*Store)(nil)

// Store persists endpoints in a single SQLite file. The pool is pinned to one
// connection, so every transaction (and therefore every Update) is serialized.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates the parent directory, applies pragmas and the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, busyTimeout time.Duration, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("sqlite_open", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const selectCols = `SELECT domain, status, downtime_start, chat_id, notification_sent, created_at, updated_at
	  FROM monitored_sites`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(r rowScanner) (*domain.Endpoint, error) {
	var (
		e         domain.Endpoint
		status    string
		downStart sql.NullInt64
		createdMS int64
		updatedMS int64
	)
	if err := r.Scan(&e.Domain, &status, &downStart, &e.SubscriberID, &e.NotificationSent, &createdMS, &updatedMS); err != nil {
		return nil, err
	}
	e.Status = domain.ParseStatus(status)
	if downStart.Valid {
		t := time.UnixMilli(downStart.Int64).UTC()
		e.DowntimeStart = &t
	}
	e.CreatedAt = time.UnixMilli(createdMS).UTC()
	e.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &e, nil
}

func (s *Store) Get(ctx context.Context, name string) (*domain.Endpoint, error) {
	e, err := scanEndpoint(s.db.QueryRowContext(ctx, selectCols+` WHERE domain = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return e, nil
}

func (s *Store) UpsertIfAbsent(ctx context.Context, name, subscriberID string) (*domain.Endpoint, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO monitored_sites (domain, status, downtime_start, chat_id, notification_sent, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, 0, ?, ?)
		 ON CONFLICT (domain) DO NOTHING`,
		name, string(domain.StatusUnknown), subscriberID, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert endpoint: %w", err)
	}
	n, _ := res.RowsAffected()

	e, err := scanEndpoint(tx.QueryRowContext(ctx, selectCols+` WHERE domain = ?`, name))
	if err != nil {
		return nil, false, fmt.Errorf("reload endpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return e, n > 0, nil
}

func (s *Store) Put(ctx context.Context, ep *domain.Endpoint) error {
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now().UTC()
	}
	if ep.UpdatedAt.IsZero() {
		ep.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitored_sites (domain, status, downtime_start, chat_id, notification_sent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (domain) DO UPDATE SET
		   status = excluded.status,
		   downtime_start = excluded.downtime_start,
		   chat_id = excluded.chat_id,
		   notification_sent = excluded.notification_sent,
		   updated_at = excluded.updated_at`,
		ep.Domain, string(ep.Status), nullMillis(ep.DowntimeStart), ep.SubscriberID, ep.NotificationSent,
		ep.CreatedAt.UnixMilli(), ep.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", ep.Domain, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, name string, fn repo.UpdateFunc) (*domain.Endpoint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanEndpoint(tx.QueryRowContext(ctx, selectCols+` WHERE domain = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	next, err := fn(*cur)
	if err != nil {
		return nil, err
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE monitored_sites
		    SET status = ?, downtime_start = ?, chat_id = ?, notification_sent = ?, updated_at = ?
		  WHERE domain = ?`,
		string(next.Status), nullMillis(next.DowntimeStart), next.SubscriberID, next.NotificationSent,
		next.UpdatedAt.UnixMilli(), name); err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", name, err)
	}
	next.Domain = name
	next.CreatedAt = cur.CreatedAt
	return &next, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Endpoint, error) {
	return s.query(ctx, selectCols+` ORDER BY domain`)
}

func (s *Store) ListBySubscriber(ctx context.Context, subscriberID string) ([]domain.Endpoint, error) {
	return s.query(ctx, selectCols+` WHERE chat_id = ? ORDER BY domain`, subscriberID)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []domain.Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitored_sites WHERE domain = ?`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
