package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/repo"
)

//go:embed schema.sql
var schemaSQL string

var _ repo.EndpointStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the table when missing. Safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const selectCols = `SELECT domain, status, downtime_start, chat_id, notification_sent, created_at, updated_at
	  FROM monitored_sites`

func scanEndpoint(row pgx.Row) (*domain.Endpoint, error) {
	var (
		e         domain.Endpoint
		status    string
		downStart *time.Time
	)
	if err := row.Scan(&e.Domain, &status, &downStart, &e.SubscriberID, &e.NotificationSent, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.ParseStatus(status)
	e.DowntimeStart = downStart
	return &e, nil
}

func (s *Store) Get(ctx context.Context, name string) (*domain.Endpoint, error) {
	e, err := scanEndpoint(s.pool.QueryRow(ctx, selectCols+` WHERE domain = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return e, nil
}

func (s *Store) UpsertIfAbsent(ctx context.Context, name, subscriberID string) (*domain.Endpoint, bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO monitored_sites (domain, status, chat_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (domain) DO NOTHING`,
		name, string(domain.StatusUnknown), subscriberID)
	if err != nil {
		return nil, false, fmt.Errorf("insert endpoint: %w", err)
	}
	e, err := s.Get(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if e == nil {
		// deleted between insert and read
		return nil, false, repo.ErrNotFound
	}
	return e, tag.RowsAffected() > 0, nil
}

func (s *Store) Put(ctx context.Context, ep *domain.Endpoint) error {
	if ep.UpdatedAt.IsZero() {
		ep.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitored_sites (domain, status, downtime_start, chat_id, notification_sent, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (domain) DO UPDATE SET
		   status = EXCLUDED.status,
		   downtime_start = EXCLUDED.downtime_start,
		   chat_id = EXCLUDED.chat_id,
		   notification_sent = EXCLUDED.notification_sent,
		   updated_at = EXCLUDED.updated_at`,
		ep.Domain, string(ep.Status), ep.DowntimeStart, ep.SubscriberID, ep.NotificationSent, ep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put %s: %w", ep.Domain, err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent sweeps (or a
// second process) serialize on the same domain.
func (s *Store) Update(ctx context.Context, name string, fn repo.UpdateFunc) (*domain.Endpoint, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanEndpoint(tx.QueryRow(ctx, selectCols+` WHERE domain = $1 FOR UPDATE`, name))
	if errors.Is(err, pgx.ErrNoRows) {
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
	if _, err := tx.Exec(ctx,
		`UPDATE monitored_sites
		    SET status = $1, downtime_start = $2, chat_id = $3, notification_sent = $4, updated_at = $5
		  WHERE domain = $6`,
		string(next.Status), next.DowntimeStart, next.SubscriberID, next.NotificationSent, next.UpdatedAt, name); err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
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
	return s.query(ctx, selectCols+` WHERE chat_id = $1 ORDER BY domain`, subscriberID)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Endpoint, error) {
	rows, err := s.pool.Query(ctx, q, args...)
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
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitored_sites WHERE domain = $1`, name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
