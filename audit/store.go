package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the single database capability the store needs. *pgxpool.Pool
// satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists audit records in the audit_records table.
type Store struct {
	db Execer
}

// NewStore creates a store writing through db.
func NewStore(db Execer) *Store {
	return &Store{db: db}
}

// Save inserts one audit record.
func (s *Store) Save(ctx context.Context, record Record) error {
	_, err := s.db.Exec(ctx, `insert into audit_records
		(occurred_at, method, url, status, duration_ms, subject, issuer, error)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.Time, record.Method, record.URL, record.Status,
		record.Duration.Milliseconds(), record.Identity.Subject,
		record.Identity.Issuer, record.Error)
	if err != nil {
		return fmt.Errorf("could not save audit record: %w", err)
	}
	return nil
}
