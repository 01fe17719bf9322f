package quota

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store using PostgreSQL. It keeps the source
// behavior's check-then-record semantics; see the Store docs for the
// known race. Deployments that need strict enforcement use RedisStore.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CountToday returns the number of records for the identity on the day.
func (s *PostgresStore) CountToday(ctx context.Context, identity, date string) (int, error) {
	query := `SELECT COUNT(*) FROM upload_records WHERE identity = $1 AND day = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, identity, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count upload records: %w", err)
	}
	return count, nil
}

// Record writes one upload record.
func (s *PostgresStore) Record(ctx context.Context, rec UploadRecord) error {
	query := `INSERT INTO upload_records (identity, day, recorded_at) VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, rec.Identity, rec.Date, rec.Timestamp); err != nil {
		return fmt.Errorf("failed to insert upload record: %w", err)
	}
	return nil
}
