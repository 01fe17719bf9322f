package like

import (
	"context"
	"database/sql"
)

// PostgresRepository stores likes in the likes table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed like repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, pictureID, identity string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO likes (picture_id, identity)
		VALUES ($1, $2)
		ON CONFLICT (picture_id, identity) DO NOTHING
	`, pictureID, identity)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, pictureID, identity string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM likes WHERE picture_id = $1 AND identity = $2
	`, pictureID, identity)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, pictureID, identity string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM likes WHERE picture_id = $1 AND identity = $2
		)
	`, pictureID, identity).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepository) Count(ctx context.Context, pictureID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM likes WHERE picture_id = $1
	`, pictureID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresRepository) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT picture_id, COUNT(*) FROM likes GROUP BY picture_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var pictureID string
		var count int
		if err := rows.Scan(&pictureID, &count); err != nil {
			return nil, err
		}
		counts[pictureID] = count
	}
	return counts, rows.Err()
}

func (r *PostgresRepository) RemoveForPicture(ctx context.Context, pictureID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM likes WHERE picture_id = $1
	`, pictureID)
	return err
}
