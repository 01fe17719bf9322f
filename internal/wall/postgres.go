package wall

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresPictureRepository implements PictureRepository using PostgreSQL.
type PostgresPictureRepository struct {
	db *sql.DB
}

// NewPostgresPictureRepository creates a new PostgresPictureRepository.
func NewPostgresPictureRepository(db *sql.DB) *PostgresPictureRepository {
	return &PostgresPictureRepository{db: db}
}

// Insert stores a new picture and returns its assigned ID.
func (r *PostgresPictureRepository) Insert(ctx context.Context, picture *Picture) (string, error) {
	query := `
		INSERT INTO pictures (asset_url, asset_id, pos_x, pos_y, width, height)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		picture.AssetURL,
		picture.AssetID,
		picture.Position.X,
		picture.Position.Y,
		picture.Size.Width,
		picture.Size.Height,
	).Scan(&picture.ID, &picture.UploadedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert picture: %w", err)
	}

	return picture.ID, nil
}

// UpdatePosition moves an existing picture. Last write wins; there is no
// version check because placements are independent and overlap is permitted.
func (r *PostgresPictureRepository) UpdatePosition(ctx context.Context, id string, pos Position) error {
	query := `UPDATE pictures SET pos_x = $2, pos_y = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, pos.X, pos.Y)
	if err != nil {
		return fmt.Errorf("failed to update picture position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrPictureNotFound
	}
	return nil
}

// Delete removes a picture. Absent IDs are treated as already deleted.
func (r *PostgresPictureRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pictures WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete picture: %w", err)
	}
	return nil
}

// List returns all pictures ordered by upload time, oldest first.
func (r *PostgresPictureRepository) List(ctx context.Context) ([]Picture, error) {
	query := `
		SELECT id, asset_url, asset_id, pos_x, pos_y, width, height, uploaded_at
		FROM pictures
		ORDER BY uploaded_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", err)
	}
	defer rows.Close()

	var pictures []Picture
	for rows.Next() {
		var p Picture
		if err := rows.Scan(
			&p.ID,
			&p.AssetURL,
			&p.AssetID,
			&p.Position.X,
			&p.Position.Y,
			&p.Size.Width,
			&p.Size.Height,
			&p.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan picture: %w", err)
		}
		pictures = append(pictures, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pictures: %w", err)
	}

	return pictures, nil
}

// DeleteAll removes every picture inside a single transaction so the bulk
// delete is all-or-nothing from the caller's perspective.
func (r *PostgresPictureRepository) DeleteAll(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM pictures`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pictures: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk delete: %w", err)
	}
	return int(n), nil
}
