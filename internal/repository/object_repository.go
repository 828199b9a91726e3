package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kdavid109/UpWake/internal/models"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectRepository struct {
	pool *pgxpool.Pool
}

func NewObjectRepository(pool *pgxpool.Pool) *ObjectRepository {
	return &ObjectRepository{pool: pool}
}

func (r *ObjectRepository) Create(ctx context.Context, obj models.ScannedObject) error {
	const query = `
		INSERT INTO scanned_objects (
			id, user_id, name, safe_name, storage_path, image_url, content_type,
			size_bytes, processed, status, scanned_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		obj.ID,
		obj.UserID,
		obj.Name,
		obj.SafeName,
		obj.StoragePath,
		obj.ImageURL,
		obj.ContentType,
		obj.SizeBytes,
		obj.Processed,
		obj.Status,
	)
	return err
}

func (r *ObjectRepository) GetByID(ctx context.Context, id string) (models.ScannedObject, error) {
	const query = `
		SELECT id, user_id, name, safe_name, storage_path, image_url, content_type,
		       size_bytes, processed, status, scanned_at, updated_at
		FROM scanned_objects WHERE id = $1
	`
	return scanObject(r.pool.QueryRow(ctx, query, id))
}

// ListByUser returns the user's catalog newest-first.
func (r *ObjectRepository) ListByUser(ctx context.Context, userID string) ([]models.ScannedObject, error) {
	const query = `
		SELECT id, user_id, name, safe_name, storage_path, image_url, content_type,
		       size_bytes, processed, status, scanned_at, updated_at
		FROM scanned_objects
		WHERE user_id = $1
		ORDER BY scanned_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []models.ScannedObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

func (r *ObjectRepository) List(ctx context.Context, limit, offset int) ([]models.ScannedObject, error) {
	const query = `
		SELECT id, user_id, name, safe_name, storage_path, image_url, content_type,
		       size_bytes, processed, status, scanned_at, updated_at
		FROM scanned_objects
		ORDER BY scanned_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []models.ScannedObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// ClaimPending flips a pending object to processing and reports whether this
// caller won the claim. A false return with nil error means another removal
// path already took the object; callers must then do no work.
func (r *ObjectRepository) ClaimPending(ctx context.Context, id string) (bool, error) {
	const query = `
		UPDATE scanned_objects
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkProcessed records a finished background removal.
func (r *ObjectRepository) MarkProcessed(ctx context.Context, id string, imageURL string, sizeBytes int64) error {
	const query = `
		UPDATE scanned_objects
		SET processed = TRUE, status = 'completed', image_url = $2, size_bytes = $3, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, imageURL, sizeBytes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrObjectNotFound
	}
	return nil
}

func (r *ObjectRepository) MarkError(ctx context.Context, id string) error {
	const query = `
		UPDATE scanned_objects
		SET status = 'error', updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *ObjectRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM scanned_objects WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrObjectNotFound
	}
	return nil
}

func scanObject(row pgx.Row) (models.ScannedObject, error) {
	var obj models.ScannedObject
	if err := row.Scan(
		&obj.ID,
		&obj.UserID,
		&obj.Name,
		&obj.SafeName,
		&obj.StoragePath,
		&obj.ImageURL,
		&obj.ContentType,
		&obj.SizeBytes,
		&obj.Processed,
		&obj.Status,
		&obj.ScannedAt,
		&obj.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ScannedObject{}, ErrObjectNotFound
		}
		return models.ScannedObject{}, err
	}
	return obj, nil
}
