package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, version, bundle_name, bundle_size, bundle_md5, bucket, region, status, message, created_at, completed_at`

func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.UploadRecord) error {
	query := `INSERT INTO uploads (` + selectColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Version, rec.BundleName, rec.BundleSize, rec.BundleMD5,
		rec.Bucket, rec.Region, string(rec.Status), rec.Message,
		rec.CreatedAt.UTC(), rec.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*models.UploadRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM uploads ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting uploads: %w", err)
	}
	defer rows.Close()

	result := make([]*models.UploadRecord, 0)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) LastSuccessful(ctx context.Context, version string) (*models.UploadRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM uploads
			WHERE version = ? AND status = ?
			ORDER BY created_at DESC, rowid DESC LIMIT 1`

	rec, err := scan(r.db.QueryRowContext(ctx, query, version, string(models.UploadSucceeded)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.UploadRecord, error) {
	rec := &models.UploadRecord{}
	var status string
	err := s.Scan(&rec.ID, &rec.Version, &rec.BundleName, &rec.BundleSize, &rec.BundleMD5,
		&rec.Bucket, &rec.Region, &status, &rec.Message, &rec.CreatedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = models.UploadStatus(status)
	return rec, nil
}
