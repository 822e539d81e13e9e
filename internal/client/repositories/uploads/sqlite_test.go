package uploads

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE uploads (
  id           TEXT PRIMARY KEY,
  version      TEXT NOT NULL,
  bundle_name  TEXT NOT NULL,
  bundle_size  INTEGER NOT NULL,
  bundle_md5   TEXT NOT NULL,
  bucket       TEXT NOT NULL DEFAULT '',
  region       TEXT NOT NULL DEFAULT '',
  status       TEXT NOT NULL,
  message      TEXT NOT NULL,
  created_at   TIMESTAMP NOT NULL,
  completed_at TIMESTAMP NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func record(id, version string, status models.UploadStatus, offset time.Duration) *models.UploadRecord {
	return &models.UploadRecord{
		ID:          id,
		Version:     version,
		BundleName:  "bundle-" + version + ".raucb",
		BundleSize:  1024,
		BundleMD5:   "5d41402abc4b2a76b9719d911017c592",
		Bucket:      "releases",
		Region:      "eu-central-1",
		Status:      status,
		Message:     string(status),
		CreatedAt:   base.Add(offset),
		CompletedAt: base.Add(offset + time.Second),
	}
}

func TestInsert_ThenList(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := record("u1", "v1.0.0", models.UploadSucceeded, 0)
	require.NoError(t, r.Insert(ctx, rec))

	got, err := r.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	g := got[0]
	assert.Equal(t, "u1", g.ID)
	assert.Equal(t, "v1.0.0", g.Version)
	assert.Equal(t, "bundle-v1.0.0.raucb", g.BundleName)
	assert.EqualValues(t, 1024, g.BundleSize)
	assert.Equal(t, "releases", g.Bucket)
	assert.Equal(t, "eu-central-1", g.Region)
	assert.Equal(t, models.UploadSucceeded, g.Status)
	assert.True(t, rec.CreatedAt.Equal(g.CreatedAt), "created_at round trip: %v", g.CreatedAt)
	assert.True(t, rec.CompletedAt.Equal(g.CompletedAt))
}

func TestInsert_DuplicateID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, record("dup", "v1", models.UploadSucceeded, 0)))
	err := r.Insert(ctx, record("dup", "v2", models.UploadFailed, time.Minute))
	require.Error(t, err)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, record("a", "v1", models.UploadSucceeded, 0)))
	require.NoError(t, r.Insert(ctx, record("b", "v2", models.UploadFailed, time.Hour)))
	require.NoError(t, r.Insert(ctx, record("c", "v3", models.UploadSucceeded, 2*time.Hour)))

	all, err := r.List(ctx, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := r.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "c", two[0].ID)
	assert.Equal(t, "b", two[1].ID)
}

func TestList_Empty(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	got, err := r.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLastSuccessful(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, record("s1", "v1", models.UploadSucceeded, 0)))
	require.NoError(t, r.Insert(ctx, record("f1", "v1", models.UploadFailed, time.Hour)))
	require.NoError(t, r.Insert(ctx, record("s2", "v1", models.UploadSucceeded, 2*time.Hour)))
	require.NoError(t, r.Insert(ctx, record("f2", "v2", models.UploadFailed, 3*time.Hour)))

	got, err := r.LastSuccessful(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.ID)

	_, err = r.LastSuccessful(ctx, "v2")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_QueryError(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	r := NewSQLiteRepository(db)
	_, err = r.List(context.Background(), 1)
	require.Error(t, err)
}
