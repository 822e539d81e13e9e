// Package uploads persists the local history of bundle submissions.
//
// A SQLite-backed implementation (SQLiteRepository) works over a dbx.DBTX
// (*sql.DB or *sql.Tx). The schema lives in internal/client/migrations.
//
// Typical Usage
//
//	repo := uploads.NewSQLiteRepository(db)
//	_ = repo.Insert(ctx, rec)
//	recent, _ := repo.List(ctx, 20)
package uploads
