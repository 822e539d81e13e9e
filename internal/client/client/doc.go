// Package client talks to the OTA backend over HTTP.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface): Ping,
//     GetPublicKey, UploadBundle, ListBundles and InstallBundle.
//  2. A concrete implementation (see HTTPClient) over net/http. Uploads are
//     streamed as multipart/form-data with a known Content-Length so byte
//     progress can be reported.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) for the
//     upload history: SQLite plus embedded goose migrations.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable. Non-2xx responses are returned as
// *APIError, whose Detail carries the backend's "detail" field. UploadBundle
// additionally wraps both in common.ErrUploadFailed. Match with errors.Is /
// errors.As.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
