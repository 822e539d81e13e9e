// Package common defines shared constants and sentinel errors used across
// client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Verification errors.
	ErrReadFailed       = errors.New("failed to read file")
	ErrNoChecksumToken  = errors.New("no valid md5 found in checksum file")
	ErrChecksumMismatch = errors.New("md5 mismatch")

	// Key and encryption errors.
	ErrPublicKeyNotLoaded = errors.New("public key not loaded")
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrEncryption         = errors.New("encryption failed")

	// Transport errors.
	ErrUploadFailed = errors.New("upload failed")
	ErrUnavailable  = errors.New("server unavailable")

	// Submit guards.
	ErrFilesMissing        = errors.New("bundle and checksum files are required")
	ErrVersionRequired     = errors.New("version is required")
	ErrInvalidVersion      = errors.New("invalid version")
	ErrNotVerified         = errors.New("bundle checksum not matched")
	ErrVerificationPending = errors.New("verification in progress")
	ErrSubmitInProgress    = errors.New("submission in progress")
)
