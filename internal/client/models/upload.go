// Package models defines the value types shared by the uploader's session,
// backend client and local history.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
)

// Form field names of the upload endpoint.
const (
	FieldVersion               = "version"
	FieldEncryptedAccessKey    = "encrypted_access_key"
	FieldEncryptedSecretKey    = "encrypted_secret_key"
	FieldEncryptedSessionToken = "encrypted_session_token"
	FieldBucket                = "bucket"
	FieldRegion                = "region"
	FieldBundleFile            = "raucb_file"
	FieldChecksumFile          = "md5_File"
)

// Credentials are the cloud secrets forwarded, encrypted, to the backend.
// SessionToken is optional.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// Storage is the optional destination of the release in object storage.
type Storage struct {
	Bucket string
	Region string
}

// UploadRequest aggregates one multipart submission. It is built fresh for
// every submit and discarded afterwards.
type UploadRequest struct {
	Version               string
	EncryptedAccessKey    string
	EncryptedSecretKey    string
	EncryptedSessionToken string
	Bucket                string
	Region                string
	Bundle                filex.Blob
	Checksum              filex.Blob
}

// UploadStatus classifies a finished submission.
type UploadStatus string

const (
	UploadSucceeded UploadStatus = "success"
	UploadFailed    UploadStatus = "error"
)

// UploadRecord is one row of the local upload history.
type UploadRecord struct {
	ID          string
	Version     string
	BundleName  string
	BundleSize  int64
	BundleMD5   string
	Bucket      string
	Region      string
	Status      UploadStatus
	Message     string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Release is a version found under the release prefix in object storage.
type Release struct {
	Version string
	Objects []string
}

// MaskValue keeps the first visible characters of value and stars out the
// rest, for echoing secrets back to the user. A negative visible masks
// everything.
func MaskValue(value string, visible int) string {
	if value == "" {
		return ""
	}
	r := []rune(value)
	visible = max(0, min(visible, len(r)))
	return string(r[:visible]) + strings.Repeat("*", len(r)-visible)
}

// ValidateVersion checks a release version. Blank versions are always
// rejected; with strict set the version must also be a semantic version,
// optionally prefixed with "v".
func ValidateVersion(version string, strict bool) error {
	v := strings.TrimSpace(version)
	if v == "" {
		return common.ErrVersionRequired
	}
	if !strict {
		return nil
	}
	if _, err := semver.NewVersion(strings.TrimPrefix(v, "v")); err != nil {
		return fmt.Errorf("%w: %q: %v", common.ErrInvalidVersion, version, err)
	}
	return nil
}
