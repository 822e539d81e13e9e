package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/otaverifier/internal/checksum"
	"github.com/dmitrijs2005/otaverifier/internal/client/client"
	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/cryptox"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
	"github.com/dmitrijs2005/otaverifier/internal/logging"
	"github.com/dmitrijs2005/otaverifier/internal/netx"
	"github.com/google/uuid"
)

const defaultSuccessMessage = "Files uploaded successfully"

// UploaderService drives one upload session: it verifies the selected bundle
// in the background, encrypts the credentials under the backend key and
// submits the multipart request.
//
// Every file selection issues a new operation id. Verification results and
// submission outcomes are applied only while their id is still the latest,
// so a run superseded by newer input never overwrites fresher state.
type UploaderService struct {
	client   client.Client
	history  uploads.Repository
	verifier *checksum.Verifier
	log      logging.Logger
	progress ProgressFunc
	strict   bool
	now      func() time.Time

	mu         sync.Mutex
	session    Session
	op         uint64
	cancel     context.CancelFunc
	verifyDone chan struct{}
}

type Option func(*UploaderService)

// WithHistory records every submission outcome in repo.
func WithHistory(repo uploads.Repository) Option {
	return func(u *UploaderService) { u.history = repo }
}

func WithLogger(l logging.Logger) Option {
	return func(u *UploaderService) { u.log = l }
}

// WithProgress installs fn as the receiver of verify and upload progress.
// fn is called without the session lock held.
func WithProgress(fn ProgressFunc) Option {
	return func(u *UploaderService) { u.progress = fn }
}

// WithVerifier replaces the default 5 MiB window verifier.
func WithVerifier(v *checksum.Verifier) Option {
	return func(u *UploaderService) { u.verifier = v }
}

// WithStrictVersion requires submitted versions to be semantic versions.
func WithStrictVersion(strict bool) Option {
	return func(u *UploaderService) { u.strict = strict }
}

func NewUploaderService(c client.Client, opts ...Option) *UploaderService {
	u := &UploaderService{
		client:   c,
		verifier: checksum.NewVerifier(),
		log:      logging.Discard(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Snapshot returns a copy of the current session.
func (u *UploaderService) Snapshot() Session {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session.clone()
}

func (u *UploaderService) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session.State
}

// SelectBundle replaces the bundle selection. A nil blob clears it.
func (u *UploaderService) SelectBundle(b filex.Blob) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session.Bundle = b
	u.reselectLocked()
}

// SelectChecksum replaces the checksum file selection. A nil blob clears it.
func (u *UploaderService) SelectChecksum(b filex.Blob) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session.Checksum = b
	u.reselectLocked()
}

// reselectLocked invalidates everything derived from the previous selection
// and starts verification once both files are present.
func (u *UploaderService) reselectLocked() {
	u.op++
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
	u.verifyDone = nil

	s := &u.session
	s.Verification = checksum.Result{}
	s.VerifyProgress = 0
	s.UploadProgress = 0
	s.Outcome = nil
	s.State = s.selectionState()

	if s.State == StateVerifying {
		u.startVerificationLocked(u.op, s.Bundle, s.Checksum)
	}
}

func (u *UploaderService) startVerificationLocked(op uint64, bundle, sum filex.Blob) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	u.cancel = cancel
	u.verifyDone = done

	u.log.Debug(ctx, "verification started", "op", op, "bundle", bundle.Name(), "size", bundle.Size())

	go func() {
		defer close(done)
		defer cancel()

		res := u.verifier.Verify(ctx, bundle, sum, func(p int) {
			if u.setVerifyProgress(op, p) {
				u.report(PhaseVerify, p)
			}
		})

		u.mu.Lock()
		applied := u.op == op && !res.Superseded()
		if applied {
			u.session.Verification = res
			u.session.State = StateVerified
			u.cancel = nil
		}
		u.mu.Unlock()

		if !applied {
			u.log.Debug(ctx, "stale verification discarded", "op", op)
			return
		}
		if res.Matched() {
			u.log.Info(ctx, "bundle verified", "bundle", bundle.Name(), "md5", res.Actual)
		} else {
			u.log.Warn(ctx, "bundle verification failed", "bundle", bundle.Name(), "reason", res.Message, "error", res.Err)
		}
	}()
}

func (u *UploaderService) setVerifyProgress(op uint64, p int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.op != op {
		return false
	}
	u.session.VerifyProgress = p
	return true
}

func (u *UploaderService) setUploadProgress(op uint64, p int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.op != op {
		return false
	}
	u.session.UploadProgress = p
	return true
}

func (u *UploaderService) report(phase Phase, p int) {
	if u.progress != nil {
		u.progress(phase, p)
	}
}

// AwaitVerification blocks until the latest verification run finishes and
// returns its result. It returns common.ErrFilesMissing when no run can
// start because a file is missing.
func (u *UploaderService) AwaitVerification(ctx context.Context) (checksum.Result, error) {
	for {
		u.mu.Lock()
		done := u.verifyDone
		op := u.op
		res := u.session.Verification
		state := u.session.State
		u.mu.Unlock()

		if done == nil {
			if state == StateIdle || state == StateFilesSelected {
				return checksum.Result{}, common.ErrFilesMissing
			}
			return res, nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return checksum.Result{}, ctx.Err()
		}

		u.mu.Lock()
		current := u.op == op
		res = u.session.Verification
		u.mu.Unlock()
		if current {
			return res, nil
		}
	}
}

// SetVersion stores the release version for the next submission.
func (u *UploaderService) SetVersion(version string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session.Version = strings.TrimSpace(version)
}

func (u *UploaderService) SetCredentials(c models.Credentials) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session.Credentials = c
}

// SetStorage stores the optional bucket and region sent with the upload.
func (u *UploaderService) SetStorage(bucket, region string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session.Storage = models.Storage{
		Bucket: strings.TrimSpace(bucket),
		Region: strings.TrimSpace(region),
	}
}

// LoadPublicKey fetches the backend's public key and caches it for the rest
// of the session. A cached key is not fetched again.
func (u *UploaderService) LoadPublicKey(ctx context.Context) error {
	u.mu.Lock()
	cached := u.session.PublicKey
	u.mu.Unlock()
	if cached != "" {
		return nil
	}
	if _, err := u.fetchPublicKey(ctx); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPublicKeyNotLoaded, err)
	}
	return nil
}

// fetchPublicKey downloads and validates the key, then caches it.
func (u *UploaderService) fetchPublicKey(ctx context.Context) (string, error) {
	key, err := u.client.GetPublicKey(ctx)
	if err != nil {
		return "", err
	}
	if _, err := cryptox.ParsePublicKeyPEM(key); err != nil {
		return "", err
	}

	u.mu.Lock()
	u.session.PublicKey = key
	u.mu.Unlock()

	u.log.Info(ctx, "public key loaded")
	return key, nil
}

// checkSubmitLocked returns the first failing submit guard.
func (u *UploaderService) checkSubmitLocked() error {
	s := &u.session
	switch {
	case s.State == StateSubmitting:
		return common.ErrSubmitInProgress
	case s.Bundle == nil || s.Checksum == nil:
		return common.ErrFilesMissing
	case s.State == StateVerifying:
		return common.ErrVerificationPending
	case !s.Verification.Matched():
		return common.ErrNotVerified
	}
	return models.ValidateVersion(s.Version, u.strict)
}

// Submit uploads the verified bundle. A failing guard returns an error and
// leaves the session untouched. Otherwise the session passes through
// submitting to done and the outcome is returned; failures inside the
// submission are reported in the Outcome, not as an error.
//
// If the selection changes while the upload runs, the outcome is still
// returned but no longer applied to the session.
func (u *UploaderService) Submit(ctx context.Context) (Outcome, error) {
	u.mu.Lock()
	if err := u.checkSubmitLocked(); err != nil {
		u.mu.Unlock()
		return Outcome{}, err
	}
	op := u.op
	s := u.session.clone()
	u.session.State = StateSubmitting
	u.session.UploadProgress = 0
	u.session.Outcome = nil
	u.mu.Unlock()

	started := u.now()
	log := u.log.With("op", op, "version", s.Version, "bundle", s.Bundle.Name())
	log.Info(ctx, "submission started")

	out := u.submit(ctx, op, &s)

	if out.Success {
		log.Info(ctx, "submission finished", "message", out.Message)
	} else {
		log.Error(ctx, "submission failed", "message", out.Message)
	}
	u.record(ctx, &s, out, started)

	u.mu.Lock()
	if u.op == op {
		u.session.State = StateDone
		u.session.Outcome = &out
	}
	u.mu.Unlock()

	return out, nil
}

func (u *UploaderService) submit(ctx context.Context, op uint64, s *Session) Outcome {
	key := s.PublicKey
	if key == "" {
		var err error
		if key, err = u.fetchPublicKey(ctx); err != nil {
			return failure("Public key not loaded", err)
		}
	}

	req := &models.UploadRequest{
		Version:  s.Version,
		Bucket:   s.Storage.Bucket,
		Region:   s.Storage.Region,
		Bundle:   s.Bundle,
		Checksum: s.Checksum,
	}

	var err error
	if req.EncryptedAccessKey, err = cryptox.EncryptChunked(s.Credentials.AccessKey, key); err != nil {
		return failure("Encryption failed", err)
	}
	if req.EncryptedSecretKey, err = cryptox.EncryptChunked(s.Credentials.SecretKey, key); err != nil {
		return failure("Encryption failed", err)
	}
	if strings.TrimSpace(s.Credentials.SessionToken) != "" {
		if req.EncryptedSessionToken, err = cryptox.EncryptChunked(s.Credentials.SessionToken, key); err != nil {
			return failure("Encryption failed", err)
		}
	}

	last := -1
	msg, err := u.client.UploadBundle(ctx, req, func(sent, total int64) {
		p := netx.Percent(sent, total)
		if p == last {
			return
		}
		last = p
		if u.setUploadProgress(op, p) {
			u.report(PhaseUpload, p)
		}
	})
	if err != nil {
		return failure("Upload failed", err)
	}
	if msg == "" {
		msg = defaultSuccessMessage
	}
	return Outcome{Success: true, Message: msg}
}

// failure renders err as the single user-facing message of a failed
// submission. Backend errors contribute their detail only.
func failure(prefix string, err error) Outcome {
	var apiErr *client.APIError
	text := ""
	switch {
	case errors.As(err, &apiErr):
		text = apiErr.Detail
	case err != nil:
		text = err.Error()
		for _, sentinel := range []error{common.ErrEncryption, common.ErrPublicKeyNotLoaded, common.ErrUploadFailed} {
			text = strings.TrimPrefix(text, sentinel.Error()+": ")
		}
	}
	return Outcome{Success: false, Message: prefix + ": " + text}
}

func (u *UploaderService) record(ctx context.Context, s *Session, out Outcome, started time.Time) {
	if u.history == nil {
		return
	}

	status := models.UploadSucceeded
	if !out.Success {
		status = models.UploadFailed
	}
	rec := &models.UploadRecord{
		ID:          uuid.NewString(),
		Version:     s.Version,
		BundleName:  s.Bundle.Name(),
		BundleSize:  s.Bundle.Size(),
		BundleMD5:   s.Verification.Actual,
		Bucket:      s.Storage.Bucket,
		Region:      s.Storage.Region,
		Status:      status,
		Message:     out.Message,
		CreatedAt:   started,
		CompletedAt: u.now(),
	}

	// The outcome stands even if the history write fails.
	if err := u.history.Insert(context.WithoutCancel(ctx), rec); err != nil {
		u.log.Warn(ctx, "failed to record upload", "id", rec.ID, "error", err)
	}
}

// History returns up to limit past submissions, newest first.
func (u *UploaderService) History(ctx context.Context, limit int) ([]*models.UploadRecord, error) {
	if u.history == nil {
		return []*models.UploadRecord{}, nil
	}
	return u.history.List(ctx, limit)
}

// LastUpload returns the newest successful submission of version, or
// common.ErrNotFound when there is none or no history is kept.
func (u *UploaderService) LastUpload(ctx context.Context, version string) (*models.UploadRecord, error) {
	if u.history == nil || strings.TrimSpace(version) == "" {
		return nil, common.ErrNotFound
	}
	return u.history.LastSuccessful(ctx, version)
}

// Close stops any verification still running.
func (u *UploaderService) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
}
