// Package checksum verifies a bundle against the MD5 digest declared in its
// companion checksum file.
//
// The bundle is folded into an MD5 accumulator one fixed-size window at a
// time, so memory stays bounded by the window size regardless of bundle size.
// Reads are strictly sequential: a window is requested only after the
// previous one has been hashed.
//
// Verify never returns an error. Every failure (unreadable file, missing
// digest token, unequal digests) is reported through Result.
package checksum

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
)

// State is the tri-state verification outcome.
type State int

const (
	StateUnchecked State = iota
	StateMatched
	StateMismatched
)

func (s State) String() string {
	switch s {
	case StateMatched:
		return "matched"
	case StateMismatched:
		return "mismatched"
	default:
		return "unchecked"
	}
}

// Reason tells apart the ways a check can end up mismatched.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoToken
	ReasonDigestMismatch
	ReasonReadFailed
)

const (
	MessageMatched    = "MD5-matched"
	MessageMismatched = "MD5-mismatch"
	MessageNoToken    = "No valid MD5 found in .md5 file"
	MessageReadFailed = "Failed to read file"
)

// Result is the outcome of one Verify call.
type Result struct {
	State    State
	Reason   Reason
	Actual   string
	Expected string
	Message  string
	// Err is the underlying cause for ReasonReadFailed and for runs that were
	// cancelled before finishing.
	Err error
}

// Matched reports whether the bundle digest equals the declared one.
func (r Result) Matched() bool {
	return r.State == StateMatched
}

// Superseded reports whether the run was cancelled before it finished.
func (r Result) Superseded() bool {
	return r.State == StateUnchecked && r.Err != nil &&
		(errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded))
}

// ProgressFunc receives the completion percentage after each window.
type ProgressFunc func(percent int)

var digestToken = regexp.MustCompile(`[a-fA-F0-9]{32}`)

// ExtractDigest returns the first 32-hex-character token in text, lower-cased.
func ExtractDigest(text string) (string, bool) {
	m := digestToken.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// Verifier hashes bundles in windows of WindowSize bytes.
type Verifier struct {
	WindowSize int
}

// NewVerifier returns a Verifier using common.VerifyWindowSize.
func NewVerifier() *Verifier {
	return &Verifier{WindowSize: common.VerifyWindowSize}
}

// Windows returns the number of windows a bundle of size bytes is split into.
// An empty bundle still takes one (empty) window.
func (v *Verifier) Windows(size int64) int64 {
	w := int64(v.windowSize())
	if size <= 0 {
		return 1
	}
	return (size + w - 1) / w
}

func (v *Verifier) windowSize() int {
	if v.WindowSize <= 0 {
		return common.VerifyWindowSize
	}
	return v.WindowSize
}

// Verify hashes bundle and compares the digest with the one declared in sum.
// progress may be nil. Cancelling ctx stops the run between windows; the
// result is then StateUnchecked with Err set to the context error.
func (v *Verifier) Verify(ctx context.Context, bundle, sum filex.Blob, progress ProgressFunc) Result {
	if bundle == nil || sum == nil {
		return Result{State: StateUnchecked, Err: common.ErrFilesMissing}
	}

	actual, err := v.Digest(ctx, bundle, progress)
	if err != nil {
		if ctx.Err() != nil {
			return Result{State: StateUnchecked, Err: ctx.Err()}
		}
		return readFailed(err)
	}

	text, err := filex.ReadAll(sum)
	if err != nil {
		return readFailed(fmt.Errorf("read %s: %w", sum.Name(), err))
	}

	expected, ok := ExtractDigest(string(text))
	if !ok {
		return Result{
			State:   StateMismatched,
			Reason:  ReasonNoToken,
			Actual:  actual,
			Message: MessageNoToken,
			Err:     common.ErrNoChecksumToken,
		}
	}

	if expected != actual {
		return Result{
			State:    StateMismatched,
			Reason:   ReasonDigestMismatch,
			Actual:   actual,
			Expected: expected,
			Message:  MessageMismatched,
			Err:      common.ErrChecksumMismatch,
		}
	}

	return Result{
		State:    StateMatched,
		Actual:   actual,
		Expected: expected,
		Message:  MessageMatched,
	}
}

// Digest returns the lowercase hex MD5 of b, read window by window.
func (v *Verifier) Digest(ctx context.Context, b filex.Blob, progress ProgressFunc) (string, error) {
	size := b.Size()
	total := v.Windows(size)
	buf := make([]byte, v.windowSize())
	h := md5.New()

	for done := int64(0); done < total; done++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		off := done * int64(len(buf))
		n := int64(len(buf))
		if rest := size - off; rest < n {
			n = rest
		}
		if n > 0 {
			read, err := b.ReadAt(buf[:n], off)
			if int64(read) < n {
				if err == nil || errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return "", fmt.Errorf("read %s at %d: %w", b.Name(), off, err)
			}
			h.Write(buf[:n])
		}

		if progress != nil {
			progress(int((done + 1) * 100 / total))
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func readFailed(err error) Result {
	return Result{
		State:   StateMismatched,
		Reason:  ReasonReadFailed,
		Message: MessageReadFailed,
		Err:     errors.Join(common.ErrReadFailed, err),
	}
}
