// Package services contains the application services of the OTA uploader.
// This file defines the Session: the in-memory state of one upload flow
// (file selections, verification outcome, cached public key, submission
// outcome) and the state machine that governs it.
package services

import (
	"github.com/dmitrijs2005/otaverifier/internal/checksum"
	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
)

// State is a step of the upload flow.
type State int

const (
	StateIdle State = iota
	StateFilesSelected
	StateVerifying
	StateVerified
	StateSubmitting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFilesSelected:
		return "files-selected"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Phase names the long-running step a progress report belongs to.
type Phase string

const (
	PhaseVerify Phase = "verify"
	PhaseUpload Phase = "upload"
)

// ProgressFunc receives progress of the current phase in percent.
type ProgressFunc func(phase Phase, percent int)

// Outcome is the user-visible result of a submission.
type Outcome struct {
	Success bool
	Message string
}

// Session is the state of a single upload flow. It is owned by an
// UploaderService and only mutated under its lock.
type Session struct {
	State State

	Bundle   filex.Blob
	Checksum filex.Blob

	Version     string
	Credentials models.Credentials
	Storage     models.Storage

	Verification   checksum.Result
	VerifyProgress int
	UploadProgress int

	PublicKey string
	Outcome   *Outcome
}

// Submittable reports whether the guards of a submit pass, ignoring the
// version format check.
func (s *Session) Submittable() bool {
	return s.Bundle != nil && s.Checksum != nil &&
		s.Version != "" &&
		(s.State == StateVerified || s.State == StateDone) &&
		s.Verification.Matched()
}

// selectionState returns the state implied by the current file selection
// alone.
func (s *Session) selectionState() State {
	switch {
	case s.Bundle != nil && s.Checksum != nil:
		return StateVerifying
	case s.Bundle != nil || s.Checksum != nil:
		return StateFilesSelected
	default:
		return StateIdle
	}
}

func (s *Session) clone() Session {
	c := *s
	if s.Outcome != nil {
		o := *s.Outcome
		c.Outcome = &o
	}
	return c
}
