package models

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures surfaced by the repository engine
type ErrorKind int

const (
	// ErrValidation covers malformed archives and bad control data;
	// the archive is rejected and no repository state changes.
	ErrValidation ErrorKind = iota
	// ErrConsistency covers a declared index file missing or stale at
	// composition time; the publish cycle aborts, prior state stays.
	ErrConsistency
	// ErrSigning covers key lookup/expiry failures and an unreachable
	// signing backend; the publish cycle aborts, prior state stays.
	ErrSigning
	// ErrConcurrency means the per-distribution publish lock is already
	// held; the caller may retry.
	ErrConcurrency
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrValidation:
		return "Validation"
	case ErrConsistency:
		return "Consistency"
	case ErrSigning:
		return "Signing"
	case ErrConcurrency:
		return "Concurrency"
	default:
		return "Unknown"
	}
}

// Stage names the publish pipeline stage a failure happened in.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageBuilding  Stage = "building"
	StageComposing Stage = "composing"
	StageSigning   Stage = "signing"
	StageSwapping  Stage = "swapping"
)

// RepoError is an error from the repository engine, tagged with its
// category and the pipeline stage it occurred in.
type RepoError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *RepoError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error
func (e *RepoError) Unwrap() error {
	return e.Err
}

// NewRepoError wraps err with a category and stage.
func NewRepoError(kind ErrorKind, stage Stage, err error) *RepoError {
	return &RepoError{Kind: kind, Stage: stage, Err: err}
}

// IsKind reports whether err is a RepoError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *RepoError
	return errors.As(err, &re) && re.Kind == kind
}
