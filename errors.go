package datapub

import (
	"fmt"
)

// Error is a constant error value.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrEmptyDataset is returned when a Source which was expected to yield
	// records yields none.
	ErrEmptyDataset = Error("dataset is empty")
	// ErrForbidden means the external source refused access to a key.
	ErrForbidden = Error("access forbidden")
	// ErrRateLimited means the external source is throttling requests.
	ErrRateLimited = Error("rate limited")
	// ErrSchemaMismatch means a dataset's fields differ from the dataset it
	// was to be joined with.
	ErrSchemaMismatch = Error("schema mismatch")
	// ErrNotExist is returned by stores for operations on missing paths.
	ErrNotExist = Error("path does not exist")
)

// Stage names a failure domain of a run.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageDirectory Stage = "directory"
	StageProduce   Stage = "produce"
	StageSerialize Stage = "serialize"
	StageReconcile Stage = "reconcile"
	StageUpload    Stage = "upload"
	StageList      Stage = "list"
)

// Fatal reports whether a failure in this stage aborts the run. Reconcile
// failures are logged and the upload is attempted anyway.
func (s Stage) Fatal() bool {
	return s != StageReconcile
}

// StageError is a failure in one stage, with the operation and the path or
// key it was operating on.
type StageError struct {
	Stage  Stage
	Op     string
	Target string
	Err    error
}

func (e *StageError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Stage, e.Op, e.Target, e.Err)
}

// Cause is used by errors.Cause from github.com/pkg/errors.
func (e *StageError) Cause() error { return e.Err }

func (e *StageError) Unwrap() error { return e.Err }

// Fatal reports whether the error aborts the run.
func (e *StageError) Fatal() bool { return e.Stage.Fatal() }
