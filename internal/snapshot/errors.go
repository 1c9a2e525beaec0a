package snapshot

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Pipeline.Run matches exactly one of
// these with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrCredentials   = errors.New("credential resolution error")
	ErrWorkspace     = errors.New("workspace error")
	ErrSubprocess    = errors.New("subprocess error")
	ErrUpload        = errors.New("upload error")
)

// Step names a stage of the snapshot pipeline.
type Step string

const (
	StepInit        Step = "init"
	StepMaterialize Step = "materialize"
	StepArchive     Step = "archive"
	StepPublish     Step = "publish"
)

// StepError reports the first failing pipeline step.
type StepError struct {
	Step Step
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%v): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stepError(step Step, kind, err error) error {
	return &StepError{Step: step, Kind: kind, Err: err}
}
