package pipeline

import (
	"errors"
	"fmt"

	"github.com/imalyk/go-audio-mashup/pkg/job"
)

var (
	// ErrEmptySequence is returned when no sequence entry names a known clip.
	ErrEmptySequence = errors.New("no valid clips in sequence")
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("job queue is full")
)

// StageError tags a failure with the pipeline stage it happened in.
type StageError struct {
	Stage job.Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func stageErr(stage job.Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage err was tagged with, or internal when untagged.
func StageOf(err error) job.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return job.StageInternal
}
