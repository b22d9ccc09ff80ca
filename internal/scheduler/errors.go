package scheduler

import "fmt"

// Stage names the step of a cycle that failed.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageRender Stage = "render"
	StageNotify Stage = "notify"
)

// StageError tags a cycle failure with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// guard runs fn, turning both returned errors and panics into a *StageError.
func guard(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
