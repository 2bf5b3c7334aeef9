package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingURL     = errors.New("missing tweet URL")
	ErrMissingID      = errors.New("missing tweet ID")
	ErrResolveTimeout = errors.New("timed out waiting for video config response")
)

// PayloadError reports a matching response whose body could not yield a
// playback URL.
type PayloadError struct {
	URL string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed video config from %s: %v", e.URL, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// StageError is the terminal failure of a run.
type StageError struct {
	Stage   Stage
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error { return e.Err }
