package errors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindUsage
	KindRemote
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// JobError tags an error with the category that decides how the process
// exits.
type JobError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *JobError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func Config(err error) error {
	return &JobError{Kind: KindConfig, Op: "configuration", Err: err}
}

func Usage(format string, args ...interface{}) error {
	return &JobError{Kind: KindUsage, Err: fmt.Errorf(format, args...)}
}

func Remote(op string, err error) error {
	return &JobError{Kind: KindRemote, Op: op, Err: err}
}

func KindOf(err error) Kind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindInternal
}

func IsUsage(err error) bool {
	return err != nil && KindOf(err) == KindUsage
}

// ExitCode maps an error returned by a job to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsUsage(err):
		return ExitUsage
	default:
		return ExitFailure
	}
}
