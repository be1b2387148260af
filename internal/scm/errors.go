package scm

import (
	"errors"

	"github.com/pders01/repour/internal/git"
)

// ExitCodeFailed marks a failure caused by the captured content or the remote,
// as opposed to an internal fault.
const ExitCodeFailed = 10

// Kind classifies a capture failure
type Kind string

const (
	// KindNoChange means a commit had nothing new to record
	KindNoChange Kind = "no-change"
	// KindAlreadyCaptured means identical content is already tagged while a
	// fresh capture was demanded
	KindAlreadyCaptured Kind = "already-captured"
	// KindIntegrity means a submodule is declared but missing on disk
	KindIntegrity Kind = "integrity"
	// KindTransport means the remote rejected a push
	KindTransport Kind = "transport"
	// KindTagConflict means the tag name is taken and continuing was not allowed
	KindTagConflict Kind = "tag-conflict"
)

// Error is a classified failure. It is built once where the failure happens.
type Error struct {
	Kind     Kind
	Desc     string
	ExitCode int
	Err      error
}

func newError(kind Kind, exitCode int, desc string, err error) *Error {
	return &Error{Kind: kind, Desc: desc, ExitCode: exitCode, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Desc
	}
	return e.Desc + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var scmErr *Error
	return errors.As(err, &scmErr) && scmErr.Kind == kind
}

// ExitCode returns the code attached to err. Classified errors win over the
// exit status of the git command underneath them.
func ExitCode(err error) (int, bool) {
	var scmErr *Error
	if errors.As(err, &scmErr) && scmErr.ExitCode != 0 {
		return scmErr.ExitCode, true
	}
	var cmdErr *git.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode, true
	}
	return 0, false
}
