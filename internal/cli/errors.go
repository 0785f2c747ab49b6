package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/amanthanvi/registry/internal/app"
	"github.com/amanthanvi/registry/internal/config"
)

const (
	ExitCodeSuccess    = 0
	ExitCodeGeneric    = 1
	ExitCodeUsage      = 2
	ExitCodeNotFound   = 3
	ExitCodeConstraint = 5
	ExitCodeIO         = 7
)

type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil {
		return ExitCodeGeneric
	}
	return e.Code
}

// ExitCode returns the process exit status for an error returned by the root
// command.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return withExit.ExitCode()
	}
	return ExitCodeGeneric
}

// ErrorMessage is the single line printed for a failed command.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	// Member and request validation share exit code 2 with usage errors but
	// are flattened like every other app error.
	if app.KindOf(err) == app.KindValidation {
		return app.Flatten(err)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitCodeUsage {
		return err.Error()
	}
	if errors.Is(err, config.ErrInvalidConfig) {
		return err.Error()
	}
	return app.Flatten(err)
}

func asExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

func mapCommandError(err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}

	switch app.KindOf(err) {
	case app.KindStoreUnavailable:
		return asExitError(ExitCodeIO, err)
	case app.KindConstraintViolation:
		return asExitError(ExitCodeConstraint, err)
	case app.KindNotFound:
		return asExitError(ExitCodeNotFound, err)
	case app.KindValidation:
		return asExitError(ExitCodeUsage, err)
	}

	if errors.Is(err, config.ErrInvalidConfig) {
		return asExitError(ExitCodeUsage, err)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrNotExist) {
		return asExitError(ExitCodeIO, err)
	}
	return asExitError(ExitCodeGeneric, err)
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{
		Code: ExitCodeUsage,
		Err:  fmt.Errorf(format, args...),
	}
}
