package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amanthanvi/registry/internal/storage"
	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation    = errors.New("app: validation failed")
	ErrDuplicateCNIC = errors.New("app: duplicate cnic number")
)

type ErrorKind string

const (
	KindStoreUnavailable    ErrorKind = "store_unavailable"
	KindConstraintViolation ErrorKind = "constraint_violation"
	KindNotFound            ErrorKind = "not_found"
	KindValidation          ErrorKind = "validation"
	KindInternal            ErrorKind = "internal"
)

// KindOf classifies err into the registry error taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrSchemaTooNew):
		return KindStoreUnavailable
	case errors.Is(err, ErrDuplicateCNIC), errors.Is(err, storage.ErrConstraint):
		return KindConstraintViolation
	case errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// Flatten renders err as the single human-readable message handed to callers
// outside the process. Structured kinds do not survive this step.
func Flatten(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindNotFound:
		return MessageMemberMissing
	case KindConstraintViolation:
		var dup *duplicateCNICError
		if errors.As(err, &dup) {
			return fmt.Sprintf("A member with CNIC number %s already exists", dup.cnic)
		}
		return "A member with this CNIC number already exists"
	case KindValidation:
		var invalid *validationError
		if errors.As(err, &invalid) {
			return "Invalid member: " + strings.Join(invalid.problems, "; ")
		}
		return "Invalid request: " + strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	case KindStoreUnavailable:
		detail := strings.Replace(err.Error(), storage.ErrUnavailable.Error()+": ", "", 1)
		if detail == storage.ErrUnavailable.Error() {
			return "Registry store unavailable"
		}
		return "Registry store unavailable: " + detail
	default:
		return err.Error()
	}
}

type duplicateCNICError struct {
	cnic string
	err  error
}

func (e *duplicateCNICError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateCNIC, e.cnic)
}

func (e *duplicateCNICError) Unwrap() []error {
	return []error{ErrDuplicateCNIC, e.err}
}

type validationError struct {
	problems []string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(e.problems, "; "))
}

func (e *validationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fe.Field()+" is required")
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return &validationError{problems: problems}
}

func translateStorageError(op string, cnic string, err error) error {
	if errors.Is(err, storage.ErrConstraint) {
		return &duplicateCNICError{cnic: cnic, err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
