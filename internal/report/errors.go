package report

import (
	"errors"
	"fmt"
)

// Kind classifies a report failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindPhoto      Kind = "photo"
	KindTemplate   Kind = "template"
	KindRender     Kind = "render"
	KindStorage    Kind = "storage"
	KindSecurity   Kind = "security"
	KindInternal   Kind = "internal"
)

// Error is returned by every Service operation.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a report error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
