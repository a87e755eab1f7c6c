package internal

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable machine-readable code attached to every error
// this service reports at its boundary.
type ErrorKind string

const (
	KindValidation   ErrorKind = "MISSING_PARAMETERS"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindAccessDenied ErrorKind = "ACCESS_DENIED"
	KindStore        ErrorKind = "STORE_ERROR"
	KindAnalytics    ErrorKind = "ANALYTICS_ERROR"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func AccessDeniedf(format string, args ...any) error {
	return &Error{Kind: KindAccessDenied, Message: fmt.Sprintf(format, args...)}
}

func StoreError(cause error, format string, args ...any) error {
	return &Error{Kind: KindStore, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func AnalyticsError(cause error, format string, args ...any) error {
	return &Error{Kind: KindAnalytics, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf reports the error's kind, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
