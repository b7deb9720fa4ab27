package models

import "fmt"

// Kind classifies an error at a component boundary. Kinds are
// distinguished where callers need to branch on them (retry, surface to
// user, fail boot); they are not exhaustive in the interior of any one
// component.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindAuthMismatch      Kind = "AuthMismatch"
	KindStoreIO           Kind = "StoreIO"
	KindStoreConstraint   Kind = "StoreConstraint"
	KindStoreCorrupt      Kind = "StoreCorrupt"
	KindProviderAuth      Kind = "ProviderAuth"
	KindProviderRequest   Kind = "ProviderRequest"
	KindProviderTransient Kind = "ProviderTransient"
	KindTimeout           Kind = "Timeout"
	KindCancelled         Kind = "Cancelled"
)

// Error is the typed error value threaded across component boundaries,
// grounded on the provider package's ProviderError shape: a Kind plus a
// human-readable message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Cause.Error())
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a typed Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a typed Error of the given Kind around a cause.
func Wrap(kind Kind, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == kind
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
