// Package failure defines the closed set of failure kinds produced while
// preparing a regulatory submission.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies one failure class of the pipeline.
type Kind string

const (
	MissingCredential          Kind = "MissingCredential"
	MalformedPem               Kind = "MalformedPem"
	UnsupportedKeyFormat       Kind = "UnsupportedKeyFormat"
	UnsupportedKeyAlgorithm    Kind = "UnsupportedKeyAlgorithm"
	PasswordRequired           Kind = "PasswordRequired"
	DecryptionFailed           Kind = "DecryptionFailed"
	InvalidCertificate         Kind = "InvalidCertificate"
	SigningFailed              Kind = "SigningFailed"
	DocumentConstructionFailed Kind = "DocumentConstructionFailed"
	InvalidPassword            Kind = "InvalidPassword"
	ArchiveWriteFailed         Kind = "ArchiveWriteFailed"
)

// Category separates failures the operator fixes in configuration from
// failures caused by the shape of the inputs or the environment.
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryStructural    Category = "structural"
)

// Kinds lists every kind in taxonomy order.
func Kinds() []Kind {
	return []Kind{
		MissingCredential,
		MalformedPem,
		UnsupportedKeyFormat,
		UnsupportedKeyAlgorithm,
		PasswordRequired,
		DecryptionFailed,
		InvalidCertificate,
		SigningFailed,
		DocumentConstructionFailed,
		InvalidPassword,
		ArchiveWriteFailed,
	}
}

// Category reports whether k is a configuration or a structural failure.
func (k Kind) Category() Category {
	switch k {
	case MalformedPem, UnsupportedKeyFormat, DocumentConstructionFailed, ArchiveWriteFailed:
		return CategoryStructural
	default:
		return CategoryConfiguration
	}
}

func (k Kind) String() string {
	return string(k)
}

// Error is a failure of a specific kind. Err, when set, is the underlying
// cause and is reachable through errors.Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind that carries err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err,
// &Error{Kind: SigningFailed}) works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
