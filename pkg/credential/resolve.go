// Package credential resolves and loads signing credentials
package credential

import (
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/pemblock"
)

// Role names the credential being resolved in messages and logs.
type Role string

const (
	RoleCertificate Role = "Certificate"
	RolePrivateKey  Role = "Private Key"
)

// Reference is the pair of optional inputs a caller may use to supply one
// credential: a locator (a file path) and inline PEM content.
type Reference struct {
	Locator string
	Inline  string
}

// SourceKind records how a resolved value must be read.
type SourceKind int

const (
	SourceLocator SourceKind = iota + 1
	SourceInline
)

func (k SourceKind) String() string {
	switch k {
	case SourceLocator:
		return "locator"
	case SourceInline:
		return "inline"
	default:
		return "unknown"
	}
}

// RawMaterial is the selected value for one credential. For SourceInline the
// value is PEM text; for SourceLocator it names where the PEM text lives.
type RawMaterial struct {
	Role   Role
	Value  string
	Source SourceKind
}

// Resolution is the result of Resolve. Warning is set when both inputs were
// supplied and the locator was preferred.
type Resolution struct {
	Material RawMaterial
	Warning  string
}

// Classify decides whether value is inline PEM or a locator.
func Classify(value string) SourceKind {
	if pemblock.IsPEM(value) {
		return SourceInline
	}
	return SourceLocator
}

// Resolve selects the effective value of ref. A field counts as present when
// it is non-empty after trimming. With both present the locator wins and a
// warning is returned; with neither present the result is MissingCredential.
func Resolve(ref Reference, role Role) (Resolution, error) {
	hasLocator := strings.TrimSpace(ref.Locator) != ""
	hasInline := strings.TrimSpace(ref.Inline) != ""

	var (
		value   string
		warning string
	)
	switch {
	case hasLocator && hasInline:
		value = ref.Locator
		warning = fmt.Sprintf("both a locator and inline content were supplied for %s; using the locator", role)
	case hasLocator:
		value = ref.Locator
	case hasInline:
		value = ref.Inline
	default:
		return Resolution{}, failure.New(failure.MissingCredential, "%s: neither a locator nor inline content was supplied", role)
	}

	return Resolution{
		Material: RawMaterial{Role: role, Value: value, Source: Classify(value)},
		Warning:  warning,
	}, nil
}
