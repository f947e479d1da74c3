// Package xades produces and checks XAdES Baseline-B signatures
package xades

import (
	"strings"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
)

// Namespaces
const (
	NamespaceDSig  = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"
)

// Algorithm identifiers. The suite is fixed: SHA-256 digests, RSA-SHA256
// signatures and exclusive canonicalization without comments.
const (
	AlgorithmSHA256             = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmRSASHA256          = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmExcC14N            = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmEnvelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	TypeSignedProperties = "http://uri.etsi.org/01903#SignedProperties"
)

// ContentMIMEType is declared for the signed data object.
const ContentMIMEType = "text/xml"

// Packaging places the signature relative to the signed document.
type Packaging string

const (
	// Enveloped appends the signature as the last child of the document root.
	Enveloped Packaging = "enveloped"
	// Enveloping makes the signature the document root and carries the
	// original document inside a ds:Object.
	Enveloping Packaging = "enveloping"
)

// DefaultPackaging is used when the caller does not choose.
const DefaultPackaging = Enveloped

// ParsePackaging accepts "enveloped" or "enveloping" in any case.
func ParsePackaging(s string) (Packaging, error) {
	switch p := Packaging(strings.ToLower(strings.TrimSpace(s))); p {
	case Enveloped, Enveloping:
		return p, nil
	default:
		return "", failure.New(failure.DocumentConstructionFailed, "unknown signature packaging %q, want %q or %q", s, Enveloped, Enveloping)
	}
}

func (p Packaging) String() string {
	return string(p)
}
