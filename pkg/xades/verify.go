package xades

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
)

var (
	// ErrNoSignature is returned when a document carries no ds:Signature.
	ErrNoSignature = errors.New("no ds:Signature element found")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("signature verification failed")
)

// Result describes a verified signature.
type Result struct {
	Packaging   Packaging
	Certificate *x509.Certificate
	SigningTime time.Time
	// Content is the signed document without its signature.
	Content []byte
}

// Verify checks a document produced by Signer. It recomputes every reference
// digest, checks the signing certificate digest in the signed properties and
// verifies the RSA-SHA256 value with the embedded certificate.
func Verify(signed []byte) (*Result, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "parsing signed document")
	}
	root := doc.Root()
	if root == nil {
		return nil, failure.New(failure.DocumentConstructionFailed, "signed document has no root element")
	}

	sig := find(root, func(el *etree.Element) bool { return is(el, NamespaceDSig, "Signature") })
	if sig == nil {
		return nil, ErrNoSignature
	}

	signedInfo := child(sig, NamespaceDSig, "SignedInfo")
	if signedInfo == nil {
		return nil, invalid("missing SignedInfo")
	}
	if alg := algorithm(child(signedInfo, NamespaceDSig, "CanonicalizationMethod")); alg != AlgorithmExcC14N {
		return nil, invalid("unsupported canonicalization %q", alg)
	}
	if alg := algorithm(child(signedInfo, NamespaceDSig, "SignatureMethod")); alg != AlgorithmRSASHA256 {
		return nil, invalid("unsupported signature method %q", alg)
	}

	cert, err := embeddedCertificate(sig)
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, invalid("certificate key is %T, want RSA", cert.PublicKey)
	}

	res := &Result{Certificate: cert}
	var props *etree.Element

	for _, ref := range children(signedInfo, NamespaceDSig, "Reference") {
		if alg := algorithm(child(ref, NamespaceDSig, "DigestMethod")); alg != AlgorithmSHA256 {
			return nil, invalid("unsupported digest method %q", alg)
		}
		want, err := decode(text(child(ref, NamespaceDSig, "DigestValue")))
		if err != nil {
			return nil, invalid("bad digest value: %v", err)
		}

		uri := ref.SelectAttrValue("URI", "")
		var target *etree.Element
		switch {
		case uri == "":
			if sig.Parent() != root || !hasTransform(ref, AlgorithmEnvelopedSignature) {
				return nil, invalid("whole-document reference without an enveloped signature")
			}
			target = root.Copy()
			for _, c := range target.ChildElements() {
				if is(c, NamespaceDSig, "Signature") && c.SelectAttrValue("Id", "") == sig.SelectAttrValue("Id", "") {
					target.RemoveChild(c)
				}
			}
			res.Packaging = Enveloped
			if res.Content, err = serialize(target); err != nil {
				return nil, invalid("serializing content: %v", err)
			}

		case strings.HasPrefix(uri, "#"):
			target = findByID(sig, uri[1:])
			if target == nil {
				return nil, invalid("reference %s does not resolve", uri)
			}
			if ref.SelectAttrValue("Type", "") == TypeSignedProperties {
				props = target
				break
			}
			if sig != root || !is(target, NamespaceDSig, "Object") || len(target.ChildElements()) != 1 {
				return nil, invalid("reference %s is not an enveloped data object", uri)
			}
			res.Packaging = Enveloping
			if res.Content, err = serialize(target.ChildElements()[0]); err != nil {
				return nil, invalid("serializing content: %v", err)
			}

		default:
			return nil, invalid("external reference %q is not supported", uri)
		}

		var got []byte
		if uri == "" {
			got, err = digestDocument(doc, target)
		} else {
			got, err = digest(target)
		}
		if err != nil {
			return nil, invalid("digesting %s: %v", uri, err)
		}
		if !bytes.Equal(got, want) {
			return nil, invalid("digest mismatch for reference %q", uri)
		}
	}

	if res.Packaging == "" {
		return nil, invalid("no data object reference")
	}
	if props == nil || !is(props, NamespaceXAdES, "SignedProperties") {
		return nil, invalid("no signed properties reference")
	}
	if res.SigningTime, err = checkSignedProperties(props, cert); err != nil {
		return nil, err
	}

	value, err := decode(text(child(sig, NamespaceDSig, "SignatureValue")))
	if err != nil {
		return nil, invalid("bad signature value: %v", err)
	}
	toBeSigned, err := canonicalize(signedInfo)
	if err != nil {
		return nil, invalid("canonicalizing SignedInfo: %v", err)
	}
	sum := sha256.Sum256(toBeSigned)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, sum[:], value); err != nil {
		return nil, invalid("signature value does not verify")
	}

	return res, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSignature, fmt.Sprintf(format, args...))
}

func algorithm(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("Algorithm", "")
}

func hasTransform(ref *etree.Element, alg string) bool {
	for _, t := range children(child(ref, NamespaceDSig, "Transforms"), NamespaceDSig, "Transform") {
		if algorithm(t) == alg {
			return true
		}
	}
	return false
}

func embeddedCertificate(sig *etree.Element) (*x509.Certificate, error) {
	el := path(sig, NamespaceDSig, "KeyInfo", "X509Data", "X509Certificate")
	if el == nil {
		return nil, invalid("no X509Certificate in KeyInfo")
	}
	der, err := decode(text(el))
	if err != nil {
		return nil, invalid("bad certificate encoding: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, invalid("bad certificate: %v", err)
	}
	return cert, nil
}

func checkSignedProperties(props *etree.Element, cert *x509.Certificate) (time.Time, error) {
	sigProps := child(props, NamespaceXAdES, "SignedSignatureProperties")
	certEl := path(sigProps, NamespaceXAdES, "SigningCertificate", "Cert")
	digestEl := child(path(certEl, NamespaceXAdES, "CertDigest"), NamespaceDSig, "DigestValue")
	if digestEl == nil {
		return time.Time{}, invalid("no SigningCertificate digest")
	}
	want, err := decode(text(digestEl))
	if err != nil {
		return time.Time{}, invalid("bad certificate digest: %v", err)
	}
	got := sha256.Sum256(cert.Raw)
	if !bytes.Equal(got[:], want) {
		return time.Time{}, invalid("signing certificate digest does not match KeyInfo")
	}

	timeEl := child(sigProps, NamespaceXAdES, "SigningTime")
	if timeEl == nil {
		return time.Time{}, invalid("no SigningTime")
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(text(timeEl)))
	if err != nil {
		return time.Time{}, invalid("bad SigningTime: %v", err)
	}
	return at, nil
}
