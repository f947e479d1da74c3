package xades

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
)

// Signer produces XAdES Baseline-B signatures with RSA-SHA256. It keeps no
// per-document state; one Signer may sign many documents.
type Signer struct {
	key   crypto.Signer
	cert  *x509.Certificate
	now   func() time.Time
	newID func() string
}

// Option configures a Signer
type Option func(*Signer)

// WithClock sets the source of the SigningTime property.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets how the Id attributes of a signature are derived.
// Two signatures made with the same clock, generator, key and document are
// byte-identical.
func WithIDGenerator(newID func() string) Option {
	return func(s *Signer) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewSigner creates a signer for key and its certificate. The key must be RSA
// and must match the certificate's public key.
func NewSigner(key crypto.Signer, cert *x509.Certificate, opts ...Option) (*Signer, error) {
	if key == nil {
		return nil, failure.New(failure.SigningFailed, "private key is required")
	}
	if cert == nil {
		return nil, failure.New(failure.SigningFailed, "certificate is required")
	}

	pub, ok := key.Public().(*rsa.PublicKey)
	if !ok {
		return nil, failure.New(failure.SigningFailed, "RSA-SHA256 requires an RSA key, got %T", key.Public())
	}
	if !pub.Equal(cert.PublicKey) {
		return nil, failure.New(failure.SigningFailed, "private key does not match the certificate of %s", cert.Subject)
	}

	s := &Signer{
		key:   key,
		cert:  cert,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Certificate returns the signing certificate.
func (s *Signer) Certificate() *x509.Certificate {
	return s.cert
}

// Draft is a signature structure waiting for its SignatureValue.
type Draft struct {
	doc        *etree.Document
	value      *etree.Element
	toBeSigned []byte
	packaging  Packaging
}

// ToBeSigned returns the canonical SignedInfo, the exact bytes the
// RSA-SHA256 signature covers.
func (d *Draft) ToBeSigned() []byte {
	return d.toBeSigned
}

// Packaging returns the packaging the draft was built for.
func (d *Draft) Packaging() Packaging {
	return d.packaging
}

// Complete inserts the signature value and serializes the signed document.
// The output is not indented; indentation would change what was signed.
func (d *Draft) Complete(signatureValue []byte) ([]byte, error) {
	if len(signatureValue) == 0 {
		return nil, failure.New(failure.SigningFailed, "empty signature value")
	}
	d.value.SetText(encode(signatureValue))

	canonicalWrite(d.doc)
	out, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "serializing signed document")
	}
	return out, nil
}

// Sign signs document and returns the signed document.
func (s *Signer) Sign(document []byte, packaging Packaging) ([]byte, error) {
	draft, err := s.Prepare(document, packaging)
	if err != nil {
		return nil, err
	}
	value, err := s.SignatureValue(draft.ToBeSigned())
	if err != nil {
		return nil, err
	}
	return draft.Complete(value)
}

// SignatureValue computes RSA-SHA256 over the to-be-signed bytes.
func (s *Signer) SignatureValue(toBeSigned []byte) ([]byte, error) {
	sum := sha256.Sum256(toBeSigned)
	value, err := s.key.Sign(rand.Reader, sum[:], crypto.SHA256)
	if err != nil {
		return nil, failure.Wrap(failure.SigningFailed, err, "computing RSA-SHA256 signature")
	}
	return value, nil
}

type ids struct {
	signature        string
	signedProperties string
	reference        string
	object           string
	value            string
}

func newIDs(base string) ids {
	id := "id-" + base
	return ids{
		signature:        id,
		signedProperties: "xades-" + id,
		reference:        "r-" + id,
		object:           "o-" + id,
		value:            "value-" + id,
	}
}

// Prepare parses document and builds the complete signature structure
// except for the SignatureValue.
func (s *Signer) Prepare(document []byte, packaging Packaging) (*Draft, error) {
	if _, err := ParsePackaging(string(packaging)); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(document); err != nil {
		return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "parsing document")
	}
	root := doc.Root()
	if root == nil {
		return nil, failure.New(failure.DocumentConstructionFailed, "document has no root element")
	}

	id := newIDs(s.newID())

	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", NamespaceDSig)
	sig.CreateAttr("Id", id.signature)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateAttr("xmlns:ds", NamespaceDSig)
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgorithmExcC14N)
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", AlgorithmRSASHA256)

	var object *etree.Element
	switch packaging {
	case Enveloped:
		sum, err := digestDocument(doc, root)
		if err != nil {
			return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "digesting document")
		}
		signedInfo.AddChild(reference(id.reference, "", "", sum, AlgorithmEnvelopedSignature, AlgorithmExcC14N))

	case Enveloping:
		object = etree.NewElement("ds:Object")
		object.CreateAttr("xmlns:ds", NamespaceDSig)
		object.CreateAttr("Id", id.object)
		object.AddChild(root)
		sum, err := digest(object)
		if err != nil {
			return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "digesting document")
		}
		signedInfo.AddChild(reference(id.reference, "#"+id.object, "", sum, AlgorithmExcC14N))
	}

	value := sig.CreateElement("ds:SignatureValue")
	value.CreateAttr("Id", id.value)

	x509Data := sig.CreateElement("ds:KeyInfo").CreateElement("ds:X509Data")
	x509Data.CreateElement("ds:X509Certificate").SetText(encode(s.cert.Raw))

	qualifying := sig.CreateElement("ds:Object").CreateElement("xades:QualifyingProperties")
	qualifying.CreateAttr("xmlns:xades", NamespaceXAdES)
	qualifying.CreateAttr("Target", "#"+id.signature)

	props := s.signedProperties(id)
	qualifying.AddChild(props)
	sum, err := digest(props)
	if err != nil {
		return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "digesting signed properties")
	}
	signedInfo.AddChild(reference("", "#"+id.signedProperties, TypeSignedProperties, sum, AlgorithmExcC14N))

	if object != nil {
		sig.AddChild(object)
	}

	toBeSigned, err := canonicalize(signedInfo)
	if err != nil {
		return nil, failure.Wrap(failure.DocumentConstructionFailed, err, "canonicalizing SignedInfo")
	}

	switch packaging {
	case Enveloped:
		root.AddChild(sig)
	case Enveloping:
		out := etree.NewDocument()
		out.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		out.SetRoot(sig)
		doc = out
	}

	return &Draft{
		doc:        doc,
		value:      value,
		toBeSigned: toBeSigned,
		packaging:  packaging,
	}, nil
}

func reference(id, uri, typ string, sum []byte, transforms ...string) *etree.Element {
	ref := etree.NewElement("ds:Reference")
	if id != "" {
		ref.CreateAttr("Id", id)
	}
	if typ != "" {
		ref.CreateAttr("Type", typ)
	}
	ref.CreateAttr("URI", uri)

	t := ref.CreateElement("ds:Transforms")
	for _, alg := range transforms {
		t.CreateElement("ds:Transform").CreateAttr("Algorithm", alg)
	}
	ref.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgorithmSHA256)
	ref.CreateElement("ds:DigestValue").SetText(encode(sum))
	return ref
}

// signedProperties builds xades:SignedProperties. Both prefixes are declared
// on the element itself so it canonicalizes the same in and out of context.
func (s *Signer) signedProperties(id ids) *etree.Element {
	props := etree.NewElement("xades:SignedProperties")
	props.CreateAttr("xmlns:xades", NamespaceXAdES)
	props.CreateAttr("xmlns:ds", NamespaceDSig)
	props.CreateAttr("Id", id.signedProperties)

	sigProps := props.CreateElement("xades:SignedSignatureProperties")
	sigProps.CreateElement("xades:SigningTime").SetText(s.now().UTC().Format(time.RFC3339))

	certDigest := sha256.Sum256(s.cert.Raw)
	cert := sigProps.CreateElement("xades:SigningCertificate").CreateElement("xades:Cert")
	digestEl := cert.CreateElement("xades:CertDigest")
	digestEl.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgorithmSHA256)
	digestEl.CreateElement("ds:DigestValue").SetText(encode(certDigest[:]))
	issuerSerial := cert.CreateElement("xades:IssuerSerial")
	issuerSerial.CreateElement("ds:X509IssuerName").SetText(s.cert.Issuer.String())
	issuerSerial.CreateElement("ds:X509SerialNumber").SetText(s.cert.SerialNumber.String())

	format := props.CreateElement("xades:SignedDataObjectProperties").CreateElement("xades:DataObjectFormat")
	format.CreateAttr("ObjectReference", "#"+id.reference)
	format.CreateElement("xades:MimeType").SetText(ContentMIMEType)

	return props
}
