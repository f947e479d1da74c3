package xades

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-regpack/internal/testpki"
	"github.com/sirosfoundation/go-regpack/pkg/failure"
)

const invoice = `<invoice xmlns="urn:example:invoice" xmlns:tax="urn:example:tax"><id>42</id><amount currency="EUR">10.00</amount><tax:rate>0.25</tax:rate></invoice>`

var signingTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedIDs() func() string {
	return func() string { return "7b0c6a52-1f3e-4c59-9a57-0d2b8f6f4e11" }
}

func newTestSigner(t *testing.T, id *testpki.Identity) *Signer {
	t.Helper()
	s, err := NewSigner(id.Key, id.Certificate, WithClock(func() time.Time { return signingTime }), WithIDGenerator(fixedIDs()))
	require.NoError(t, err)
	return s
}

func parse(t *testing.T, b []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(b))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func TestSign_Enveloped(t *testing.T) {
	id := testpki.MustRSA("enveloped signer")
	signed, err := newTestSigner(t, id).Sign([]byte(invoice), Enveloped)
	require.NoError(t, err)

	root := parse(t, signed)
	assert.Equal(t, "invoice", root.Tag)
	kids := root.ChildElements()
	last := kids[len(kids)-1]
	assert.True(t, is(last, NamespaceDSig, "Signature"), "signature must be the last child of the root")

	refs := children(child(last, NamespaceDSig, "SignedInfo"), NamespaceDSig, "Reference")
	require.Len(t, refs, 2)
	assert.Equal(t, "", refs[0].SelectAttrValue("URI", "-"))
	assert.True(t, hasTransform(refs[0], AlgorithmEnvelopedSignature))
	assert.True(t, hasTransform(refs[0], AlgorithmExcC14N))
	assert.Equal(t, TypeSignedProperties, refs[1].SelectAttrValue("Type", ""))

	res, err := Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, Enveloped, res.Packaging)
	assert.Equal(t, invoice, string(res.Content))
	assert.True(t, signingTime.Equal(res.SigningTime))
	assert.Equal(t, id.Certificate.Raw, res.Certificate.Raw)
}

func TestSign_Enveloping(t *testing.T) {
	id := testpki.MustRSA("enveloping signer")
	signed, err := newTestSigner(t, id).Sign([]byte(`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+invoice), Enveloping)
	require.NoError(t, err)

	root := parse(t, signed)
	assert.True(t, is(root, NamespaceDSig, "Signature"), "signature must be the document root")

	var data *etree.Element
	for _, obj := range children(root, NamespaceDSig, "Object") {
		if strings.HasPrefix(obj.SelectAttrValue("Id", ""), "o-") {
			data = obj
		}
	}
	require.NotNil(t, data)
	require.Len(t, data.ChildElements(), 1)
	assert.Equal(t, "invoice", data.ChildElements()[0].Tag)

	refs := children(child(root, NamespaceDSig, "SignedInfo"), NamespaceDSig, "Reference")
	require.Len(t, refs, 2)
	assert.Equal(t, "#"+data.SelectAttrValue("Id", ""), refs[0].SelectAttrValue("URI", ""))

	res, err := Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, Enveloping, res.Packaging)
	assert.Equal(t, invoice, string(res.Content))
}

func TestSign_QualifyingProperties(t *testing.T) {
	id := testpki.MustRSA("properties signer")
	signed, err := newTestSigner(t, id).Sign([]byte(invoice), Enveloped)
	require.NoError(t, err)

	sig := find(parse(t, signed), func(el *etree.Element) bool { return is(el, NamespaceDSig, "Signature") })
	require.NotNil(t, sig)
	assert.Equal(t, "id-7b0c6a52-1f3e-4c59-9a57-0d2b8f6f4e11", sig.SelectAttrValue("Id", ""))

	qp := find(sig, func(el *etree.Element) bool { return is(el, NamespaceXAdES, "QualifyingProperties") })
	require.NotNil(t, qp)
	assert.Equal(t, "#"+sig.SelectAttrValue("Id", ""), qp.SelectAttrValue("Target", ""))

	props := child(qp, NamespaceXAdES, "SignedProperties")
	require.NotNil(t, props)
	sigProps := child(props, NamespaceXAdES, "SignedSignatureProperties")
	assert.Equal(t, "2026-03-14T09:26:53Z", text(child(sigProps, NamespaceXAdES, "SigningTime")))

	serial := path(sigProps, NamespaceXAdES, "SigningCertificate", "Cert", "IssuerSerial")
	require.NotNil(t, serial)
	assert.Equal(t, id.Certificate.SerialNumber.String(), text(child(serial, NamespaceDSig, "X509SerialNumber")))

	format := path(props, NamespaceXAdES, "SignedDataObjectProperties", "DataObjectFormat")
	require.NotNil(t, format)
	assert.Equal(t, ContentMIMEType, text(child(format, NamespaceXAdES, "MimeType")))
	assert.Equal(t, "#r-id-7b0c6a52-1f3e-4c59-9a57-0d2b8f6f4e11", format.SelectAttrValue("ObjectReference", ""))

	certEl := path(sig, NamespaceDSig, "KeyInfo", "X509Data", "X509Certificate")
	require.NotNil(t, certEl)
	der, err := decode(text(certEl))
	require.NoError(t, err)
	assert.Equal(t, id.Certificate.Raw, der)
}

func TestSign_Deterministic(t *testing.T) {
	id := testpki.MustRSA("deterministic signer")
	for _, p := range []Packaging{Enveloped, Enveloping} {
		a, err := newTestSigner(t, id).Sign([]byte(invoice), p)
		require.NoError(t, err)
		b, err := newTestSigner(t, id).Sign([]byte(invoice), p)
		require.NoError(t, err)
		assert.Equal(t, a, b, "packaging %s", p)
	}
}

func TestSign_DefaultIDsAreUnique(t *testing.T) {
	id := testpki.MustRSA("uuid signer")
	s, err := NewSigner(id.Key, id.Certificate)
	require.NoError(t, err)

	a, err := s.Sign([]byte(invoice), Enveloped)
	require.NoError(t, err)
	b, err := s.Sign([]byte(invoice), Enveloped)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = Verify(a)
	assert.NoError(t, err)
}

func TestPrepareComplete_MatchesSign(t *testing.T) {
	id := testpki.MustRSA("split signer")
	s := newTestSigner(t, id)

	draft, err := s.Prepare([]byte(invoice), Enveloping)
	require.NoError(t, err)
	assert.Equal(t, Enveloping, draft.Packaging())
	assert.True(t, bytes.HasPrefix(draft.ToBeSigned(), []byte("<ds:SignedInfo")))

	value, err := s.SignatureValue(draft.ToBeSigned())
	require.NoError(t, err)
	split, err := draft.Complete(value)
	require.NoError(t, err)

	whole, err := s.Sign([]byte(invoice), Enveloping)
	require.NoError(t, err)
	assert.Equal(t, whole, split)

	_, err = draft.Complete(nil)
	assert.True(t, failure.IsKind(err, failure.SigningFailed))
}

func TestSign_DocumentShapes(t *testing.T) {
	id := testpki.MustRSA("shapes signer")
	s := newTestSigner(t, id)

	docs := map[string]string{
		"declaration and indentation": "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<root>\n  <item n=\"1\">a &amp; b</item>\n  <item n=\"2\"><![CDATA[<raw>]]></item>\n</root>\n",
		"prefixed root":               `<p:lote xmlns:p="urn:example:p" version="2"><p:doc>x</p:doc></p:lote>`,
		"comments":                    `<root><!-- note --><v>1</v></root>`,
		"single element":              `<empty></empty>`,
		"carriage return references":  `<root><x a="t&#9;u&#13;v">a&#13;b&#13;&#10;c</x></root>`,
		"stylesheet instruction":      "<?xml version=\"1.0\"?>\n<?xml-stylesheet href=\"s.xsl\"?>\n<root><v>1</v></root>",
	}

	for name, doc := range docs {
		for _, p := range []Packaging{Enveloped, Enveloping} {
			t.Run(fmt.Sprintf("%s/%s", name, p), func(t *testing.T) {
				signed, err := s.Sign([]byte(doc), p)
				require.NoError(t, err)
				res, err := Verify(signed)
				require.NoError(t, err)
				assert.Equal(t, p, res.Packaging)
			})
		}
	}
}

func TestSign_CarriageReturnsSurviveSerialization(t *testing.T) {
	s := newTestSigner(t, testpki.MustRSA("cr signer"))

	for _, p := range []Packaging{Enveloped, Enveloping} {
		t.Run(string(p), func(t *testing.T) {
			signed, err := s.Sign([]byte(`<root><x a="1&#13;2">a&#13;b</x></root>`), p)
			require.NoError(t, err)
			assert.NotContains(t, string(signed), "\r")
			assert.Contains(t, string(signed), "a&#xD;b")
			assert.Contains(t, string(signed), `a="1&#xD;2"`)

			res, err := Verify(signed)
			require.NoError(t, err)
			x := parse(t, res.Content).SelectElement("x")
			require.NotNil(t, x)
			assert.Equal(t, "a\rb", x.Text())
			assert.Equal(t, "1\r2", x.SelectAttrValue("a", ""))
		})
	}
}

func TestSign_EnvelopedCoversProcessingInstructions(t *testing.T) {
	s := newTestSigner(t, testpki.MustRSA("pi signer"))
	document := "<?xml version=\"1.0\"?>\n<?xml-stylesheet type=\"text/xsl\" href=\"s.xsl\"?>\n<root><x>1</x></root>\n<?trailer done?>\n"

	signed, err := s.Sign([]byte(document), Enveloped)
	require.NoError(t, err)
	assert.Contains(t, string(signed), `<?xml-stylesheet type="text/xsl" href="s.xsl"?>`)

	var digestValue string
	for _, ref := range children(child(find(parse(t, signed), func(el *etree.Element) bool {
		return is(el, NamespaceDSig, "Signature")
	}), NamespaceDSig, "SignedInfo"), NamespaceDSig, "Reference") {
		if ref.SelectAttrValue("URI", "-") == "" {
			digestValue = text(child(ref, NamespaceDSig, "DigestValue"))
		}
	}
	want := sha256.Sum256([]byte("<?xml-stylesheet type=\"text/xsl\" href=\"s.xsl\"?>\n<root><x>1</x></root>\n<?trailer done?>"))
	assert.Equal(t, encode(want[:]), digestValue)

	_, err = Verify(signed)
	require.NoError(t, err)

	tampered := map[string]string{
		"stylesheet changed": strings.Replace(string(signed), `href="s.xsl"`, `href="evil.xsl"`, 1),
		"stylesheet removed": strings.Replace(string(signed), `<?xml-stylesheet type="text/xsl" href="s.xsl"?>`, "", 1),
		"trailer removed":    strings.Replace(string(signed), "<?trailer done?>", "", 1),
		"instruction added":  strings.Replace(string(signed), "<root>", "<?extra?><root>", 1),
	}
	for name, doc := range tampered {
		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, string(signed), doc)
			_, err := Verify([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	id := testpki.MustRSA("tamper signer")
	other := testpki.MustRSA("other signer")

	for _, p := range []Packaging{Enveloped, Enveloping} {
		signed, err := newTestSigner(t, id).Sign([]byte(invoice), p)
		require.NoError(t, err)

		otherCert := encode(other.Certificate.Raw)
		ownCert := encode(id.Certificate.Raw)

		cases := map[string]string{
			"content":       strings.Replace(string(signed), "10.00", "99.00", 1),
			"signing time":  strings.Replace(string(signed), "2026-03-14T09:26:53Z", "2026-03-15T09:26:53Z", 1),
			"certificate":   strings.Replace(string(signed), ownCert, otherCert, 1),
			"mime type":     strings.Replace(string(signed), "<xades:MimeType>text/xml", "<xades:MimeType>text/plain", 1),
			"value removed": removeSignatureValue(t, signed),
		}
		for name, tampered := range cases {
			t.Run(fmt.Sprintf("%s/%s", p, name), func(t *testing.T) {
				require.NotEqual(t, string(signed), tampered)
				_, err := Verify([]byte(tampered))
				assert.ErrorIs(t, err, ErrInvalidSignature)
			})
		}
	}
}

func removeSignatureValue(t *testing.T, signed []byte) string {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	el := find(doc.Root(), func(el *etree.Element) bool { return is(el, NamespaceDSig, "SignatureValue") })
	require.NotNil(t, el)
	el.SetText("")
	out, err := doc.WriteToBytes()
	require.NoError(t, err)
	return string(out)
}

func TestVerify_Errors(t *testing.T) {
	_, err := Verify([]byte(invoice))
	assert.ErrorIs(t, err, ErrNoSignature)

	_, err = Verify([]byte("<broken"))
	assert.True(t, failure.IsKind(err, failure.DocumentConstructionFailed))
}

func TestNewSigner_Errors(t *testing.T) {
	rsaID := testpki.MustRSA("rsa signer")
	otherID := testpki.MustRSA("other signer")
	ecID := testpki.MustEC("ec signer")

	tests := []struct {
		name string
		id   *testpki.Identity
		cert *x509.Certificate
	}{
		{"ec key", ecID, ecID.Certificate},
		{"certificate mismatch", rsaID, otherID.Certificate},
		{"nil certificate", rsaID, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(tt.id.Key, tt.cert)
			require.Error(t, err)
			assert.True(t, failure.IsKind(err, failure.SigningFailed), "got %v", err)
		})
	}

	_, err := NewSigner(nil, rsaID.Certificate)
	assert.True(t, failure.IsKind(err, failure.SigningFailed))
}

func TestSign_DocumentErrors(t *testing.T) {
	s := newTestSigner(t, testpki.MustRSA("doc errors"))

	tests := []struct {
		name      string
		doc       string
		packaging Packaging
	}{
		{"malformed", "<a><b></a>", Enveloped},
		{"empty", "", Enveloped},
		{"whitespace only", "  \n", Enveloping},
		{"text only", "just text", Enveloped},
		{"unknown packaging", invoice, Packaging("detached")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sign([]byte(tt.doc), tt.packaging)
			require.Error(t, err)
			assert.True(t, failure.IsKind(err, failure.DocumentConstructionFailed), "got %v", err)
		})
	}
}

func TestParsePackaging(t *testing.T) {
	p, err := ParsePackaging(" Enveloping ")
	require.NoError(t, err)
	assert.Equal(t, Enveloping, p)

	p, err = ParsePackaging("enveloped")
	require.NoError(t, err)
	assert.Equal(t, Enveloped, p)

	_, err = ParsePackaging("")
	assert.True(t, failure.IsKind(err, failure.DocumentConstructionFailed))
}
