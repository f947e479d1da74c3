// Package pemblock normalizes and decodes PEM text
package pemblock

import (
	"encoding/base64"
	"encoding/pem"
	"regexp"
	"strings"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
)

const beginMarker = "-----BEGIN"

// Kind is the type of object a PEM block carries.
type Kind int

const (
	Certificate Kind = iota + 1
	PKCS1PrivateKey
	PKCS8PrivateKey
	PKCS8EncryptedPrivateKey
)

// Label returns the PEM label used in the BEGIN and END lines.
func (k Kind) Label() string {
	switch k {
	case Certificate:
		return "CERTIFICATE"
	case PKCS1PrivateKey:
		return "RSA PRIVATE KEY"
	case PKCS8PrivateKey:
		return "PRIVATE KEY"
	case PKCS8EncryptedPrivateKey:
		return "ENCRYPTED PRIVATE KEY"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case Certificate:
		return "Certificate"
	case PKCS1PrivateKey:
		return "Pkcs1PrivateKey"
	case PKCS8PrivateKey:
		return "Pkcs8PrivateKey"
	case PKCS8EncryptedPrivateKey:
		return "Pkcs8EncryptedPrivateKey"
	default:
		return "Unknown"
	}
}

// Block is one decoded PEM object. DER is the base64-decoded body found
// strictly between the BEGIN and END lines of the same label.
type Block struct {
	Kind Kind
	DER  []byte
}

// Wipe overwrites the DER payload.
func (b *Block) Wipe() {
	if b == nil {
		return
	}
	clear(b.DER)
	b.DER = nil
}

// Normalized is PEM text that went through Normalize.
type Normalized string

// Normalize repairs the line-ending damage secret managers and copy/paste do
// to PEM text. In order: surrounding whitespace is trimmed, literal "\n"
// escapes become newlines when the text has no real newline, literal "\r"
// escapes are dropped, and CRLF and bare CR become LF. The steps repeat until
// the text stops changing, so Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) Normalized {
	for {
		next := normalizeOnce(text)
		if next == text {
			return Normalized(next)
		}
		text = next
	}
}

func normalizeOnce(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, `\n`) && !strings.Contains(s, "\n") {
		s = strings.ReplaceAll(s, `\n`, "\n")
	}
	s = strings.ReplaceAll(s, `\r`, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// HasEscapedNewlines reports whether text carries literal "\n" escapes and no
// real newline, which is the shape secret managers flatten PEM into.
func HasEscapedNewlines(text string) bool {
	return strings.Contains(text, `\n`) && !strings.Contains(text, "\n")
}

// IsPEM reports whether text, after leading whitespace, starts with a BEGIN
// marker.
func IsPEM(text string) bool {
	return strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), beginMarker)
}

var (
	labelPattern = regexp.MustCompile(`-----BEGIN ([A-Z0-9 ]+)-----`)
	whitespace   = regexp.MustCompile(`\s+`)
)

func blockPattern(label string) *regexp.Regexp {
	q := regexp.QuoteMeta(label)
	return regexp.MustCompile(`(?s)-----BEGIN ` + q + `-----\s*(.+?)\s*-----END ` + q + `-----`)
}

// Decode extracts the first block of the given kind from n.
func Decode(n Normalized, kind Kind) (*Block, error) {
	label := kind.Label()
	if label == "" {
		return nil, failure.New(failure.UnsupportedKeyFormat, "unknown PEM object kind %d", int(kind))
	}
	text := string(n)
	if !strings.Contains(text, beginMarker) {
		return nil, failure.New(failure.MalformedPem, "no BEGIN marker found (%d characters of input)", len(text))
	}

	m := blockPattern(label).FindStringSubmatch(text)
	if m == nil {
		return nil, failure.New(failure.MalformedPem, "no matching BEGIN/END %s pair found", label)
	}

	body := whitespace.ReplaceAllString(m[1], "")
	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedPem, err, "invalid base64 in %s block", label)
	}
	if len(der) == 0 {
		return nil, failure.New(failure.MalformedPem, "empty %s block", label)
	}

	return &Block{Kind: kind, DER: der}, nil
}

// Labels returns the labels of every BEGIN line in n, in order.
func Labels(n Normalized) []string {
	var labels []string
	for _, m := range labelPattern.FindAllStringSubmatch(string(n), -1) {
		labels = append(labels, m[1])
	}
	return labels
}

// DetectKey picks the private key kind carried by n. Detection looks at the
// BEGIN lines only, preferring encrypted PKCS#8, then PKCS#8, then PKCS#1.
func DetectKey(n Normalized) (Kind, error) {
	labels := Labels(n)
	if len(labels) == 0 {
		return 0, failure.New(failure.MalformedPem, "no BEGIN marker found in private key input")
	}

	for _, kind := range []Kind{PKCS8EncryptedPrivateKey, PKCS8PrivateKey, PKCS1PrivateKey} {
		for _, l := range labels {
			if l == kind.Label() {
				return kind, nil
			}
		}
	}
	return 0, failure.New(failure.UnsupportedKeyFormat, "unsupported private key format %q", strings.Join(labels, ", "))
}

// DecodeKey detects the key kind in n and decodes that block.
func DecodeKey(n Normalized) (*Block, error) {
	kind, err := DetectKey(n)
	if err != nil {
		return nil, err
	}
	return Decode(n, kind)
}

// Encode renders der as a PEM block of the given kind.
func Encode(kind Kind, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: kind.Label(), Bytes: der}))
}
