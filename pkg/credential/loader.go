package credential

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/youmark/pkcs8"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
	"github.com/sirosfoundation/go-regpack/pkg/pemblock"
)

var (
	oidRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidEC      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
	oidX25519  = asn1.ObjectIdentifier{1, 3, 101, 110}
	oidPBES2   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
)

// Loader turns resolved material into a certificate or a signing key. It
// holds no key state and is safe for concurrent use.
type Loader struct {
	reader Reader
	logger zerolog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithReader sets how locators are read. The default reads local files.
func WithReader(r Reader) LoaderOption {
	return func(l *Loader) {
		if r != nil {
			l.reader = r
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		reader: FileReader{},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// text returns the normalized PEM text behind m, reading it through the
// locator when needed.
func (l *Loader) text(m RawMaterial) (pemblock.Normalized, error) {
	switch m.Source {
	case SourceInline:
		if pemblock.HasEscapedNewlines(m.Value) {
			l.logger.Debug().Str("role", string(m.Role)).Msg("inline credential has escaped newlines")
		}
		return pemblock.Normalize(m.Value), nil

	case SourceLocator:
		label := locatorLabel(m.Value)
		l.logger.Debug().Str("role", string(m.Role)).Str("locator", label).Msg("reading credential")
		data, err := l.reader.ReadCredential(m.Value)
		if err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				err = pathErr.Err
			}
			return "", failure.Wrap(failure.MissingCredential, err, "%s: cannot read locator %s", m.Role, label)
		}
		defer clear(data)
		return pemblock.Normalize(string(data)), nil

	default:
		return "", failure.New(failure.MissingCredential, "%s: no credential source", m.Role)
	}
}

// maxLocatorLabel bounds how long a locator may be and still be quoted in
// messages.
const maxLocatorLabel = 512

// locatorLabel renders a locator for messages and logs. Values that cannot be
// a path, such as PEM text with a preamble, are reduced to their length.
func locatorLabel(v string) string {
	if len(v) > maxLocatorLabel || strings.ContainsAny(v, "\r\n") || strings.Contains(v, "-----") {
		return fmt.Sprintf("(%d bytes, not a path)", len(v))
	}
	return strconv.Quote(v)
}

// Certificate loads the X.509 certificate behind m.
func (l *Loader) Certificate(m RawMaterial) (*x509.Certificate, error) {
	n, err := l.text(m)
	if err != nil {
		return nil, err
	}

	block, err := pemblock.Decode(n, pemblock.Certificate)
	if err != nil {
		return nil, err
	}

	cert, err := x509.ParseCertificate(block.DER)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidCertificate, err, "cannot parse certificate")
	}
	return cert, nil
}

// PrivateKey loads the private key behind m. password is only used for
// encrypted PKCS#8 keys, for which it is mandatory.
func (l *Loader) PrivateKey(m RawMaterial, password string) (*SigningKey, error) {
	n, err := l.text(m)
	if err != nil {
		return nil, err
	}

	block, err := pemblock.DecodeKey(n)
	if err != nil {
		return nil, err
	}
	defer block.Wipe()

	l.logger.Debug().Str("format", block.Kind.String()).Msg("decoding private key")

	var signer crypto.Signer
	switch block.Kind {
	case pemblock.PKCS8EncryptedPrivateKey:
		signer, err = decryptPKCS8(block.DER, password)
	case pemblock.PKCS8PrivateKey:
		signer, err = parsePKCS8(block.DER)
	case pemblock.PKCS1PrivateKey:
		signer, err = parsePKCS1(block.DER)
	default:
		err = failure.New(failure.UnsupportedKeyFormat, "unsupported private key format %s", block.Kind)
	}
	if err != nil {
		return nil, err
	}

	return newSigningKey(signer), nil
}

type encryptedPKCS8 struct {
	Algo          pkix.AlgorithmIdentifier
	EncryptedData []byte
}

// decryptPKCS8 decrypts a PBES2 EncryptedPrivateKeyInfo. The legacy PBES1
// and PKCS#12 schemes are reported as unsupported rather than as a wrong
// password.
func decryptPKCS8(der []byte, password string) (crypto.Signer, error) {
	var info encryptedPKCS8
	if rest, err := asn1.Unmarshal(der, &info); err != nil || len(rest) > 0 {
		return nil, failure.New(failure.MalformedPem, "encrypted private key is not a PKCS#8 structure")
	}
	if !info.Algo.Algorithm.Equal(oidPBES2) {
		return nil, failure.New(failure.UnsupportedKeyFormat, "private key encryption scheme %s is not supported, re-encrypt with PBES2", info.Algo.Algorithm)
	}

	if password == "" {
		return nil, failure.New(failure.PasswordRequired, "private key is encrypted and no password was supplied")
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(der, []byte(password))
	if err != nil {
		return nil, failure.Wrap(failure.DecryptionFailed, err, "cannot decrypt private key")
	}
	return asSigner(key)
}

func parsePKCS8(der []byte) (crypto.Signer, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		if oid, ok := pkcs8Algorithm(der); ok && !knownAlgorithm(oid) {
			return nil, failure.New(failure.UnsupportedKeyAlgorithm, "private key algorithm %s is not supported", oid)
		}
		return nil, failure.Wrap(failure.MalformedPem, err, "cannot parse PKCS#8 private key")
	}
	return asSigner(key)
}

func asSigner(key any) (crypto.Signer, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, failure.New(failure.UnsupportedKeyAlgorithm, "private key of type %T cannot sign", key)
	}
	return signer, nil
}

type pkcs8Info struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

func pkcs8Algorithm(der []byte) (asn1.ObjectIdentifier, bool) {
	var info pkcs8Info
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, false
	}
	return info.Algo.Algorithm, true
}

func knownAlgorithm(oid asn1.ObjectIdentifier) bool {
	for _, known := range []asn1.ObjectIdentifier{oidRSA, oidEC, oidEd25519, oidX25519} {
		if oid.Equal(known) {
			return true
		}
	}
	return false
}

// pkcs1Key is the RSAPrivateKey structure of RFC 8017 appendix A.1.2.
type pkcs1Key struct {
	Version          int
	N                *big.Int
	E                int
	D                *big.Int
	P                *big.Int
	Q                *big.Int
	Dp               *big.Int
	Dq               *big.Int
	Qinv             *big.Int
	AdditionalPrimes []asn1.RawValue `asn1:"optional,omitempty"`
}

// parsePKCS1 rebuilds an RSA private key from the eight integers of the
// legacy structure.
func parsePKCS1(der []byte) (crypto.Signer, error) {
	var raw pkcs1Key
	rest, err := asn1.Unmarshal(der, &raw)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedPem, err, "cannot parse PKCS#1 private key")
	}
	if len(rest) > 0 {
		return nil, failure.New(failure.MalformedPem, "trailing data after PKCS#1 private key")
	}
	if raw.Version != 0 || len(raw.AdditionalPrimes) > 0 {
		return nil, failure.New(failure.UnsupportedKeyFormat, "multi-prime RSA private keys are not supported")
	}
	for _, v := range []*big.Int{raw.N, raw.D, raw.P, raw.Q, raw.Dp, raw.Dq, raw.Qinv} {
		if v == nil || v.Sign() <= 0 {
			return nil, failure.New(failure.MalformedPem, "PKCS#1 private key has a non-positive parameter")
		}
	}
	if raw.E <= 1 {
		return nil, failure.New(failure.MalformedPem, "PKCS#1 private key has an invalid public exponent")
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: raw.N, E: raw.E},
		D:         raw.D,
		Primes:    []*big.Int{raw.P, raw.Q},
	}
	key.Precomputed.Dp = raw.Dp
	key.Precomputed.Dq = raw.Dq
	key.Precomputed.Qinv = raw.Qinv

	if err := key.Validate(); err != nil {
		return nil, failure.Wrap(failure.MalformedPem, err, "PKCS#1 private key parameters are inconsistent")
	}
	key.Precompute()
	return key, nil
}

// describeKey names the algorithm of a public key for logs and metadata.
func describeKey(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA-%d", k.N.BitLen())
	default:
		return keyAlgorithmName(pub)
	}
}
