package testpki

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/youmark/pkcs8"

	"github.com/sirosfoundation/go-regpack/pkg/pemblock"
)

// Identity is a key pair with a self-signed certificate.
type Identity struct {
	Key         crypto.Signer
	Certificate *x509.Certificate
}

// NewRSA creates an RSA-2048 identity for commonName.
func NewRSA(commonName string) (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return newIdentity(key, commonName)
}

// NewEC creates a P-256 identity for commonName.
func NewEC(commonName string) (*Identity, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating EC key: %w", err)
	}
	return newIdentity(key, commonName)
}

// MustRSA is NewRSA for test setup.
func MustRSA(commonName string) *Identity {
	id, err := NewRSA(commonName)
	if err != nil {
		panic(err)
	}
	return id
}

// MustEC is NewEC for test setup.
func MustEC(commonName string) *Identity {
	id, err := NewEC(commonName)
	if err != nil {
		panic(err)
	}
	return id
}

func newIdentity(key crypto.Signer, commonName string) (*Identity, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"SIROS Foundation Test"},
			Country:      []string{"SE"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}

	return &Identity{Key: key, Certificate: cert}, nil
}

// RSAKey returns the identity key as *rsa.PrivateKey, or nil.
func (id *Identity) RSAKey() *rsa.PrivateKey {
	k, _ := id.Key.(*rsa.PrivateKey)
	return k
}

// CertificatePEM renders the certificate.
func (id *Identity) CertificatePEM() string {
	return pemblock.Encode(pemblock.Certificate, id.Certificate.Raw)
}

// PKCS1PEM renders an RSA key as "RSA PRIVATE KEY".
func (id *Identity) PKCS1PEM() string {
	return pemblock.Encode(pemblock.PKCS1PrivateKey, x509.MarshalPKCS1PrivateKey(id.RSAKey()))
}

// PKCS8PEM renders the key as "PRIVATE KEY".
func (id *Identity) PKCS8PEM() string {
	der, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		panic(err)
	}
	return pemblock.Encode(pemblock.PKCS8PrivateKey, der)
}

// EncryptedPKCS8PEM renders the key as "ENCRYPTED PRIVATE KEY" protected by
// password with PBES2 defaults.
func (id *Identity) EncryptedPKCS8PEM(password string) string {
	der, err := pkcs8.MarshalPrivateKey(id.Key, []byte(password), nil)
	if err != nil {
		panic(err)
	}
	return pemblock.Encode(pemblock.PKCS8EncryptedPrivateKey, der)
}

// SEC1PEM renders an EC key as "EC PRIVATE KEY".
func (id *Identity) SEC1PEM() string {
	k, ok := id.Key.(*ecdsa.PrivateKey)
	if !ok {
		panic("testpki: SEC1 needs an EC key")
	}
	der, err := x509.MarshalECPrivateKey(k)
	if err != nil {
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

// X25519PKCS8PEM returns a PKCS#8 X25519 key, which parses but cannot sign.
func X25519PKCS8PEM() string {
	key, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		panic(err)
	}
	return pemblock.Encode(pemblock.PKCS8PrivateKey, der)
}

// DSAPKCS8PEM returns a PKCS#8 structure naming the DSA algorithm, which the
// standard library does not parse.
func DSAPKCS8PEM() string {
	info := struct {
		Version    int
		Algo       pkix.AlgorithmIdentifier
		PrivateKey []byte
	}{
		Algo: pkix.AlgorithmIdentifier{
			Algorithm: asn1.ObjectIdentifier{1, 2, 840, 10040, 4, 1},
		},
		PrivateKey: []byte{0x02, 0x01, 0x05},
	}
	der, err := asn1.Marshal(info)
	if err != nil {
		panic(err)
	}
	return pemblock.Encode(pemblock.PKCS8PrivateKey, der)
}

// PBES1EncryptedPKCS8PEM returns an ENCRYPTED PRIVATE KEY block whose
// encryption scheme is the PKCS#12 pbeWithSHAAnd3-KeyTripleDES-CBC, as
// written by older OpenSSL releases. The payload is not a real key.
func PBES1EncryptedPKCS8PEM() string {
	params := struct {
		Salt       []byte
		Iterations int
	}{Salt: []byte("saltsalt"), Iterations: 2048}
	paramsDER, err := asn1.Marshal(params)
	if err != nil {
		panic(err)
	}
	info := struct {
		Algo          pkix.AlgorithmIdentifier
		EncryptedData []byte
	}{
		Algo: pkix.AlgorithmIdentifier{
			Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3},
			Parameters: asn1.RawValue{FullBytes: paramsDER},
		},
		EncryptedData: make([]byte, 64),
	}
	der, err := asn1.Marshal(info)
	if err != nil {
		panic(err)
	}
	return pemblock.Encode(pemblock.PKCS8EncryptedPrivateKey, der)
}

// WithBagAttributes prefixes text with the attribute preamble that
// "openssl pkcs12 -nodes" writes before each block.
func WithBagAttributes(text string) string {
	return "Bag Attributes\n    localKeyID: 01 00 00 00\n    friendlyName: signer\n" + text
}

// WithBOM prefixes text with a UTF-8 byte order mark.
func WithBOM(text string) string {
	return "\ufeff" + text
}

// BodyLines returns the base64 lines of every block in text.
func BodyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "-----") {
			lines = append(lines, line)
		}
	}
	return lines
}

// WindowsLineEndings converts LF to CRLF.
func WindowsLineEndings(text string) string {
	return strings.ReplaceAll(text, "\n", "\r\n")
}

// EscapeNewlines flattens text the way secret managers do, replacing every
// LF with the two characters backslash and n.
func EscapeNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", `\n`)
}
