package credential

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"io"
	"math/big"
	"sync"
)

// ErrKeyDestroyed is returned by Sign after Destroy.
var ErrKeyDestroyed = errors.New("signing key has been destroyed")

// SigningKey is a private key loaded for exactly one signing operation. It
// implements crypto.Signer so the key itself never leaves this package.
// Callers must call Destroy on every exit path.
type SigningKey struct {
	mu     sync.Mutex
	signer crypto.Signer
	public crypto.PublicKey
}

func newSigningKey(signer crypto.Signer) *SigningKey {
	return &SigningKey{signer: signer, public: signer.Public()}
}

// Public returns the public half of the key. It stays available after
// Destroy.
func (k *SigningKey) Public() crypto.PublicKey {
	return k.public
}

// Sign implements crypto.Signer
func (k *SigningKey) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.signer == nil {
		return nil, ErrKeyDestroyed
	}
	return k.signer.Sign(rand, digest, opts)
}

// Algorithm names the key algorithm, e.g. "RSA-2048".
func (k *SigningKey) Algorithm() string {
	return describeKey(k.public)
}

// Destroy overwrites the private parts of the key and drops it. It is safe to
// call more than once.
func (k *SigningKey) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch key := k.signer.(type) {
	case *rsa.PrivateKey:
		wipeInt(key.D)
		for _, p := range key.Primes {
			wipeInt(p)
		}
		wipeInt(key.Precomputed.Dp)
		wipeInt(key.Precomputed.Dq)
		wipeInt(key.Precomputed.Qinv)
		for _, crt := range key.Precomputed.CRTValues {
			wipeInt(crt.Exp)
			wipeInt(crt.Coeff)
			wipeInt(crt.R)
		}
	case *ecdsa.PrivateKey:
		wipeInt(key.D)
	case ed25519.PrivateKey:
		clear(key)
	}
	k.signer = nil
}

// Destroyed reports whether Destroy has run.
func (k *SigningKey) Destroyed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.signer == nil
}

func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	clear(x.Bits())
	x.SetInt64(0)
}

func keyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return "Unknown"
	}
}
