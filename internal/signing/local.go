package signing

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfInfoPrefix namespaces derived keys so the same master secret can never
// yield a manifest key that collides with another derivation purpose.
const hkdfInfoPrefix = "docket/manifest-signing/"

// LocalSigner signs with an Ed25519 key derived from a master secret via
// HKDF-SHA256, keyed by key id. Rotation is a config change: a new key id
// derives a new keypair while public keys for old ids stay servable, so
// previously published manifests remain verifiable.
type LocalSigner struct {
	masterSecret []byte
	keyID        string
	privKey      ed25519.PrivateKey
}

// NewLocal constructs a LocalSigner that signs under keyID.
func NewLocal(masterSecret, keyID string) (*LocalSigner, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("signing master secret is required")
	}
	if keyID == "" {
		return nil, fmt.Errorf("signing key id is required")
	}
	s := &LocalSigner{masterSecret: []byte(masterSecret), keyID: keyID}
	priv, err := s.derive(keyID)
	if err != nil {
		return nil, err
	}
	s.privKey = priv
	return s, nil
}

// KeyID returns the active signing key id.
func (s *LocalSigner) KeyID() string {
	return s.keyID
}

// Sign produces a detached Ed25519 signature over payload.
func (s *LocalSigner) Sign(_ context.Context, payload []byte) (Signature, error) {
	sig := ed25519.Sign(s.privKey, payload)
	return Signature{
		KeyID:     s.keyID,
		Algorithm: AlgorithmEd25519,
		Value:     hex.EncodeToString(sig),
	}, nil
}

// PublicKey returns the hex public key for any key id derivable from the
// master secret, including retired ids.
func (s *LocalSigner) PublicKey(_ context.Context, keyID string) (string, error) {
	priv, err := s.derive(keyID)
	if err != nil {
		return "", err
	}
	pub := priv.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub), nil
}

func (s *LocalSigner) derive(keyID string) (ed25519.PrivateKey, error) {
	r := hkdf.New(sha256.New, s.masterSecret, nil, []byte(hkdfInfoPrefix+keyID))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("derive signing key %s: %w", keyID, err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Verify checks a detached hex signature against a hex public key.
// Exposed for tests and third-party verification tooling.
func Verify(pubKeyHex, sigHex string, payload []byte) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), payload, sig), nil
}
