// Package signing provides the manifest signing collaborator contract.
//
// Verification manifests are signed as opaque byte sequences; the signer
// never inspects or re-serializes the payload. Third parties verify stored
// manifest bytes against the public key published for the signing key id.
package signing

import "context"

// AlgorithmEd25519 is the only algorithm this module signs with. Manifests
// record it so third-party verifiers do not have to guess.
const AlgorithmEd25519 = "ed25519"

// Signature is a detached signature over an exact byte sequence.
type Signature struct {
	KeyID     string
	Algorithm string
	Value     string // hex-encoded signature bytes
}

// Signer produces detached signatures and serves public keys for
// third-party verification. KeyID names the active key up front because the
// signed payload itself records which key bound it.
type Signer interface {
	KeyID() string
	Sign(ctx context.Context, payload []byte) (Signature, error)
	PublicKey(ctx context.Context, keyID string) (string, error)
}
