// Package attest implements the attestation format that binds ciphertexts and
// revealed values to the registry context. Encryption backends attest inputs,
// the decryption oracle attests reveals, and the ledger refuses any write that
// does not carry a valid attestation. Proofs are opaque byte slices to every
// other package; only this package knows their layout.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

const (
	inputDomain  = "geoseal/attest/input/v1"
	revealDomain = "geoseal/attest/reveal/v1"

	keyIDLen = 8

	// ProofLen is the exact length of a well-formed proof: an 8-byte key
	// identifier followed by an Ed25519 signature.
	ProofLen = keyIDLen + ed25519.SignatureSize

	// ValueLen is the length of an encoded clear value.
	ValueLen = 8
)

// GenerateKey creates a fresh attestation keypair. Production deployments load
// keys from the gateway's key distribution; mock backends generate their own.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("could not generate attestation key: %w", err)
	}
	return pub, priv, nil
}

// EncodeValue renders a clear value in the wire form covered by reveal
// attestations: 8 bytes, big-endian, two's complement.
func EncodeValue(v int64) []byte {
	buf := make([]byte, ValueLen)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// DecodeValue parses an encoded clear value.
func DecodeValue(b []byte) (int64, error) {
	if len(b) != ValueLen {
		return 0, dErrors.New(dErrors.CodeProofInvalid, "encoded value has wrong length")
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func keyID(pub ed25519.PublicKey) [keyIDLen]byte {
	sum := blake2b.Sum256(pub)
	var kid [keyIDLen]byte
	copy(kid[:], sum[:keyIDLen])
	return kid
}

// digest computes the canonical payload hash for one attestation. Every field
// is length-prefixed so no two field sequences collide.
func digest(domain string, fields ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	var lenBuf [4]byte
	writeField := func(f []byte) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		h.Write(lenBuf[:])
		h.Write(f)
	}
	writeField([]byte(domain))
	for _, f := range fields {
		writeField(f)
	}
	return h.Sum(nil)
}

func inputDigest(ctxID id.ContextID, owner id.OwnerID, handle id.Handle, ciphertext []byte) []byte {
	return digest(inputDomain, []byte(ctxID), []byte(owner), []byte(handle), ciphertext)
}

func revealDigest(ctxID id.ContextID, handle id.Handle, value int64) []byte {
	return digest(revealDomain, []byte(ctxID), []byte(handle), EncodeValue(value))
}

// Signer produces attestations under a single private key.
type Signer struct {
	priv ed25519.PrivateKey
	kid  [keyIDLen]byte
}

// NewSigner creates a signer for the given private key.
func NewSigner(priv ed25519.PrivateKey) *Signer {
	return &Signer{
		priv: priv,
		kid:  keyID(priv.Public().(ed25519.PublicKey)),
	}
}

func (s *Signer) sign(payload []byte) []byte {
	proof := make([]byte, 0, ProofLen)
	proof = append(proof, s.kid[:]...)
	proof = append(proof, ed25519.Sign(s.priv, payload)...)
	return proof
}

// AttestInput binds a ciphertext to the context, owner, and handle it was
// produced for.
func (s *Signer) AttestInput(ctxID id.ContextID, owner id.OwnerID, handle id.Handle, ciphertext []byte) []byte {
	return s.sign(inputDigest(ctxID, owner, handle, ciphertext))
}

// AttestReveal binds a clear value to the context and handle it was decrypted
// from.
func (s *Signer) AttestReveal(ctxID id.ContextID, handle id.Handle, value int64) []byte {
	return s.sign(revealDigest(ctxID, handle, value))
}

// Keyring verifies attestations against a set of trusted public keys. Proofs
// name their key by identifier, so rotation means trusting old and new keys
// side by side until old attestations age out.
type Keyring struct {
	keys map[[keyIDLen]byte]ed25519.PublicKey
}

// NewKeyring creates a keyring trusting the given public keys.
func NewKeyring(pubs ...ed25519.PublicKey) *Keyring {
	k := &Keyring{keys: make(map[[keyIDLen]byte]ed25519.PublicKey, len(pubs))}
	for _, pub := range pubs {
		k.Add(pub)
	}
	return k
}

// Add registers another trusted public key.
func (k *Keyring) Add(pub ed25519.PublicKey) {
	k.keys[keyID(pub)] = pub
}

func (k *Keyring) verify(payload, proof []byte) error {
	if len(proof) != ProofLen {
		return dErrors.New(dErrors.CodeProofInvalid, "attestation has wrong length")
	}
	var kid [keyIDLen]byte
	copy(kid[:], proof[:keyIDLen])
	pub, ok := k.keys[kid]
	if !ok {
		return dErrors.New(dErrors.CodeProofInvalid, "attestation key is not trusted")
	}
	if !ed25519.Verify(pub, payload, proof[keyIDLen:]) {
		return dErrors.New(dErrors.CodeProofInvalid, "attestation does not match payload")
	}
	return nil
}

// VerifyInput checks that proof binds the ciphertext to the given context,
// owner, and handle.
func (k *Keyring) VerifyInput(ctxID id.ContextID, owner id.OwnerID, handle id.Handle, ciphertext, proof []byte) error {
	return k.verify(inputDigest(ctxID, owner, handle, ciphertext), proof)
}

// VerifyReveal checks that proof binds the clear value to the given context
// and handle.
func (k *Keyring) VerifyReveal(ctxID id.ContextID, handle id.Handle, value int64, proof []byte) error {
	return k.verify(revealDigest(ctxID, handle, value), proof)
}

// HandleFor derives the ciphertext handle for a ciphertext: the lowercase hex
// form of its canonical hash. Handles are stable identifiers for ciphertexts
// without exposing their bytes.
func HandleFor(ciphertext []byte) id.Handle {
	sum := blake2b.Sum256(ciphertext)
	return id.Handle(fmt.Sprintf("%x", sum))
}
