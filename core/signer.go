package core

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signer is the narrow capability interface every header/transaction/vote
// signing path depends on. Concrete key management, Bech32 address
// rendering and the underlying curve are treated as an interchangeable
// backend per spec §9's design notes; NOVA wires secp256k1 here, but no
// caller in this package reaches past the interface.
type Signer interface {
	// Sign returns a signature over message.
	Sign(message []byte) ([]byte, error)
	// PublicKey returns the raw, compressed public key bytes bound to
	// this signer, suitable for embedding in a Transaction's
	// SenderPublicKey field.
	PublicKey() []byte
	// Address derives the account address bound to this signer.
	Address() Address
}

// Verifier checks signatures produced by a Signer without needing the
// private key.
type Verifier interface {
	// Verify reports whether signature is a valid signature over message
	// under the given raw compressed public key.
	Verify(publicKey, message, signature []byte) bool
	// AddressFromPublicKey derives the Address a public key would sign
	// as, so callers can check key-to-address binding (spec §4.3 point 7).
	AddressFromPublicKey(publicKey []byte) (Address, error)
}

// secp256k1Signer is the default Signer backed by decred's secp256k1
// implementation (already present transitively in the teacher's
// dependency graph via its go-ethereum/btcec lineage).
type secp256k1Signer struct {
	priv *secp256k1.PrivateKey
	pub  []byte
	addr Address
}

// NewSigner wraps a raw 32-byte secp256k1 private key into a Signer.
func NewSigner(privateKey []byte) (Signer, error) {
	if len(privateKey) != 32 {
		return nil, fmt.Errorf("new signer: private key must be 32 bytes, got %d", len(privateKey))
	}
	priv := secp256k1.PrivKeyFromBytes(privateKey)
	pub := priv.PubKey().SerializeCompressed()
	addr, err := addressFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &secp256k1Signer{priv: priv, pub: pub, addr: addr}, nil
}

// GenerateSigner produces a fresh random Signer, for tests and devnet
// bootstrapping.
func GenerateSigner() (Signer, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate signer: %w", err)
	}
	pub := priv.PubKey().SerializeCompressed()
	addr, err := addressFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &secp256k1Signer{priv: priv, pub: pub, addr: addr}, nil
}

func (s *secp256k1Signer) Sign(message []byte) ([]byte, error) {
	digest := DomainHash("nova-sig-message", message)
	sig := ecdsa.Sign(s.priv, digest[:])
	return sig.Serialize(), nil
}

func (s *secp256k1Signer) PublicKey() []byte {
	out := make([]byte, len(s.pub))
	copy(out, s.pub)
	return out
}

func (s *secp256k1Signer) Address() Address {
	return s.addr
}

// defaultVerifier is the package-level Verifier backing VerifyStateless.
var defaultVerifier Verifier = secp256k1Verifier{}

type secp256k1Verifier struct{}

func (secp256k1Verifier) Verify(publicKey, message, signature []byte) bool {
	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	digest := DomainHash("nova-sig-message", message)
	return sig.Verify(digest[:], pub)
}

func (secp256k1Verifier) AddressFromPublicKey(publicKey []byte) (Address, error) {
	return addressFromPublicKey(publicKey)
}

// addressFromPublicKey derives an Address as the low 20 bytes of a
// domain-separated BLAKE3 hash of the compressed public key, analogous to
// a hash160 derivation but keeping a single hash family in use for
// internal NOVA structures.
func addressFromPublicKey(publicKey []byte) (Address, error) {
	if len(publicKey) == 0 {
		return Address{}, fmt.Errorf("address from public key: empty key")
	}
	digest := DomainHash("nova-address", publicKey)
	var addr Address
	copy(addr[:], digest[12:])
	return addr, nil
}
