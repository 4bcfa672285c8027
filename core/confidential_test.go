package core

import (
	"testing"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/stretchr/testify/require"
)

// validCommitment returns the compressed encoding of the point at
// infinity, the zero value of G1Affine: it is always on-curve and its
// Bytes/SetBytes round trip is the minimal structural-decode check
// decodeConfidentialFields performs (spec §4.3 point 9 is explicit that
// only structural decoding, not semantic ZKP verification, belongs here).
func validCommitment(t *testing.T) []byte {
	t.Helper()
	var zero bls12381.G1Affine
	encoded := zero.Bytes()
	return encoded[:]
}

func TestDecodeConfidentialFieldsAcceptsWellFormed(t *testing.T) {
	commitment := validCommitment(t)
	proof := make([]byte, 4+10)
	proof[0] = 10
	require.NoError(t, decodeConfidentialFields(proof, commitment))
}

func TestDecodeConfidentialFieldsRejectsBadCommitmentLength(t *testing.T) {
	err := decodeConfidentialFields([]byte{1, 2, 3, 4, 5, 6, 7, 8}, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeConfidentialFieldsRejectsInconsistentLengthPrefix(t *testing.T) {
	commitment := validCommitment(t)
	proof := []byte{99, 0, 0, 0} // declares 99 bytes follow but none do
	err := decodeConfidentialFields(proof, commitment)
	require.Error(t, err)
}

func TestVerifyStatelessConfidentialTransferWithFields(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	receiver, err := GenerateSigner()
	require.NoError(t, err)

	tx := newTestTransfer(t, signer, receiver.Address(), 1)
	tx.Type = TxConfidentialTransfer
	tx.AmountCommitment = validCommitment(t)
	proof := make([]byte, 4+8)
	proof[0] = 8
	tx.Proof = proof
	require.NoError(t, SignTransaction(&tx, signer))

	require.NoError(t, VerifyStateless(&tx, time.Now()))
}
