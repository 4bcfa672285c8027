package core

import (
	"crypto/sha256"
	"encoding/binary"

	"lukechampine.com/blake3"
)

// DomainHash computes a BLAKE3 digest of tag and parts, mixing the domain
// tag in ahead of the data so that hashes computed for different purposes
// (SCT leaves, SCT internal nodes, merkle leaves, header images) never
// collide even over identical bytes. This mirrors original_source's
// domain_separated_hash, adapted to Go's blake3 binding by writing the tag
// as a length-prefixed field into the hasher instead of relying on a
// native "context" API.
func DomainHash(tag string, parts ...[]byte) Hash32 {
	h := blake3.New(32, nil)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(tag)))
	h.Write(lenBuf[:])
	h.Write([]byte(tag))
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	var out Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// DoubleSHA256 applies SHA-256 twice, matching original_source's
// double_sha256 used for transaction IDs where cross-chain-style hash
// compatibility is wanted rather than BLAKE3's speed.
func DoubleSHA256(data []byte) Hash32 {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return Hash32(second)
}

// HashAddress derives the 256-bit SCT key for an address.
func HashAddress(addr Address) Hash32 {
	return DomainHash("nova-sct-key", addr[:])
}
