package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hash is a content digest identifying a Block. It is not a cryptographic
// commitment in the security sense — spec.md's Non-goals exclude real
// threshold signatures, and this digest plays the same stand-in role for
// block identity that PartialSignature plays for votes.
type Hash [32]byte

// ZeroHash is the hash reserved for "no parent" (the genesis block) and for
// "no block" sentinels elsewhere (e.g. an absent QC's block hash).
var ZeroHash = Hash{}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// ComputeBlockHash derives the deterministic digest for a block from its
// constituent fields, per spec.md §3: hash = digest(parent_hash, command,
// height, proposer, view).
func ComputeBlockHash(parentHash Hash, command string, height uint64, proposer uint32, view uint64) Hash {
	h := sha256.New()
	h.Write(parentHash[:])
	h.Write([]byte(command))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	h.Write(buf[:])

	binary.BigEndian.PutUint32(buf[:4], proposer)
	h.Write(buf[:4])

	binary.BigEndian.PutUint64(buf[:], view)
	h.Write(buf[:])

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
