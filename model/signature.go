package model

// PartialSignature models a single replica's threshold-signature share as a
// plain tuple — spec.md Non-goals excludes real cryptographic threshold
// signatures. Two partial signatures with equal fields are equal (spec.md
// §3): the tuple itself carries no unforgeability, it only records who
// signed what.
type PartialSignature struct {
	ReplicaID uint32
	Phase     Phase
	View      uint64
	BlockHash Hash
}

// Matches reports whether the signature was produced for the given
// (phase, view, blockHash) triple — the check every signature in a QC must
// satisfy (spec.md §3 QC invariant).
func (s PartialSignature) Matches(phase Phase, view uint64, blockHash Hash) bool {
	return s.Phase == phase && s.View == view && s.BlockHash == blockHash
}
