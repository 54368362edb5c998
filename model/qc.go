package model

// QuorumCertificate is an immutable aggregate of partial signatures over a
// single (phase, view, block_hash) triple. Constructed exclusively by the
// vote collector once a quorum is first reached (spec.md §4.3).
type QuorumCertificate struct {
	Phase      Phase
	View       uint64
	BlockHash  Hash
	Signatures []PartialSignature
}

// SignerCount returns the number of distinct signers backing the QC.
func (qc *QuorumCertificate) SignerCount() int {
	seen := make(map[uint32]struct{}, len(qc.Signatures))
	for _, sig := range qc.Signatures {
		seen[sig.ReplicaID] = struct{}{}
	}
	return len(seen)
}

// Valid reports whether the QC carries at least `quorum` distinct signers,
// each matching the QC's own (phase, view, block_hash) — spec.md §3, §4.4
// `validate_qc`.
func (qc *QuorumCertificate) Valid(quorum int) bool {
	if qc == nil {
		return false
	}
	distinct := make(map[uint32]struct{}, len(qc.Signatures))
	for _, sig := range qc.Signatures {
		if !sig.Matches(qc.Phase, qc.View, qc.BlockHash) {
			return false
		}
		distinct[sig.ReplicaID] = struct{}{}
	}
	return len(distinct) >= quorum
}
