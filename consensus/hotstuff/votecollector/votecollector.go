// Package votecollector tracks a per-(view, block, phase) set of partial
// signatures and emits a quorum certificate exactly once quorum is first
// reached. It follows the same "qc emitted" dedup shape as a stake-weighted
// vote aggregator, but reduced to a plain n-f distinct-signer-count
// quorum.
package votecollector

import (
	"sort"

	"github.com/dapperlabs/hotstuff-sim/model"
)

type key struct {
	view      uint64
	blockHash model.Hash
	phase     model.Phase
}

type entry struct {
	signers   map[uint32]model.PartialSignature
	qcEmitted bool
}

// Collector accumulates partial signatures and forms quorum certificates.
type Collector struct {
	quorum  int
	entries map[key]*entry
}

// New constructs a collector requiring `quorum` distinct signers per key.
func New(quorum int) *Collector {
	return &Collector{
		quorum:  quorum,
		entries: make(map[key]*entry),
	}
}

// Add feeds one partial signature into its (view, block_hash, phase)
// bucket. Returns the freshly-formed QC the first time quorum is reached
// for that key, or nil otherwise — including for every vote received after
// the QC has already been emitted, and for a signer that has already voted
// into this key.
func (c *Collector) Add(sig model.PartialSignature) *model.QuorumCertificate {
	k := key{view: sig.View, blockHash: sig.BlockHash, phase: sig.Phase}
	e, ok := c.entries[k]
	if !ok {
		e = &entry{signers: make(map[uint32]model.PartialSignature)}
		c.entries[k] = e
	}

	if e.qcEmitted {
		return nil
	}
	if _, voted := e.signers[sig.ReplicaID]; voted {
		return nil
	}

	e.signers[sig.ReplicaID] = sig
	if len(e.signers) < c.quorum {
		return nil
	}

	sigs := make([]model.PartialSignature, 0, len(e.signers))
	for _, s := range e.signers {
		sigs = append(sigs, s)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].ReplicaID < sigs[j].ReplicaID })
	qc := &model.QuorumCertificate{
		Phase:      sig.Phase,
		View:       sig.View,
		BlockHash:  sig.BlockHash,
		Signatures: sigs,
	}
	e.qcEmitted = true
	return qc
}

// ClearView removes every entry whose key matches view. The replica state
// machine does not call it at view change, so entries of earlier views
// stay in its collector.
func (c *Collector) ClearView(view uint64) {
	for k := range c.entries {
		if k.view == view {
			delete(c.entries, k)
		}
	}
}
