// Package safety is the stateless safe-node predicate and quorum
// certificate validity check that gate whether a replica may vote for a
// proposed block.
package safety

import "github.com/dapperlabs/hotstuff-sim/model"

// Registry is the minimal block lookup the safety rules need to walk
// parent pointers; consensus/hotstuff/blockstore.Store satisfies it.
type Registry interface {
	Get(hash model.Hash) (*model.Block, bool)
	ExtendsFrom(b *model.Block, ancestorHash model.Hash) bool
}

// Rules is stateless: it operates entirely over a caller-provided block
// registry, never its own.
type Rules struct {
	registry Registry
}

func New(registry Registry) *Rules {
	return &Rules{registry: registry}
}

// SafeToVote is the safe-node predicate:
//   - lockedQC == nil                                            -> safe
//   - b extends lockedQC.BlockHash                                -> safe (safety rule)
//   - justifyQC != nil && justifyQC.View > lockedQC.View           -> safe (liveness rule)
//   - otherwise                                                   -> unsafe
func (r *Rules) SafeToVote(b *model.Block, justifyQC, lockedQC *model.QuorumCertificate) bool {
	if lockedQC == nil {
		return true
	}
	if r.registry.ExtendsFrom(b, lockedQC.BlockHash) {
		return true
	}
	if justifyQC != nil && justifyQC.View > lockedQC.View {
		return true
	}
	return false
}

// ValidQC reports whether qc carries at least quorum distinct signers.
func ValidQC(qc *model.QuorumCertificate, quorum int) bool {
	return qc.Valid(quorum)
}
