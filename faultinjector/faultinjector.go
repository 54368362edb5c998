// Package faultinjector is the policy layer above a run's faulty
// replicas. It does not generate any randomness itself — the RandomDrop
// coin flips and DoubleVote sibling fabrication are owned by
// consensus/hotstuff/replica.State, since they gate that replica's own
// entry points. This package only tracks which replicas are configured
// faulty, applies that set on reset, and implements the engine-facing
// inject/clear fault calls.
package faultinjector

import "github.com/dapperlabs/hotstuff-sim/model"

// ReplicaHandle is the subset of replica.State the injector needs. Kept
// narrow and local (rather than importing the replica package) so the
// engine can hand over its own replica handles directly.
type ReplicaHandle interface {
	SetFault(kind model.FaultKind)
	ClearFault()
}

// NetworkBlocker is the subset of networksim.Network the injector needs to
// toggle delivery blocking for Crash replicas.
type NetworkBlocker interface {
	Block(id uint32)
	Unblock(id uint32)
}

// Injector tracks the configured fault for every replica in a run.
type Injector struct {
	network   NetworkBlocker
	configured map[uint32]model.FaultKind
	current    map[uint32]model.FaultKind
}

// New constructs an injector bound to the given network (for Crash
// blocking) and the statically configured faulty-replica set, e.g.
// {3: FaultCrash} for a single crashed replica.
func New(network NetworkBlocker, configured map[uint32]model.FaultKind) *Injector {
	cfg := make(map[uint32]model.FaultKind, len(configured))
	for id, k := range configured {
		cfg[id] = k
	}
	return &Injector{
		network:    network,
		configured: cfg,
		current:    make(map[uint32]model.FaultKind),
	}
}

// Apply re-applies the configured fault set to the given replica handles,
// as engine.Reset does.
func (inj *Injector) Apply(replicas map[uint32]ReplicaHandle) {
	for id, r := range replicas {
		kind := inj.configured[id]
		inj.setFault(id, r, kind)
	}
}

// InjectFault mutates replica id's fault state at runtime, and for Crash,
// blocks it on the network.
func (inj *Injector) InjectFault(id uint32, r ReplicaHandle, kind model.FaultKind) {
	inj.setFault(id, r, kind)
}

// ClearFault restores replica id to FaultNone and unblocks it on the
// network if it had been blocked for Crash.
func (inj *Injector) ClearFault(id uint32, r ReplicaHandle) {
	inj.setFault(id, r, model.FaultNone)
}

func (inj *Injector) setFault(id uint32, r ReplicaHandle, kind model.FaultKind) {
	wasCrash := inj.current[id] == model.FaultCrash
	if kind == model.FaultNone {
		r.ClearFault()
	} else {
		r.SetFault(kind)
	}
	inj.current[id] = kind

	if inj.network == nil {
		return
	}
	switch {
	case kind == model.FaultCrash && !wasCrash:
		inj.network.Block(id)
	case kind != model.FaultCrash && wasCrash:
		inj.network.Unblock(id)
	}
}

// CurrentFault reports the fault kind most recently applied to replica id.
func (inj *Injector) CurrentFault(id uint32) model.FaultKind {
	return inj.current[id]
}
