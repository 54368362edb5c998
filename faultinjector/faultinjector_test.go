package faultinjector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/hotstuff-sim/model"
)

type fakeReplica struct {
	fault model.FaultKind
}

func (f *fakeReplica) SetFault(kind model.FaultKind) { f.fault = kind }
func (f *fakeReplica) ClearFault()                   { f.fault = model.FaultNone }

type fakeNetwork struct {
	blocked map[uint32]bool
}

func newFakeNetwork() *fakeNetwork { return &fakeNetwork{blocked: make(map[uint32]bool)} }
func (n *fakeNetwork) Block(id uint32)   { n.blocked[id] = true }
func (n *fakeNetwork) Unblock(id uint32) { delete(n.blocked, id) }

func TestApplyConfiguresFaultsAtConstruction(t *testing.T) {
	net := newFakeNetwork()
	r0, r1 := &fakeReplica{}, &fakeReplica{}
	inj := New(net, map[uint32]model.FaultKind{1: model.FaultCrash})
	inj.Apply(map[uint32]ReplicaHandle{0: r0, 1: r1})

	require.Equal(t, model.FaultNone, r0.fault)
	require.Equal(t, model.FaultCrash, r1.fault)
	require.True(t, net.blocked[1])
	require.False(t, net.blocked[0])
}

func TestInjectFaultCrashBlocksOnNetwork(t *testing.T) {
	net := newFakeNetwork()
	r := &fakeReplica{}
	inj := New(net, nil)

	inj.InjectFault(3, r, model.FaultCrash)
	require.Equal(t, model.FaultCrash, r.fault)
	require.True(t, net.blocked[3])
	require.Equal(t, model.FaultCrash, inj.CurrentFault(3))
}

func TestClearFaultUnblocksAPreviouslyCrashedReplica(t *testing.T) {
	net := newFakeNetwork()
	r := &fakeReplica{}
	inj := New(net, nil)

	inj.InjectFault(3, r, model.FaultCrash)
	inj.ClearFault(3, r)

	require.Equal(t, model.FaultNone, r.fault)
	require.False(t, net.blocked[3])
	require.Equal(t, model.FaultNone, inj.CurrentFault(3))
}

func TestSwitchingBetweenNonCrashFaultsDoesNotTouchNetwork(t *testing.T) {
	net := newFakeNetwork()
	r := &fakeReplica{}
	inj := New(net, nil)

	inj.InjectFault(2, r, model.FaultSilent)
	require.False(t, net.blocked[2])

	inj.InjectFault(2, r, model.FaultRandomDrop)
	require.Equal(t, model.FaultRandomDrop, r.fault)
	require.False(t, net.blocked[2])
}
