package replica

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/hotstuff-sim/model"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func newViewMsgFrom(sender uint32, view uint64, target uint32) model.NewViewMsg {
	return model.NewViewMsg{
		Envelope: model.Envelope{Sender: sender, View: view, Target: &target},
	}
}

func TestStartViewFollowerSendsTargetedNewView(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger()) // leader of view 1 is replica 1 (view % n)
	res := r.StartView(1, 100)

	require.Len(t, res.Events, 1)
	vc, ok := res.Events[0].(model.ViewChangeEvent)
	require.True(t, ok)
	require.Equal(t, uint32(0), vc.ReplicaID)
	require.Equal(t, uint64(1), vc.NewView)

	require.Len(t, res.Outbound, 1)
	nv, ok := res.Outbound[0].(model.NewViewMsg)
	require.True(t, ok)
	require.NotNil(t, nv.Env().Target)
	require.Equal(t, uint32(1), *nv.Env().Target)
}

func TestCrashIsTotalNoOpOnBothEntryPoints(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.SetFault(model.FaultCrash)

	res := r.StartView(1, 100)
	require.Empty(t, res.Events)
	require.Empty(t, res.Outbound)

	res = r.HandleMessage(newViewMsgFrom(2, 1, 0), 100)
	require.Empty(t, res.Events)
	require.Empty(t, res.Outbound)
	require.Equal(t, uint64(0), r.CurrentView(), "crash must not even update bookkeeping")
}

func TestSilentEmitsViewChangeButSuppressesNewView(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.SetFault(model.FaultSilent)

	res := r.StartView(1, 100)
	require.Empty(t, res.Outbound)
	require.Len(t, res.Events, 2)
	_, isViewChange := res.Events[0].(model.ViewChangeEvent)
	require.True(t, isViewChange)
	_, isByzantine := res.Events[1].(model.ByzantineActionEvent)
	require.True(t, isByzantine)
	require.Equal(t, uint64(1), r.CurrentView(), "silent still updates view/phase bookkeeping on start_view")
}

func TestSilentHandleMessageIsPureNoOpExceptByzantineEvent(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.StartView(1, 0)
	r.SetFault(model.FaultSilent)

	res := r.HandleMessage(newViewMsgFrom(2, 1, 0), 100)
	require.Len(t, res.Events, 1)
	_, isByzantine := res.Events[0].(model.ByzantineActionEvent)
	require.True(t, isByzantine)
	require.Empty(t, res.Outbound)
}

func TestRandomDropIsDeterministicGivenSeed(t *testing.T) {
	trace := func() []bool {
		r := New(2, 4, 3, 777, testLogger())
		r.SetFault(model.FaultRandomDrop)
		var suppressed []bool
		for v := uint64(1); v <= 10; v++ {
			res := r.StartView(v, 0)
			suppressed = append(suppressed, len(res.Outbound) == 0)
		}
		return suppressed
	}
	require.Equal(t, trace(), trace())
}

func TestHandleNewViewLeaderProposesAtQuorumAndCascadesSelfVote(t *testing.T) {
	// quorum=1 so the leader's own self-vote alone is enough to cascade
	// straight through to a Pre-Commit broadcast once the Prepare QC forms.
	r := New(1, 4, 1, 1, testLogger()) // leader of view 1 is replica 1
	startRes := r.StartView(1, 0)
	require.Len(t, startRes.Outbound, 1) // leader still sends itself a targeted NewView

	// Feed that same NewView back in, as the engine would after routing it.
	res := r.HandleMessage(startRes.Outbound[0], 10)

	var proposed bool
	for _, ev := range res.Events {
		if _, ok := ev.(model.ProposalEvent); ok {
			proposed = true
		}
	}
	require.True(t, proposed)

	var sawPrepareBroadcast, sawPreCommitBroadcast bool
	for _, msg := range res.Outbound {
		switch msg.(type) {
		case model.PrepareMsg:
			sawPrepareBroadcast = true
		case model.PreCommitMsg:
			sawPreCommitBroadcast = true
		}
	}
	require.True(t, sawPrepareBroadcast)
	require.True(t, sawPreCommitBroadcast, "quorum=1 means the leader's self-vote alone forms the Prepare QC and cascades")
}

func TestHandleNewViewNonLeaderIgnoresMessage(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger()) // replica 0 is not leader of view 1
	r.StartView(1, 0)
	res := r.HandleMessage(newViewMsgFrom(2, 1, 0), 10)
	require.Empty(t, res.Events)
	require.Empty(t, res.Outbound)
}

func TestHandlePrepareFollowerVotesWhenSafe(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.StartView(1, 0)

	genesis := model.Genesis()
	block := model.NewLeaf(genesis, "cmd_1", 1, 1)
	prepare := model.PrepareMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0},
		Block:    block,
		HighQC:   nil,
	}

	res := r.HandleMessage(prepare, 10)
	require.Len(t, res.Events, 1)
	vs, ok := res.Events[0].(model.VoteSendEvent)
	require.True(t, ok)
	require.Equal(t, model.MessagePrepareVote, vs.VoteType)
	require.Equal(t, block.Hash, vs.BlockHash)

	require.Len(t, res.Outbound, 1)
	vote, ok := res.Outbound[0].(model.PrepareVoteMsg)
	require.True(t, ok)
	require.Equal(t, block.Hash, vote.BlockHash)
	require.Equal(t, uint32(1), *vote.Env().Target)
}

func TestHandlePrepareDoesNotVoteTwiceInSameView(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.StartView(1, 0)

	genesis := model.Genesis()
	block := model.NewLeaf(genesis, "cmd_1", 1, 1)
	prepare := model.PrepareMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0},
		Block:    block,
	}
	first := r.HandleMessage(prepare, 10)
	require.Len(t, first.Outbound, 1)

	sibling := model.NewLeaf(genesis, "cmd_2", 1, 1)
	prepare2 := model.PrepareMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0},
		Block:    sibling,
	}
	second := r.HandleMessage(prepare2, 20)
	require.Empty(t, second.Outbound, "already voted this view, must not vote again")
}

func TestHandleDecideCommitsContiguousBranch(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.StartView(1, 0)

	genesis := model.Genesis()
	block := model.NewLeaf(genesis, "cmd_1", 1, 1)

	prepare := model.PrepareMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0},
		Block:    block,
	}
	r.HandleMessage(prepare, 10)

	qc := &model.QuorumCertificate{
		View: 1, Phase: model.PhaseCommit, BlockHash: block.Hash,
		Signatures: []model.PartialSignature{{ReplicaID: 1, Phase: model.PhaseCommit, View: 1, BlockHash: block.Hash}},
	}
	decide := model.DecideMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0},
		CommitQC: qc,
	}
	res := r.HandleMessage(decide, 30)

	require.Len(t, res.Events, 1)
	commit, ok := res.Events[0].(model.CommitEvent)
	require.True(t, ok)
	require.Equal(t, block.Hash, commit.BlockHash)
	require.Equal(t, uint64(1), commit.Height)
	require.Equal(t, []*model.Block{block}, r.CommittedBlocks())
}

func TestHandleMessageDropsStaleView(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.StartView(3, 0)

	genesis := model.Genesis()
	block := model.NewLeaf(genesis, "cmd_1", 1, 1)
	prepare := model.PrepareMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0}, // stale: current view is 3
		Block:    block,
	}
	res := r.HandleMessage(prepare, 10)
	require.Empty(t, res.Events)
	require.Empty(t, res.Outbound)
}

func TestFaultDoubleVoteFabricatesSecondVote(t *testing.T) {
	r := New(0, 4, 3, 1, testLogger())
	r.StartView(1, 0)
	r.SetFault(model.FaultDoubleVote)

	genesis := model.Genesis()
	block := model.NewLeaf(genesis, "cmd_1", 1, 1)
	prepare := model.PrepareMsg{
		Envelope: model.Envelope{Sender: 1, View: 1, Timestamp: 0},
		Block:    block,
	}
	res := r.HandleMessage(prepare, 10)

	require.Len(t, res.Outbound, 2)
	honest, ok := res.Outbound[0].(model.PrepareVoteMsg)
	require.True(t, ok)
	forged, ok := res.Outbound[1].(model.PrepareVoteMsg)
	require.True(t, ok)
	require.NotEqual(t, honest.BlockHash, forged.BlockHash, "forged vote must reference a different sibling block")

	var sawByzantine bool
	for _, ev := range res.Events {
		if _, ok := ev.(model.ByzantineActionEvent); ok {
			sawByzantine = true
		}
	}
	require.True(t, sawByzantine)
}
