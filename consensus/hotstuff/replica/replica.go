// Package replica implements the per-replica Basic HotStuff protocol state
// machine: phase/view/lock tracking, vote collection, proposal, and
// branch-commit execution, with a replica's configured fault behavior
// applied before normal handling.
//
// This implements the Basic four-phase protocol exclusively — a Chained
// HotStuff variant, if one is ever added, belongs beside this package,
// not inside it.
package replica

import (
	"fmt"
	"math/rand"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"

	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/blockstore"
	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/leader"
	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/safety"
	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/votecollector"
	"github.com/dapperlabs/hotstuff-sim/model"
)

// Result is what a state-machine entry point (StartView/HandleMessage)
// produces: the events to append to the engine's history, and the messages
// to hand to the network. The engine is the single writer of the network;
// a replica never touches it directly.
type Result struct {
	Events   []model.Event
	Outbound []model.Message
}

// State is one replica's Basic HotStuff state machine.
type State struct {
	id        uint32
	n         uint32
	quorum    int
	faultKind model.FaultKind

	currentView   uint64
	currentPhase  model.Phase
	lockedQC      *model.QuorumCertificate
	prepareQC     *model.QuorumCertificate // a.k.a. highQC
	lastVotedView *uint64

	committedBlocks []*model.Block
	committedHashes map[model.Hash]struct{}

	store  *blockstore.Store
	votes  *votecollector.Collector
	safety *safety.Rules

	newViews         *deque.Deque
	proposedThisView bool
	leaderCmdCounter uint64

	msgSeq uint64
	rng    *rand.Rand
	log    zerolog.Logger
}

// New constructs a replica. seed feeds the replica's own PRNG, seeded from
// the run seed plus the replica id so that RandomDrop coin flips are
// reproducible and independent across replicas.
func New(id, n uint32, quorum int, seed int64, log zerolog.Logger) *State {
	store := blockstore.New()
	return &State{
		id:              id,
		n:               n,
		quorum:          quorum,
		currentPhase:    model.PhaseNewView,
		committedHashes: make(map[model.Hash]struct{}),
		store:           store,
		votes:           votecollector.New(quorum),
		safety:          safety.New(store),
		newViews:        deque.New(),
		rng:             rand.New(rand.NewSource(seed + int64(id))),
		log:             log.With().Uint32("replica_id", id).Logger(),
	}
}

func (r *State) ID() uint32             { return r.id }
func (r *State) CurrentView() uint64    { return r.currentView }
func (r *State) CurrentPhase() model.Phase { return r.currentPhase }
func (r *State) LockedQC() *model.QuorumCertificate  { return r.lockedQC }
func (r *State) PrepareQC() *model.QuorumCertificate { return r.prepareQC }
func (r *State) FaultKind() model.FaultKind          { return r.faultKind }
func (r *State) CommittedBlocks() []*model.Block     { return r.committedBlocks }

func (r *State) SetFault(kind model.FaultKind) { r.faultKind = kind }
func (r *State) ClearFault()                   { r.faultKind = model.FaultNone }

func (r *State) nextMsgID() uint64 {
	id := (uint64(r.id) << 32) | r.msgSeq
	r.msgSeq++
	return id
}

func (r *State) byzantineEvent(now uint64, action string) model.Event {
	return model.ByzantineActionEvent{At: now, ReplicaID: r.id, Action: action, View: r.currentView}
}

func (r *State) canVoteThisView() bool {
	if r.lastVotedView == nil {
		return true
	}
	return r.currentView > *r.lastVotedView
}

func (r *State) markVoted(v uint64) {
	vv := v
	r.lastVotedView = &vv
}

// StartView begins view v: resets the per-view proposal/collection state,
// computes the view's leader, and — unless the replica's fault kind
// suppresses it — sends that leader a new-view message carrying its
// highest known prepare QC.
func (r *State) StartView(v uint64, now uint64) Result {
	if r.faultKind == model.FaultCrash {
		return Result{}
	}

	r.currentView = v
	r.currentPhase = model.PhaseNewView
	r.newViews.Clear()
	r.proposedThisView = false
	leaderID := leader.ForView(v, r.n)

	events := []model.Event{model.ViewChangeEvent{At: now, ReplicaID: r.id, NewView: v}}

	if r.faultKind == model.FaultSilent {
		events = append(events, r.byzantineEvent(now, "silent_suppressed_newview"))
		return Result{Events: events}
	}
	if r.faultKind == model.FaultRandomDrop && r.rng.Float64() < 0.5 {
		events = append(events, r.byzantineEvent(now, "random_drop_suppressed_newview"))
		return Result{Events: events}
	}

	msg := r.buildNewView(leaderID, now)
	outbound := []model.Message{msg}
	if leaderID == r.id {
		r.newViews.PushBack(msg)
	}
	return Result{Events: events, Outbound: outbound}
}

// HandleMessage routes an incoming message to its phase handler, after
// applying the replica's fault behavior and dropping anything stale for
// the current view.
func (r *State) HandleMessage(msg model.Message, now uint64) Result {
	if r.faultKind == model.FaultCrash {
		return Result{}
	}
	if r.faultKind == model.FaultSilent {
		return Result{Events: []model.Event{r.byzantineEvent(now, "silent_suppressed_message")}}
	}
	if r.faultKind == model.FaultRandomDrop && r.rng.Float64() < 0.5 {
		return Result{Events: []model.Event{r.byzantineEvent(now, "random_drop_suppressed_message")}}
	}

	env := msg.Env()
	if env.View < r.currentView {
		r.log.Debug().Uint64("msg_view", env.View).Uint64("current_view", r.currentView).
			Msg("dropping stale message")
		return Result{}
	}

	switch m := msg.(type) {
	case model.NewViewMsg:
		return r.handleNewView(m, now)
	case model.PrepareMsg:
		return r.handlePrepare(m, now)
	case model.PrepareVoteMsg:
		return r.handlePrepareVote(m, now)
	case model.PreCommitMsg:
		return r.handlePreCommit(m, now)
	case model.PreCommitVoteMsg:
		return r.handlePreCommitVote(m, now)
	case model.CommitMsg:
		return r.handleCommit(m, now)
	case model.CommitVoteMsg:
		return r.handleCommitVote(m, now)
	case model.DecideMsg:
		return r.handleDecide(m, now)
	default:
		return Result{}
	}
}

func (r *State) handleNewView(m model.NewViewMsg, now uint64) Result {
	leaderID := leader.ForView(r.currentView, r.n)
	if leaderID != r.id {
		return Result{}
	}

	r.newViews.PushBack(m)
	if r.proposedThisView || r.newViews.Len() < r.quorum {
		return Result{}
	}

	var highQC *model.QuorumCertificate
	for i := 0; i < r.newViews.Len(); i++ {
		collected := r.newViews.At(i).(model.NewViewMsg)
		if collected.JustifyQC != nil && (highQC == nil || collected.JustifyQC.View > highQC.View) {
			highQC = collected.JustifyQC
		}
	}

	var parent *model.Block
	if highQC != nil {
		if p, ok := r.store.Get(highQC.BlockHash); ok {
			parent = p
		}
	}
	if parent == nil {
		parent = r.store.Genesis()
	}

	r.leaderCmdCounter++
	cmd := fmt.Sprintf("cmd_%d_%d", r.currentView, r.leaderCmdCounter)
	block := model.NewLeaf(parent, cmd, r.id, r.currentView)
	r.store.Put(block)

	proposal := r.buildPrepare(block, highQC, now)
	r.proposedThisView = true
	r.currentPhase = model.PhasePrepare
	r.markVoted(r.currentView)

	events := []model.Event{model.ProposalEvent{At: now, ReplicaID: r.id, BlockHash: block.Hash, View: r.currentView}}
	outbound := []model.Message{proposal}

	selfSig := model.PartialSignature{ReplicaID: r.id, Phase: model.PhasePrepare, View: r.currentView, BlockHash: block.Hash}
	if qc := r.votes.Add(selfSig); qc != nil {
		sub := r.onPrepareQCFormed(qc, now)
		events = append(events, sub.Events...)
		outbound = append(outbound, sub.Outbound...)
	}

	return Result{Events: events, Outbound: outbound}
}

func (r *State) handlePrepare(m model.PrepareMsg, now uint64) Result {
	r.store.Put(m.Block)
	r.currentPhase = model.PhasePrepare

	safe := r.safety.SafeToVote(m.Block, m.HighQC, r.lockedQC)
	if !safe || !r.canVoteThisView() {
		return Result{}
	}

	leaderID := leader.ForView(r.currentView, r.n)
	sig := model.PartialSignature{ReplicaID: r.id, Phase: model.PhasePrepare, View: r.currentView, BlockHash: m.Block.Hash}
	vote := r.buildPrepareVote(m.Block.Hash, sig, leaderID, now)
	r.markVoted(r.currentView)

	events := []model.Event{model.VoteSendEvent{At: now, ReplicaID: r.id, VoteType: model.MessagePrepareVote, BlockHash: m.Block.Hash}}
	outbound := []model.Message{vote}

	if r.faultKind == model.FaultDoubleVote {
		dvMsg, dvEvt := r.fabricateDoubleVote(model.PhasePrepare, m.Block, leaderID, now)
		if dvMsg != nil {
			outbound = append(outbound, dvMsg)
			events = append(events, dvEvt)
		}
	}

	return Result{Events: events, Outbound: outbound}
}

func (r *State) handlePrepareVote(m model.PrepareVoteMsg, now uint64) Result {
	if leader.ForView(r.currentView, r.n) != r.id {
		return Result{}
	}
	qc := r.votes.Add(m.Sig)
	if qc == nil {
		return Result{}
	}
	return r.onPrepareQCFormed(qc, now)
}

func (r *State) onPrepareQCFormed(qc *model.QuorumCertificate, now uint64) Result {
	r.prepareQC = qc
	r.currentPhase = model.PhasePreCommit

	broadcast := r.buildPreCommit(qc, now)
	events := []model.Event{model.QCFormationEvent{At: now, ReplicaID: r.id, QCType: model.PhasePrepare, View: r.currentView}}
	outbound := []model.Message{broadcast}

	selfSig := model.PartialSignature{ReplicaID: r.id, Phase: model.PhasePreCommit, View: r.currentView, BlockHash: qc.BlockHash}
	if qc2 := r.votes.Add(selfSig); qc2 != nil {
		sub := r.onPreCommitQCFormed(qc2, now)
		events = append(events, sub.Events...)
		outbound = append(outbound, sub.Outbound...)
	}

	return Result{Events: events, Outbound: outbound}
}

func (r *State) handlePreCommit(m model.PreCommitMsg, now uint64) Result {
	r.prepareQC = m.PrepareQC
	r.currentPhase = model.PhasePreCommit

	leaderID := leader.ForView(r.currentView, r.n)
	sig := model.PartialSignature{ReplicaID: r.id, Phase: model.PhasePreCommit, View: r.currentView, BlockHash: m.PrepareQC.BlockHash}
	vote := r.buildPreCommitVote(m.PrepareQC.BlockHash, sig, leaderID, now)

	events := []model.Event{model.VoteSendEvent{At: now, ReplicaID: r.id, VoteType: model.MessagePreCommitVote, BlockHash: m.PrepareQC.BlockHash}}
	outbound := []model.Message{vote}

	if r.faultKind == model.FaultDoubleVote {
		if refBlock, ok := r.store.Get(m.PrepareQC.BlockHash); ok {
			dvMsg, dvEvt := r.fabricateDoubleVote(model.PhasePreCommit, refBlock, leaderID, now)
			if dvMsg != nil {
				outbound = append(outbound, dvMsg)
				events = append(events, dvEvt)
			}
		}
	}

	return Result{Events: events, Outbound: outbound}
}

func (r *State) handlePreCommitVote(m model.PreCommitVoteMsg, now uint64) Result {
	if leader.ForView(r.currentView, r.n) != r.id {
		return Result{}
	}
	qc := r.votes.Add(m.Sig)
	if qc == nil {
		return Result{}
	}
	return r.onPreCommitQCFormed(qc, now)
}

func (r *State) onPreCommitQCFormed(qc *model.QuorumCertificate, now uint64) Result {
	r.lockedQC = qc
	r.currentPhase = model.PhaseCommit

	broadcast := r.buildCommit(qc, now)
	events := []model.Event{
		model.QCFormationEvent{At: now, ReplicaID: r.id, QCType: model.PhasePreCommit, View: r.currentView},
		model.LockUpdateEvent{At: now, ReplicaID: r.id, LockedView: qc.View},
	}
	outbound := []model.Message{broadcast}

	selfSig := model.PartialSignature{ReplicaID: r.id, Phase: model.PhaseCommit, View: r.currentView, BlockHash: qc.BlockHash}
	if qc2 := r.votes.Add(selfSig); qc2 != nil {
		sub := r.onCommitQCFormed(qc2, now)
		events = append(events, sub.Events...)
		outbound = append(outbound, sub.Outbound...)
	}

	return Result{Events: events, Outbound: outbound}
}

func (r *State) handleCommit(m model.CommitMsg, now uint64) Result {
	r.lockedQC = m.PreCommitQC
	r.currentPhase = model.PhaseCommit

	leaderID := leader.ForView(r.currentView, r.n)
	sig := model.PartialSignature{ReplicaID: r.id, Phase: model.PhaseCommit, View: r.currentView, BlockHash: m.PreCommitQC.BlockHash}
	vote := r.buildCommitVote(m.PreCommitQC.BlockHash, sig, leaderID, now)

	events := []model.Event{
		model.LockUpdateEvent{At: now, ReplicaID: r.id, LockedView: m.PreCommitQC.View},
		model.VoteSendEvent{At: now, ReplicaID: r.id, VoteType: model.MessageCommitVote, BlockHash: m.PreCommitQC.BlockHash},
	}
	outbound := []model.Message{vote}

	if r.faultKind == model.FaultDoubleVote {
		if refBlock, ok := r.store.Get(m.PreCommitQC.BlockHash); ok {
			dvMsg, dvEvt := r.fabricateDoubleVote(model.PhaseCommit, refBlock, leaderID, now)
			if dvMsg != nil {
				outbound = append(outbound, dvMsg)
				events = append(events, dvEvt)
			}
		}
	}

	return Result{Events: events, Outbound: outbound}
}

func (r *State) handleCommitVote(m model.CommitVoteMsg, now uint64) Result {
	if leader.ForView(r.currentView, r.n) != r.id {
		return Result{}
	}
	qc := r.votes.Add(m.Sig)
	if qc == nil {
		return Result{}
	}
	return r.onCommitQCFormed(qc, now)
}

func (r *State) onCommitQCFormed(qc *model.QuorumCertificate, now uint64) Result {
	r.currentPhase = model.PhaseDecide
	broadcast := r.buildDecide(qc, now)
	events := r.executeBranch(qc.BlockHash, now)
	return Result{Events: events, Outbound: []model.Message{broadcast}}
}

func (r *State) handleDecide(m model.DecideMsg, now uint64) Result {
	r.currentPhase = model.PhaseDecide
	events := r.executeBranch(m.CommitQC.BlockHash, now)
	return Result{Events: events}
}

// executeBranch walks parent pointers from the certified block to genesis
// or an already-committed hash, then commits from lowest height upward so
// commits stay contiguous even when a decide certifies several
// not-yet-committed ancestors at once.
func (r *State) executeBranch(blockHash model.Hash, now uint64) []model.Event {
	block, ok := r.store.Get(blockHash)
	if !ok {
		return nil
	}

	chain := r.store.WalkToGenesisOrCommitted(block, r.committedHashes)
	var events []model.Event
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		if b.IsGenesis() {
			continue
		}
		if _, already := r.committedHashes[b.Hash]; already {
			continue
		}
		r.committedBlocks = append(r.committedBlocks, b)
		r.committedHashes[b.Hash] = struct{}{}
		events = append(events, model.CommitEvent{At: now, ReplicaID: r.id, BlockHash: b.Hash, Height: b.Height})
	}
	return events
}

// fabricateDoubleVote implements the DoubleVote fault: in addition to the
// honest vote already produced for refBlock, it sends a second vote for a
// differently-hashed sibling block built on the same parent, for the same
// (view, phase).
func (r *State) fabricateDoubleVote(phase model.Phase, refBlock *model.Block, leaderID uint32, now uint64) (model.Message, model.Event) {
	parent, ok := r.store.Get(refBlock.ParentHash)
	if !ok {
		parent = refBlock
	}
	cmd := fmt.Sprintf("fork_%d_%d_%d", r.currentView, r.id, r.msgSeq)
	sibling := model.NewLeaf(parent, cmd, r.id, r.currentView)
	r.store.Put(sibling)

	sig := model.PartialSignature{ReplicaID: r.id, Phase: phase, View: r.currentView, BlockHash: sibling.Hash}

	var msg model.Message
	switch phase {
	case model.PhasePrepare:
		msg = r.buildPrepareVote(sibling.Hash, sig, leaderID, now)
	case model.PhasePreCommit:
		msg = r.buildPreCommitVote(sibling.Hash, sig, leaderID, now)
	case model.PhaseCommit:
		msg = r.buildCommitVote(sibling.Hash, sig, leaderID, now)
	default:
		return nil, nil
	}

	return msg, r.byzantineEvent(now, "double_vote")
}

func (r *State) buildNewView(leaderID uint32, now uint64) model.NewViewMsg {
	target := leaderID
	return model.NewViewMsg{
		Envelope:  model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now, Target: &target},
		JustifyQC: r.prepareQC,
	}
}

func (r *State) buildPrepare(block *model.Block, highQC *model.QuorumCertificate, now uint64) model.PrepareMsg {
	return model.PrepareMsg{
		Envelope: model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now},
		Block:    block,
		HighQC:   highQC,
	}
}

func (r *State) buildPrepareVote(blockHash model.Hash, sig model.PartialSignature, leaderID uint32, now uint64) model.PrepareVoteMsg {
	target := leaderID
	return model.PrepareVoteMsg{
		Envelope:  model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now, Target: &target},
		BlockHash: blockHash,
		Sig:       sig,
	}
}

func (r *State) buildPreCommit(qc *model.QuorumCertificate, now uint64) model.PreCommitMsg {
	return model.PreCommitMsg{
		Envelope:  model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now},
		PrepareQC: qc,
	}
}

func (r *State) buildPreCommitVote(blockHash model.Hash, sig model.PartialSignature, leaderID uint32, now uint64) model.PreCommitVoteMsg {
	target := leaderID
	return model.PreCommitVoteMsg{
		Envelope:  model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now, Target: &target},
		BlockHash: blockHash,
		Sig:       sig,
	}
}

func (r *State) buildCommit(qc *model.QuorumCertificate, now uint64) model.CommitMsg {
	return model.CommitMsg{
		Envelope:    model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now},
		PreCommitQC: qc,
	}
}

func (r *State) buildCommitVote(blockHash model.Hash, sig model.PartialSignature, leaderID uint32, now uint64) model.CommitVoteMsg {
	target := leaderID
	return model.CommitVoteMsg{
		Envelope:  model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now, Target: &target},
		BlockHash: blockHash,
		Sig:       sig,
	}
}

func (r *State) buildDecide(qc *model.QuorumCertificate, now uint64) model.DecideMsg {
	return model.DecideMsg{
		Envelope: model.Envelope{MessageID: r.nextMsgID(), Sender: r.id, View: r.currentView, Timestamp: now},
		CommitQC: qc,
	}
}
