// Package engine is the simulation orchestrator. It owns the clock,
// scheduler, network, leader schedule, per-replica pacemakers, replicas,
// and the append-only event history, and drives them through a
// start/step/pause/resume/reset lifecycle. Unlike a live consensus engine,
// stepping is synchronous and host-driven rather than running on an
// internal goroutine, so a single call to Step never blocks or leaves
// mid-step state for another caller to observe.
package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/pacemaker"
	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/replica"
	"github.com/dapperlabs/hotstuff-sim/faultinjector"
	"github.com/dapperlabs/hotstuff-sim/metricscollector"
	"github.com/dapperlabs/hotstuff-sim/model"
	"github.com/dapperlabs/hotstuff-sim/networksim"
)

// ReplicaSummary is a point-in-time snapshot of one replica, as returned by
// ReplicaStates for dashboards and assertions.
type ReplicaSummary struct {
	ID              uint32
	View            uint64
	Phase           model.Phase
	LockedQC        *model.QuorumCertificate
	PrepareQC       *model.QuorumCertificate
	FaultKind       model.FaultKind
	CommittedHeight uint64
}

// Engine is the single writer to every component it owns; replicas never
// observe each other directly, only through the network's queues.
type Engine struct {
	settings Settings
	log      zerolog.Logger

	clock     *networksim.Clock
	scheduler *networksim.Scheduler
	network   *networksim.Network

	replicaIDs []uint32
	replicas   map[uint32]*replica.State
	pacemakers map[uint32]pacemaker.Pacemaker

	injector *faultinjector.Injector
	metrics  *metricscollector.Collector

	history        []model.Event
	viewStartTimes map[uint32]map[uint64]uint64
	currentView    uint64

	running *atomic.Bool
	paused  *atomic.Bool
}

// New validates settings and constructs an Engine. It does not start the
// run — the caller does that explicitly via Start.
func New(settings Settings, log zerolog.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	e := &Engine{
		settings: settings,
		log:      log.With().Str("component", "engine").Logger(),
		running:  atomic.NewBool(false),
		paused:   atomic.NewBool(false),
	}
	e.build()
	return e, nil
}

// build (re)creates every owned component from settings — shared by New
// and Reset, so a reset run starts from exactly the same state a fresh one
// would.
func (e *Engine) build() {
	n := e.settings.NumReplicas
	quorum := e.settings.Quorum()

	ids := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		ids[i] = i
	}
	e.replicaIDs = ids

	e.clock = &networksim.Clock{}
	e.scheduler = networksim.NewScheduler()
	e.network = networksim.NewNetwork(ids, e.settings.NetworkDelayMinMs, e.settings.NetworkDelayMaxMs, e.settings.Seed)

	e.replicas = make(map[uint32]*replica.State, n)
	e.pacemakers = make(map[uint32]pacemaker.Pacemaker, n)
	for _, id := range ids {
		log := e.log.With().Uint32("replica_id", id).Logger()
		e.replicas[id] = replica.New(id, n, quorum, e.settings.Seed, log)
		e.pacemakers[id] = e.settings.newPacemaker(newLoggingObserver(id, log))
	}

	configured := make(map[uint32]model.FaultKind)
	for id := n - uint32(e.settings.NumFaulty); id < n; id++ {
		configured[id] = e.settings.FaultKind
	}
	e.injector = faultinjector.New(e.network, configured)
	e.injector.Apply(e.replicaHandles())

	e.metrics = metricscollector.New()
	e.history = nil
	e.viewStartTimes = make(map[uint32]map[uint64]uint64)
	e.currentView = 1
}

func (e *Engine) replicaHandles() map[uint32]faultinjector.ReplicaHandle {
	handles := make(map[uint32]faultinjector.ReplicaHandle, len(e.replicas))
	for id, r := range e.replicas {
		handles[id] = r
	}
	return handles
}

// Start begins the run: every replica enters view 1, in ascending id
// order, each arming its timer and scheduling its first timeout.
func (e *Engine) Start() []model.Event {
	e.running.Store(true)
	e.paused.Store(false)

	var produced []model.Event
	now := e.clock.Now()
	for _, id := range e.replicaIDs {
		produced = append(produced, e.startViewFor(id, 1, now)...)
		deadline := e.pacemakers[id].StartTimer(1, now)
		e.recordViewStart(id, 1, now)
		e.scheduler.Push(deadline, networksim.TimerPayload{ReplicaID: id, View: 1})
	}
	return produced
}

// Step processes one logical unit of simulated time: either every message
// ready for delivery at the earliest pending delivery time, or (if earlier,
// with ties favoring the network) one scheduled timer firing. It returns
// every event appended during the call and whether the engine made
// progress, since a single timestamp can synthesize many events atomically
// — a batch of message deliveries, or a timeout cascading into a new
// proposal — and a caller wanting just "did something happen" can check
// the second value instead of inspecting the slice.
func (e *Engine) Step() ([]model.Event, bool) {
	if !e.running.Load() || e.paused.Load() {
		return nil, false
	}

	tNet, hasNet := e.network.NextDeliveryTime()
	tSched, hasSched := e.scheduler.PeekTime()
	if !hasNet && !hasSched {
		return nil, false
	}

	useNetwork := hasNet && (!hasSched || tNet <= tSched)

	if useNetwork {
		return e.stepNetwork(tNet), true
	}
	return e.stepTimeout(), true
}

func (e *Engine) stepNetwork(now uint64) []model.Event {
	e.clock.AdvanceTo(now)
	var produced []model.Event
	for _, id := range e.replicaIDs {
		for _, msg := range e.network.Pending(id, now) {
			env := msg.Env()
			recv := model.MessageReceiveEvent{
				At: now, RecipientID: id, SenderID: env.Sender,
				MessageType: model.MessageKind(msg), MessageID: env.MessageID,
			}
			e.appendEvent(recv)
			produced = append(produced, recv)

			result := e.replicas[id].HandleMessage(msg, now)
			produced = append(produced, e.dispatchResult(id, result, now)...)
		}
	}
	return produced
}

func (e *Engine) stepTimeout() []model.Event {
	now, payload, ok := e.scheduler.Pop()
	if !ok {
		return nil
	}
	e.clock.AdvanceTo(now)

	r, ok := e.replicas[payload.ReplicaID]
	if !ok || r.CurrentView() != payload.View {
		return nil // stale timeout: ignore
	}

	e.pacemakers[payload.ReplicaID].OnTimeout(now)
	timeoutEvt := model.TimeoutEvent{At: now, ReplicaID: payload.ReplicaID, View: payload.View, NextView: payload.View + 1}
	e.appendEvent(timeoutEvt)
	produced := []model.Event{timeoutEvt}

	produced = append(produced, e.startViewFor(payload.ReplicaID, payload.View+1, now)...)

	deadline := e.pacemakers[payload.ReplicaID].StartTimer(payload.View+1, now)
	e.recordViewStart(payload.ReplicaID, payload.View+1, now)
	e.scheduler.Push(deadline, networksim.TimerPayload{ReplicaID: payload.ReplicaID, View: payload.View + 1})

	return produced
}

// startViewFor calls replica id's start_view(v), tracks current_view's
// high-water mark, and dispatches the resulting events/outbound messages.
func (e *Engine) startViewFor(id uint32, v uint64, now uint64) []model.Event {
	result := e.replicas[id].StartView(v, now)
	if v > e.currentView {
		e.currentView = v
	}
	return e.dispatchResult(id, result, now)
}

// dispatchResult appends a replica.Result's events to history, folds them
// into the metrics collector, routes outbound messages through the
// network, and — if any commit event is present — advances that replica's
// view exactly once, even if the result committed more than one block.
func (e *Engine) dispatchResult(senderID uint32, result replica.Result, now uint64) []model.Event {
	produced := append([]model.Event{}, result.Events...)
	for _, ev := range result.Events {
		e.history = append(e.history, ev)
		e.metrics.Fold(ev)
	}

	for _, msg := range result.Outbound {
		env := msg.Env()
		if env.Target == nil {
			e.network.Broadcast(msg, senderID, now, false)
		} else {
			e.network.Send(msg, *env.Target, now)
		}
	}

	for _, ev := range result.Events {
		if _, ok := ev.(model.CommitEvent); ok {
			produced = append(produced, e.postCommitAdvance(senderID, now)...)
			break
		}
	}

	return produced
}

func (e *Engine) postCommitAdvance(id uint32, now uint64) []model.Event {
	v := e.replicas[id].CurrentView()
	started := e.viewStartTimes[id][v]
	var duration uint64
	if now > started {
		duration = now - started
	}
	e.pacemakers[id].OnViewSuccess(v, duration)
	e.pacemakers[id].StopTimer()

	nextView := v + 1
	produced := e.startViewFor(id, nextView, now)

	deadline := e.pacemakers[id].StartTimer(nextView, now)
	e.recordViewStart(id, nextView, now)
	e.scheduler.Push(deadline, networksim.TimerPayload{ReplicaID: id, View: nextView})

	return produced
}

func (e *Engine) appendEvent(ev model.Event) {
	e.history = append(e.history, ev)
	e.metrics.Fold(ev)
}

func (e *Engine) recordViewStart(id uint32, v uint64, now uint64) {
	if e.viewStartTimes[id] == nil {
		e.viewStartTimes[id] = make(map[uint64]uint64)
	}
	e.viewStartTimes[id][v] = now
}

// Pause stops Step from making progress until Resume is called.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume clears a prior Pause.
func (e *Engine) Resume() { e.paused.Store(false) }

// Reset recreates the network, pacemakers, and replicas; clears the
// scheduler, history, and recorded view-start times; and re-applies the
// configured faulty replicas.
func (e *Engine) Reset() {
	e.running.Store(false)
	e.paused.Store(false)
	e.build()
}

// InjectFault mutates replica id's fault state at runtime. Returns an
// error for an unknown id.
func (e *Engine) InjectFault(id uint32, kind model.FaultKind) error {
	r, ok := e.replicas[id]
	if !ok {
		return fmt.Errorf("inject_fault: unknown replica id %d", id)
	}
	e.injector.InjectFault(id, r, kind)
	return nil
}

// ClearFault restores replica id to FaultNone.
func (e *Engine) ClearFault(id uint32) error {
	r, ok := e.replicas[id]
	if !ok {
		return fmt.Errorf("clear_fault: unknown replica id %d", id)
	}
	e.injector.ClearFault(id, r)
	return nil
}

// ReplicaStates returns a snapshot of every replica, in ascending id order.
func (e *Engine) ReplicaStates() []ReplicaSummary {
	out := make([]ReplicaSummary, 0, len(e.replicaIDs))
	for _, id := range e.replicaIDs {
		r := e.replicas[id]
		var height uint64
		if committed := r.CommittedBlocks(); len(committed) > 0 {
			height = committed[len(committed)-1].Height
		}
		out = append(out, ReplicaSummary{
			ID:              id,
			View:            r.CurrentView(),
			Phase:           r.CurrentPhase(),
			LockedQC:        r.LockedQC(),
			PrepareQC:       r.PrepareQC(),
			FaultKind:       r.FaultKind(),
			CommittedHeight: height,
		})
	}
	return out
}

// RecentEvents returns the last k events of the history, oldest first.
func (e *Engine) RecentEvents(k int) []model.Event {
	if k <= 0 || len(e.history) == 0 {
		return nil
	}
	if k > len(e.history) {
		k = len(e.history)
	}
	return append([]model.Event{}, e.history[len(e.history)-k:]...)
}

// History returns the complete append-only event history.
func (e *Engine) History() []model.Event {
	return append([]model.Event{}, e.history...)
}

// InFlightMessages returns the network's derived in-flight view.
func (e *Engine) InFlightMessages() []model.InFlightMessage {
	return e.network.InFlightMessages()
}

// CurrentTime returns the simulated clock's current value in milliseconds.
func (e *Engine) CurrentTime() uint64 { return e.clock.Now() }

// CurrentView returns the high-water mark across replicas. It is
// reporting only: per-replica views can diverge, and callers that need a
// specific replica's view should use ReplicaStates.
func (e *Engine) CurrentView() uint64 { return e.currentView }

func (e *Engine) IsRunning() bool { return e.running.Load() }
func (e *Engine) IsPaused() bool  { return e.paused.Load() }

// Metrics exposes the live metrics collector for summary()/scraping.
func (e *Engine) Metrics() *metricscollector.Collector { return e.metrics }
