package networksim

import (
	"container/heap"
	"math/rand"
	"sort"

	"github.com/dapperlabs/hotstuff-sim/model"
)

// deliveryItem is one message sitting in a single replica's delivery queue,
// ordered by (deliveryTime, seq) — ties broken by insertion order, the same
// determinism rule the scheduler enforces.
type deliveryItem struct {
	deliveryTime uint64
	seq          uint64
	msg          model.Message
	index        int
}

type deliveryHeap []*deliveryItem

func (h deliveryHeap) Len() int { return len(h) }
func (h deliveryHeap) Less(i, j int) bool {
	if h[i].deliveryTime != h[j].deliveryTime {
		return h[i].deliveryTime < h[j].deliveryTime
	}
	return h[i].seq < h[j].seq
}
func (h deliveryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *deliveryHeap) Push(x interface{}) {
	item := x.(*deliveryItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *deliveryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Network is the simulated network: per-target delivery queues with
// uniform random delay, silent drops for blocked replicas, and a derived
// in-flight view for visualization.
type Network struct {
	minDelay, maxDelay uint64
	rng                *rand.Rand

	registered []uint32
	blocked    map[uint32]struct{}
	queues     map[uint32]*deliveryHeap
	nextSeq    uint64

	inFlight map[uint64]model.InFlightMessage
}

// NewNetwork constructs a network seeded once at construction time. All
// randomness affecting delivery ordering must come from this single source
// so two runs with the same seed produce identical traces.
func NewNetwork(replicaIDs []uint32, minDelay, maxDelay uint64, seed int64) *Network {
	n := &Network{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(seed)),
		blocked:  make(map[uint32]struct{}),
		queues:   make(map[uint32]*deliveryHeap),
		inFlight: make(map[uint64]model.InFlightMessage),
	}
	for _, id := range replicaIDs {
		n.register(id)
	}
	return n
}

func (n *Network) register(id uint32) {
	n.registered = append(n.registered, id)
	sort.Slice(n.registered, func(i, j int) bool { return n.registered[i] < n.registered[j] })
	q := make(deliveryHeap, 0)
	heap.Init(&q)
	n.queues[id] = &q
}

// Block marks a replica as unreachable; messages subsequently sent to it are
// dropped silently. Already-enqueued deliveries are left untouched (they
// are simply excluded from NextDeliveryTime/Pending until unblocked).
func (n *Network) Block(id uint32) {
	n.blocked[id] = struct{}{}
}

// Unblock clears a previously blocked replica.
func (n *Network) Unblock(id uint32) {
	delete(n.blocked, id)
}

func (n *Network) IsBlocked(id uint32) bool {
	_, blocked := n.blocked[id]
	return blocked
}

// Send enqueues msg for target, drawing a uniform delay in [minDelay,
// maxDelay] from the network's seeded PRNG. Returns the delivery time and
// true, or (0, false) if the target is blocked (a silent drop).
func (n *Network) Send(msg model.Message, target uint32, now uint64) (uint64, bool) {
	if n.IsBlocked(target) {
		return 0, false
	}
	q, ok := n.queues[target]
	if !ok {
		return 0, false
	}

	span := n.maxDelay - n.minDelay
	var delay uint64
	if span > 0 {
		delay = n.minDelay + uint64(n.rng.Int63n(int64(span)+1))
	} else {
		delay = n.minDelay
	}
	deliveryTime := now + delay

	seq := n.nextSeq
	heap.Push(q, &deliveryItem{deliveryTime: deliveryTime, seq: seq, msg: msg})
	n.nextSeq++

	// Keyed by queue seq, not message id: a broadcast enqueues one copy of
	// the same message per target.
	env := msg.Env()
	n.inFlight[seq] = model.InFlightMessage{
		MessageID:    env.MessageID,
		Sender:       env.Sender,
		Target:       target,
		Type:         model.MessageKind(msg),
		DeliveryTime: deliveryTime,
	}

	return deliveryTime, true
}

// Broadcast sends msg to every registered replica in ascending id order,
// excluding the sender when includeSender is false. Drops to blocked
// replicas are silent and do not stop delivery to others.
func (n *Network) Broadcast(msg model.Message, sender uint32, now uint64, includeSender bool) {
	for _, id := range n.registered {
		if id == sender && !includeSender {
			continue
		}
		n.Send(msg, id, now)
	}
}

// Pending pops and returns every message queued for replica with
// deliveryTime <= now, in heap order (earliest first, ties by insertion
// order).
func (n *Network) Pending(replica uint32, now uint64) []model.Message {
	if n.IsBlocked(replica) {
		return nil
	}
	q, ok := n.queues[replica]
	if !ok {
		return nil
	}
	var out []model.Message
	for q.Len() > 0 && (*q)[0].deliveryTime <= now {
		item := heap.Pop(q).(*deliveryItem)
		out = append(out, item.msg)
		delete(n.inFlight, item.seq)
	}
	return out
}

// NextDeliveryTime returns the earliest delivery time across every
// non-blocked replica's queue.
func (n *Network) NextDeliveryTime() (uint64, bool) {
	has := false
	var min uint64
	for _, id := range n.registered {
		if n.IsBlocked(id) {
			continue
		}
		q := n.queues[id]
		if q.Len() == 0 {
			continue
		}
		t := (*q)[0].deliveryTime
		if !has || t < min {
			min = t
			has = true
		}
	}
	return min, has
}

// InFlightMessages returns a deterministic (message-id ascending, then
// target ascending) snapshot of every message currently in a delivery
// queue — a derived view kept consistent on every Send/Pending call.
func (n *Network) InFlightMessages() []model.InFlightMessage {
	out := make([]model.InFlightMessage, 0, len(n.inFlight))
	for _, m := range n.inFlight {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageID != out[j].MessageID {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Reset clears all queues, blocks, and in-flight bookkeeping but keeps the
// registered replica set and the PRNG (a fresh run re-seeds by constructing
// a new Network, per engine.reset()'s "recreate network").
func (n *Network) Reset() {
	n.blocked = make(map[uint32]struct{})
	n.inFlight = make(map[uint64]model.InFlightMessage)
	n.nextSeq = 0
	for _, id := range n.registered {
		q := make(deliveryHeap, 0)
		heap.Init(&q)
		n.queues[id] = &q
	}
}
