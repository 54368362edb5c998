package networksim

import "container/heap"

// TimerPayload identifies what a scheduled timer event is for — in this
// simulator, always a per-replica view timeout.
type TimerPayload struct {
	ReplicaID uint32
	View      uint64
}

// schedulerItem is one entry in the scheduler's min-heap, ordered by
// (timestamp, seq) so that equal timestamps are broken by insertion order,
// keeping replay deterministic across runs.
type schedulerItem struct {
	timestamp uint64
	seq       uint64
	payload   TimerPayload
	index     int
}

// schedulerHeap is the container/heap.Interface implementation, following
// the priority-queue shape of network/gossip/libp2p/queue/messageQueue.go
// adapted from single-priority to (timestamp, seq) ordering.
type schedulerHeap []*schedulerItem

func (h schedulerHeap) Len() int { return len(h) }

func (h schedulerHeap) Less(i, j int) bool {
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp < h[j].timestamp
	}
	return h[i].seq < h[j].seq
}

func (h schedulerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *schedulerHeap) Push(x interface{}) {
	item := x.(*schedulerItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *schedulerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Scheduler is the engine's min-heap of timed events.
type Scheduler struct {
	heap    schedulerHeap
	nextSeq uint64
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{heap: make(schedulerHeap, 0)}
	heap.Init(&s.heap)
	return s
}

// Push schedules payload for delivery at timestamp t.
func (s *Scheduler) Push(t uint64, payload TimerPayload) {
	heap.Push(&s.heap, &schedulerItem{timestamp: t, seq: s.nextSeq, payload: payload})
	s.nextSeq++
}

// PeekTime returns the timestamp of the earliest scheduled event, if any.
func (s *Scheduler) PeekTime() (uint64, bool) {
	if len(s.heap) == 0 {
		return 0, false
	}
	return s.heap[0].timestamp, true
}

// Pop removes and returns the earliest scheduled event.
func (s *Scheduler) Pop() (uint64, TimerPayload, bool) {
	if len(s.heap) == 0 {
		return 0, TimerPayload{}, false
	}
	item := heap.Pop(&s.heap).(*schedulerItem)
	return item.timestamp, item.payload, true
}

// Len reports the number of pending scheduled events.
func (s *Scheduler) Len() int {
	return len(s.heap)
}

// Reset clears every pending event.
func (s *Scheduler) Reset() {
	s.heap = make(schedulerHeap, 0)
	heap.Init(&s.heap)
	s.nextSeq = 0
}
