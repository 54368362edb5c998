package pacemaker

// Fixed is the baseline pacemaker: a constant timeout that never adapts —
// OnViewSuccess is a no-op.
type Fixed struct {
	timeout  uint64
	view     uint64
	deadline uint64
	armed    bool
	observer Observer
}

// NewFixed constructs a baseline pacemaker with the given fixed timeout.
func NewFixed(timeout uint64, observer Observer) *Fixed {
	return &Fixed{timeout: timeout, observer: observer}
}

func (p *Fixed) StartTimer(v uint64, now uint64) uint64 {
	p.view = v
	p.deadline = now + p.timeout
	p.armed = true
	if p.observer != nil {
		p.observer.OnTimerStarted(v, p.deadline)
	}
	return p.deadline
}

func (p *Fixed) StopTimer() {
	if p.armed && p.observer != nil {
		p.observer.OnTimerStopped(p.view)
	}
	p.armed = false
}

func (p *Fixed) OnTimeout(now uint64) uint64 {
	next := p.view + 1
	if p.observer != nil {
		p.observer.OnTimeout(p.view, next)
	}
	p.armed = false
	return next
}

func (p *Fixed) OnViewSuccess(v uint64, durationMs uint64) {
	// baseline pacemaker does not adapt to observed latency
}

func (p *Fixed) CurrentTimeout() uint64 {
	return p.timeout
}

func (p *Fixed) Deadline() (uint64, bool) {
	return p.deadline, p.armed
}

func (p *Fixed) Reset() {
	p.view = 0
	p.deadline = 0
	p.armed = false
}
