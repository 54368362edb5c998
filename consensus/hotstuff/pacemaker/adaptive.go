package pacemaker

import "math"

// Adaptive is the EMA-with-backoff pacemaker: it tightens the timeout
// toward observed view-completion latency on success, and backs off
// exponentially (capped at 4x) on repeated timeouts.
type Adaptive struct {
	base    uint64
	min     uint64
	max     uint64
	alpha   float64
	current uint64

	consecutiveTimeouts int

	view     uint64
	deadline uint64
	armed    bool
	observer Observer
}

// NewAdaptive constructs an adaptive pacemaker. base is also the initial
// current_timeout.
func NewAdaptive(base, min, max uint64, alpha float64, observer Observer) *Adaptive {
	return &Adaptive{
		base:    base,
		min:     min,
		max:     max,
		alpha:   alpha,
		current: base,
		observer: observer,
	}
}

func clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (p *Adaptive) StartTimer(v uint64, now uint64) uint64 {
	p.view = v
	p.deadline = now + p.current
	p.armed = true
	if p.observer != nil {
		p.observer.OnTimerStarted(v, p.deadline)
	}
	return p.deadline
}

func (p *Adaptive) StopTimer() {
	if p.armed && p.observer != nil {
		p.observer.OnTimerStopped(p.view)
	}
	p.armed = false
}

func (p *Adaptive) OnTimeout(now uint64) uint64 {
	next := p.view + 1
	if p.observer != nil {
		p.observer.OnTimeout(p.view, next)
	}
	p.armed = false

	p.consecutiveTimeouts++
	backoff := math.Pow(2, float64(p.consecutiveTimeouts))
	if backoff > 4 {
		backoff = 4
	}
	scaled := uint64(math.Round(float64(p.current) * backoff))
	p.current = clamp(scaled, p.min, p.max)

	return next
}

// OnViewSuccess folds the observed duration into an exponential moving
// average of the timeout, then applies a 1.5x safety margin:
// ema = α·duration + (1-α)·current_timeout
// current_timeout = clamp(round(1.5·ema), min, max)
func (p *Adaptive) OnViewSuccess(v uint64, durationMs uint64) {
	p.consecutiveTimeouts = 0
	ema := p.alpha*float64(durationMs) + (1-p.alpha)*float64(p.current)
	p.current = clamp(uint64(math.Round(1.5*ema)), p.min, p.max)
}

func (p *Adaptive) CurrentTimeout() uint64 {
	return p.current
}

func (p *Adaptive) Deadline() (uint64, bool) {
	return p.deadline, p.armed
}

// Reset restores the base timeout and zeroes the consecutive-timeout
// counter.
func (p *Adaptive) Reset() {
	p.current = p.base
	p.consecutiveTimeouts = 0
	p.view = 0
	p.deadline = 0
	p.armed = false
}
