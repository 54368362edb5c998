package engine

import (
	"github.com/rs/zerolog"

	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/pacemaker"
)

// loggingObserver is a Debug-level pacemaker.Observer, in the idiom of
// engine/consensus/hotstuff/examples/notifications/consumers.go's
// StartingTimeoutConsumer/ReachedTimeoutConsumer. It is purely diagnostic —
// nothing in the protocol depends on it firing.
type loggingObserver struct {
	replicaID uint32
	log       zerolog.Logger
}

func newLoggingObserver(id uint32, log zerolog.Logger) pacemaker.Observer {
	return &loggingObserver{replicaID: id, log: log}
}

func (o *loggingObserver) OnTimerStarted(view uint64, deadline uint64) {
	o.log.Debug().Uint64("view", view).Uint64("deadline", deadline).Msg("timer started")
}

func (o *loggingObserver) OnTimerStopped(view uint64) {
	o.log.Debug().Uint64("view", view).Msg("timer stopped")
}

func (o *loggingObserver) OnTimeout(view uint64, next uint64) {
	o.log.Debug().Uint64("view", view).Uint64("next_view", next).Msg("timer expired")
}
