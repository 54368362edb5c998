package engine

import (
	"github.com/hashicorp/go-multierror"

	"github.com/dapperlabs/hotstuff-sim/consensus/hotstuff/pacemaker"
	"github.com/dapperlabs/hotstuff-sim/model"
)

// PacemakerType selects the per-replica pacemaker flavor.
type PacemakerType uint8

const (
	PacemakerFixed PacemakerType = iota
	PacemakerAdaptive
)

// Settings is the caller-supplied configuration for a run. A caller
// constructs Settings directly — e.g. from a loaded document or a
// benchmark sweep's Cartesian product of parameters — rather than through
// any config-file loader owned by this package.
type Settings struct {
	NumReplicas uint32
	// NumFaulty is how many replicas are actually configured faulty in
	// this run (ids [NumReplicas-NumFaulty, NumReplicas) get FaultKind).
	// It need not equal the protocol's Byzantine tolerance f = (n-1)/3 —
	// a run can configure n=4 with zero actually-faulty replicas.
	NumFaulty int
	FaultKind model.FaultKind

	PacemakerType        PacemakerType
	BaseTimeoutMs         uint64
	AdaptiveAlpha         float64
	AdaptiveMinTimeoutMs  uint64
	AdaptiveMaxTimeoutMs  uint64

	NetworkDelayMinMs uint64
	NetworkDelayMaxMs uint64

	SimulationSpeed float64

	Seed int64
}

// ToleratedFaults returns f = (n-1)/3, the protocol's Byzantine tolerance,
// used for quorum = n - f.
func (s Settings) ToleratedFaults() uint32 {
	return (s.NumReplicas - 1) / 3
}

// Quorum returns n - f.
func (s Settings) Quorum() int {
	return int(s.NumReplicas - s.ToleratedFaults())
}

// Validate checks every configuration constraint, collecting all
// violations via github.com/hashicorp/go-multierror so a caller sees every
// misconfiguration in one pass instead of just the first.
func (s Settings) Validate() error {
	var result *multierror.Error

	if s.NumReplicas < 4 || s.NumReplicas > 100 {
		result = multierror.Append(result, model.ConfigurationError{
			Reason: "num_replicas must be in [4, 100]",
		})
	}
	if (s.NumReplicas-1)%3 != 0 {
		result = multierror.Append(result, model.ConfigurationError{
			Reason: "num_replicas must satisfy n = 3f+1",
		})
	}
	if s.NumFaulty < 0 {
		result = multierror.Append(result, model.ConfigurationError{
			Reason: "num_faulty must be >= 0",
		})
	}
	if s.NumReplicas >= 1 {
		f := s.ToleratedFaults()
		if uint32(s.NumFaulty) > f {
			result = multierror.Append(result, model.ConfigurationError{
				Reason: "num_faulty must be <= (n-1)/3",
			})
		}
	}
	if s.BaseTimeoutMs == 0 {
		result = multierror.Append(result, model.ConfigurationError{
			Reason: "base_timeout_ms must be > 0",
		})
	}
	if s.NetworkDelayMaxMs <= s.NetworkDelayMinMs {
		result = multierror.Append(result, model.ConfigurationError{
			Reason: "network_delay_max_ms must be > network_delay_min_ms",
		})
	}
	if s.PacemakerType == PacemakerAdaptive {
		if !(s.AdaptiveAlpha > 0 && s.AdaptiveAlpha < 1) {
			result = multierror.Append(result, model.ConfigurationError{
				Reason: "adaptive_alpha must be in (0, 1)",
			})
		}
		if s.AdaptiveMinTimeoutMs > s.AdaptiveMaxTimeoutMs {
			result = multierror.Append(result, model.ConfigurationError{
				Reason: "adaptive_min_timeout_ms must be <= adaptive_max_timeout_ms",
			})
		}
	}
	if !(s.SimulationSpeed > 0 && s.SimulationSpeed <= 100) {
		result = multierror.Append(result, model.ConfigurationError{
			Reason: "simulation_speed must be in (0, 100]",
		})
	}

	if result != nil {
		return result.ErrorOrNil()
	}
	return nil
}

// newPacemaker constructs the pacemaker flavor this Settings selects.
func (s Settings) newPacemaker(observer pacemaker.Observer) pacemaker.Pacemaker {
	switch s.PacemakerType {
	case PacemakerAdaptive:
		return pacemaker.NewAdaptive(s.BaseTimeoutMs, s.AdaptiveMinTimeoutMs, s.AdaptiveMaxTimeoutMs, s.AdaptiveAlpha, observer)
	default:
		return pacemaker.NewFixed(s.BaseTimeoutMs, observer)
	}
}
