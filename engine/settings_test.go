package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/hotstuff-sim/model"
)

func validSettings() Settings {
	return Settings{
		NumReplicas:       4,
		NumFaulty:         0,
		FaultKind:         model.FaultNone,
		PacemakerType:     PacemakerFixed,
		BaseTimeoutMs:     1000,
		NetworkDelayMinMs: 10,
		NetworkDelayMaxMs: 50,
		SimulationSpeed:   1,
		Seed:              42,
	}
}

func TestSettingsValidateAcceptsValidConfiguration(t *testing.T) {
	require.NoError(t, validSettings().Validate())
}

func TestSettingsValidateRejectsNumReplicasOutOfRange(t *testing.T) {
	s := validSettings()
	s.NumReplicas = 3
	require.Error(t, s.Validate())

	s = validSettings()
	s.NumReplicas = 101
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsNonThreeFPlusOne(t *testing.T) {
	s := validSettings()
	s.NumReplicas = 6
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsNegativeNumFaulty(t *testing.T) {
	s := validSettings()
	s.NumFaulty = -1
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsNumFaultyAboveTolerance(t *testing.T) {
	s := validSettings()
	s.NumFaulty = 2 // f = (4-1)/3 = 1
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsZeroBaseTimeout(t *testing.T) {
	s := validSettings()
	s.BaseTimeoutMs = 0
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsInvertedNetworkDelayRange(t *testing.T) {
	s := validSettings()
	s.NetworkDelayMinMs = 50
	s.NetworkDelayMaxMs = 10
	require.Error(t, s.Validate())

	s = validSettings()
	s.NetworkDelayMinMs = 10
	s.NetworkDelayMaxMs = 10
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsBadAdaptiveAlpha(t *testing.T) {
	s := validSettings()
	s.PacemakerType = PacemakerAdaptive
	s.AdaptiveAlpha = 0
	s.AdaptiveMinTimeoutMs = 100
	s.AdaptiveMaxTimeoutMs = 10000
	require.Error(t, s.Validate())

	s.AdaptiveAlpha = 1
	require.Error(t, s.Validate())
}

func TestSettingsValidateRejectsInvertedAdaptiveTimeoutBounds(t *testing.T) {
	s := validSettings()
	s.PacemakerType = PacemakerAdaptive
	s.AdaptiveAlpha = 0.5
	s.AdaptiveMinTimeoutMs = 10000
	s.AdaptiveMaxTimeoutMs = 100
	require.Error(t, s.Validate())
}

func TestSettingsValidateAcceptsValidAdaptiveConfiguration(t *testing.T) {
	s := validSettings()
	s.PacemakerType = PacemakerAdaptive
	s.AdaptiveAlpha = 0.5
	s.AdaptiveMinTimeoutMs = 100
	s.AdaptiveMaxTimeoutMs = 10000
	require.NoError(t, s.Validate())
}

func TestSettingsValidateRejectsSimulationSpeedOutOfRange(t *testing.T) {
	s := validSettings()
	s.SimulationSpeed = 0
	require.Error(t, s.Validate())

	s = validSettings()
	s.SimulationSpeed = 101
	require.Error(t, s.Validate())
}

func TestSettingsValidateCollectsMultipleViolations(t *testing.T) {
	s := validSettings()
	s.NumReplicas = 3
	s.BaseTimeoutMs = 0
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "num_replicas")
	require.Contains(t, err.Error(), "base_timeout_ms")
}

func TestToleratedFaultsAndQuorum(t *testing.T) {
	s := validSettings()
	s.NumReplicas = 4
	require.Equal(t, uint32(1), s.ToleratedFaults())
	require.Equal(t, 3, s.Quorum())

	s.NumReplicas = 7
	require.Equal(t, uint32(2), s.ToleratedFaults())
	require.Equal(t, 5, s.Quorum())

	s.NumReplicas = 13
	require.Equal(t, uint32(4), s.ToleratedFaults())
	require.Equal(t, 9, s.Quorum())
}

func TestQuorumIndependentOfActualNumFaulty(t *testing.T) {
	s := validSettings()
	s.NumReplicas = 4
	s.NumFaulty = 0
	require.Equal(t, 3, s.Quorum())
}
