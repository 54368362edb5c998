package metricscollector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/hotstuff-sim/model"
)

func hashOf(b byte) model.Hash {
	var h model.Hash
	h[0] = b
	return h
}

func TestFoldTracksCommitsViewChangesAndTimeouts(t *testing.T) {
	c := New()
	c.FoldAll([]model.Event{
		model.ProposalEvent{At: 10, ReplicaID: 1, BlockHash: hashOf(1), View: 1},
		model.CommitEvent{At: 30, ReplicaID: 1, BlockHash: hashOf(1), Height: 1},
		model.ViewChangeEvent{At: 5, ReplicaID: 0, NewView: 1},
		model.TimeoutEvent{At: 100, ReplicaID: 2, View: 2, NextView: 3},
	})

	summary := c.Summarize()
	require.Equal(t, uint64(1), summary.BlocksCommitted)
	require.Equal(t, uint64(1), summary.TotalViews)
	require.Equal(t, uint64(1), summary.TotalTimeouts)
	require.Equal(t, uint64(100), summary.DurationMs)
	require.InDelta(t, 20.0, summary.LatencyAvgMs, 0.001) // commit at 30 - proposal at 10
}

func TestFoldIgnoresDuplicateCommitOfSameBlock(t *testing.T) {
	c := New()
	c.Fold(model.ProposalEvent{At: 0, BlockHash: hashOf(7), View: 1})
	c.Fold(model.CommitEvent{At: 10, BlockHash: hashOf(7), Height: 1})
	c.Fold(model.CommitEvent{At: 20, BlockHash: hashOf(7), Height: 1}) // replayed by another replica

	summary := c.Summarize()
	require.Equal(t, uint64(1), summary.BlocksCommitted)
	require.Len(t, c.latencies, 1)
}

func TestSummarizeEmptyCollectorIsZeroValued(t *testing.T) {
	c := New()
	summary := c.Summarize()
	require.Equal(t, uint64(0), summary.BlocksCommitted)
	require.Equal(t, 0.0, summary.LatencyAvgMs)
	require.Equal(t, 0.0, summary.ThroughputBps)
}

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	require.Equal(t, 10.0, percentile(sorted, 0))
	require.Equal(t, 40.0, percentile(sorted, 1))
	require.InDelta(t, 25.0, percentile(sorted, 0.5), 0.001)
}

func TestResetClearsAllState(t *testing.T) {
	c := New()
	c.Fold(model.CommitEvent{At: 10, BlockHash: hashOf(1), Height: 1})
	c.Fold(model.ViewChangeEvent{At: 5, NewView: 1})

	c.Reset()
	summary := c.Summarize()
	require.Equal(t, uint64(0), summary.BlocksCommitted)
	require.Equal(t, uint64(0), summary.TotalViews)
	require.Equal(t, uint64(0), summary.DurationMs)
}

func TestTwoCollectorsDoNotPanicOnRegistration(t *testing.T) {
	require.NotPanics(t, func() {
		c1 := New()
		c2 := New()
		c1.Fold(model.ViewChangeEvent{At: 1, NewView: 1})
		c2.Fold(model.ViewChangeEvent{At: 1, NewView: 1})
	})
}
