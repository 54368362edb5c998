package model

import "fmt"

// InvalidMessageError reports a message that failed type/view/sender
// validation (spec.md §7). It is always recovered locally — the message is
// dropped and logged at DEBUG, never propagated upward.
type InvalidMessageError struct {
	Reason string
}

func (e InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

// InvalidQCError reports a QC presented without sufficient signatures, or
// with signatures whose (phase, view, block_hash) fields mismatch the QC's
// own (spec.md §7). Rejected locally.
type InvalidQCError struct {
	Reason string
}

func (e InvalidQCError) Error() string {
	return fmt.Sprintf("invalid quorum certificate: %s", e.Reason)
}

// PhaseViolationError reports a message received in a phase that does not
// accept it (spec.md §7). Dropped, never aborts.
type PhaseViolationError struct {
	ReplicaID uint32
	Phase     Phase
	Got       MessageType
}

func (e PhaseViolationError) Error() string {
	return fmt.Sprintf("replica %d in phase %s cannot accept %s", e.ReplicaID, e.Phase, e.Got)
}

// StaleVoteError reports a vote for a view at or below HighestPrunedView,
// the highest view whose votes were pruned. The vote collector in this
// module keeps no pruning mark and does not return this error.
type StaleVoteError struct {
	View              uint64
	HighestPrunedView uint64
}

func (e StaleVoteError) Error() string {
	return fmt.Sprintf("vote for view %d is stale (highest pruned view %d)", e.View, e.HighestPrunedView)
}

// ConfigurationError reports an invalid Settings value caught at engine
// construction (spec.md §7, §6.2).
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}
