package model

// Phase is one of the four HotStuff protocol phases plus the NewView
// bootstrap phase a replica sits in while collecting new-view messages for
// the view it is about to propose or vote in (spec.md §3, §4.7).
type Phase uint8

const (
	PhaseNewView Phase = iota
	PhasePrepare
	PhasePreCommit
	PhaseCommit
	PhaseDecide
)

func (p Phase) String() string {
	switch p {
	case PhaseNewView:
		return "NewView"
	case PhasePrepare:
		return "Prepare"
	case PhasePreCommit:
		return "PreCommit"
	case PhaseCommit:
		return "Commit"
	case PhaseDecide:
		return "Decide"
	default:
		return "Unknown"
	}
}
