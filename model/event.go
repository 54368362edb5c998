package model

// EventKind tags the nine observable event variants of the external
// contract (spec.md §6.3).
type EventKind uint8

const (
	EventViewChange EventKind = iota
	EventProposal
	EventVoteSend
	EventQCFormation
	EventLockUpdate
	EventCommit
	EventTimeout
	EventMessageReceive
	EventByzantineAction
)

func (k EventKind) String() string {
	switch k {
	case EventViewChange:
		return "VIEW_CHANGE"
	case EventProposal:
		return "PROPOSAL"
	case EventVoteSend:
		return "VOTE_SEND"
	case EventQCFormation:
		return "QC_FORMATION"
	case EventLockUpdate:
		return "LOCK_UPDATE"
	case EventCommit:
		return "COMMIT"
	case EventTimeout:
		return "TIMEOUT"
	case EventMessageReceive:
		return "MESSAGE_RECEIVE"
	case EventByzantineAction:
		return "BYZANTINE_ACTION"
	default:
		return "UNKNOWN"
	}
}

// Event is the sum type over every record appended to the engine's
// history (spec.md §3 "Events are append-only", §6.3). Unlike Message it
// has no unexported marker method, so it is not sealed to this package.
type Event interface {
	Kind() EventKind
	Timestamp() uint64
}

type ViewChangeEvent struct {
	At        uint64
	ReplicaID uint32
	NewView   uint64
}

func (e ViewChangeEvent) Kind() EventKind    { return EventViewChange }
func (e ViewChangeEvent) Timestamp() uint64  { return e.At }

type ProposalEvent struct {
	At        uint64
	ReplicaID uint32
	BlockHash Hash
	View      uint64
}

func (e ProposalEvent) Kind() EventKind   { return EventProposal }
func (e ProposalEvent) Timestamp() uint64 { return e.At }

type VoteSendEvent struct {
	At        uint64
	ReplicaID uint32
	VoteType  MessageType
	BlockHash Hash
}

func (e VoteSendEvent) Kind() EventKind   { return EventVoteSend }
func (e VoteSendEvent) Timestamp() uint64 { return e.At }

type QCFormationEvent struct {
	At        uint64
	ReplicaID uint32
	QCType    Phase
	View      uint64
}

func (e QCFormationEvent) Kind() EventKind   { return EventQCFormation }
func (e QCFormationEvent) Timestamp() uint64 { return e.At }

type LockUpdateEvent struct {
	At         uint64
	ReplicaID  uint32
	LockedView uint64
}

func (e LockUpdateEvent) Kind() EventKind   { return EventLockUpdate }
func (e LockUpdateEvent) Timestamp() uint64 { return e.At }

type CommitEvent struct {
	At        uint64
	ReplicaID uint32
	BlockHash Hash
	Height    uint64
}

func (e CommitEvent) Kind() EventKind   { return EventCommit }
func (e CommitEvent) Timestamp() uint64 { return e.At }

type TimeoutEvent struct {
	At        uint64
	ReplicaID uint32
	View      uint64
	NextView  uint64
}

func (e TimeoutEvent) Kind() EventKind   { return EventTimeout }
func (e TimeoutEvent) Timestamp() uint64 { return e.At }

type MessageReceiveEvent struct {
	At          uint64
	RecipientID uint32
	SenderID    uint32
	MessageType MessageType
	MessageID   uint64
}

func (e MessageReceiveEvent) Kind() EventKind   { return EventMessageReceive }
func (e MessageReceiveEvent) Timestamp() uint64 { return e.At }

type ByzantineActionEvent struct {
	At        uint64
	ReplicaID uint32
	Action    string
	View      uint64
}

func (e ByzantineActionEvent) Kind() EventKind   { return EventByzantineAction }
func (e ByzantineActionEvent) Timestamp() uint64 { return e.At }
