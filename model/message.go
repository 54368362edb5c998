package model

// MessageType tags the eight Basic HotStuff message variants (spec.md §3).
type MessageType uint8

const (
	MessageNewView MessageType = iota
	MessagePrepare
	MessagePrepareVote
	MessagePreCommit
	MessagePreCommitVote
	MessageCommit
	MessageCommitVote
	MessageDecide
)

func (t MessageType) String() string {
	switch t {
	case MessageNewView:
		return "NewView"
	case MessagePrepare:
		return "Prepare"
	case MessagePrepareVote:
		return "PrepareVote"
	case MessagePreCommit:
		return "PreCommit"
	case MessagePreCommitVote:
		return "PreCommitVote"
	case MessageCommit:
		return "Commit"
	case MessageCommitVote:
		return "CommitVote"
	case MessageDecide:
		return "Decide"
	default:
		return "Unknown"
	}
}

// Envelope carries the fields common to every message (spec.md §3).
// Target == nil means broadcast.
type Envelope struct {
	MessageID uint64
	Sender    uint32
	View      uint64
	Timestamp uint64
	Target    *uint32
}

func (e Envelope) IsBroadcast() bool {
	return e.Target == nil
}

// Message is the closed sum type over the eight message variants. The
// unexported marker method seals the set the way the teacher's notification
// consumer interfaces are each a single-purpose, closed contract
// (engine/consensus/hotstuff/examples/notifications/consumers.go).
type Message interface {
	messageKind() MessageType
	Env() Envelope
}

type NewViewMsg struct {
	Envelope
	JustifyQC *QuorumCertificate // nil if the replica has no QC yet
}

func (m NewViewMsg) messageKind() MessageType { return MessageNewView }
func (m NewViewMsg) Env() Envelope        { return m.Envelope }

type PrepareMsg struct {
	Envelope
	Block  *Block
	HighQC *QuorumCertificate // nil only for the genesis proposal
}

func (m PrepareMsg) messageKind() MessageType { return MessagePrepare }
func (m PrepareMsg) Env() Envelope        { return m.Envelope }

type PrepareVoteMsg struct {
	Envelope
	BlockHash Hash
	Sig       PartialSignature
}

func (m PrepareVoteMsg) messageKind() MessageType { return MessagePrepareVote }
func (m PrepareVoteMsg) Env() Envelope        { return m.Envelope }

type PreCommitMsg struct {
	Envelope
	PrepareQC *QuorumCertificate
}

func (m PreCommitMsg) messageKind() MessageType { return MessagePreCommit }
func (m PreCommitMsg) Env() Envelope        { return m.Envelope }

type PreCommitVoteMsg struct {
	Envelope
	BlockHash Hash
	Sig       PartialSignature
}

func (m PreCommitVoteMsg) messageKind() MessageType { return MessagePreCommitVote }
func (m PreCommitVoteMsg) Env() Envelope        { return m.Envelope }

type CommitMsg struct {
	Envelope
	PreCommitQC *QuorumCertificate
}

func (m CommitMsg) messageKind() MessageType { return MessageCommit }
func (m CommitMsg) Env() Envelope        { return m.Envelope }

type CommitVoteMsg struct {
	Envelope
	BlockHash Hash
	Sig       PartialSignature
}

func (m CommitVoteMsg) messageKind() MessageType { return MessageCommitVote }
func (m CommitVoteMsg) Env() Envelope        { return m.Envelope }

type DecideMsg struct {
	Envelope
	CommitQC *QuorumCertificate
}

func (m DecideMsg) messageKind() MessageType { return MessageDecide }
func (m DecideMsg) Env() Envelope        { return m.Envelope }

// MessageKind exposes the sealed marker publicly for switch-exhaustiveness
// checks in consumers outside the model package (e.g. the network and the
// engine).
func MessageKind(m Message) MessageType {
	return m.messageKind()
}
