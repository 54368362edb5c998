package model

// Block is an immutable record in the replicated log. Genesis is the unique
// block with ParentHash == ZeroHash, Height == 0, View == 0.
//
// Invariant: Height(b) == Height(parent(b)) + 1 for every non-genesis block
// (spec.md §3). Hash injectivity within a run is guaranteed by
// ComputeBlockHash binding every field that can vary between two otherwise
// similar blocks, including the proposer and view.
type Block struct {
	Hash       Hash
	ParentHash Hash
	Command    string
	Height     uint64
	Proposer   uint32
	View       uint64
}

// Genesis constructs the run's unique genesis block.
func Genesis() *Block {
	b := &Block{
		ParentHash: ZeroHash,
		Command:    "genesis",
		Height:     0,
		Proposer:   0,
		View:       0,
	}
	b.Hash = ComputeBlockHash(b.ParentHash, b.Command, b.Height, b.Proposer, b.View)
	return b
}

// NewLeaf builds the child block a leader proposes on top of parent, for the
// given view, command and proposer (spec.md §4.7 step "createLeaf").
func NewLeaf(parent *Block, command string, proposer uint32, view uint64) *Block {
	b := &Block{
		ParentHash: parent.Hash,
		Command:    command,
		Height:     parent.Height + 1,
		Proposer:   proposer,
		View:       view,
	}
	b.Hash = ComputeBlockHash(b.ParentHash, b.Command, b.Height, b.Proposer, b.View)
	return b
}

func (b *Block) IsGenesis() bool {
	return b.Height == 0 && b.ParentHash.IsZero()
}
