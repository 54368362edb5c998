// Package blockstore is a content-addressed, per-replica store of blocks
// with a parent-chain walk. Each replica that learns of a block keeps its
// own copy — there is no cross-replica aliasing — so every replica.State
// owns exactly one Store.
package blockstore

import (
	"fmt"

	"github.com/dapperlabs/hotstuff-sim/model"
)

// Store is an in-memory, never-evicted map of blocks keyed by hash, with
// parent hashes walked on demand rather than a dedicated index structure.
type Store struct {
	blocks map[model.Hash]*model.Block
}

// New constructs a store seeded with genesis.
func New() *Store {
	s := &Store{blocks: make(map[model.Hash]*model.Block)}
	s.Put(model.Genesis())
	return s
}

// Put registers a block. Re-inserting a hash with a different block is a
// programming fault — block hashes are supposed to be injective within a
// run — and panics rather than silently aliasing two blocks under one
// hash.
func (s *Store) Put(b *model.Block) {
	existing, ok := s.blocks[b.Hash]
	if ok && *existing != *b {
		panic(fmt.Sprintf("duplicate block hash %s assigned to different blocks", b.Hash))
	}
	s.blocks[b.Hash] = b
}

// Get returns the block for hash, if known.
func (s *Store) Get(hash model.Hash) (*model.Block, bool) {
	b, ok := s.blocks[hash]
	return b, ok
}

// Genesis returns the run's genesis block.
func (s *Store) Genesis() *model.Block {
	for _, b := range s.blocks {
		if b.IsGenesis() {
			return b
		}
	}
	panic("block store missing genesis")
}

// ExtendsFrom walks parent pointers from b, guarded against cycles by a
// visited set, and reports whether ancestorHash appears on the chain or
// equals b's own parent hash.
func (s *Store) ExtendsFrom(b *model.Block, ancestorHash model.Hash) bool {
	if b.ParentHash == ancestorHash {
		return true
	}
	visited := map[model.Hash]struct{}{b.Hash: {}}
	cur := b
	for {
		if cur.ParentHash.IsZero() && cur.IsGenesis() {
			return false
		}
		parent, ok := s.Get(cur.ParentHash)
		if !ok {
			return false
		}
		if _, seen := visited[parent.Hash]; seen {
			return false // cycle-defense: adversarial input, not reachable under honest hashing
		}
		if parent.Hash == ancestorHash {
			return true
		}
		visited[parent.Hash] = struct{}{}
		cur = parent
	}
}

// WalkToGenesisOrCommitted walks parent pointers starting at b (inclusive)
// until it hits genesis or a hash already in committed, returning the
// visited blocks ordered from b back toward the root (highest height
// first) — the caller reverses this to commit lowest height first.
func (s *Store) WalkToGenesisOrCommitted(b *model.Block, committed map[model.Hash]struct{}) []*model.Block {
	var chain []*model.Block
	cur := b
	for {
		if _, done := committed[cur.Hash]; done {
			break
		}
		chain = append(chain, cur)
		if cur.IsGenesis() {
			break
		}
		parent, ok := s.Get(cur.ParentHash)
		if !ok {
			break
		}
		cur = parent
	}
	return chain
}
