package model

import "testing"

func TestGenesisIsGenesis(t *testing.T) {
	g := Genesis()
	if !g.IsGenesis() {
		t.Fatalf("genesis must report IsGenesis() true")
	}
	if !g.ParentHash.IsZero() {
		t.Fatalf("genesis must have a zero parent hash")
	}
}

func TestNewLeafHeightIncrements(t *testing.T) {
	g := Genesis()
	leaf := NewLeaf(g, "cmd", 1, 1)
	if leaf.Height != g.Height+1 {
		t.Fatalf("leaf height = %d, want %d", leaf.Height, g.Height+1)
	}
	if leaf.ParentHash != g.Hash {
		t.Fatalf("leaf parent hash mismatch")
	}
	if leaf.IsGenesis() {
		t.Fatalf("leaf must not report IsGenesis()")
	}
}

func TestComputeBlockHashInjective(t *testing.T) {
	g := Genesis()
	a := NewLeaf(g, "cmd_a", 1, 1)
	b := NewLeaf(g, "cmd_b", 1, 1)
	if a.Hash == b.Hash {
		t.Fatalf("distinct commands must yield distinct hashes")
	}

	c := NewLeaf(g, "cmd_a", 2, 1)
	if a.Hash == c.Hash {
		t.Fatalf("distinct proposers must yield distinct hashes")
	}

	d := NewLeaf(g, "cmd_a", 1, 2)
	if a.Hash == d.Hash {
		t.Fatalf("distinct views must yield distinct hashes")
	}
}

func TestComputeBlockHashDeterministic(t *testing.T) {
	g := Genesis()
	a := NewLeaf(g, "cmd", 3, 7)
	b := NewLeaf(g, "cmd", 3, 7)
	if a.Hash != b.Hash {
		t.Fatalf("identical inputs must yield identical hashes")
	}
}
