package partition

import "testing"

func TestNewGridRequiresMatchingAddrCount(t *testing.T) {
	if _, err := NewGrid([]int{8, 8}, 4, []string{"a", "b"}); err == nil {
		t.Fatal("expected error for mismatched node address count")
	}
}

func TestNodeForCellCoversAllNodes(t *testing.T) {
	addrs := []string{"n0", "n1", "n2", "n3"}
	p, err := NewGrid([]int{8, 8}, 4, addrs)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int]bool)
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			n := p.NodeForCell([]int{x, y})
			if n < 0 || n >= 4 {
				t.Fatalf("cell (%d,%d) mapped to out-of-range node %d", x, y, n)
			}
			seen[n] = true
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected all 4 nodes to own at least one cell, got %d", len(seen))
	}
}

func TestNodeAddrRoundTrip(t *testing.T) {
	addrs := []string{"10.0.0.1:9000", "10.0.0.2:9000"}
	p, err := NewGrid([]int{4}, 2, addrs)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := p.NodeAddr(1)
	if err != nil {
		t.Fatal(err)
	}
	if addr != "10.0.0.2:9000" {
		t.Fatalf("got %q, want %q", addr, addrs[1])
	}
	if _, err := p.NodeAddr(5); err == nil {
		t.Fatal("expected error for out-of-range node index")
	}
}

func TestNewGridAsymmetricSplit(t *testing.T) {
	addrs := []string{"n0", "n1", "n2"}
	p, err := NewGrid([]int{10}, 3, addrs)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.FirstBlockDims()[0]; got != 4 {
		t.Fatalf("first block size = %d, want 4", got)
	}
	if got := p.BlockDims()[0]; got != 3 {
		t.Fatalf("remainder block size = %d, want 3", got)
	}

	// Boundaries: block 0 = cells [0,4), block 1 = [4,7), block 2 = [7,10).
	want := map[int]int{0: 0, 3: 0, 4: 1, 6: 1, 7: 2, 9: 2}
	for cell, wantNode := range want {
		if got := p.NodeForCell([]int{cell}); got != wantNode {
			t.Fatalf("cell %d mapped to node %d, want %d", cell, got, wantNode)
		}
	}
}

func TestColorPlainCoversAllRows(t *testing.T) {
	color := ColorPlain(10, 3)
	seen := make(map[int]bool)
	for _, c := range color {
		seen[c] = true
	}
	if len(color) != 10 {
		t.Fatalf("expected 10 colors, got %d", len(color))
	}
	for _, c := range color {
		if c < 0 || c >= 3 {
			t.Fatalf("color %d out of range", c)
		}
	}
}
