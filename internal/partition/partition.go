// Package partition implements the Partitioner (spec.md §4.H): disjoint
// blocking of a GRID relation's cells across nodes with a row-major node
// mapping, and PLAIN-relation coloring for non-grid distribution.
package partition

import (
	"github.com/nmxmxh/inos_v1/internal/diag"
)

// Partition describes one node's share of a relation's rows or grid
// cells plus the node address table used to route ghost exchange
// traffic (spec.md §4.H, SPEC_FULL.md §3 Partition.NodeAddr()).
type Partition struct {
	dims       []int
	firstSize  []int // size of block 0 along each axis
	baseSize   []int // size of every remainder block along each axis
	numNodes   int
	blocksPer  []int // number of blocks per axis
	nodeAddrs  []string
}

// NewGrid computes a disjoint blocking of a GRID relation with the given
// dims across numNodes nodes (spec.md §4.H "disjoint blocking formula").
// Each axis splits asymmetrically: the first block absorbs the remainder
// of an uneven division, every other block takes the floor size, so
// d=10 split 3 ways along one axis yields block sizes [4,3,3], not the
// uniform-ceilDiv [4,4,2] an even ceilDiv(d,b)-per-block scheme would.
func NewGrid(dims []int, numNodes int, nodeAddrs []string) (*Partition, error) {
	if len(dims) == 0 {
		return nil, diag.SchemaError("partition_new_grid", "dims required")
	}
	if numNodes <= 0 {
		return nil, diag.SchemaError("partition_new_grid", "numNodes must be positive")
	}
	if len(nodeAddrs) != numNodes {
		return nil, diag.SchemaError("partition_new_grid", "node address count must match numNodes")
	}

	blocksPer := factorize(numNodes, len(dims))
	firstSize := make([]int, len(dims))
	baseSize := make([]int, len(dims))
	for i, d := range dims {
		first, base := blockSizes(d, blocksPer[i])
		firstSize[i] = first
		baseSize[i] = base
	}

	return &Partition{
		dims:      append([]int(nil), dims...),
		firstSize: firstSize,
		baseSize:  baseSize,
		numNodes:  numNodes,
		blocksPer: blocksPer,
		nodeAddrs: append([]string(nil), nodeAddrs...),
	}, nil
}

// blockSizes computes the per-axis asymmetric split (spec.md §4.H): the
// first block takes d - floor(d/b)*(b-1) rows, every remainder block
// takes floor(d/b).
func blockSizes(d, b int) (first, base int) {
	if b <= 0 {
		return d, d
	}
	base = d / b
	first = d - base*(b-1)
	return first, base
}

// factorize picks a per-axis block count whose product is >= numNodes,
// biasing towards the leading axes — a simple, deterministic
// decomposition in the absence of a hardware topology hint.
func factorize(numNodes, nDims int) []int {
	out := make([]int, nDims)
	for i := range out {
		out[i] = 1
	}
	remaining := numNodes
	for i := 0; remaining > 1 && i < nDims; i++ {
		out[i] = remaining
		remaining = 1
	}
	if nDims == 0 {
		return out
	}
	// Spread as evenly as possible across more than one axis when
	// numNodes factors nicely (e.g. 4 nodes over a 2-D grid -> 2x2).
	if nDims >= 2 {
		root := isqrt(numNodes)
		for root > 1 {
			if numNodes%root == 0 {
				out[0] = root
				out[1] = numNodes / root
				for i := 2; i < nDims; i++ {
					out[i] = 1
				}
				break
			}
			root--
		}
	}
	return out
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 1
	for r*r <= n {
		r++
	}
	return r - 1
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// NodeForBlock returns the row-major node index owning block coordinate
// bc (spec.md §4.H "row-major node mapping").
func (p *Partition) NodeForBlock(bc []int) int {
	idx := 0
	for i, c := range bc {
		idx = idx*p.blocksPer[i] + c
	}
	if idx >= p.numNodes {
		idx = p.numNodes - 1
	}
	return idx
}

// NodeForCell maps a grid cell coordinate to its owning node, using each
// axis's asymmetric block boundaries (spec.md §4.H).
func (p *Partition) NodeForCell(cell []int) int {
	bc := make([]int, len(cell))
	for i, c := range cell {
		bc[i] = blockIndex(c, p.firstSize[i], p.baseSize[i])
	}
	return p.NodeForBlock(bc)
}

// blockIndex returns which block along one axis a cell coordinate falls
// into, given that axis's first-block and remainder-block sizes.
func blockIndex(c, first, base int) int {
	if c < first {
		return 0
	}
	if base <= 0 {
		return 0
	}
	return 1 + (c-first)/base
}

// NodeAddr returns the network address of the node owning nodeIdx
// (SPEC_FULL.md §3), consumed by internal/control and internal/ghost's
// libp2p transport to route exchange traffic.
func (p *Partition) NodeAddr(nodeIdx int) (string, error) {
	if nodeIdx < 0 || nodeIdx >= len(p.nodeAddrs) {
		return "", diag.SchemaError("node_addr", "node index out of range")
	}
	return p.nodeAddrs[nodeIdx], nil
}

// BlockDims returns the per-axis remainder-block size used for the
// decomposition; the first block along each axis is sized separately
// (see FirstBlockDims) to absorb any uneven-division remainder.
func (p *Partition) BlockDims() []int { return append([]int(nil), p.baseSize...) }

// FirstBlockDims returns the per-axis size of block 0, which differs
// from BlockDims whenever an axis does not divide evenly.
func (p *Partition) FirstBlockDims() []int { return append([]int(nil), p.firstSize...) }

// NumNodes is the number of partitions this grid was split across.
func (p *Partition) NumNodes() int { return p.numNodes }

// ColorPlain assigns PLAIN-relation rows to nodes by simple contiguous
// range coloring, since a non-grid relation has no spatial locality to
// block on (spec.md §4.H "PLAIN-relation coloring").
func ColorPlain(logicalSize, numNodes int) []int {
	color := make([]int, logicalSize)
	if numNodes <= 0 {
		numNodes = 1
	}
	per := ceilDiv(logicalSize, numNodes)
	for i := range color {
		c := i / per
		if c >= numNodes {
			c = numNodes - 1
		}
		color[i] = c
	}
	return color
}
