package gpu

import (
	"sync"

	"github.com/nmxmxh/inos_v1/internal/phase"
)

// PrimaryKernel runs the block-local tree reduction (spec.md §4.D step
// 1): partitions n rows into blockSize-sized blocks, reduces each block
// down to one partial with a simulated shared-memory tree (successive
// halving, as CUDA's sdata[tid] += sdata[tid+s] pattern would), and
// writes one partial per block into scratch.
//
// get returns row i's contribution; blocks run concurrently across
// goroutines the way independent thread blocks run concurrently across
// SMs — there is no cross-block synchronization here, matching real
// hardware, where only the secondary kernel sees all blocks at once.
func PrimaryKernel(n, blockSize int, op phase.ReduceOp, get func(row int) float64) *ScratchArray {
	if blockSize <= 0 {
		blockSize = 256
	}
	numBlocks := (n + blockSize - 1) / blockSize
	if numBlocks == 0 {
		numBlocks = 1
	}
	scratch := NewScratchArray(numBlocks)

	var wg sync.WaitGroup
	for b := 0; b < numBlocks; b++ {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			lo := b * blockSize
			hi := lo + blockSize
			if hi > n {
				hi = n
			}
			width := hi - lo
			if width <= 0 {
				scratch.Set(b, op.IdentityFloat64())
				return
			}

			// shared-memory tree: load into a local slab, then fold
			// by successive halving — each level touches disjoint
			// pairs, exactly like __syncthreads()-gated CUDA reduction.
			sdata := make([]float64, nextPow2(width))
			for i := range sdata {
				sdata[i] = op.IdentityFloat64()
			}
			for i := 0; i < width; i++ {
				sdata[i] = get(lo + i)
			}
			for s := len(sdata) / 2; s > 0; s /= 2 {
				for tid := 0; tid < s; tid++ {
					sdata[tid] = op.ApplyFloat64(sdata[tid], sdata[tid+s])
				}
			}
			scratch.Set(b, sdata[0])
		}()
	}
	wg.Wait()
	return scratch
}

// SecondaryKernel performs the single-block final reduction (spec.md
// §4.D step 2) over a primary kernel's per-block partials, producing one
// scalar. A real device launches this as a single thread block; here it
// is one sequential fold over the partials with no concurrency, matching
// the hardware's single-block guarantee.
func SecondaryKernel(scratch *ScratchArray, op phase.ReduceOp) float64 {
	parts := scratch.Slice()
	acc := op.IdentityFloat64()
	for _, p := range parts {
		acc = op.ApplyFloat64(acc, p)
	}
	return acc
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	if p == 0 {
		p = 1
	}
	return p
}
