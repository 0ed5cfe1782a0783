// Package gpu implements the GPU Reduction Engine (spec.md §4.D): a
// two-kernel block-local tree reduction plus a single-block final
// reduction, simulated on CPU goroutines the way a real device would
// partition work across thread blocks. Block sizing is grounded on the
// teacher's byte-offset scratch allocators (kernel/threads/arena/buddy.go).
package gpu

import (
	"sync"

	"github.com/klauspost/cpuid/v2"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// ScratchArray is the per-global GPU scratch array referenced from the
// Argument Layout's scratch slots (spec.md §4.B point 5): one partial
// accumulator per block, consumed by the secondary kernel.
type ScratchArray struct {
	mu     sync.Mutex
	blocks int
	data   []float64
	freed  bool
}

// NewScratchArray allocates a scratch array sized for the given block
// count.
func NewScratchArray(blocks int) *ScratchArray {
	return &ScratchArray{blocks: blocks, data: make([]float64, blocks)}
}

// Set stores block b's partial result.
func (s *ScratchArray) Set(b int, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[b] = v
}

// Slice returns a read-only snapshot of the block partials, consumed by
// the secondary kernel.
func (s *ScratchArray) Slice() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.data))
	copy(out, s.data)
	return out
}

// Free releases the scratch array. Freeing it a second time returns a
// device error; Set and Slice do not check for a prior Free.
func (s *ScratchArray) Free() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		return diag.DeviceError("scratch_free", "double free of scratch array")
	}
	s.freed = true
	s.data = nil
	return nil
}

// DetectBlockSize picks a simulated thread-block size from the host's
// cache geometry: a block's shared-memory tree reduction should fit in
// L1, so size it to L1 data cache divided by float64 width, rounded down
// to a power of two, clamped to a sane launch range.
func DetectBlockSize() int {
	l1 := cpuid.CPU.Cache.L1D
	if l1 <= 0 {
		return 256
	}
	n := l1 / 8
	size := 32
	for size*2 <= n && size < 1024 {
		size *= 2
	}
	return size
}
