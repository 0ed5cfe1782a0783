package relation

import (
	"sync/atomic"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// Resize grows or shrinks an ELASTIC relation's concrete storage,
// preserving field contents for indices < min(old, new) (spec.md §4.A
// rel.resize). newLogical defaults to newConcrete when omitted (< 0).
func (r *Relation) Resize(newConcrete int, newLogical int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != Elastic {
		return diag.SchemaError("resize", "resize is ELASTIC-only")
	}
	if newConcrete < 0 {
		return diag.SchemaError("resize", "negative concrete size")
	}

	oldConcrete := r.concreteSize
	for _, f := range r.fields {
		f.resize(newConcrete)
	}
	r.liveMask.resize(newConcrete)
	for i := oldConcrete; i < newConcrete; i++ {
		r.liveMask.SetBoolAt(i, false)
	}

	r.concreteSize = newConcrete
	if newLogical < 0 {
		r.logicalSize = newConcrete
	} else {
		r.logicalSize = newLogical
	}
	return nil
}

// ReservationFor computes the reserved concrete size an insert-capable
// launch should bind against: concrete size plus the launch's row count,
// so the kernel's atomic write-index counter has header room to grow
// into without reallocating mid-launch (spec.md §4.E Insert, "bind
// phase: reserve concrete + kernel_launch_size rows").
func (r *Relation) ReservationFor(launchSize int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.concreteSize + launchSize
}

// InsertCursor is the write-index global an insert-capable kernel version
// binds (spec.md §4.E Insert): a kernel fetches-and-adds into it to claim
// a destination row, writes its fields, and sets live_mask[dst] = true.
type InsertCursor struct {
	rel         *Relation
	baseConcrete int64 // concrete size before this insert's reservation
	idx         int64
	cap         int64
}

// NewInsertCursor reserves capacity and returns a cursor initialized to
// the relation's current concrete size, per §4.E bind phase.
func (r *Relation) NewInsertCursor(launchSize int) (*InsertCursor, error) {
	r.mu.Lock()
	if r.mode != Elastic {
		r.mu.Unlock()
		return nil, diag.SchemaError("insert", "insert is ELASTIC-only")
	}
	if len(r.subsets) != 0 {
		r.mu.Unlock()
		return nil, diag.SchemaError("insert", "insert is not allowed on a relation with subsets")
	}
	base := int64(r.concreteSize)
	reserved := base + int64(launchSize)
	r.mu.Unlock()

	if err := r.Resize(int(reserved), r.LogicalSize()); err != nil {
		return nil, err
	}

	return &InsertCursor{rel: r, baseConcrete: base, idx: base, cap: reserved}, nil
}

// Next atomically claims the next destination row, or returns ok=false
// if the pre-reserved capacity is exhausted — §7: "Inserts/deletes do not
// retry on overflow ... must be detected by the compare-and-swap
// returning the reservation boundary and handled as a fatal error."
func (c *InsertCursor) Next() (row int, ok bool) {
	for {
		cur := atomic.LoadInt64(&c.idx)
		if cur >= c.cap {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(&c.idx, cur, cur+1) {
			c.rel.liveMask.SetBoolAt(int(cur), true)
			return int(cur), true
		}
	}
}

// FinishInsert is post_launch for an insert-capable kernel version
// (spec.md §4.E / §4.C post_launch): reads the final write index, shrinks
// concrete size back to that value, grows logical size by the number of
// rows actually written, and marks the relation fragmented.
func (c *InsertCursor) FinishInsert() error {
	final := int(atomic.LoadInt64(&c.idx))
	base := int(c.baseConcrete)

	c.rel.mu.Lock()
	oldLogical := c.rel.logicalSize
	c.rel.mu.Unlock()

	if err := c.rel.Resize(final, -1); err != nil {
		return err
	}

	c.rel.mu.Lock()
	c.rel.logicalSize = oldLogical + (final - base)
	c.rel.isFragmented = true
	c.rel.mu.Unlock()
	return nil
}

// DeletionCounter is the deletion-count global a delete-capable kernel
// version binds (spec.md §4.E Delete): initialized to 0, incremented
// atomically by the kernel each time it clears a row's live bit.
type DeletionCounter struct {
	rel   *Relation
	count int64
}

// NewDeletionCounter builds a zero-initialized deletion counter for rel.
func (r *Relation) NewDeletionCounter() (*DeletionCounter, error) {
	if r.Mode() != Elastic {
		return nil, diag.SchemaError("delete", "delete is ELASTIC-only")
	}
	r.mu.RLock()
	hasSubsets := len(r.subsets) != 0
	r.mu.RUnlock()
	if hasSubsets {
		return nil, diag.SchemaError("delete", "delete is not allowed on a relation with subsets")
	}
	return &DeletionCounter{rel: r}, nil
}

// DeleteRow clears row's live bit and increments the deletion counter.
func (d *DeletionCounter) DeleteRow(row int) {
	d.rel.liveMask.SetBoolAt(row, false)
	atomic.AddInt64(&d.count, 1)
}

// FinishDelete is post_launch for a delete-capable kernel version:
// subtracts the deletion count from logical size, and auto-defrags when
// occupancy drops to 50% or below (spec.md §4.E Delete, §4.C post_launch).
func (d *DeletionCounter) FinishDelete() error {
	n := int(atomic.LoadInt64(&d.count))

	d.rel.mu.Lock()
	d.rel.logicalSize -= n
	logical := d.rel.logicalSize
	concrete := d.rel.concreteSize
	d.rel.isFragmented = true
	d.rel.mu.Unlock()

	if concrete > 0 && float64(logical) <= 0.5*float64(concrete) {
		return d.rel.Defrag()
	}
	return nil
}

// DefragStats reports the outcome of the most recent Defrag call
// (SPEC_FULL.md §3 addition; observability only, not part of the
// semantics).
type DefragStats struct {
	RowsMoved int
	Before    int
	After     int
}

// Defrag runs the two-cursor compaction protocol of spec.md §4.E: dead
// rows are packed out so that afterward concrete == logical and
// is_fragmented is false (§8 "Defrag idempotence"). The scan copies rows
// directly in each field's []byte backing array, whatever its Storage
// tag says; there is no separate device-to-host migration step.
func (r *Relation) Defrag() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != Elastic {
		return diag.SchemaError("defrag", "defrag is ELASTIC-only")
	}

	before := r.concreteSize
	moved := 0

	dst, src := 0, r.concreteSize-1
	for dst < src {
		for src > dst && !r.liveMask.BoolAt(src) {
			src--
		}
		for dst < src && r.liveMask.BoolAt(dst) {
			dst++
		}
		if dst < src {
			for _, f := range r.fields {
				f.CopyRow(dst, src)
			}
			r.liveMask.SetBoolAt(dst, true)
			r.liveMask.SetBoolAt(src, false)
			moved++
			dst++
			src--
		}
	}

	// newConcrete is the count of live rows, which after compaction are
	// packed into [0, newConcrete).
	newConcrete := 0
	for i := 0; i < before; i++ {
		if r.liveMask.BoolAt(i) {
			newConcrete++
		}
	}

	for _, f := range r.fields {
		f.resize(newConcrete)
	}
	r.liveMask.resize(newConcrete)
	for i := 0; i < newConcrete; i++ {
		r.liveMask.SetBoolAt(i, true)
	}

	r.concreteSize = newConcrete
	r.logicalSize = newConcrete
	r.isFragmented = false

	r.lastDefrag = DefragStats{RowsMoved: moved, Before: before, After: newConcrete}
	return nil
}

// DefragStatsOf reports the outcome of the most recent Defrag call.
func (r *Relation) DefragStatsOf() DefragStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastDefrag
}
