// Package layout implements the Argument Layout (spec.md §4.B): the
// packed per-kernel struct description the front end and the compiled
// kernel body agree on.
package layout

import (
	"fmt"

	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/phase"
)

// Bound is an inclusive (lo, hi) per-axis row range.
type Bound struct {
	Lo, Hi int
}

// FieldSlot describes one referenced field's place in the argument
// struct: a pointer for single-node, or an accessor record
// {base, strides[n_dims], handle} for distributed (spec.md §4.B point 3).
type FieldSlot struct {
	Name      string
	Privilege phase.Privilege

	// Single-node binding.
	Base unsafePointer

	// Distributed binding: strides per axis plus an opaque region handle.
	Strides []int
	Handle  interface{}
}

// unsafePointer keeps the Layout package free of an unsafe import while
// still letting Bind store an arbitrary field backing pointer; concrete
// producers (internal/kernelexec) hand it typed accessors instead of
// dereferencing it themselves.
type unsafePointer = interface{}

// GlobalSlot describes one referenced global's place in the argument
// struct (spec.md §4.B point 4).
type GlobalSlot struct {
	Name  string
	Op    phase.ReduceOp
	Value unsafePointer
}

// ScratchSlot is a GPU global-reduction scratch array slot (spec.md §4.B
// point 5), populated by internal/gpu when a version reduces on GPU.
type ScratchSlot struct {
	Global string
	Blocks int
}

// Layout is the packed per-kernel argument struct description. One
// Layout is built per (kernel, processor, subset-shape) version.
type Layout struct {
	NDims int

	bounds    []Bound
	hasIndex  bool
	indexSize int

	fieldOrder []string
	fields     map[string]*FieldSlot

	globalOrder []string
	globals     map[string]*GlobalSlot

	scratch []ScratchSlot

	insertDeclared bool
	deleteDeclared bool

	finalized bool
}

// New builds an empty Layout for a kernel with the given dimensionality
// (1 for PLAIN/GROUPED/ELASTIC/index-subset launches, or the relation's
// grid dimensionality for GRID launches).
func New(nDims int) *Layout {
	if nDims < 1 {
		nDims = 1
	}
	return &Layout{
		NDims:  nDims,
		bounds: make([]Bound, nDims),
		fields: make(map[string]*FieldSlot),
		globals: make(map[string]*GlobalSlot),
	}
}

// SetBounds sets the per-axis (lo, hi) row range (spec.md §4.B point 1).
func (l *Layout) SetBounds(axis int, lo, hi int) error {
	if l.finalized {
		return diag.LayoutError("set_bounds", "layout already finalized")
	}
	if axis < 0 || axis >= len(l.bounds) {
		return diag.LayoutError("set_bounds", fmt.Sprintf("axis %d out of range", axis))
	}
	l.bounds[axis] = Bound{Lo: lo, Hi: hi}
	return nil
}

// SetIndexSubset declares that this launch is restricted to an index
// list of indexSize elements; only bounds[0] is meaningful afterward
// (spec.md §4.B point 2).
func (l *Layout) SetIndexSubset(indexSize int) error {
	if l.finalized {
		return diag.LayoutError("set_index_subset", "layout already finalized")
	}
	l.hasIndex = true
	l.indexSize = indexSize
	return nil
}

// HasIndexSubset reports whether this launch uses an index-subset.
func (l *Layout) HasIndexSubset() bool { return l.hasIndex }

// IndexSize is the index-subset's element count.
func (l *Layout) IndexSize() int { return l.indexSize }

// Bounds returns axis's (lo, hi) range; querying bounds counts as the
// "first query of the struct type" that finalizes the layout (§4.B).
func (l *Layout) Bounds(axis int) Bound {
	l.finalize()
	return l.bounds[axis]
}

// AddField registers a field reference with its required privilege. Only
// legal before finalization; fatal afterward (§4.B, §7 Layout errors).
func (l *Layout) AddField(name string, priv phase.Privilege) error {
	if l.finalized {
		return diag.LayoutError("add_field", "cannot add field "+name+" after layout compilation")
	}
	if _, exists := l.fields[name]; exists {
		// Re-declaring the same field with the same privilege is
		// idempotent; a conflicting privilege is a phase error the
		// caller (kernelexec) should have already rejected.
		return nil
	}
	l.fields[name] = &FieldSlot{Name: name, Privilege: priv}
	l.fieldOrder = append(l.fieldOrder, name)
	return nil
}

// AddGlobal registers a global reference, optionally with a reduce op.
func (l *Layout) AddGlobal(name string, op phase.ReduceOp) error {
	if l.finalized {
		return diag.LayoutError("add_global", "cannot add global "+name+" after layout compilation")
	}
	if _, exists := l.globals[name]; exists {
		return nil
	}
	l.globals[name] = &GlobalSlot{Name: name, Op: op}
	l.globalOrder = append(l.globalOrder, name)
	return nil
}

// AddScratch registers a GPU global-reduction scratch slot for a global
// already added via AddGlobal (spec.md §4.B point 5, §4.D).
func (l *Layout) AddScratch(global string, blocks int) error {
	if l.finalized {
		return diag.LayoutError("add_scratch", "cannot add scratch slot after layout compilation")
	}
	if _, ok := l.globals[global]; !ok {
		return diag.LayoutError("add_scratch", "scratch slot references unknown global "+global)
	}
	l.scratch = append(l.scratch, ScratchSlot{Global: global, Blocks: blocks})
	return nil
}

// DeclareInsert/DeclareDelete register the relation's elastic insert or
// delete intent (spec.md §4.C compile step 2).
func (l *Layout) DeclareInsert() error {
	if l.finalized {
		return diag.LayoutError("declare_insert", "layout already finalized")
	}
	l.insertDeclared = true
	return nil
}

func (l *Layout) DeclareDelete() error {
	if l.finalized {
		return diag.LayoutError("declare_delete", "layout already finalized")
	}
	l.deleteDeclared = true
	return nil
}

func (l *Layout) InsertDeclared() bool { return l.insertDeclared }
func (l *Layout) DeleteDeclared() bool { return l.deleteDeclared }

// Fields returns the referenced fields in declaration order. Calling
// this finalizes the layout.
func (l *Layout) Fields() []*FieldSlot {
	l.finalize()
	out := make([]*FieldSlot, 0, len(l.fieldOrder))
	for _, n := range l.fieldOrder {
		out = append(out, l.fields[n])
	}
	return out
}

// Globals returns the referenced globals in declaration order. Calling
// this finalizes the layout.
func (l *Layout) Globals() []*GlobalSlot {
	l.finalize()
	out := make([]*GlobalSlot, 0, len(l.globalOrder))
	for _, n := range l.globalOrder {
		out = append(out, l.globals[n])
	}
	return out
}

// Scratch returns the registered GPU scratch slots.
func (l *Layout) Scratch() []ScratchSlot {
	l.finalize()
	return append([]ScratchSlot(nil), l.scratch...)
}

func (l *Layout) finalize() { l.finalized = true }

// Finalized reports whether the layout has been locked, either
// explicitly or by a prior query.
func (l *Layout) Finalized() bool { return l.finalized }

// Describe renders a short debug dump used by the verbose-logging
// dependency dump (SPEC_FULL.md §3).
func (l *Layout) Describe() string {
	s := fmt.Sprintf("layout dims=%d finalized=%v", l.NDims, l.finalized)
	for _, n := range l.fieldOrder {
		s += fmt.Sprintf(" field:%s:%s", n, l.fields[n].Privilege)
	}
	for _, n := range l.globalOrder {
		s += fmt.Sprintf(" global:%s:%s", n, l.globals[n].Op)
	}
	return s
}
