// Package kernelexec implements the Kernel Version state machine
// (spec.md §4.C): declared -> compiled -> ready -> launched, with a
// recompile loop on layout mismatch. State transitions are modeled as an
// atomic int32 with a name table, grounded on the teacher's kernel
// lifecycle state machine (kernel/lifecycle.go KernelState).
package kernelexec

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nmxmxh/inos_v1/internal/codegen"
	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/gpu"
	"github.com/nmxmxh/inos_v1/internal/layout"
	"github.com/nmxmxh/inos_v1/internal/phase"
	"github.com/nmxmxh/inos_v1/internal/relation"
)

// State is a Kernel Version's lifecycle stage.
type State int32

const (
	StateDeclared State = iota
	StateCompiled
	StateReady
	StateLaunched
	StateFailed
)

var stateNames = map[State]string{
	StateDeclared: "DECLARED",
	StateCompiled: "COMPILED",
	StateReady:    "READY",
	StateLaunched: "LAUNCHED",
	StateFailed:   "FAILED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// FieldAccess is one field a kernel body declares access to.
type FieldAccess struct {
	Name      string
	Privilege phase.Privilege
	Op        phase.ReduceOp // meaningful iff Privilege == phase.Reduce
}

// insertCursorGlobal/deleteCounterGlobal name the internal write-index
// and deletion-count globals Compile registers on an elastic version's
// layout (spec.md §4.C compile step 2).
const (
	insertCursorGlobal  = "__insert_cursor__"
	deleteCounterGlobal = "__delete_counter__"
)

// Version is one (kernel, processor, subset-shape) specialization of a
// kernel, compiled once and re-launched across many rounds (spec.md §3
// "Kernel Version").
type Version struct {
	state atomic.Int32

	log *diag.Logger

	kernelName string
	rel        *relation.Relation
	accesses   []FieldAccess
	globals    []string
	wantsGPU   bool

	declaresInsert bool
	declaresDelete bool
	blockSize      int

	layout *layout.Layout
	exec   codegen.Executable

	mu          sync.Mutex
	lastShape   shapeKey
	launchCount uint64
	lastResult  float64
}

// shapeKey identifies the subset shape a compiled Version was bound
// against, so a later launch against a different shape forces recompile
// (spec.md §4.C "If the bound layout no longer matches ... recompile").
type shapeKey struct {
	logicalSize int
	mode        relation.Mode
}

// NewVersion declares a kernel version in state DECLARED (spec.md §4.C
// declare).
func NewVersion(kernelName string, rel *relation.Relation, accesses []FieldAccess, globals []string, wantsGPU bool) *Version {
	v := &Version{
		log:        diag.Default("kernelexec"),
		kernelName: kernelName,
		rel:        rel,
		accesses:   append([]FieldAccess(nil), accesses...),
		globals:    append([]string(nil), globals...),
		wantsGPU:   wantsGPU,
	}
	v.state.Store(int32(StateDeclared))
	return v
}

// DeclareInsert marks that this kernel version performs elastic row
// inserts during launch, so Compile registers the write-index global and
// declares insert intent to the layout (spec.md §4.C compile step 2).
// Call before Compile.
func (v *Version) DeclareInsert() *Version {
	v.declaresInsert = true
	return v
}

// DeclareDelete marks that this kernel version performs elastic row
// deletes during launch, so Compile registers the deletion-count global
// and declares delete intent to the layout (spec.md §4.C compile step 2).
// Call before Compile.
func (v *Version) DeclareDelete() *Version {
	v.declaresDelete = true
	return v
}

// SetBlockSize overrides the GPU thread-block size used by a reducing
// GPU version's Compile/Launch; unset defaults to gpu.DetectBlockSize().
func (v *Version) SetBlockSize(n int) *Version {
	v.blockSize = n
	return v
}

// Result returns the last GPU reduction's scalar result (spec.md §4.D).
// Meaningful only for versions that declared a REDUCE field access and
// wantsGPU.
func (v *Version) Result() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastResult
}

// State returns the version's current lifecycle stage.
func (v *Version) State() State { return State(v.state.Load()) }

func (v *Version) transition(from, to State) bool {
	return v.state.CompareAndSwap(int32(from), int32(to))
}

// reduceFieldAccess returns the first REDUCE-privileged field access
// declared, the reduce operator it names, and whether one exists.
func (v *Version) reduceFieldAccess() (string, phase.ReduceOp, bool) {
	for _, a := range v.accesses {
		if a.Privilege == phase.Reduce {
			return a.Name, a.Op, true
		}
	}
	return "", phase.OpNone, false
}

// Compile builds the Argument Layout and lowers the kernel body to an
// Executable (spec.md §4.C compile). It runs all four compile steps:
// (1) dynamic checks plus field/global registration, (2) elastic
// insert/delete intent declaration, (3) GPU scratch-array extension for
// reducing GPU versions (spec.md §4.D), and (4) lowering the body.
func (v *Version) Compile(body func(a *codegen.Args) error) error {
	if v.State() != StateDeclared && v.State() != StateFailed {
		return diag.PhaseError("compile", "version not in DECLARED state")
	}
	if err := v.dynamicChecks(); err != nil {
		v.state.Store(int32(StateFailed))
		return err
	}

	l := layout.New(1)
	if v.rel.Mode() == relation.Grid {
		l = layout.New(len(v.rel.Dims()))
	}

	// Populate bounds[n_dims] (spec.md §4.B point 1) so a kernel body
	// reading a.Layout.Bounds(axis) sees the real launch range instead of
	// the zero value.
	if v.rel.Mode() == relation.Grid {
		for i, d := range v.rel.Dims() {
			if err := l.SetBounds(i, 0, d-1); err != nil {
				v.state.Store(int32(StateFailed))
				return err
			}
		}
	} else if err := l.SetBounds(0, 0, v.rel.LogicalSize()-1); err != nil {
		v.state.Store(int32(StateFailed))
		return err
	}

	for _, a := range v.accesses {
		if err := l.AddField(a.Name, a.Privilege); err != nil {
			v.state.Store(int32(StateFailed))
			return err
		}
	}

	_, reduceOp, reducing := v.reduceFieldAccess()
	for _, g := range v.globals {
		op := phase.OpNone
		if reducing {
			op = reduceOp
		}
		if err := l.AddGlobal(g, op); err != nil {
			v.state.Store(int32(StateFailed))
			return err
		}
	}

	// Step 2: elastic insert/delete intent (spec.md §4.C compile step 2).
	if v.rel.Mode() == relation.Elastic {
		if v.declaresInsert {
			if err := l.AddGlobal(insertCursorGlobal, phase.OpNone); err != nil {
				v.state.Store(int32(StateFailed))
				return err
			}
			if err := l.DeclareInsert(); err != nil {
				v.state.Store(int32(StateFailed))
				return err
			}
		}
		if v.declaresDelete {
			if err := l.AddGlobal(deleteCounterGlobal, phase.OpNone); err != nil {
				v.state.Store(int32(StateFailed))
				return err
			}
			if err := l.DeclareDelete(); err != nil {
				v.state.Store(int32(StateFailed))
				return err
			}
		}
	}

	// Step 3: GPU global-reduction scratch arrays plus the secondary-pass
	// kernel's block count (spec.md §4.D). The secondary kernel itself is
	// emitted at launch time by launchGPU, once the live row count (and
	// therefore the block count) is known for certain.
	if v.wantsGPU && reducing {
		blockSize := v.blockSize
		if blockSize <= 0 {
			blockSize = gpu.DetectBlockSize()
		}
		numBlocks := (v.rel.LogicalSize() + blockSize - 1) / blockSize
		if numBlocks == 0 {
			numBlocks = 1
		}
		for _, g := range v.globals {
			if err := l.AddScratch(g, numBlocks); err != nil {
				v.state.Store(int32(StateFailed))
				return err
			}
		}
		v.blockSize = blockSize
	}

	v.layout = l
	v.exec = codegen.InProcess(body)

	v.mu.Lock()
	v.lastShape = shapeKey{logicalSize: v.rel.LogicalSize(), mode: v.rel.Mode()}
	v.mu.Unlock()

	if !v.transition(StateDeclared, StateCompiled) {
		// Came from StateFailed via a recompile; allow the forced move.
		v.state.Store(int32(StateCompiled))
	}
	v.log.Debug("compiled kernel version", diag.String("kernel", v.kernelName))
	return nil
}

// dynamicChecks validates the declared field accesses: a field declared
// twice with different privileges, or a name the relation has no field
// for, is a fatal PhaseError. Field types are not compared.
func (v *Version) dynamicChecks() error {
	seen := make(map[string]phase.Privilege)
	for _, a := range v.accesses {
		if prev, ok := seen[a.Name]; ok && prev != a.Privilege {
			return diag.PhaseError("dynamic_checks", "conflicting privileges declared for field "+a.Name)
		}
		seen[a.Name] = a.Privilege
		if _, ok := v.rel.Field(a.Name); !ok {
			return diag.PhaseError("dynamic_checks", "unknown field "+a.Name)
		}
	}
	return nil
}

// Bind populates the Argument Layout's per-field pointers for the
// current launch (spec.md §4.C bind), transitioning COMPILED -> READY; a
// READY version may be bound again before its next launch. If the
// relation's shape moved since the last compile, it resets the version to
// DECLARED and returns a PhaseError so the caller recompiles.
func (v *Version) Bind() error {
	shape := shapeKey{logicalSize: v.rel.LogicalSize(), mode: v.rel.Mode()}
	v.mu.Lock()
	mismatched := shape != v.lastShape
	v.mu.Unlock()
	if mismatched {
		v.state.Store(int32(StateDeclared))
		return diag.PhaseError("bind", "layout shape changed; recompile required")
	}

	if st := v.State(); st != StateCompiled && st != StateReady {
		return diag.PhaseError("bind", "version not in COMPILED or READY state")
	}
	for _, a := range v.accesses {
		f, _ := v.rel.Field(a.Name)
		slot := findFieldSlot(v.layout, a.Name)
		if slot != nil {
			slot.Base = f
		}
	}
	if !v.transition(StateCompiled, StateReady) && v.State() != StateReady {
		return diag.PhaseError("bind", "concurrent bind race")
	}
	return nil
}

func findFieldSlot(l *layout.Layout, name string) *layout.FieldSlot {
	for _, fs := range l.Fields() {
		if fs.Name == name {
			return fs
		}
	}
	return nil
}

func findGlobalSlot(l *layout.Layout, name string) *layout.GlobalSlot {
	for _, gs := range l.Globals() {
		if gs.Name == name {
			return gs
		}
	}
	return nil
}

// Launch runs the bound Executable (or, for a reducing GPU version, the
// GPU Reduction Engine) over every live row, transitioning READY ->
// LAUNCHED -> (back to READY once post_launch completes, so the version
// can be relaunched without recompiling) (spec.md §4.C launch/
// post_launch).
func (v *Version) Launch() error {
	if !v.transition(StateReady, StateLaunched) {
		return diag.PhaseError("launch", "version not in READY state")
	}
	defer func() {
		atomic.AddUint64(&v.launchCount, 1)
		v.transition(StateLaunched, StateReady)
	}()

	var err error
	if _, _, reducing := v.reduceFieldAccess(); v.wantsGPU && reducing {
		err = v.launchGPU()
	} else {
		err = v.launchCPU()
	}
	if err != nil {
		v.state.Store(int32(StateFailed))
		return err
	}
	return v.postLaunch()
}

// launchCPU fans the per-row kernel body out across one goroutine per
// partition via errgroup, instead of a single sequential loop, matching
// §5's CPU scheduling model ("CPU launches run one OS thread per
// partition"). Partitions are contiguous row ranges sized off
// GOMAXPROCS, since kernelexec has no distributed Partition of its own
// to fan out on (that is internal/partition's concern).
func (v *Version) launchCPU() error {
	n := v.rel.LogicalSize()
	if v.rel.Mode() == relation.Elastic {
		// Live rows of a fragmented relation can sit anywhere below the
		// concrete size; dead rows are skipped below.
		n = v.rel.ConcreteSize()
	}
	if n == 0 {
		return nil
	}
	parts := runtime.GOMAXPROCS(0)
	if parts > n {
		parts = n
	}
	if parts < 1 {
		parts = 1
	}
	chunk := (n + parts - 1) / parts

	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		g.Go(func() error {
			for row := lo; row < hi; row++ {
				if v.rel.Mode() == relation.Elastic && !v.rel.IsLive(row) {
					continue
				}
				if err := v.exec.Run(&codegen.Args{Layout: v.layout, Row: row}); err != nil {
					return diag.DeviceError("launch", err.Error())
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// launchGPU runs the GPU Reduction Engine's two kernels (spec.md §4.D)
// over the version's REDUCE field, writing the final scalar into both
// the bound global slot and Result().
func (v *Version) launchGPU() error {
	name, op, ok := v.reduceFieldAccess()
	if !ok {
		return diag.PhaseError("launch", "gpu version declares no REDUCE field access")
	}
	field, ok := v.rel.Field(name)
	if !ok {
		return diag.PhaseError("launch", "reduce field "+name+" not found")
	}

	n := v.rel.LogicalSize()
	elastic := v.rel.Mode() == relation.Elastic
	if elastic {
		n = v.rel.ConcreteSize()
	}
	scratch := gpu.PrimaryKernel(n, v.blockSize, op, func(row int) float64 {
		if elastic && !v.rel.IsLive(row) {
			return op.IdentityFloat64()
		}
		return field.Float64At(row)
	})
	result := gpu.SecondaryKernel(scratch, op)
	if err := scratch.Free(); err != nil {
		return diag.DeviceError("launch", "gpu scratch release failed", err)
	}

	if len(v.globals) > 0 {
		if gs := findGlobalSlot(v.layout, v.globals[0]); gs != nil {
			gs.Value = result
		}
	}
	v.mu.Lock()
	v.lastResult = result
	v.mu.Unlock()
	return nil
}

// postLaunch applies accumulated relation-level side effects: pending
// field resizes and defrag eligibility are already handled inline by
// internal/relation's elastic cursors; this hook exists for kernel
// versions that also declared insert/delete intents on the layout.
func (v *Version) postLaunch() error {
	if v.layout.InsertDeclared() || v.layout.DeleteDeclared() {
		v.log.Debug("post_launch elastic maintenance",
			diag.String("kernel", v.kernelName),
			diag.Bool("fragmented", v.rel.IsFragmented()))
	}
	return nil
}

// LaunchCount returns how many times this version has completed launch.
func (v *Version) LaunchCount() uint64 { return atomic.LoadUint64(&v.launchCount) }
