// Package codegen implements the compiled-kernel-body contract (spec.md
// §4.C compile: "Produces an Executable: a function taking a pointer to
// the argument struct type, returning void").
package codegen

import (
	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/layout"
)

// Args is what an Executable receives at launch: the finalized layout
// plus row-granular access the body uses to read bounds/index/fields.
type Args struct {
	Layout *layout.Layout
	Row    int
}

// Executable is a compiled kernel body. It is called once per row in the
// inclusive [lo, hi] bound (or once per index-subset element), single-threaded
// from the caller's point of view — internal/kernelexec is responsible
// for fanning calls out across goroutines per block.
type Executable interface {
	// Run executes the body for one row.
	Run(a *Args) error
}

// ExecFunc adapts a plain function to Executable, mirroring the
// teacher's habit of wrapping bare funcs for handler-style interfaces.
type ExecFunc func(a *Args) error

func (f ExecFunc) Run(a *Args) error { return f(a) }

// InProcess builds a closure-based Executable straight from Go code —
// the front end registering a kernel body written directly in Go rather
// than lowered from another representation.
func InProcess(body func(a *Args) error) Executable {
	return ExecFunc(body)
}

// compileError wraps a lowering failure as a fatal Layout/Device error
// per spec.md §4.C compile and §7.
func compileError(op, msg string) error {
	return diag.LayoutError(op, msg)
}
