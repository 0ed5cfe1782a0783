package codegen

import (
	"encoding/binary"
	"math"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/relation"
)

// WasmExecutable lowers a kernel body to a WASM module exporting a
// "kernel_row" function, adapted from the teacher's wasm executor
// (wasm/executor.go) which loads a module and calls its "main" export.
// Ebb kernels take one row index and the layout's flattened field bases
// instead of a single opaque []byte payload.
type WasmExecutable struct {
	engine   *wasmer.Engine
	store    *wasmer.Store
	module   *wasmer.Module
	instance *wasmer.Instance
	kernel   wasmer.NativeFunction
	memory   *wasmer.Memory
}

// NewWasmExecutable compiles wasmBytes and binds its "kernel_row" export.
// The module must also export a "memory" linear memory, matching the
// convention the teacher's WASM build pipeline already produces.
func NewWasmExecutable(wasmBytes []byte) (*WasmExecutable, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, compileError("wasm_compile", err.Error())
	}
	instance, err := wasmer.NewInstance(module, wasmer.NewImportObject())
	if err != nil {
		return nil, compileError("wasm_instantiate", err.Error())
	}
	kernel, err := instance.Exports.GetFunction("kernel_row")
	if err != nil {
		return nil, compileError("wasm_lookup", "module does not export kernel_row: "+err.Error())
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, compileError("wasm_lookup", "module does not export memory: "+err.Error())
	}
	return &WasmExecutable{
		engine:   engine,
		store:    store,
		module:   module,
		instance: instance,
		kernel:   kernel,
		memory:   mem,
	}, nil
}

// Run copies the row's field bytes into the module's linear memory at a
// fixed scratch offset, invokes kernel_row(row, scratchOffset), and
// copies any written bytes back out for READ_WRITE/REDUCE fields. Each
// FieldSlot's Base holds the bound *relation.Field itself (set by
// kernelexec.Version.Bind), and Raw(a.Row) yields that row's bytes in
// the same little-endian layout the scratch buffer uses.
func (w *WasmExecutable) Run(a *Args) error {
	const scratchOffset = 0

	buf := w.memory.Data()
	fields := a.Layout.Fields()
	off := scratchOffset
	starts := make([]int, len(fields))
	rows := make([][]byte, len(fields))
	for i, fs := range fields {
		starts[i] = off
		f, ok := fs.Base.(*relation.Field)
		if !ok {
			continue
		}
		raw := f.Raw(a.Row)
		rows[i] = raw
		if off+len(raw) > len(buf) {
			return diag.DeviceError("wasm_run", "kernel scratch memory too small for row payload")
		}
		copy(buf[off:off+len(raw)], raw)
		off += len(raw)
	}

	_, err := w.kernel(int32(a.Row), int32(scratchOffset))
	if err != nil {
		return diag.DeviceError("wasm_run", err.Error())
	}

	for i, fs := range fields {
		if fs.Privilege.String() == "READ_ONLY" {
			continue
		}
		raw := rows[i]
		if raw == nil {
			continue
		}
		copy(raw, buf[starts[i]:starts[i]+len(raw)])
	}
	return nil
}

// readFloat64 / writeFloat64 mirror the little-endian byte layout
// internal/relation.Field uses, so WASM scratch buffers line up with
// host-side field storage without a second encoding scheme.
func readFloat64(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
func writeFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}
