package relation

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// StorageKind is where a Field's bytes physically live (spec.md §3:
// "backing storage (either a host array, a device array, or an opaque
// region handle in distributed mode)").
type StorageKind int

const (
	Host StorageKind = iota
	Device
	Region
)

func (k StorageKind) String() string {
	switch k {
	case Host:
		return "host"
	case Device:
		return "device"
	case Region:
		return "region"
	default:
		return "unknown"
	}
}

// Field is a single typed column on one Relation (spec.md §3).
type Field struct {
	Owner   *Relation
	Name    string
	Type    FieldType
	Storage StorageKind

	bytes []byte // row-major raw storage; length == owner.ConcreteSize()*Type.ElemSize()
}

func newField(owner *Relation, name string, t FieldType, storage StorageKind) *Field {
	f := &Field{Owner: owner, Name: name, Type: t, Storage: storage}
	f.bytes = make([]byte, owner.concreteSize*t.ElemSize())
	return f
}

// Len is the number of rows this field currently has storage for. The
// invariant field.storage.length == rel.concrete_size (§4.A) is
// maintained by every mutating Relation operation.
func (f *Field) Len() int {
	es := f.Type.ElemSize()
	if es == 0 {
		return 0
	}
	return len(f.bytes) / es
}

// resize grows or shrinks the backing array to newConcrete rows,
// preserving contents for indices < min(old, new) (spec.md §4.A resize).
func (f *Field) resize(newConcrete int) {
	es := f.Type.ElemSize()
	newBytes := make([]byte, newConcrete*es)
	copy(newBytes, f.bytes)
	f.bytes = newBytes
}

func (f *Field) rowOffset(row int) int { return row * f.Type.ElemSize() }

// Signature is a structural-signature hash of this field's type. Defrag
// does not consult it: it copies rows with CopyRow and keeps no cache of
// copy routines.
func (f *Field) Signature() uint64 {
	h := xxhash.New()
	var buf [24]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Type.Base))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(f.Type.VecLen))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.Type.MatRows))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(f.Type.MatCols))
	binary.LittleEndian.PutUint64(buf[16:24], f.Type.KeyRelation)
	h.Write(buf[:])
	return h.Sum64()
}

// --- scalar typed accessors ---

func (f *Field) Float64At(row int) float64 {
	off := f.rowOffset(row)
	return math.Float64frombits(binary.LittleEndian.Uint64(f.bytes[off : off+8]))
}

func (f *Field) SetFloat64At(row int, v float64) {
	off := f.rowOffset(row)
	binary.LittleEndian.PutUint64(f.bytes[off:off+8], math.Float64bits(v))
}

func (f *Field) Float32At(row int) float32 {
	off := f.rowOffset(row)
	return math.Float32frombits(binary.LittleEndian.Uint32(f.bytes[off : off+4]))
}

func (f *Field) SetFloat32At(row int, v float32) {
	off := f.rowOffset(row)
	binary.LittleEndian.PutUint32(f.bytes[off:off+4], math.Float32bits(v))
}

func (f *Field) Int32At(row int) int32 {
	off := f.rowOffset(row)
	return int32(binary.LittleEndian.Uint32(f.bytes[off : off+4]))
}

func (f *Field) SetInt32At(row int, v int32) {
	off := f.rowOffset(row)
	binary.LittleEndian.PutUint32(f.bytes[off:off+4], uint32(v))
}

func (f *Field) Uint64At(row int) uint64 {
	off := f.rowOffset(row)
	return binary.LittleEndian.Uint64(f.bytes[off : off+8])
}

func (f *Field) SetUint64At(row int, v uint64) {
	off := f.rowOffset(row)
	binary.LittleEndian.PutUint64(f.bytes[off:off+8], v)
}

func (f *Field) BoolAt(row int) bool {
	off := f.rowOffset(row)
	return f.bytes[off] != 0
}

func (f *Field) SetBoolAt(row int, v bool) {
	off := f.rowOffset(row)
	if v {
		f.bytes[off] = 1
	} else {
		f.bytes[off] = 0
	}
}

// --- vector/matrix component accessors ---

func (f *Field) componentOffset(row, component int) int {
	return f.rowOffset(row) + component*f.Type.Base.size()
}

func (f *Field) ComponentFloat64At(row, component int) float64 {
	off := f.componentOffset(row, component)
	return math.Float64frombits(binary.LittleEndian.Uint64(f.bytes[off : off+8]))
}

func (f *Field) SetComponentFloat64At(row, component int, v float64) {
	off := f.componentOffset(row, component)
	binary.LittleEndian.PutUint64(f.bytes[off:off+8], math.Float64bits(v))
}

// Vec3 reads a 3-component float64 vector row (the common mesh-position
// case, spec.md §8 scenario 1).
func (f *Field) Vec3(row int) [3]float64 {
	return [3]float64{
		f.ComponentFloat64At(row, 0),
		f.ComponentFloat64At(row, 1),
		f.ComponentFloat64At(row, 2),
	}
}

// SetVec3 writes a 3-component float64 vector row.
func (f *Field) SetVec3(row int, v [3]float64) {
	for i := 0; i < 3; i++ {
		f.SetComponentFloat64At(row, i, v[i])
	}
}

// CopyRow copies one row's raw bytes from src row to dst row, used by
// defrag and rel.copy (§4.A, §4.E).
func (f *Field) CopyRow(dst, src int) {
	es := f.Type.ElemSize()
	copy(f.bytes[dst*es:dst*es+es], f.bytes[src*es:src*es+es])
}

// Raw exposes the field's backing bytes for a single row; callers must
// not retain the slice past the next resize.
func (f *Field) Raw(row int) []byte {
	off := f.rowOffset(row)
	return f.bytes[off : off+f.Type.ElemSize()]
}
