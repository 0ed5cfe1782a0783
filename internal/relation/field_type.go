package relation

import "fmt"

// BaseType is one of the scalar primitive element types a Field's values
// are built from (spec.md §3 "Field").
type BaseType int

const (
	Bool BaseType = iota
	Int32
	Uint64
	Float32
	Float64
)

func (b BaseType) size() int {
	switch b {
	case Bool:
		return 1
	case Int32:
		return 4
	case Uint64:
		return 8
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic(fmt.Sprintf("relation: unknown base type %d", b))
	}
}

func (b BaseType) String() string {
	switch b {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// FieldType describes the element type of one Field: a scalar primitive,
// a fixed-size vector or matrix of primitives, or a key-of-relation handle
// (spec.md §3).
type FieldType struct {
	Base BaseType

	// VecLen > 1 marks this a fixed-size vector of Base elements.
	VecLen int

	// MatRows/MatCols > 0 together mark this a fixed-size matrix of Base
	// elements, row-major.
	MatRows, MatCols int

	// KeyRelation is non-zero when this field holds row-handles into
	// another relation ("key-of-relation R"). KeyTuple is the handle's
	// arity: 1 for a scalar row id, or the source relation's
	// dimensionality when that source is a GRID relation ("scalar or
	// tuple for grid relations", spec.md §3).
	KeyRelation uint64
	KeyTuple    int
}

// IsKey reports whether this is a key-of-relation field type.
func (t FieldType) IsKey() bool { return t.KeyRelation != 0 }

// IsVector reports whether this is a fixed-size vector type.
func (t FieldType) IsVector() bool { return t.VecLen > 1 }

// IsMatrix reports whether this is a fixed-size matrix type.
func (t FieldType) IsMatrix() bool { return t.MatRows > 0 && t.MatCols > 0 }

// Count is the number of Base-typed scalar components packed into one
// row's value.
func (t FieldType) Count() int {
	switch {
	case t.IsKey():
		if t.KeyTuple > 0 {
			return t.KeyTuple
		}
		return 1
	case t.IsMatrix():
		return t.MatRows * t.MatCols
	case t.IsVector():
		return t.VecLen
	default:
		return 1
	}
}

// ElemSize is the number of bytes one row occupies in this field's
// backing storage.
func (t FieldType) ElemSize() int {
	if t.IsKey() {
		return Uint64.size() * t.Count()
	}
	return t.Base.size() * t.Count()
}

// Equal reports structural type equality, used by swap/copy/coerce checks
// (§4.A, §8 "Coerce-and-reject").
func (t FieldType) Equal(o FieldType) bool {
	return t.Base == o.Base && t.VecLen == o.VecLen &&
		t.MatRows == o.MatRows && t.MatCols == o.MatCols &&
		t.KeyRelation == o.KeyRelation && t.KeyTuple == o.KeyTuple
}

func (t FieldType) String() string {
	switch {
	case t.IsKey():
		return fmt.Sprintf("key(%d)", t.KeyRelation)
	case t.IsMatrix():
		return fmt.Sprintf("mat%dx%d<%s>", t.MatRows, t.MatCols, t.Base)
	case t.IsVector():
		return fmt.Sprintf("vec%d<%s>", t.VecLen, t.Base)
	default:
		return t.Base.String()
	}
}

// Scalar builds a scalar FieldType of the given base type.
func Scalar(b BaseType) FieldType { return FieldType{Base: b} }

// Vector builds a fixed-size vector FieldType.
func Vector(b BaseType, n int) FieldType { return FieldType{Base: b, VecLen: n} }

// Matrix builds a fixed-size matrix FieldType.
func Matrix(b BaseType, rows, cols int) FieldType {
	return FieldType{Base: b, MatRows: rows, MatCols: cols}
}

// KeyOf builds a key-of-relation FieldType. tuple is the handle arity: 1
// for PLAIN/GROUPED/ELASTIC sources, or the source's dimensionality for a
// GRID source.
func KeyOf(relUID uint64, tuple int) FieldType {
	if tuple <= 0 {
		tuple = 1
	}
	return FieldType{KeyRelation: relUID, KeyTuple: tuple}
}
