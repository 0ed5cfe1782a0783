// Package meshio implements the narrow §6 file formats a complete
// repository around the execution core needs to drive real data: the
// binary mesh format, the OFF text format, and CSV field I/O. This
// package contains no phase analysis, code generation, or scheduling —
// it only reads bytes into relation.Field values and writes them back
// out, the read/write collaborator role spec.md §1 carves out as
// external to the core.
package meshio

import (
	"encoding/binary"
	"io"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

const meshMagic = 0x18111022

// MeshHeader is the binary mesh file's fixed header (spec.md §6).
type MeshHeader struct {
	Magic        uint32
	NVertices    uint32
	NEdges       uint32
	NFaces       uint32
	NCells       uint32
	NFacetEdges  uint32
	NBoundaries  uint32
	FieldTableOffset   uint64
	FacetEdgeTableOffset uint64
	BoundaryTableOffset  uint64
}

// HalfFacet is one side of a facet-edge record: the cell and vertex it
// touches (spec.md §6 "each carrying a cell id and vertex id").
type HalfFacet struct {
	CellID   uint32
	VertexID uint32
}

// FacetEdge pairs a face/edge with its two half-facets.
type FacetEdge struct {
	A, B HalfFacet
}

// BoundaryElementType tags what kind of element a boundary set names.
type BoundaryElementType uint8

const (
	BoundaryVertex BoundaryElementType = iota
	BoundaryEdge
	BoundaryFace
	BoundaryCell
)

const boundaryAggregatedFlag = 0x80

// BoundarySet declares an element type, an inclusive-exclusive row
// range, and a name (spec.md §6).
type BoundarySet struct {
	ElementType BoundaryElementType
	Aggregated  bool
	Start, End  uint32
	Name        string
}

// Mesh is the decoded contents of a binary mesh file: positions plus the
// facet-edge and boundary tables. Per-field data is read separately via
// ReadFieldRecord, since field count/shape is not fixed by the header.
type Mesh struct {
	Header     MeshHeader
	Positions  [][3]float64
	FacetEdges []FacetEdge
	Boundaries []BoundarySet
}

// ReadMesh parses a binary mesh file per spec.md §6. It validates the
// magic number and reports truncation as an IOError rather than
// panicking (spec.md §7 "I/O errors").
func ReadMesh(r io.ReadSeeker) (*Mesh, error) {
	var h MeshHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, diag.IOError("read_mesh", "truncated header: "+err.Error())
	}
	if h.Magic != meshMagic {
		return nil, diag.IOError("read_mesh", "bad magic number")
	}

	m := &Mesh{Header: h}

	positions := make([][3]float64, h.NVertices)
	for i := range positions {
		if err := binary.Read(r, binary.LittleEndian, &positions[i]); err != nil {
			return nil, diag.IOError("read_mesh", "truncated position array: "+err.Error())
		}
	}
	m.Positions = positions

	if _, err := r.Seek(int64(h.FacetEdgeTableOffset), io.SeekStart); err != nil {
		return nil, diag.IOError("read_mesh", "bad facet-edge table offset: "+err.Error())
	}
	facetEdges := make([]FacetEdge, h.NFacetEdges)
	for i := range facetEdges {
		if err := binary.Read(r, binary.LittleEndian, &facetEdges[i]); err != nil {
			return nil, diag.IOError("read_mesh", "truncated facet-edge table: "+err.Error())
		}
	}
	m.FacetEdges = facetEdges

	if _, err := r.Seek(int64(h.BoundaryTableOffset), io.SeekStart); err != nil {
		return nil, diag.IOError("read_mesh", "bad boundary table offset: "+err.Error())
	}
	boundaries := make([]BoundarySet, 0, h.NBoundaries)
	for i := uint32(0); i < h.NBoundaries; i++ {
		var raw struct {
			ElementType uint8
			_           [3]byte
			Start, End  uint32
			NameOffset  uint64
		}
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, diag.IOError("read_mesh", "truncated boundary set: "+err.Error())
		}
		b := BoundarySet{
			ElementType: BoundaryElementType(raw.ElementType &^ boundaryAggregatedFlag),
			Aggregated:  raw.ElementType&boundaryAggregatedFlag != 0,
			Start:       raw.Start,
			End:         raw.End,
		}
		name, err := readNameAt(r, int64(raw.NameOffset))
		if err != nil {
			return nil, err
		}
		b.Name = name
		boundaries = append(boundaries, b)
	}
	m.Boundaries = boundaries

	return m, nil
}

func readNameAt(r io.ReadSeeker, offset int64) (string, error) {
	cur, _ := r.Seek(0, io.SeekCurrent)
	defer r.Seek(cur, io.SeekStart)

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return "", diag.IOError("read_mesh", "bad name offset: "+err.Error())
	}
	var buf []byte
	var b [1]byte
	for {
		if _, err := r.Read(b[:]); err != nil {
			return "", diag.IOError("read_mesh", "unterminated name string: "+err.Error())
		}
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf), nil
}

// FieldRecordHeader is a field record's fixed portion (spec.md §6: domain
// element type, base type + vector/matrix flags, element count, name and
// data offsets).
type FieldRecordHeader struct {
	DomainElementType BoundaryElementType
	BaseType          uint8
	Flags             uint8
	_                  uint8
	VecLen, MatRows, MatCols uint32
	Count             uint32
	NameOffset        uint64
	DataOffset        uint64
}

const (
	fieldFlagVector = 0x1
	fieldFlagMatrix = 0x2
)

// ReadFieldRecord reads one field record's raw row-major bytes, handing
// interpretation (base type, shape) to the caller, which already knows
// the destination relation.Field's type from the schema.
func ReadFieldRecord(r io.ReadSeeker, elemSize int) (FieldRecordHeader, []byte, error) {
	var h FieldRecordHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, nil, diag.IOError("read_field_record", "truncated field header: "+err.Error())
	}
	if _, err := r.Seek(int64(h.DataOffset), io.SeekStart); err != nil {
		return h, nil, diag.IOError("read_field_record", "bad data offset: "+err.Error())
	}
	data := make([]byte, int(h.Count)*elemSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return h, nil, diag.IOError("read_field_record", "truncated field data: "+err.Error())
	}
	return h, data, nil
}
