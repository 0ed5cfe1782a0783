// Package relation implements the Relation & Field Store (spec.md §4.A)
// and the Insert/Delete/Defrag elastic-relation mutation protocol
// (spec.md §4.E), which spec.md treats as a single data-model component.
package relation

import (
	"sync"
	"sync/atomic"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// Mode is one of the four relation modes named in spec.md §3.
type Mode int

const (
	Plain Mode = iota
	Grid
	Grouped
	Elastic
)

func (m Mode) String() string {
	switch m {
	case Plain:
		return "PLAIN"
	case Grid:
		return "GRID"
	case Grouped:
		return "GROUPED"
	case Elastic:
		return "ELASTIC"
	default:
		return "UNKNOWN"
	}
}

var uidCounter uint64

// nextUID hands out stable numeric relation/field/subset UIDs. Numeric,
// monotonically increasing — distinct from the uuid.UUID correlation IDs
// internal/control and internal/ghost use for cross-node messages.
func nextUID() uint64 { return atomic.AddUint64(&uidCounter, 1) }

// Relation is an ordered collection of rows (spec.md §3).
type Relation struct {
	mu sync.RWMutex

	uid  uint64
	mode Mode

	logicalSize  int
	concreteSize int

	dims     []int
	periodic []bool

	fieldOrder []string
	fields     map[string]*Field

	subsets map[string]*Subset

	liveMask *Field // non-nil iff mode == Elastic

	isFragmented bool
	lastDefrag   DefragStats

	// GROUPED bookkeeping: set on the *source* relation S once some
	// relation groups on a key field referencing S (§4.A group_by).
	groupedBy []*groupLink

	log *diag.Logger
}

// groupLink records that a GROUPED relation was built against this
// relation as its key source, so resize/mutation can be cross-checked in
// a later revision; retained on S per §3 "Records a back-reference from S
// to this relation."
type groupLink struct {
	grouped *Relation
	keyName string
}

// New allocates a new relation. mode Grid requires dims non-empty and
// |periodic| == |dims| (spec.md §4.A new_relation).
func New(mode Mode, size int, dims []int, periodic []bool) (*Relation, error) {
	if mode == Grid {
		if len(dims) == 0 {
			return nil, diag.SchemaError("new_relation", "GRID relation requires dims")
		}
		if periodic != nil && len(periodic) != len(dims) {
			return nil, diag.SchemaError("new_relation", "periodic length must match dims length")
		}
		if periodic == nil {
			periodic = make([]bool, len(dims))
		}
		total := 1
		for _, d := range dims {
			total *= d
		}
		size = total
	}
	if size < 0 {
		return nil, diag.SchemaError("new_relation", "negative size")
	}

	r := &Relation{
		uid:          nextUID(),
		mode:         mode,
		logicalSize:  size,
		concreteSize: size,
		dims:         append([]int(nil), dims...),
		periodic:     append([]bool(nil), periodic...),
		fields:       make(map[string]*Field),
		subsets:      make(map[string]*Subset),
		log:          diag.Default("relation"),
	}

	if mode == Elastic {
		r.liveMask = newField(r, "__live__", Scalar(Bool), Host)
		for i := range r.liveMask.bytes {
			r.liveMask.bytes[i] = 1
		}
		markElastic(r.uid)
	}

	Register(r)
	return r, nil
}

// UID is this relation's stable numeric identifier.
func (r *Relation) UID() uint64 { return r.uid }

// Mode returns the relation's current mode.
func (r *Relation) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// LogicalSize is the number of rows visible to the user.
func (r *Relation) LogicalSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logicalSize
}

// ConcreteSize is the number of rows actually allocated.
func (r *Relation) ConcreteSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.concreteSize
}

// Dims returns the grid dimensions (nil for non-GRID relations).
func (r *Relation) Dims() []int { return append([]int(nil), r.dims...) }

// Periodic returns the per-axis periodicity flags (nil for non-GRID).
func (r *Relation) Periodic() []bool { return append([]bool(nil), r.periodic...) }

// IsFragmented reports whether this ELASTIC relation has dead rows mixed
// among live ones (spec.md §3).
func (r *Relation) IsFragmented() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isFragmented
}

// LiveMask returns the live-mask field of an ELASTIC relation, or nil.
func (r *Relation) LiveMask() *Field { return r.liveMask }

// IsLive reports whether row i is live. Non-elastic relations are always
// live for i < concreteSize.
func (r *Relation) IsLive(row int) bool {
	if r.liveMask == nil {
		return true
	}
	return r.liveMask.BoolAt(row)
}

// NewField adds a typed column to the relation (spec.md §4.A new_field).
// Fails if the relation is fragmented, the name is taken, or type is a
// key-of-elastic-relation field (row ids are not stable there).
func (r *Relation) NewField(name string, t FieldType) (*Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isFragmented {
		return nil, diag.SchemaError("new_field", "relation is fragmented")
	}
	if _, exists := r.fields[name]; exists {
		return nil, diag.SchemaError("new_field", "duplicate field name "+name)
	}
	if t.IsKey() && keyTargetIsElastic(t.KeyRelation) {
		return nil, diag.SchemaError("new_field", "key-of-elastic-relation fields are forbidden")
	}

	f := newField(r, name, t, Host)
	r.fields[name] = f
	r.fieldOrder = append(r.fieldOrder, name)
	return f, nil
}

// registry of elastic relation UIDs, consulted by NewField's key-of-
// elastic check. A relation only needs to know *whether* a UID it is
// asked to key into is elastic, not the relation itself.
var elasticRegistry sync.Map // uid -> struct{}

func markElastic(uid uint64)         { elasticRegistry.Store(uid, struct{}{}) }
func keyTargetIsElastic(uid uint64) bool {
	_, ok := elasticRegistry.Load(uid)
	return ok
}

// Field looks up a field by name.
func (r *Relation) Field(name string) (*Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[name]
	return f, ok
}

// Fields returns the relation's fields in declaration order.
func (r *Relation) Fields() []*Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Field, 0, len(r.fieldOrder))
	for _, name := range r.fieldOrder {
		out = append(out, r.fields[name])
	}
	return out
}

// Swap exchanges the contents of two same-owner, same-type fields
// (spec.md §4.A rel.swap).
func (r *Relation) Swap(f1, f2 *Field) error {
	if f1.Owner != r || f2.Owner != r {
		return diag.SchemaError("swap", "fields must share the relation performing the swap")
	}
	if !f1.Type.Equal(f2.Type) {
		return diag.SchemaError("swap", "mismatched field types")
	}
	f1.bytes, f2.bytes = f2.bytes, f1.bytes
	return nil
}

// Copy copies one field's contents into another same-owner, same-type
// field (spec.md §4.A rel.copy).
func (r *Relation) Copy(from, to *Field) error {
	if from.Owner != r || to.Owner != r {
		return diag.SchemaError("copy", "fields must share the relation performing the copy")
	}
	if !from.Type.Equal(to.Type) {
		return diag.SchemaError("copy", "mismatched field types")
	}
	copy(to.bytes, from.bytes)
	return nil
}

// Describe renders a short debug dump of the relation's shape, used by
// the verbose-logging dependency dump (SPEC_FULL.md §3).
func (r *Relation) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.mode.String()
	s += " uid=" + itoa(r.uid)
	s += " logical=" + itoa(uint64(r.logicalSize))
	s += " concrete=" + itoa(uint64(r.concreteSize))
	if r.isFragmented {
		s += " fragmented"
	}
	for _, name := range r.fieldOrder {
		s += " field:" + name + ":" + r.fields[name].Type.String()
	}
	return s
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
