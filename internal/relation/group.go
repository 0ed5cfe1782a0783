package relation

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// GroupBy groups the relation on key's values and derives the offset/length
// auxiliary fields on the source relation S the key field points into
// (spec.md §4.A group_by; §8 "Group soundness").
//
// Legal only on PLAIN relations whose key field references a source
// relation of smaller-or-equal size. The key field's values must already
// be sorted ascending; GroupBy performs a linear scan, it does not sort.
func (r *Relation) GroupBy(key *Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode != Plain {
		return diag.SchemaError("group_by", "grouping a non-PLAIN relation")
	}
	if key.Owner != r {
		return diag.SchemaError("group_by", "key field must belong to this relation")
	}
	if !key.Type.IsKey() {
		return diag.SchemaError("group_by", "key field must be a key-of-relation type")
	}

	src := lookupRelation(key.Type.KeyRelation)
	if src == nil {
		return diag.SchemaError("group_by", "key field's source relation is unknown")
	}
	if src.ConcreteSize() > r.concreteSize {
		return diag.SchemaError("group_by", "key's source relation must be smaller or equal size")
	}

	n := r.logicalSize
	keys := make([]uint64, n)
	for i := 0; i < n; i++ {
		keys[i] = key.Uint64At(i)
	}
	if !slices.IsSortedFunc(keys, func(a, b uint64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}) {
		return diag.SchemaError("group_by", "key field is not sorted ascending")
	}

	srcSize := src.ConcreteSize()
	offset, _ := src.NewOrReplaceField("offset", Scalar(Uint64))
	length, _ := src.NewOrReplaceField("length", Scalar(Uint64))

	for k := 0; k < srcSize; k++ {
		offset.SetUint64At(k, 0)
		length.SetUint64At(k, 0)
	}

	i := 0
	for i < n {
		k := keys[i]
		start := i
		for i < n && keys[i] == k {
			i++
		}
		if int(k) < srcSize {
			offset.SetUint64At(int(k), uint64(start))
			length.SetUint64At(int(k), uint64(i-start))
		}
	}

	r.mode = Grouped
	src.groupedBy = append(src.groupedBy, &groupLink{grouped: r, keyName: key.Name})
	return nil
}

// NewOrReplaceField fetches an existing field by name or creates it,
// bypassing the fragmented/duplicate-name checks NewField applies to
// user-facing calls: offset/length are auxiliary bookkeeping fields
// GroupBy itself manages on the source relation.
func (r *Relation) NewOrReplaceField(name string, t FieldType) (*Field, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fields[name]; ok {
		return f, nil
	}
	f := newField(r, name, t, Host)
	r.fields[name] = f
	r.fieldOrder = append(r.fieldOrder, name)
	return f, nil
}

// relationRegistry resolves a relation UID to its *Relation, needed by
// GroupBy to find a key field's source relation and by the layout/
// codegen layers to validate key-of-relation bindings.
var relationRegistry = struct {
	mu sync.RWMutex
	m  map[uint64]*Relation
}{m: make(map[uint64]*Relation)}

// Register records rel in the UID -> *Relation registry; New calls this
// automatically so group_by and key-of-relation validation can always
// resolve a UID back to its *Relation.
func Register(rel *Relation) {
	relationRegistry.mu.Lock()
	defer relationRegistry.mu.Unlock()
	relationRegistry.m[rel.uid] = rel
}

func lookupRelation(uid uint64) *Relation {
	relationRegistry.mu.RLock()
	defer relationRegistry.mu.RUnlock()
	return relationRegistry.m[uid]
}
