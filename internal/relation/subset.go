package relation

import "github.com/nmxmxh/inos_v1/internal/diag"

// Subset is a named filter over a relation's rows (spec.md §3). Storage
// shape is decided once at creation by the 10% selectivity rule (§8
// "Subset selectivity switch") and never changes afterward.
type Subset struct {
	Owner *Relation
	Name  string

	isMask bool
	mask   []bool // len == concreteSize, when isMask
	index  []int  // selected row ids, when !isMask
}

// IsMask reports whether this subset is stored as a dense boolean mask
// (true) or a packed index list (false).
func (s *Subset) IsMask() bool { return s.isMask }

// Len is the number of rows selected by this subset.
func (s *Subset) Len() int {
	if s.isMask {
		n := 0
		for _, b := range s.mask {
			if b {
				n++
			}
		}
		return n
	}
	return len(s.index)
}

// Contains reports whether row is selected.
func (s *Subset) Contains(row int) bool {
	if s.isMask {
		return row >= 0 && row < len(s.mask) && s.mask[row]
	}
	for _, i := range s.index {
		if i == row {
			return true
		}
	}
	return false
}

// Rows returns the selected row ids in ascending order.
func (s *Subset) Rows() []int {
	if !s.isMask {
		return append([]int(nil), s.index...)
	}
	out := make([]int, 0, len(s.mask))
	for i, b := range s.mask {
		if b {
			out = append(out, i)
		}
	}
	return out
}

// NewSubset evaluates predicate over every row and stores the result as a
// dense mask when selectivity exceeds 10% or the owner is a GRID
// relation, else as a packed index list (spec.md §4.A new_subset, §8
// "Subset selectivity switch"). Created once; read-only thereafter.
func (r *Relation) NewSubset(name string, predicate func(row int) bool) (*Subset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subsets[name]; exists {
		return nil, diag.SchemaError("new_subset", "duplicate subset name "+name)
	}

	n := r.concreteSize
	selected := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if predicate(i) {
			selected = append(selected, i)
		}
	}

	useMask := r.mode == Grid || (n > 0 && float64(len(selected))/float64(n) > 0.10)

	sub := &Subset{Owner: r, Name: name}
	if useMask {
		sub.isMask = true
		sub.mask = make([]bool, n)
		for _, i := range selected {
			sub.mask[i] = true
		}
	} else {
		sub.index = selected
	}

	r.subsets[name] = sub
	return sub, nil
}

// Subset looks up a subset by name.
func (r *Relation) Subset(name string) (*Subset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subsets[name]
	return s, ok
}
