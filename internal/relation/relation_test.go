package relation

import "testing"

func TestNewRelationGridRequiresDims(t *testing.T) {
	if _, err := New(Grid, 0, nil, nil); err == nil {
		t.Fatal("expected error for GRID relation with no dims")
	}
}

func TestNewRelationGridPeriodicLengthMismatch(t *testing.T) {
	if _, err := New(Grid, 0, []int{4, 4}, []bool{true}); err == nil {
		t.Fatal("expected error for mismatched periodic length")
	}
}

func TestNewFieldDuplicateName(t *testing.T) {
	r, err := New(Plain, 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.NewField("pos", Vector(Float64, 3)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.NewField("pos", Scalar(Int32)); err == nil {
		t.Fatal("expected duplicate field name error")
	}
}

func TestNewFieldOnFragmentedRelationFails(t *testing.T) {
	r, err := New(Elastic, 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	dc, err := r.NewDeletionCounter()
	if err != nil {
		t.Fatal(err)
	}
	dc.DeleteRow(0)
	if err := dc.FinishDelete(); err != nil {
		t.Fatal(err)
	}
	if !r.IsFragmented() {
		t.Fatal("expected delete to mark the relation fragmented")
	}
	if _, err := r.NewField("extra", Scalar(Bool)); err == nil {
		t.Fatal("expected error creating a field on a fragmented relation")
	}
}

// TestIdentityPreservation is spec.md §8's universal property: loading a
// value array, running the identity kernel (no-op here: nothing touches
// the field), then dumping, yields v verbatim.
func TestIdentityPreservation(t *testing.T) {
	r, err := New(Plain, 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	f, err := r.NewField("pos", Vector(Float64, 3))
	if err != nil {
		t.Fatal(err)
	}
	v := [][3]float64{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	for i, p := range v {
		f.SetVec3(i, p)
	}
	for i, want := range v {
		got := f.Vec3(i)
		if got != want {
			t.Fatalf("row %d: got %v want %v", i, got, want)
		}
	}
}

func TestSwapRequiresSameOwnerAndType(t *testing.T) {
	r1, _ := New(Plain, 2, nil, nil)
	r2, _ := New(Plain, 2, nil, nil)
	f1, _ := r1.NewField("a", Scalar(Float64))
	f2, _ := r2.NewField("b", Scalar(Float64))
	if err := r1.Swap(f1, f2); err == nil {
		t.Fatal("expected error swapping fields with different owners")
	}

	f3, _ := r1.NewField("c", Scalar(Int32))
	if err := r1.Swap(f1, f3); err == nil {
		t.Fatal("expected error swapping fields with different types")
	}
}

func TestSubsetSelectivitySwitch(t *testing.T) {
	r, _ := New(Plain, 100, nil, nil)
	above, err := r.NewSubset("above10pct", func(row int) bool { return row < 20 })
	if err != nil {
		t.Fatal(err)
	}
	if !above.IsMask() {
		t.Fatal("20% selectivity should use boolmask storage")
	}

	below, err := r.NewSubset("below10pct", func(row int) bool { return row < 5 })
	if err != nil {
		t.Fatal(err)
	}
	if below.IsMask() {
		t.Fatal("5% selectivity should use index storage")
	}

	grid, _ := New(Grid, 0, []int{10, 10}, nil)
	gridSub, err := grid.NewSubset("sparse", func(row int) bool { return row == 0 })
	if err != nil {
		t.Fatal(err)
	}
	if !gridSub.IsMask() {
		t.Fatal("grid relations should always use boolmask storage")
	}
}

func TestGroupBySoundness(t *testing.T) {
	// source relation S: 3 keys
	src, _ := New(Plain, 3, nil, nil)

	// grouped relation with 6 rows whose key field is sorted ascending
	grouped, _ := New(Plain, 6, nil, nil)
	key, err := grouped.NewField("k", KeyOf(src.UID(), 1))
	if err != nil {
		t.Fatal(err)
	}
	keys := []uint64{0, 0, 1, 1, 1, 2}
	for i, k := range keys {
		key.SetUint64At(i, k)
	}

	if err := grouped.GroupBy(key); err != nil {
		t.Fatal(err)
	}
	if grouped.Mode() != Grouped {
		t.Fatal("expected relation to transition to GROUPED")
	}

	offset, ok := src.Field("offset")
	if !ok {
		t.Fatal("expected offset field on source relation")
	}
	length, ok := src.Field("length")
	if !ok {
		t.Fatal("expected length field on source relation")
	}

	total := 0
	for k := 0; k < 3; k++ {
		off := int(offset.Uint64At(k))
		ln := int(length.Uint64At(k))
		for i := off; i < off+ln; i++ {
			if keys[i] != uint64(k) {
				t.Fatalf("row %d: key %d not in its claimed group %d", i, keys[i], k)
			}
		}
		total += ln
	}
	if total != len(keys) {
		t.Fatalf("sum(length) = %d, want %d", total, len(keys))
	}
}

func TestGroupByRejectsUnsortedKey(t *testing.T) {
	src, _ := New(Plain, 3, nil, nil)
	grouped, _ := New(Plain, 3, nil, nil)
	key, _ := grouped.NewField("k", KeyOf(src.UID(), 1))
	key.SetUint64At(0, 2)
	key.SetUint64At(1, 0)
	key.SetUint64At(2, 1)

	if err := grouped.GroupBy(key); err == nil {
		t.Fatal("expected error grouping by an unsorted key field")
	}
}

func TestGroupByRejectsNonPlainRelation(t *testing.T) {
	src, _ := New(Plain, 2, nil, nil)
	grouped, _ := New(Plain, 2, nil, nil)
	key, _ := grouped.NewField("k", KeyOf(src.UID(), 1))
	key.SetUint64At(0, 0)
	key.SetUint64At(1, 1)
	if err := grouped.GroupBy(key); err != nil {
		t.Fatal(err)
	}
	if err := grouped.GroupBy(key); err == nil {
		t.Fatal("expected error re-grouping an already-GROUPED relation")
	}
}

func TestKeyOfElasticRelationRejected(t *testing.T) {
	elastic, err := New(Elastic, 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	plain, _ := New(Plain, 4, nil, nil)
	if _, err := plain.NewField("ref", KeyOf(elastic.UID(), 1)); err == nil {
		t.Fatal("expected error creating a key-of-elastic-relation field")
	}
}
