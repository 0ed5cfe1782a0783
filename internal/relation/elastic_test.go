package relation

import "testing"

// TestInsertThenQuery reproduces spec.md §8 scenario 4.
func TestInsertThenQuery(t *testing.T) {
	r, err := New(Elastic, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	tag, err := r.NewField("tag", Scalar(Int32))
	if err != nil {
		t.Fatal(err)
	}

	const n = 10
	cur, err := r.NewInsertCursor(n)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		row, ok := cur.Next()
		if !ok {
			t.Fatalf("insert cursor exhausted at i=%d", i)
		}
		tag.SetInt32At(row, int32(i%2))
	}
	if err := cur.FinishInsert(); err != nil {
		t.Fatal(err)
	}

	if r.LogicalSize() != 10 {
		t.Fatalf("logical size = %d, want 10", r.LogicalSize())
	}
	if r.ConcreteSize() != 10 {
		t.Fatalf("concrete size = %d, want 10", r.ConcreteSize())
	}
	for i := 0; i < n; i++ {
		want := int32(i % 2)
		if got := tag.Int32At(i); got != want {
			t.Fatalf("row %d: tag = %d, want %d", i, got, want)
		}
	}
}

// TestDeleteThenDefrag reproduces spec.md §8 scenario 5, continuing from
// scenario 4.
func TestDeleteThenDefrag(t *testing.T) {
	r, _ := New(Elastic, 0, nil, nil)
	tag, _ := r.NewField("tag", Scalar(Int32))

	const n = 10
	cur, _ := r.NewInsertCursor(n)
	for i := 0; i < n; i++ {
		row, _ := cur.Next()
		tag.SetInt32At(row, int32(i%2))
	}
	if err := cur.FinishInsert(); err != nil {
		t.Fatal(err)
	}

	dc, err := r.NewDeletionCounter()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if tag.Int32At(i) == 1 {
			dc.DeleteRow(i)
		}
	}
	if err := dc.FinishDelete(); err != nil {
		t.Fatal(err)
	}

	if r.LogicalSize() != 5 {
		t.Fatalf("logical size = %d, want 5", r.LogicalSize())
	}
	// 5 <= 0.5*10 triggers auto-defrag.
	if r.IsFragmented() {
		t.Fatal("expected auto-defrag to have cleared is_fragmented")
	}
	if r.ConcreteSize() != 5 {
		t.Fatalf("concrete size = %d, want 5 after auto-defrag", r.ConcreteSize())
	}
	for i := 0; i < 5; i++ {
		if got := tag.Int32At(i); got != 0 {
			t.Fatalf("row %d: tag = %d, want 0 after defrag", i, got)
		}
	}
}

// TestDefragIdempotence is spec.md §8's universal property.
func TestDefragIdempotence(t *testing.T) {
	r, _ := New(Elastic, 6, nil, nil)
	v, _ := r.NewField("v", Scalar(Int32))
	for i := 0; i < 6; i++ {
		v.SetInt32At(i, int32(i))
	}
	dc, _ := r.NewDeletionCounter()
	dc.DeleteRow(1)
	dc.DeleteRow(3)
	if err := dc.FinishDelete(); err != nil {
		t.Fatal(err)
	}
	// 4 logical / 6 concrete is above 50%, so no auto-defrag fired;
	// force one explicitly and then again, and require idempotence.
	if err := r.Defrag(); err != nil {
		t.Fatal(err)
	}
	first := make([]int32, r.ConcreteSize())
	for i := range first {
		first[i] = v.Int32At(i)
	}
	if err := r.Defrag(); err != nil {
		t.Fatal(err)
	}
	if r.IsFragmented() {
		t.Fatal("expected is_fragmented == false after defrag")
	}
	if r.ConcreteSize() != r.LogicalSize() {
		t.Fatalf("concrete (%d) != logical (%d) after defrag", r.ConcreteSize(), r.LogicalSize())
	}
	for i := 0; i < r.ConcreteSize(); i++ {
		if got := v.Int32At(i); got != first[i] {
			t.Fatalf("defrag not idempotent at row %d: %d != %d", i, got, first[i])
		}
	}
}

func TestResizeRejectsNonElastic(t *testing.T) {
	r, _ := New(Plain, 4, nil, nil)
	if err := r.Resize(8, -1); err == nil {
		t.Fatal("expected error resizing a non-ELASTIC relation")
	}
}

func TestInsertRejectedWithSubsets(t *testing.T) {
	r, _ := New(Elastic, 4, nil, nil)
	if _, err := r.NewSubset("all", func(int) bool { return true }); err != nil {
		t.Fatal(err)
	}
	if _, err := r.NewInsertCursor(2); err == nil {
		t.Fatal("expected error inserting into a relation with subsets")
	}
}
