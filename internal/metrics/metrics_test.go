package metrics

import "testing"

func TestNewRegistryDoesNotPanicOnDuplicateInstances(t *testing.T) {
	r1 := New()
	r2 := New()
	r1.KernelLaunches.Inc()
	r2.KernelLaunches.Inc()

	mfs, err := r1.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one metric family")
	}
}
