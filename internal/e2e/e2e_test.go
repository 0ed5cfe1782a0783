// Package e2e exercises the concrete scenarios spec.md §8 names, driving
// the full Declare -> Compile -> Bind -> Launch kernel lifecycle across
// internal/relation, internal/kernelexec, and internal/gpu together
// instead of unit-testing each package in isolation.
package e2e

import (
	"sync"
	"testing"

	"github.com/nmxmxh/inos_v1/internal/codegen"
	"github.com/nmxmxh/inos_v1/internal/kernelexec"
	"github.com/nmxmxh/inos_v1/internal/phase"
	"github.com/nmxmxh/inos_v1/internal/relation"
)

// TestCentroidScenario is spec.md §8 scenario 1: four vertex positions
// reduced to their centroid.
func TestCentroidScenario(t *testing.T) {
	r, err := relation.New(relation.Plain, 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	pos, err := r.NewField("pos", relation.Vector(relation.Float64, 3))
	if err != nil {
		t.Fatal(err)
	}
	positions := [][3]float64{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}, {0, 0, 2}}
	for i, p := range positions {
		pos.SetVec3(i, p)
	}

	var mu sync.Mutex
	var com [3]float64
	v := kernelexec.NewVersion("centroid", r, []kernelexec.FieldAccess{
		{Name: "pos", Privilege: phase.ReadOnly},
	}, nil, false)

	err = v.Compile(func(a *codegen.Args) error {
		val := pos.Vec3(a.Row)
		mu.Lock()
		com[0] += val[0]
		com[1] += val[1]
		com[2] += val[2]
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Bind(); err != nil {
		t.Fatal(err)
	}
	if err := v.Launch(); err != nil {
		t.Fatal(err)
	}

	got := [3]float64{com[0] / 4, com[1] / 4, com[2] / 4}
	want := [3]float64{0.5, 0.5, 0.5}
	for i := range got {
		if d := got[i] - want[i]; d > 1e-9 || d < -1e-9 {
			t.Fatalf("centroid[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestDiffusionScenario is spec.md §8 scenario 2: a 5x5 grid whose
// first interior cell holds 25 and every other cell 0, diffused for 1000
// iterations by a 4-neighbor Laplacian that skips boundary neighbors, so
// the heat stays among the 9 interior cells and their mean must be 25/9
// within 1e-6. Unlike cmd/lisztd's boot-log demo, a
// regression here fails the test, not just changes a printed line.
func TestDiffusionScenario(t *testing.T) {
	const n = 5
	r, err := relation.New(relation.Grid, 0, []int{n, n}, []bool{false, false})
	if err != nil {
		t.Fatal(err)
	}
	temp, err := r.NewField("T", relation.Scalar(relation.Float64))
	if err != nil {
		t.Fatal(err)
	}
	temp.SetFloat64At(n+1, 25)

	// The compiled body writes into next rather than T directly, so every
	// row's read of its neighbors during one launch sees the previous
	// round's values regardless of launchCPU's partition fan-out order.
	next := make([]float64, n*n)
	var mu sync.Mutex
	v := kernelexec.NewVersion("diffusion", r, []kernelexec.FieldAccess{
		{Name: "T", Privilege: phase.ReadWrite},
	}, nil, false)
	err = v.Compile(func(a *codegen.Args) error {
		row := a.Row
		y, x := row/n, row%n
		var val float64
		if x == 0 || y == 0 || x == n-1 || y == n-1 {
			val = temp.Float64At(row)
		} else {
			// Exchange with interior neighbors only, so the interior
			// total is conserved.
			self := temp.Float64At(row)
			flux := 0.0
			for _, nb := range []int{row - 1, row + 1, row - n, row + n} {
				ny, nx := nb/n, nb%n
				if nx == 0 || ny == 0 || nx == n-1 || ny == n-1 {
					continue
				}
				flux += temp.Float64At(nb) - self
			}
			val = self + 0.2*flux
		}
		mu.Lock()
		next[row] = val
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for step := 0; step < 1000; step++ {
		if err := v.Bind(); err != nil {
			t.Fatal(err)
		}
		if err := v.Launch(); err != nil {
			t.Fatal(err)
		}
		for row, val := range next {
			temp.SetFloat64At(row, val)
		}
	}

	sum := phase.OpSum.IdentityFloat64()
	count := 0
	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			sum = phase.OpSum.ApplyFloat64(sum, temp.Float64At(y*n+x))
			count++
		}
	}
	mean := sum / float64(count)
	want := 25.0 / 9.0
	if d := mean - want; d > 1e-6 || d < -1e-6 {
		t.Fatalf("interior mean = %v, want %v within 1e-6", mean, want)
	}
}

// TestGPUGlobalSumScenario is spec.md §8 scenario 6: a million-row
// relation reduced on GPU with gerr += 1, expecting gerr == 1,000,000.
// The REDUCE field "one" (every row holding 1.0) is what the GPU
// Reduction Engine's PrimaryKernel/SecondaryKernel actually fold;
// Version.Compile/Launch wire kernelexec to internal/gpu for this case.
func TestGPUGlobalSumScenario(t *testing.T) {
	const n = 1_000_000
	r, err := relation.New(relation.Plain, n, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	one, err := r.NewField("one", relation.Scalar(relation.Float64))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		one.SetFloat64At(i, 1)
	}

	v := kernelexec.NewVersion("global_sum", r, []kernelexec.FieldAccess{
		{Name: "one", Privilege: phase.Reduce, Op: phase.OpSum},
	}, []string{"gerr"}, true)

	if err := v.Compile(func(a *codegen.Args) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := v.Bind(); err != nil {
		t.Fatal(err)
	}
	if err := v.Launch(); err != nil {
		t.Fatal(err)
	}

	if got := v.Result(); got != float64(n) {
		t.Fatalf("gerr = %v, want %v", got, float64(n))
	}
}
