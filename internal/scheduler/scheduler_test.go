package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nmxmxh/inos_v1/internal/codegen"
	"github.com/nmxmxh/inos_v1/internal/kernelexec"
	"github.com/nmxmxh/inos_v1/internal/phase"
	"github.com/nmxmxh/inos_v1/internal/relation"
)

func TestSchedulerOrdersWriteBeforeRead(t *testing.T) {
	mock := clock.NewMock()
	s := New(mock, time.Millisecond)

	r, _ := relation.New(relation.Plain, 4, nil, nil)
	f, _ := r.NewField("v", relation.Scalar(relation.Int32))

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	writer := kernelexec.NewVersion("writer", r, []kernelexec.FieldAccess{
		{Name: "v", Privilege: phase.ReadWrite},
	}, nil, false)
	if err := writer.Compile(func(a *codegen.Args) error {
		record("write")
		f.SetInt32At(a.Row, 1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	reader := kernelexec.NewVersion("reader", r, []kernelexec.FieldAccess{
		{Name: "v", Privilege: phase.ReadOnly},
	}, nil, false)
	if err := reader.Compile(func(a *codegen.Args) error {
		record("read")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	wDone := s.Launch(writer, []kernelexec.FieldAccess{{Name: "v", Privilege: phase.ReadWrite}})
	s.Launch(reader, []kernelexec.FieldAccess{{Name: "v", Privilege: phase.ReadOnly}})
	Sink(wDone)

	mock.Add(10 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 1 || order[0] != "write" {
		t.Fatalf("expected writer to run before reader, got %v", order)
	}
}

func TestMetricsCountsLaunches(t *testing.T) {
	s := New(clock.NewMock(), time.Millisecond)
	r, _ := relation.New(relation.Plain, 2, nil, nil)
	r.NewField("v", relation.Scalar(relation.Int32))
	v := kernelexec.NewVersion("k", r, []kernelexec.FieldAccess{
		{Name: "v", Privilege: phase.ReadOnly},
	}, nil, false)
	v.Compile(func(a *codegen.Args) error { return nil })

	done := s.Launch(v, []kernelexec.FieldAccess{{Name: "v", Privilege: phase.ReadOnly}})
	Sink(done)

	if s.Metrics().TasksLaunched != 1 {
		t.Fatalf("expected 1 launch, got %d", s.Metrics().TasksLaunched)
	}
}
