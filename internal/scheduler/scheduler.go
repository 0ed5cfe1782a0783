package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/kernelexec"
	"github.com/nmxmxh/inos_v1/internal/phase"
)

// fieldState tracks one field's most recent read and write signals, so a
// newly launched task can build its wait set without re-scanning every
// prior task (spec.md §4.F "last_read/last_write discipline").
type fieldState struct {
	lastWrite *Signal
	lastReads []*Signal
}

// Scheduler sequences Kernel Version launches against a signal graph
// built from each kernel's declared field accesses.
type Scheduler struct {
	mu     sync.Mutex
	fields map[string]*fieldState

	clock clock.Clock
	poll  time.Duration

	metrics Metrics
	log     *diag.Logger
}

// Metrics is the scheduler's self-reported operational counters
// (SPEC_FULL.md §3 scheduler.Metrics()).
type Metrics struct {
	TasksLaunched  uint64
	SignalWaits    uint64
	PollTicks      uint64
}

// New builds a Scheduler. clk defaults to the real wall clock; tests
// inject clock.NewMock() for deterministic cooperative polling.
func New(clk clock.Clock, pollInterval time.Duration) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if pollInterval <= 0 {
		pollInterval = time.Millisecond
	}
	return &Scheduler{
		fields: make(map[string]*fieldState),
		clock:  clk,
		poll:   pollInterval,
		log:    diag.Default("scheduler"),
	}
}

func (s *Scheduler) state(name string) *fieldState {
	fs, ok := s.fields[name]
	if !ok {
		fs = &fieldState{lastWrite: func() *Signal { sig := Source(); sig.Fire(); return sig }()}
		s.fields[name] = fs
	}
	return fs
}

// waitSetFor builds the Merge of every signal a version's declared
// accesses must wait on: READ_ONLY/REDUCE wait on the field's last
// writer; READ_WRITE also waits on any outstanding readers (a
// write-after-read hazard), matching spec.md §4.F's discipline.
func (s *Scheduler) waitSetFor(accesses []kernelexec.FieldAccess) []*Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var waits []*Signal
	for _, a := range accesses {
		fs := s.state(a.Name)
		waits = append(waits, fs.lastWrite)
		if a.Privilege == phase.ReadWrite {
			waits = append(waits, fs.lastReads...)
		}
		s.metrics.SignalWaits++
	}
	return waits
}

// recordCompletion updates each accessed field's last_read/last_write
// signal to the task's completion signal.
func (s *Scheduler) recordCompletion(accesses []kernelexec.FieldAccess, done *Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accesses {
		fs := s.state(a.Name)
		switch a.Privilege {
		case phase.ReadOnly:
			fs.lastReads = append(fs.lastReads, done)
		case phase.ReadWrite, phase.Reduce:
			fs.lastWrite = done
			fs.lastReads = nil
		}
	}
}

// Launch schedules v's next launch: it waits on the Merge of every
// dependency signal implied by v's declared accesses, runs Bind+Launch,
// and publishes a completion signal downstream tasks can depend on
// (spec.md §4.F task launch protocol).
func (s *Scheduler) Launch(v *kernelexec.Version, accesses []kernelexec.FieldAccess) *Signal {
	wait := Merge(s.waitSetFor(accesses)...)
	done := Exec(wait, func() {
		s.pollUntilReady(v)
		if err := v.Bind(); err != nil {
			s.log.Error("bind failed", diag.Err(err))
			return
		}
		if err := v.Launch(); err != nil {
			s.log.Error("launch failed", diag.Err(err))
			return
		}
	})
	s.recordCompletion(accesses, done)
	s.mu.Lock()
	s.metrics.TasksLaunched++
	s.mu.Unlock()
	return done
}

// pollUntilReady cooperatively spins on the injected clock while v is
// still LAUNCHED from a previous launch, mirroring the teacher's
// SAB-ring-buffer poll loop but driven by a test-controllable clock
// rather than a hardware timer.
func (s *Scheduler) pollUntilReady(v *kernelexec.Version) {
	for v.State() == kernelexec.StateLaunched {
		s.mu.Lock()
		s.metrics.PollTicks++
		s.mu.Unlock()
		s.clock.Sleep(s.poll)
	}
}

// Metrics returns a snapshot of the scheduler's operational counters.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
