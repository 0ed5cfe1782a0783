package diag

import (
	"sync"

	"go.uber.org/zap"
)

// DependencyLogger emits the structured, machine-parseable "per-launch
// dependency dump" gated by the verbose-logging runtime toggle (spec §6).
// Unlike Logger (the human-facing component logger), its output is meant
// to be grepped/ingested, so it is backed directly by zap's JSON encoder
// rather than the hand-rolled formatter in logger.go.
type DependencyLogger struct {
	mu      sync.Mutex
	enabled bool
	zl      *zap.Logger
}

// NewDependencyLogger builds a DependencyLogger. When enabled is false,
// every call is a no-op so callers never pay zap's encoding cost unless
// the verbose-logging toggle is on.
func NewDependencyLogger(enabled bool) *DependencyLogger {
	dl := &DependencyLogger{enabled: enabled}
	if !enabled {
		return dl
	}
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	dl.zl = zl
	return dl
}

// DumpLaunch records one kernel launch's resolved field/global dependency
// set: which fields were read, written, or reduced, and which signals the
// launch waited on. No package in this module calls it; kernelexec's
// Launch does not emit a dump.
func (dl *DependencyLogger) DumpLaunch(versionID string, reads, writes, reduces []string, waitedOn []string) {
	if dl == nil || !dl.enabled || dl.zl == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.zl.Info("kernel-launch-dependencies",
		zap.String("version", versionID),
		zap.Strings("reads", reads),
		zap.Strings("writes", writes),
		zap.Strings("reduces", reduces),
		zap.Strings("waited_on", waitedOn),
	)
}

// Sync flushes buffered log entries; callers should defer this at process
// shutdown.
func (dl *DependencyLogger) Sync() error {
	if dl == nil || dl.zl == nil {
		return nil
	}
	return dl.zl.Sync()
}
