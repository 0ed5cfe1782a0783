// Package rtconfig holds the module's single immutable runtime
// configuration object. Design Notes §9 ("Global mutable state") requires
// the single-node/distributed flag — and the other environment-derived
// runtime toggles of spec.md §6 — to be read once at startup and then
// injected into every component, never read again from the environment
// and never mutated afterward.
package rtconfig

import (
	"os"
	"strconv"
)

// Mode selects single-node or distributed execution. It is fixed at
// process startup and never changes afterward.
type Mode int

const (
	ModeSingleNode Mode = iota
	ModeDistributed
)

// Config is the immutable configuration injected into every component.
// Construct exactly one per process via FromEnv (or Default for tests)
// and pass it by value — its fields are never mutated after construction.
type Config struct {
	Mode Mode

	// VerboseLogging is the verbose-logging toggle (§6); cmd/lisztd uses
	// it to lower its log level to DEBUG.
	VerboseLogging bool

	// ExperimentalSignals is the experimental-signals toggle (§6). It is
	// parsed but no component reads it.
	ExperimentalSignals bool

	// PTXDump is the GPU-intermediate dump toggle (§6). It is parsed but
	// no component reads it; this core has no real GPU backend.
	PTXDump bool

	// NumPartitions is the controller-side fleet size (§6, §4.H).
	NumPartitions int

	// GhostDepth is the default ghost-region width per axis (§3, default 2).
	GhostDepth int

	// BlockSize is the GPU reduction engine's configured power-of-2 block
	// size B (§4.D). Zero means "auto-detect via internal/gpu".
	BlockSize int
}

// Default returns the configuration used by tests and by single-process
// examples: single-node, no verbose logging, ghost depth 2, block size
// auto-detected.
func Default() Config {
	return Config{
		Mode:          ModeSingleNode,
		GhostDepth:    2,
		NumPartitions: 1,
	}
}

// FromEnv builds a Config from the spec.md §6 environment toggles. Called
// exactly once, at process startup.
func FromEnv() Config {
	cfg := Default()

	if os.Getenv("EBB_MODE") == "distributed" {
		cfg.Mode = ModeDistributed
	}
	cfg.VerboseLogging = envBool("EBB_VERBOSE_LOGGING")
	cfg.ExperimentalSignals = envBool("EBB_EXPERIMENTAL_SIGNALS")
	cfg.PTXDump = envBool("EBB_INTERNAL_DEV_PTX_DUMP")

	if v, ok := envInt("EBB_NUM_PARTITIONS"); ok {
		cfg.NumPartitions = v
	}
	if v, ok := envInt("EBB_GHOST_DEPTH"); ok {
		cfg.GhostDepth = v
	}
	if v, ok := envInt("EBB_BLOCK_SIZE"); ok {
		cfg.BlockSize = v
	}

	return cfg
}

func envBool(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Distributed reports whether this config selects distributed mode.
func (c Config) Distributed() bool { return c.Mode == ModeDistributed }
