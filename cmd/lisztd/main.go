// Command lisztd is the Ebb/Liszt execution core daemon: it boots
// either as the control node (index 0) or a compute node (index
// 1..N-1) of a distributed run, or stands alone in single-node mode.
// Lifecycle and flag-driven config detection follow the teacher's
// kernel boot sequence (kernel/lifecycle.go Kernel.Boot).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nmxmxh/inos_v1/internal/control"
	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/gpu"
	"github.com/nmxmxh/inos_v1/internal/metrics"
	"github.com/nmxmxh/inos_v1/internal/phase"
	"github.com/nmxmxh/inos_v1/internal/relation"
	"github.com/nmxmxh/inos_v1/internal/rtconfig"
)

func main() {
	var (
		mode      = flag.String("mode", "single", "single|control|compute")
		nodeIndex = flag.Int("node-index", 0, "this node's index (0 == control node)")
		peers     = flag.String("peers", "", "comma-separated control-plane peer addresses")
	)
	flag.Parse()

	cfg := rtconfig.FromEnv()
	log := diag.NewLogger(diag.Config{
		Level:     levelFor(cfg.VerboseLogging),
		Component: "lisztd",
		Colorize:  true,
	})
	reg := metrics.New()

	log.Info("lisztd starting",
		diag.String("mode", *mode),
		diag.Int("node_index", *nodeIndex),
		diag.Bool("distributed", cfg.Distributed()),
		diag.Int("ghost_depth", cfg.GhostDepth),
		diag.Int("block_size", detectedBlockSize(cfg)))

	switch *mode {
	case "single":
		runDiffusionDemo(log, reg)
	case "control", "compute":
		if err := runDistributed(*mode, *nodeIndex, strings.Split(*peers, ",")); err != nil {
			log.Error("distributed boot failed", diag.Err(err))
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q\n", *mode)
		os.Exit(2)
	}
}

func levelFor(verbose bool) diag.Level {
	if verbose {
		return diag.DEBUG
	}
	return diag.INFO
}

func detectedBlockSize(cfg rtconfig.Config) int {
	if cfg.BlockSize > 0 {
		return cfg.BlockSize
	}
	return gpu.DetectBlockSize()
}

// runDiffusionDemo exercises the core end to end in single-node mode: a
// tiny 5x5 diffusion grid, the spec.md §8 scenario 2 fixture, run for
// 1000 steps and its interior mean reported as a boot smoke test.
func runDiffusionDemo(log *diag.Logger, reg *metrics.Registry) {
	const n = 5
	r, err := relation.New(relation.Grid, 0, []int{n, n}, []bool{false, false})
	if err != nil {
		log.Error("failed to build diffusion grid", diag.Err(err))
		return
	}
	t, err := r.NewField("T", relation.Scalar(relation.Float64))
	if err != nil {
		log.Error("failed to allocate temperature field", diag.Err(err))
		return
	}
	t.SetFloat64At(n+1, 25)

	for step := 0; step < 1000; step++ {
		next := make([]float64, n*n)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				row := y*n + x
				if x == 0 || y == 0 || x == n-1 || y == n-1 {
					next[row] = t.Float64At(row)
					continue
				}
				// Exchange with interior neighbors only, so the interior
				// total is conserved.
				self := t.Float64At(row)
				flux := 0.0
				for _, nb := range []int{row - 1, row + 1, row - n, row + n} {
					ny, nx := nb/n, nb%n
					if nx == 0 || ny == 0 || nx == n-1 || ny == n-1 {
						continue
					}
					flux += t.Float64At(nb) - self
				}
				next[row] = self + 0.2*flux
			}
		}
		for row, v := range next {
			t.SetFloat64At(row, v)
		}
	}

	sum := phase.OpSum.IdentityFloat64()
	count := 0
	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			sum = phase.OpSum.ApplyFloat64(sum, t.Float64At(y*n+x))
			count++
		}
	}
	mean := sum / float64(count)
	reg.KernelLaunches.Add(1000)
	log.Info("diffusion demo converged",
		diag.Float64("interior_mean", mean),
		diag.Float64("expected", 25.0/9.0))
}

// runDistributed starts this node's control-plane listener and, if this
// is the control node, broadcasts a newRelation event to every compute
// peer as a connectivity probe.
func runDistributed(mode string, index int, peers []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	node, err := control.NewNode(index, func(ev control.Event) ([]byte, error) {
		return []byte("ack:" + ev.Type.String()), nil
	})
	if err != nil {
		return err
	}
	defer node.Close()

	addr, err := node.Addr()
	if err != nil {
		return err
	}
	fmt.Printf("lisztd node %d (%s) listening at %s\n", index, mode, addr)

	if mode == "control" {
		ev := control.NewEvent(control.EventNewRelation, 0, nil)
		if err := node.Broadcast(ctx, cleanPeers(peers), ev); err != nil {
			return err
		}
	}
	return nil
}

func cleanPeers(peers []string) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
