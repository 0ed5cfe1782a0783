package ghost

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// Strip names one neighbor's inner (rows this node owns and sends) and
// outer (ghost rows this node receives into) row lists (spec.md §4.G).
type Strip struct {
	Offset Offset
	Inner  []int // rows gathered and sent to this neighbor
	Outer  []int // rows this neighbor's payload is scattered into
}

// gather packs strip.Inner's rows from the channel's field into one
// contiguous byte payload, row-major, matching relation.Field's own
// on-disk layout so the receiver can scatter with a plain byte copy.
func (c *Channel) gather(strip Strip) []byte {
	elem := c.field.Type.ElemSize()
	buf := make([]byte, elem*len(strip.Inner))
	for i, row := range strip.Inner {
		copy(buf[i*elem:(i+1)*elem], c.field.Raw(row))
	}
	return buf
}

// scatter writes a received payload back into strip.Outer's ghost rows.
func (c *Channel) scatter(strip Strip, payload []byte) error {
	elem := c.field.Type.ElemSize()
	if len(payload) != elem*len(strip.Outer) {
		return diag.GhostProtocolError("scatter", "payload size does not match outer strip size")
	}
	for i, row := range strip.Outer {
		copy(c.field.Raw(row), payload[i*elem:(i+1)*elem])
	}
	return nil
}

// Exchange runs one full gather/send/recv/scatter round across all of
// the channel's neighbor strips concurrently, using an errgroup the way
// the teacher's GPU supervisor fans out parallel unit work
// (kernel/threads/supervisor/units/gpu_supervisor.go), and aggregating
// any per-neighbor failures with multierr so one bad neighbor doesn't
// mask the others (spec.md §4.G; §7 "partial ghost failure").
func (c *Channel) Exchange(ctx context.Context, strips []Strip) error {
	var g errgroup.Group
	var ready int32
	var errMu sync.Mutex
	var combined error

	for _, strip := range strips {
		strip := strip
		g.Go(func() error {
			runErr := func() error {
				payload := c.encode(c.gather(strip))
				atomic.AddInt64(&c.bytesSent, int64(len(payload)))
				if err := c.transport.Send(ctx, strip.Offset, payload); err != nil {
					return diag.GhostProtocolError("send", err.Error())
				}

				wire, err := c.transport.Recv(ctx, strip.Offset)
				if err != nil {
					return diag.GhostProtocolError("recv", err.Error())
				}
				atomic.AddInt64(&c.bytesRecv, int64(len(wire)))
				raw, err := c.decode(wire)
				if err != nil {
					return diag.GhostProtocolError("decode", err.Error())
				}
				if err := c.scatter(strip, raw); err != nil {
					return err
				}
				atomic.AddInt32(&ready, 1)
				return nil
			}()
			if runErr != nil {
				errMu.Lock()
				combined = multierr.Append(combined, runErr)
				errMu.Unlock()
			}
			return nil
		})
	}

	g.Wait()
	atomic.StoreInt32(&c.readyCount, atomic.LoadInt32(&ready))
	return combined
}

// Ready reports whether every neighbor strip in the last Exchange
// completed (spec.md §4.G readiness spin-and-counter protocol: a kernel
// reading ghost rows polls this before launching).
func (c *Channel) Ready() bool {
	return atomic.LoadInt32(&c.readyCount) >= atomic.LoadInt32(&c.readyWant)
}
