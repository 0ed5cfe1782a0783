// Package ghost implements Ghost-Exchange Channels (spec.md §4.G): the
// per-neighbor gather/send/recv/scatter protocol a GRID relation's
// partition boundary uses to keep its ghost strip current. Stream
// transport is grounded on the teacher's libp2p stream handler
// (internal/network/mesh.go StartNodeWithStreams/SendPacket); this
// package is transport-agnostic and talks to a small Transport
// interface so tests can run the whole protocol without a live libp2p
// host.
package ghost

import (
	"context"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/relation"
)

// Offset is a per-neighbor direction vector; each component is -1, 0, or
// +1 (spec.md §4.G "o ∈ {-1,0,+1}^d").
type Offset []int

// IsZero reports the center offset (no neighbor).
func (o Offset) IsZero() bool {
	for _, c := range o {
		if c != 0 {
			return false
		}
	}
	return true
}

// Key uniquely names a channel between a local partition and one
// neighbor offset, correlated across nodes with a UUID the way
// internal/control correlates RPCs (spec.md §4.G, SPEC_FULL.md §2).
type Key struct {
	ID     uuid.UUID
	Offset Offset
}

// Transport is the minimum a ghost channel needs from the network layer:
// send bytes to a neighbor and receive bytes sent by that neighbor. A
// libp2p-backed implementation lives in internal/control; tests use an
// in-memory loopback.
type Transport interface {
	Send(ctx context.Context, neighbor Offset, payload []byte) error
	Recv(ctx context.Context, neighbor Offset) ([]byte, error)
}

// Channel manages one field's ghost exchange across all of a partition's
// neighbors (spec.md §4.G: "inner strip ... outer strip ... gather,
// send, recv, scatter").
type Channel struct {
	id        uuid.UUID
	field     *relation.Field
	transport Transport
	neighbors []Offset

	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder

	bytesSent int64
	bytesRecv int64

	readyCount int32
	readyWant  int32
}

// New builds a ghost channel for field f across the given neighbor
// offsets. compress enables zstd framing on the wire (spec.md §4.G
// ghost payloads are plain byte copies of the strip; compression is an
// optional wire-format optimization this component adds for WAN links).
func New(f *relation.Field, transport Transport, neighbors []Offset, compress bool) (*Channel, error) {
	c := &Channel{
		id:        uuid.New(),
		field:     f,
		transport: transport,
		neighbors: neighbors,
		compress:  compress,
		readyWant: int32(len(neighbors)),
	}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, diag.IOError("ghost_new", "zstd encoder: "+err.Error())
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, diag.IOError("ghost_new", "zstd decoder: "+err.Error())
		}
		c.encoder, c.decoder = enc, dec
	}
	return c, nil
}

// ID identifies this channel for correlation across nodes.
func (c *Channel) ID() uuid.UUID { return c.id }

// BytesSent/BytesRecv are the channel's cumulative wire byte counters
// (SPEC_FULL.md §3).
func (c *Channel) BytesSent() int64 { return c.bytesSent }
func (c *Channel) BytesRecv() int64 { return c.bytesRecv }

func (c *Channel) encode(raw []byte) []byte {
	if !c.compress {
		return raw
	}
	return c.encoder.EncodeAll(raw, nil)
}

func (c *Channel) decode(wire []byte) ([]byte, error) {
	if !c.compress {
		return wire, nil
	}
	return c.decoder.DecodeAll(wire, nil)
}
