package control

import (
	"context"
	"io"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	crypto "github.com/libp2p/go-libp2p/core/crypto"
	libp2p_host "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	peer "github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

const controlProtocol = "/ebb/control/1.0.0"

// Handler processes one received Event and returns an optional ack
// payload, run on the node that owns the event's target object.
type Handler func(e Event) ([]byte, error)

// Node wraps a libp2p host as one member of the control plane: node 0 is
// the control node, nodes 1..N-1 are compute nodes (spec.md §6). This
// mirrors the teacher's StartNodeWithStreams/SendPacket pair
// (internal/network/mesh.go) but frames payloads as Events instead of
// opaque packets, and lets the caller register one Handler per process
// rather than hardcoding an echo.
type Node struct {
	mu      sync.RWMutex
	host    libp2p_host.Host
	index   int
	handler Handler
	log     *diag.Logger
}

// NewNode starts a libp2p host and registers the control stream handler.
// index is this node's position in the cluster (0 == control node).
func NewNode(index int, handler Handler) (*Node, error) {
	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, diag.IOError("control_new_node", err.Error())
	}
	host, err := libp2p.New(libp2p.Identity(priv))
	if err != nil {
		return nil, diag.IOError("control_new_node", err.Error())
	}

	n := &Node{host: host, index: index, handler: handler, log: diag.Default("control")}
	host.SetStreamHandler(controlProtocol, n.handleStream)
	return n, nil
}

func (n *Node) handleStream(s network.Stream) {
	defer s.Close()
	data, err := io.ReadAll(s)
	if err != nil {
		n.log.Warn("control stream read failed", diag.Err(err))
		return
	}
	ev, err := Decode(data)
	if err != nil {
		n.log.Warn("control event decode failed", diag.Err(err))
		return
	}

	n.mu.RLock()
	h := n.handler
	n.mu.RUnlock()
	if h == nil {
		return
	}
	resp, err := h(ev)
	if err != nil {
		n.log.Error("control event handler failed",
			diag.String("event", ev.Type.String()), diag.Err(err))
		return
	}
	if resp != nil {
		s.Write(resp)
	}
}

// Addr returns this node's dialable multiaddress, used to populate the
// partitioner's node-address table (internal/partition.Partition).
func (n *Node) Addr() (string, error) {
	addrs := n.host.Addrs()
	if len(addrs) == 0 {
		return "", diag.IOError("control_addr", "node has no listen addresses")
	}
	return addrs[0].String() + "/p2p/" + n.host.ID().String(), nil
}

// Send delivers ev to the compute node at peerAddr and returns its ack
// payload, if any (spec.md §6 "compute nodes reply to specific events
// with acknowledgements").
func (n *Node) Send(ctx context.Context, peerAddr string, ev Event) ([]byte, error) {
	maddr, err := ma.NewMultiaddr(peerAddr)
	if err != nil {
		return nil, diag.IOError("control_send", err.Error())
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return nil, diag.IOError("control_send", err.Error())
	}
	if err := n.host.Connect(ctx, *info); err != nil {
		return nil, diag.IOError("control_send", err.Error())
	}
	stream, err := n.host.NewStream(ctx, info.ID, controlProtocol)
	if err != nil {
		return nil, diag.IOError("control_send", err.Error())
	}
	defer stream.Close()

	if _, err := stream.Write(Encode(ev)); err != nil {
		return nil, diag.IOError("control_send", err.Error())
	}
	return io.ReadAll(stream)
}

// Broadcast sends ev to every address in peers, in broadcast order, but
// does not itself wait between unrelated event types — spec.md §6 only
// orders messages of the same event type relative to each other.
func (n *Node) Broadcast(ctx context.Context, peers []string, ev Event) error {
	var firstErr error
	for _, addr := range peers {
		if _, err := n.Send(ctx, addr, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close shuts down the underlying host.
func (n *Node) Close() error { return n.host.Close() }
