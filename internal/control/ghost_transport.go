package control

import (
	"context"
	"sync"

	"github.com/nmxmxh/inos_v1/internal/diag"
	"github.com/nmxmxh/inos_v1/internal/ghost"
)

// GhostTransport adapts a Node into internal/ghost.Transport, routing
// each neighbor Offset to a peer address via a caller-supplied lookup
// (ordinarily internal/partition.Partition.NodeAddr) and framing the
// payload as an EventMarkGhostsReady control event so the receiving
// node's ordinary event dispatch delivers it to the right channel.
type GhostTransport struct {
	node     *Node
	addrFor  func(neighbor ghost.Offset) (string, error)
	targetID uint64

	mu    sync.Mutex
	inbox map[string][]byte
}

// NewGhostTransport builds a ghost.Transport backed by node. addrFor
// resolves a neighbor offset to a dialable peer address; targetID is the
// ghost channel's relation UID, carried in the event envelope.
func NewGhostTransport(node *Node, targetID uint64, addrFor func(ghost.Offset) (string, error)) *GhostTransport {
	return &GhostTransport{node: node, addrFor: addrFor, targetID: targetID, inbox: make(map[string][]byte)}
}

// Deliver feeds a received markGhostsReady event's payload into the
// transport's inbox, called from the Node's Handler for that event type.
func (t *GhostTransport) Deliver(neighbor ghost.Offset, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox[offsetKey(neighbor)] = append([]byte(nil), payload...)
}

func offsetKey(o ghost.Offset) string {
	s := make([]byte, len(o))
	for i, c := range o {
		s[i] = byte('0' + c + 1)
	}
	return string(s)
}

func (t *GhostTransport) Send(ctx context.Context, neighbor ghost.Offset, payload []byte) error {
	addr, err := t.addrFor(neighbor)
	if err != nil {
		return diag.GhostProtocolError("ghost_transport_send", err.Error())
	}
	ev := NewEvent(EventMarkGhostsReady, t.targetID, payload)
	_, err = t.node.Send(ctx, addr, ev)
	return err
}

func (t *GhostTransport) Recv(ctx context.Context, neighbor ghost.Offset) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	payload, ok := t.inbox[offsetKey(neighbor)]
	if !ok {
		return nil, diag.GhostProtocolError("ghost_transport_recv", "no payload buffered for neighbor")
	}
	return payload, nil
}
