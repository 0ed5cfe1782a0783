package ghost

import (
	"context"
	"sync"
	"testing"

	"github.com/nmxmxh/inos_v1/internal/relation"
)

// loopbackTransport echoes whatever was last sent to a neighbor back on
// Recv, enough to drive the protocol end to end without a live libp2p
// host.
type loopbackTransport struct {
	mu      sync.Mutex
	inboxes map[string][]byte
}

func newLoopback() *loopbackTransport {
	return &loopbackTransport{inboxes: make(map[string][]byte)}
}

func key(o Offset) string {
	s := ""
	for _, c := range o {
		s += string(rune('0' + c + 1))
	}
	return s
}

func (t *loopbackTransport) Send(ctx context.Context, neighbor Offset, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inboxes[key(neighbor)] = append([]byte(nil), payload...)
	return nil
}

func (t *loopbackTransport) Recv(ctx context.Context, neighbor Offset) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inboxes[key(neighbor)], nil
}

func TestExchangeRoundTrip(t *testing.T) {
	r, _ := relation.New(relation.Grid, 0, []int{4}, []bool{false})
	f, _ := r.NewField("v", relation.Scalar(relation.Float64))
	for i := 0; i < 4; i++ {
		f.SetFloat64At(i, float64(i))
	}

	tr := newLoopback()
	ch, err := New(f, tr, []Offset{{1}}, false)
	if err != nil {
		t.Fatal(err)
	}

	strips := []Strip{
		{Offset: Offset{1}, Inner: []int{0, 1}, Outer: []int{2, 3}},
	}
	if err := ch.Exchange(context.Background(), strips); err != nil {
		t.Fatal(err)
	}
	if !ch.Ready() {
		t.Fatal("expected channel ready after a successful exchange")
	}
	if f.Float64At(2) != 0 || f.Float64At(3) != 1 {
		t.Fatalf("scatter mismatch: got %v %v", f.Float64At(2), f.Float64At(3))
	}
	if ch.BytesSent() == 0 || ch.BytesRecv() == 0 {
		t.Fatal("expected non-zero byte counters")
	}
}

func TestExchangeWithCompression(t *testing.T) {
	r, _ := relation.New(relation.Grid, 0, []int{4}, []bool{false})
	f, _ := r.NewField("v", relation.Scalar(relation.Float64))
	for i := 0; i < 4; i++ {
		f.SetFloat64At(i, float64(i*10))
	}

	tr := newLoopback()
	ch, err := New(f, tr, []Offset{{-1}}, true)
	if err != nil {
		t.Fatal(err)
	}
	strips := []Strip{
		{Offset: Offset{-1}, Inner: []int{2, 3}, Outer: []int{0, 1}},
	}
	if err := ch.Exchange(context.Background(), strips); err != nil {
		t.Fatal(err)
	}
	if f.Float64At(0) != 20 || f.Float64At(1) != 30 {
		t.Fatalf("compressed scatter mismatch: got %v %v", f.Float64At(0), f.Float64At(1))
	}
}
