// Package control implements the Distributed control plane (spec.md
// §6): named events broadcast from the control node (node 0) to compute
// nodes (1..N-1), each carrying a target UID plus serialized state.
// Stream transport is adapted from the teacher's libp2p node
// (internal/network/mesh.go); payload encoding uses protowire directly,
// without a .proto-generated type, matching the teacher's one direct
// protobuf dependency put to its lowest-level use.
package control

import (
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nmxmxh/inos_v1/internal/diag"
)

// EventType is one of the canonical cross-node events (spec.md §6).
type EventType int

const (
	EventNewRelation EventType = iota
	EventGlobalGridPartition
	EventRecordNewField
	EventPrepareField
	EventLoadFieldConstant
	EventMarkGhostsReady
	EventNewTask
	EventLaunchTask
)

func (e EventType) String() string {
	switch e {
	case EventNewRelation:
		return "newRelation"
	case EventGlobalGridPartition:
		return "globalGridPartition"
	case EventRecordNewField:
		return "recordNewField"
	case EventPrepareField:
		return "prepareField"
	case EventLoadFieldConstant:
		return "loadFieldConstant"
	case EventMarkGhostsReady:
		return "markGhostsReady"
	case EventNewTask:
		return "newTask"
	case EventLaunchTask:
		return "launchTask"
	default:
		return "unknown"
	}
}

// wire field numbers for the Event envelope, hand-encoded with protowire
// rather than generated from a .proto so the control plane has no build
// step beyond the Go toolchain.
const (
	fieldCorrelationID = 1
	fieldType          = 2
	fieldTargetUID     = 3
	fieldPayload       = 4
)

// Event is one control-plane message: a correlation id for matching
// acks, the event type, the target relation/field/kernel/task UID, and
// an opaque serialized payload specific to that event type.
type Event struct {
	CorrelationID uuid.UUID
	Type          EventType
	TargetUID     uint64
	Payload       []byte
}

// Encode serializes an Event with protowire as four tagged fields. The
// message carries no outer length prefix; one stream carries one Event.
func Encode(e Event) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCorrelationID, protowire.BytesType)
	b = protowire.AppendBytes(b, e.CorrelationID[:])
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	b = protowire.AppendTag(b, fieldTargetUID, protowire.VarintType)
	b = protowire.AppendVarint(b, e.TargetUID)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Payload)
	return b
}

// Decode parses an Encode-d Event, ignoring unknown fields the way
// protobuf wire compatibility expects.
func Decode(b []byte) (Event, error) {
	var e Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, diag.IOError("control_decode", "malformed tag")
		}
		b = b[n:]
		switch num {
		case fieldCorrelationID:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return e, diag.IOError("control_decode", "malformed correlation id")
			}
			copy(e.CorrelationID[:], v)
			b = b[m:]
		case fieldType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return e, diag.IOError("control_decode", "malformed event type")
			}
			e.Type = EventType(v)
			b = b[m:]
		case fieldTargetUID:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return e, diag.IOError("control_decode", "malformed target uid")
			}
			e.TargetUID = v
			b = b[m:]
		case fieldPayload:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return e, diag.IOError("control_decode", "malformed payload")
			}
			e.Payload = append([]byte(nil), v...)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return e, diag.IOError("control_decode", "malformed unknown field")
			}
			b = b[m:]
		}
	}
	return e, nil
}

// NewEvent builds an Event with a fresh correlation id.
func NewEvent(t EventType, targetUID uint64, payload []byte) Event {
	return Event{CorrelationID: uuid.New(), Type: t, TargetUID: targetUID, Payload: payload}
}
