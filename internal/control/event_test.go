package control

import (
	"bytes"
	"testing"
)

func TestEventEncodeDecodeRoundTrip(t *testing.T) {
	ev := NewEvent(EventNewTask, 42, []byte("payload"))
	wire := Encode(ev)

	got, err := Decode(wire)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != EventNewTask {
		t.Fatalf("type = %v, want %v", got.Type, EventNewTask)
	}
	if got.TargetUID != 42 {
		t.Fatalf("target uid = %d, want 42", got.TargetUID)
	}
	if !bytes.Equal(got.Payload, []byte("payload")) {
		t.Fatalf("payload = %q, want %q", got.Payload, "payload")
	}
	if got.CorrelationID != ev.CorrelationID {
		t.Fatal("correlation id did not round-trip")
	}
}

func TestEventTypeNames(t *testing.T) {
	names := map[EventType]string{
		EventNewRelation:         "newRelation",
		EventGlobalGridPartition: "globalGridPartition",
		EventRecordNewField:      "recordNewField",
		EventPrepareField:        "prepareField",
		EventLoadFieldConstant:   "loadFieldConstant",
		EventMarkGhostsReady:     "markGhostsReady",
		EventNewTask:             "newTask",
		EventLaunchTask:          "launchTask",
	}
	for et, want := range names {
		if got := et.String(); got != want {
			t.Fatalf("%d: got %q, want %q", et, got, want)
		}
	}
}
