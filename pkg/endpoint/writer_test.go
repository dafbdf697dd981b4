package endpoint

import (
	"testing"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

func testWriterGUID() guid.GUID {
	var g guid.GUID
	g.Entity = guid.EntityID{0, 0, 0, guid.EntityKindWriterWithKey}
	return g
}

func newTestPacer() *congestion.WriterPacer {
	bucket := congestion.NewTokenBucket(1e9, 1e9)
	return congestion.NewWriterPacer(bucket, 16, 0.1)
}

func TestWriterWriteEnqueuesAndRecordsHistory(t *testing.T) {
	pacer := newTestPacer()
	w := NewWriter[sensorReading](testWriterGUID(), sensorDescriptor{}, qos.DefaultProfile(), pacer, congestion.P1)

	seq, err := w.Write(sensorReading{Zone: "north", Temp: 21.5}, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected first sequence to be 1, got %d", seq)
	}

	sample, result := pacer.TrySend()
	if result != congestion.SendOK {
		t.Fatalf("expected pacer to have the enqueued sample, got result %v", result)
	}
	if len(sample.Payload) == 0 {
		t.Fatalf("expected non-empty encoded payload")
	}

	first, last, ok := w.Range()
	if !ok || first != 1 || last != 1 {
		t.Fatalf("expected range [1,1], got [%d,%d] ok=%v", first, last, ok)
	}
}

func TestWriterBestEffortHasNoHeartbeat(t *testing.T) {
	w := NewWriter[sensorReading](testWriterGUID(), sensorDescriptor{}, qos.DefaultProfile(), newTestPacer(), congestion.P2)
	if w.Heartbeat() != nil {
		t.Fatalf("expected BestEffort writer to have no HeartbeatTx")
	}
}

func TestWriterReliableHasHeartbeat(t *testing.T) {
	profile := qos.DefaultProfile()
	profile.Reliability = qos.ReliabilityReliable
	w := NewWriter[sensorReading](testWriterGUID(), sensorDescriptor{}, profile, newTestPacer(), congestion.P1)
	if w.Heartbeat() == nil {
		t.Fatalf("expected Reliable writer to carry a HeartbeatTx")
	}
}

func TestWriterWriteUnkeyedUsesPayloadHash(t *testing.T) {
	pacer := newTestPacer()
	w := NewWriter[sensorReading](testWriterGUID(), sensorDescriptor{}, qos.DefaultProfile(), pacer, congestion.P2)
	if _, err := w.WriteUnkeyed(sensorReading{Zone: "a", Temp: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.WriteUnkeyed(sensorReading{Zone: "b", Temp: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Different payloads hash to different instance keys, so the
	// coalescing queue retains both rather than overwriting one.
	if _, result := pacer.TrySend(); result != congestion.SendOK {
		t.Fatalf("expected first P2 entry to send, got %v", result)
	}
	if _, result := pacer.TrySend(); result != congestion.SendOK {
		t.Fatalf("expected second distinct P2 entry to send, got %v", result)
	}
	if _, result := pacer.TrySend(); result != congestion.SendEmpty {
		t.Fatalf("expected pacer drained after 2 sends, got %v", result)
	}
}
