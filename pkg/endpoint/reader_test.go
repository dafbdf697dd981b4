package endpoint

import (
	"testing"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

func testReaderGUID() guid.GUID {
	var g guid.GUID
	g.Entity = guid.EntityID{0, 0, 0, guid.EntityKindReaderWithKey}
	return g
}

func writeOnePayload(t *testing.T, w *Writer[sensorReading], sample sensorReading) []byte {
	t.Helper()
	pacer := w.pacer
	if _, err := w.Write(sample, 1); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	s, result := pacer.TrySend()
	if result != congestion.SendOK {
		t.Fatalf("expected pacer to yield the written sample, got %v", result)
	}
	return s.Payload
}

func TestReaderOnDataCommitsAndSetsStatusCondition(t *testing.T) {
	pool := NewSlabPool()
	r := NewReader[sensorReading](testReaderGUID(), sensorDescriptor{}, qos.DefaultProfile(), 4, pool, nil)

	pacer := newTestPacer()
	w := NewWriter[sensorReading](testWriterGUID(), sensorDescriptor{}, qos.DefaultProfile(), pacer, congestion.P1)
	payload := writeOnePayload(t, w, sensorReading{Zone: "north", Temp: 21})

	ok, err := r.OnData(1, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected OnData to accept the sample")
	}
	if !r.GetStatusCondition().GetTriggerValue() {
		t.Fatalf("expected DATA_AVAILABLE set after first commit")
	}

	entry, err := r.Take()
	if err != nil {
		t.Fatalf("unexpected error on Take: %v", err)
	}
	if entry.Sample.Zone != "north" {
		t.Fatalf("expected decoded sample zone 'north', got %q", entry.Sample.Zone)
	}
	if r.GetStatusCondition().GetTriggerValue() {
		t.Fatalf("expected DATA_AVAILABLE cleared after ring drains")
	}
}

func TestReaderOnDataAppliesContentFilter(t *testing.T) {
	pool := NewSlabPool()
	filter := NewContentFilter[sensorReading](sensorDescriptor{}, map[string]any{"Zone": "south"})
	r := NewReader[sensorReading](testReaderGUID(), sensorDescriptor{}, qos.DefaultProfile(), 4, pool, filter)

	pacer := newTestPacer()
	w := NewWriter[sensorReading](testWriterGUID(), sensorDescriptor{}, qos.DefaultProfile(), pacer, congestion.P1)
	payload := writeOnePayload(t, w, sensorReading{Zone: "north", Temp: 21})

	ok, err := r.OnData(1, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected non-matching zone to be filtered out")
	}
	if r.Len() != 0 {
		t.Fatalf("expected no committed entries for filtered sample")
	}
}

func TestReaderTakeOnEmptyRingErrors(t *testing.T) {
	r := NewReader[sensorReading](testReaderGUID(), sensorDescriptor{}, qos.DefaultProfile(), 4, nil, nil)
	if _, err := r.Take(); err == nil {
		t.Fatalf("expected would-block error on empty ring")
	}
}
