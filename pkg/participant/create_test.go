package participant

import (
	"encoding/json"
	"testing"

	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/qos"
)

type reading struct {
	Sensor string
	Value  float64
}

type readingDescriptor struct{}

func (readingDescriptor) Encode(sample reading) ([]byte, error) { return json.Marshal(sample) }

func (readingDescriptor) Decode(data []byte) (reading, error) {
	var r reading
	err := json.Unmarshal(data, &r)
	return r, err
}

func (readingDescriptor) Field(sample reading, name string) (any, bool) {
	switch name {
	case "Sensor":
		return sample.Sensor, true
	case "Value":
		return sample.Value, true
	default:
		return nil, false
	}
}

func TestCreateWriterRegistersAndAdvertises(t *testing.T) {
	p, _ := newTestParticipant(t)

	w, err := CreateWriter[reading](p, "temperature", "reading", readingDescriptor{}, p.QosDefaults(), congestion.P1)
	if err != nil {
		t.Fatalf("CreateWriter failed: %v", err)
	}
	if w.TopicName != "temperature" {
		t.Fatalf("expected topic name to be set, got %q", w.TopicName)
	}

	p.mu.RLock()
	rec, ok := p.localPublications[w.ID()]
	p.mu.RUnlock()
	if !ok {
		t.Fatal("expected writer's SEDP record to be registered")
	}
	if rec.TopicName != "temperature" || rec.TypeName != "reading" {
		t.Fatalf("unexpected SEDP record: %+v", rec)
	}
}

func TestCreateReaderRegistersReliabilityState(t *testing.T) {
	p, _ := newTestParticipant(t)

	profile := p.QosDefaults()
	profile.Reliability = qos.ReliabilityReliable

	r, err := CreateReader[reading](p, "temperature", "reading", readingDescriptor{}, profile, nil)
	if err != nil {
		t.Fatalf("CreateReader failed: %v", err)
	}

	p.mu.RLock()
	_, hasRel := p.readerState[r.ID()]
	_, hasSub := p.localSubscriptions[r.ID()]
	p.mu.RUnlock()
	if !hasRel {
		t.Fatal("expected reliable reader to get NACK/GAP tracking state")
	}
	if !hasSub {
		t.Fatal("expected reader's SEDP record to be registered")
	}
}

func TestCreateReaderBestEffortSkipsReliabilityState(t *testing.T) {
	p, _ := newTestParticipant(t)

	r, err := CreateReader[reading](p, "temperature", "reading", readingDescriptor{}, p.QosDefaults(), nil)
	if err != nil {
		t.Fatalf("CreateReader failed: %v", err)
	}

	p.mu.RLock()
	_, hasRel := p.readerState[r.ID()]
	p.mu.RUnlock()
	if hasRel {
		t.Fatal("expected best-effort reader to have no reliability state")
	}
}
