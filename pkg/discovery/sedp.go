package discovery

import (
	"sync"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

// Disposition is a SEDP sample's lifecycle state (spec.md §4.6).
type Disposition int

const (
	Alive Disposition = iota
	Disposed
	Unregistered
)

// EndpointKind distinguishes a SEDP record's role.
type EndpointKind int

const (
	Publication EndpointKind = iota
	Subscription
)

// EndpointRecord is one SEDP sample (spec.md §4.6).
type EndpointRecord struct {
	EndpointGUID    guid.GUID
	ParticipantGUID guid.GUID
	Kind            EndpointKind
	TopicName       string
	TypeName        string
	Qos             qos.Profile
	Locators        []guid.Locator
	HasTypeObject   bool
	Disposition     Disposition
}

// EndpointTable tracks remote SEDP records, keyed by endpoint GUID.
type EndpointTable struct {
	mu   sync.Mutex
	byID map[guid.GUID]EndpointRecord
}

func NewEndpointTable() *EndpointTable {
	return &EndpointTable{byID: make(map[guid.GUID]EndpointRecord)}
}

// Apply ingests a SEDP sample, storing it on Alive and removing it on
// Disposed/Unregistered.
func (t *EndpointTable) Apply(rec EndpointRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec.Disposition != Alive {
		delete(t.byID, rec.EndpointGUID)
		return
	}
	t.byID[rec.EndpointGUID] = rec
}

// RemoveParticipant removes every record owned by a participant, used on
// lease expiry or explicit participant removal (spec.md §4.6).
func (t *EndpointTable) RemoveParticipant(participantGUID guid.GUID) []guid.GUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []guid.GUID
	for id, rec := range t.byID {
		if rec.ParticipantGUID == participantGUID {
			removed = append(removed, id)
			delete(t.byID, id)
		}
	}
	return removed
}

func (t *EndpointTable) Get(id guid.GUID) (EndpointRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[id]
	return rec, ok
}

// ByTopic returns every Alive record of the given kind for a topic.
func (t *EndpointTable) ByTopic(topic string, kind EndpointKind) []EndpointRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []EndpointRecord
	for _, rec := range t.byID {
		if rec.TopicName == topic && rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}
