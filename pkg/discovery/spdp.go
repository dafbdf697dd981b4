// Package discovery implements SPDP participant discovery, SEDP endpoint
// discovery, RxO matching, and mobility handling of spec.md §4.6.
package discovery

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

// MobilityInfo is the optional vendor-specific PID 0x8001 payload: epoch,
// stable host id, and a hash of the locator set (spec.md §4.6).
type MobilityInfo struct {
	Epoch         uint32
	HostID        uint64
	LocatorSetHash uint64
}

// ParticipantAnnouncement is one SPDP sample (spec.md §4.6).
type ParticipantAnnouncement struct {
	ProtocolMajor, ProtocolMinor byte
	VendorID                    [2]byte
	ParticipantGUID              guid.GUID
	DomainID                     guid.DomainID
	LeaseDuration                time.Duration
	BuiltinEndpointSet           uint32
	MetatrafficUnicastLocators   []guid.Locator
	MetatrafficMulticastLocators []guid.Locator
	DefaultUnicastLocators       []guid.Locator
	DefaultMulticastLocators     []guid.Locator
	Mobility                     *MobilityInfo
}

// RemoteParticipant is the reader-side record stored on receipt of a
// SPDP announcement from a new prefix.
type RemoteParticipant struct {
	Announcement ParticipantAnnouncement
	FirstSeen    time.Time
	LastRenewed  time.Time
	HoldDownUntil time.Time // set on a mobility epoch bump; prior locators are not retained
}

// ParticipantTable tracks known remote participants and their lease
// expiry (spec.md §4.6). Lease expiry purges the remote participant, its
// endpoints, and all matches — callers observe this via Expired().
type ParticipantTable struct {
	mu    sync.Mutex
	byGUID map[guid.GUID]*RemoteParticipant
	now   func() time.Time
}

func NewParticipantTable() *ParticipantTable {
	return &ParticipantTable{byGUID: make(map[guid.GUID]*RemoteParticipant), now: time.Now}
}

// Observe records or refreshes a SPDP announcement. isNew reports
// whether this prefix had not been seen before, signaling the caller to
// consider an immediate unicast SPDP reply.
func (t *ParticipantTable) Observe(ann ParticipantAnnouncement) (isNew bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	existing, ok := t.byGUID[ann.ParticipantGUID]
	if !ok {
		t.byGUID[ann.ParticipantGUID] = &RemoteParticipant{Announcement: ann, FirstSeen: now, LastRenewed: now}
		return true
	}

	if ann.Mobility != nil && existing.Announcement.Mobility != nil &&
		ann.Mobility.HostID == existing.Announcement.Mobility.HostID &&
		ann.Mobility.Epoch > existing.Announcement.Mobility.Epoch {
		// Higher epoch from the same host: replace locators and record a
		// hold-down deadline (spec.md §4.6). The prior locators themselves
		// are not kept.
		existing.HoldDownUntil = now.Add(2 * time.Second)
	}
	existing.Announcement = ann
	existing.LastRenewed = now
	return false
}

// Touch refreshes a known participant's lease without a full SPDP
// announcement — any traffic from that participant implies liveliness,
// so SEDP samples refresh the same LastRenewed Observe does (spec.md's
// lease is refreshed by any discovery traffic, not only SPDP). A no-op
// if the participant isn't already known; it is SPDP's Observe, not
// Touch, that first introduces a participant to the table.
func (t *ParticipantTable) Touch(id guid.GUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rp, ok := t.byGUID[id]; ok {
		rp.LastRenewed = t.now()
	}
}

// Expired returns and removes participants whose lease has elapsed.
func (t *ParticipantTable) Expired() []guid.GUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var expired []guid.GUID
	for id, rp := range t.byGUID {
		if now.Sub(rp.LastRenewed) > rp.Announcement.LeaseDuration {
			expired = append(expired, id)
			delete(t.byGUID, id)
		}
	}
	return expired
}

func (t *ParticipantTable) Get(id guid.GUID) (*RemoteParticipant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rp, ok := t.byGUID[id]
	return rp, ok
}

func (t *ParticipantTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byGUID)
}

// Snapshot returns a shallow copy of every known remote participant,
// keyed by GUID, for callers that need to iterate the full set (e.g. a
// self-advertisement driver deciding whether any peer is still unicast-only).
func (t *ParticipantTable) Snapshot() map[guid.GUID]RemoteParticipant {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[guid.GUID]RemoteParticipant, len(t.byGUID))
	for id, rp := range t.byGUID {
		out[id] = *rp
	}
	return out
}

// DefaultQosForAnnouncement is a placeholder hook callers can use to
// derive a starting Profile from announcement metadata; HDDS ships
// spec-default QoS absent any per-participant override.
func DefaultQosForAnnouncement(ParticipantAnnouncement) qos.Profile {
	return qos.DefaultProfile()
}
