package discovery

import (
	"testing"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
)

func testGUID(b byte) guid.GUID {
	var g guid.GUID
	g.Prefix[0] = b
	g.Entity = guid.SPDPBuiltinParticipantWriter
	return g
}

func TestParticipantTableObserveNewReturnsTrue(t *testing.T) {
	pt := NewParticipantTable()
	ann := ParticipantAnnouncement{ParticipantGUID: testGUID(1), LeaseDuration: time.Second}
	if isNew := pt.Observe(ann); !isNew {
		t.Fatalf("expected first observation to report new")
	}
	if isNew := pt.Observe(ann); isNew {
		t.Fatalf("expected repeat observation to report not new")
	}
	if pt.Len() != 1 {
		t.Fatalf("expected 1 participant, got %d", pt.Len())
	}
}

func TestParticipantTableExpiredPurgesStaleLease(t *testing.T) {
	pt := NewParticipantTable()
	now := time.Now()
	pt.now = func() time.Time { return now }
	id := testGUID(2)
	pt.Observe(ParticipantAnnouncement{ParticipantGUID: id, LeaseDuration: 10 * time.Second})

	pt.now = func() time.Time { return now.Add(20 * time.Second) }
	expired := pt.Expired()
	if len(expired) != 1 || expired[0] != id {
		t.Fatalf("expected %v expired, got %v", id, expired)
	}
	if pt.Len() != 0 {
		t.Fatalf("expected participant removed after expiry")
	}
}

func TestParticipantTableMobilityEpochTriggersHoldDown(t *testing.T) {
	pt := NewParticipantTable()
	now := time.Now()
	pt.now = func() time.Time { return now }
	id := testGUID(3)
	ann1 := ParticipantAnnouncement{ParticipantGUID: id, LeaseDuration: time.Minute, Mobility: &MobilityInfo{Epoch: 1, HostID: 42}}
	pt.Observe(ann1)

	ann2 := ann1
	ann2.Mobility = &MobilityInfo{Epoch: 2, HostID: 42}
	pt.Observe(ann2)

	rp, ok := pt.Get(id)
	if !ok {
		t.Fatalf("expected participant present")
	}
	if rp.HoldDownUntil.IsZero() {
		t.Fatalf("expected hold-down set after higher epoch from same host")
	}
}

func TestParticipantTableSnapshotReturnsIndependentCopy(t *testing.T) {
	pt := NewParticipantTable()
	id := testGUID(5)
	pt.Observe(ParticipantAnnouncement{ParticipantGUID: id, LeaseDuration: time.Minute})

	snap := pt.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	entry := snap[id]
	entry.HoldDownUntil = time.Now()
	if rp, _ := pt.Get(id); !rp.HoldDownUntil.IsZero() {
		t.Fatalf("mutating snapshot entry must not affect the table")
	}
}

func TestParticipantTableTouchRefreshesLeaseWithoutAnnouncement(t *testing.T) {
	pt := NewParticipantTable()
	now := time.Now()
	pt.now = func() time.Time { return now }
	id := testGUID(6)
	pt.Observe(ParticipantAnnouncement{ParticipantGUID: id, LeaseDuration: 10 * time.Second})

	pt.now = func() time.Time { return now.Add(8 * time.Second) }
	pt.Touch(id)

	pt.now = func() time.Time { return now.Add(16 * time.Second) }
	if expired := pt.Expired(); len(expired) != 0 {
		t.Fatalf("expected Touch to have refreshed the lease, got expired %v", expired)
	}
}

func TestParticipantTableTouchUnknownParticipantIsNoop(t *testing.T) {
	pt := NewParticipantTable()
	pt.Touch(testGUID(7))
	if pt.Len() != 0 {
		t.Fatalf("expected Touch on an unknown participant to add nothing, got %d", pt.Len())
	}
}

func TestParticipantTableMobilitySameEpochNoHoldDown(t *testing.T) {
	pt := NewParticipantTable()
	id := testGUID(4)
	ann1 := ParticipantAnnouncement{ParticipantGUID: id, LeaseDuration: time.Minute, Mobility: &MobilityInfo{Epoch: 1, HostID: 7}}
	pt.Observe(ann1)
	pt.Observe(ann1)

	rp, _ := pt.Get(id)
	if !rp.HoldDownUntil.IsZero() {
		t.Fatalf("expected no hold-down when epoch does not advance")
	}
}
