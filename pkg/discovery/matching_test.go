package discovery

import (
	"testing"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

func TestMatchSetTryMatchCompatibleProfilesMatch(t *testing.T) {
	ms := NewMatchSet()
	local := testGUID(1)
	remote := EndpointRecord{EndpointGUID: testGUID(2), Qos: qos.DefaultProfile()}

	match, ok := ms.TryMatch(local, qos.DefaultProfile(), true, remote)
	if !ok {
		t.Fatalf("expected default profiles to match")
	}
	if match.LocalGUID != local || match.RemoteGUID != remote.EndpointGUID {
		t.Fatalf("unexpected match contents: %+v", match)
	}
	if ms.Len() != 1 {
		t.Fatalf("expected 1 stored match, got %d", ms.Len())
	}
}

func TestMatchSetTryMatchIncompatibleReliabilityNoMatch(t *testing.T) {
	ms := NewMatchSet()
	local := testGUID(1)
	offered := qos.DefaultProfile()
	offered.Reliability = qos.ReliabilityBestEffort
	requested := qos.DefaultProfile()
	requested.Reliability = qos.ReliabilityReliable
	remote := EndpointRecord{EndpointGUID: testGUID(2), Qos: requested}

	_, ok := ms.TryMatch(local, offered, true, remote)
	if ok {
		t.Fatalf("expected best-effort offered vs reliable requested to fail RxO")
	}
	if ms.Len() != 0 {
		t.Fatalf("expected no match stored")
	}
}

func TestMatchSetRevokeRemovesSingleMatch(t *testing.T) {
	ms := NewMatchSet()
	local := testGUID(1)
	remote := EndpointRecord{EndpointGUID: testGUID(2), Qos: qos.DefaultProfile()}
	ms.TryMatch(local, qos.DefaultProfile(), true, remote)

	ms.Revoke(local, remote.EndpointGUID)
	if ms.Len() != 0 {
		t.Fatalf("expected match removed after Revoke")
	}
}

func TestMatchSetRevokeEndpointsRemovesAllMatchesToRemoved(t *testing.T) {
	ms := NewMatchSet()
	local := testGUID(1)
	remote1 := EndpointRecord{EndpointGUID: testGUID(2), Qos: qos.DefaultProfile()}
	remote2 := EndpointRecord{EndpointGUID: testGUID(3), Qos: qos.DefaultProfile()}
	ms.TryMatch(local, qos.DefaultProfile(), true, remote1)
	ms.TryMatch(local, qos.DefaultProfile(), true, remote2)

	ms.RevokeEndpoints([]guid.GUID{remote1.EndpointGUID})
	if ms.Len() != 1 {
		t.Fatalf("expected 1 match remaining, got %d", ms.Len())
	}
	remaining := ms.For(local)
	if len(remaining) != 1 || remaining[0].RemoteGUID != remote2.EndpointGUID {
		t.Fatalf("expected remote2's match to survive, got %+v", remaining)
	}
}
