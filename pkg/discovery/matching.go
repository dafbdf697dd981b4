package discovery

import (
	"sync"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

// Match is a confirmed writer/reader pairing with its RxO-conformant
// effective QoS (spec.md §4.6).
type Match struct {
	LocalGUID    guid.GUID
	RemoteGUID   guid.GUID
	RemoteLocators []guid.Locator
	EffectiveQos qos.Profile
}

// MatchKey identifies a match by the ordered pair of endpoint GUIDs.
type MatchKey struct {
	Local, Remote guid.GUID
}

// MatchSet tracks confirmed matches and supports revocation by
// participant or endpoint removal (spec.md §4.6).
type MatchSet struct {
	mu      sync.Mutex
	matches map[MatchKey]Match
}

func NewMatchSet() *MatchSet {
	return &MatchSet{matches: make(map[MatchKey]Match)}
}

// TryMatch runs the RxO check (qos.Compatible, which includes partition
// intersection) between a local endpoint's offered/requested profile and
// a remote SEDP record's profile, and records the match when it passes
// (spec.md §4.6). Topic and type names are not compared here; callers
// choose which pairs to try. localIsWriter indicates which side is
// "offered".
func (m *MatchSet) TryMatch(localGUID guid.GUID, localProfile qos.Profile, localIsWriter bool, remote EndpointRecord) (Match, bool) {
	var ok bool
	var eff qos.Profile
	if localIsWriter {
		ok, _ = qos.Compatible(localProfile, remote.Qos)
		eff = qos.EffectiveQos(localProfile, remote.Qos)
	} else {
		ok, _ = qos.Compatible(remote.Qos, localProfile)
		eff = qos.EffectiveQos(remote.Qos, localProfile)
	}
	if !ok {
		return Match{}, false
	}

	match := Match{LocalGUID: localGUID, RemoteGUID: remote.EndpointGUID, RemoteLocators: remote.Locators, EffectiveQos: eff}
	m.mu.Lock()
	m.matches[MatchKey{Local: localGUID, Remote: remote.EndpointGUID}] = match
	m.mu.Unlock()
	return match, true
}

// Revoke removes a single match.
func (m *MatchSet) Revoke(local, remote guid.GUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, MatchKey{Local: local, Remote: remote})
}

// RevokeEndpoints removes every match involving any of the given
// remote endpoint GUIDs, typically called with EndpointTable.RemoveParticipant's result.
func (m *MatchSet) RevokeEndpoints(removed []guid.GUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removedSet := make(map[guid.GUID]struct{}, len(removed))
	for _, id := range removed {
		removedSet[id] = struct{}{}
	}
	for key := range m.matches {
		if _, ok := removedSet[key.Remote]; ok {
			delete(m.matches, key)
		}
	}
}

func (m *MatchSet) For(localGUID guid.GUID) []Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Match
	for key, match := range m.matches {
		if key.Local == localGUID {
			out = append(out, match)
		}
	}
	return out
}

func (m *MatchSet) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches)
}
