// Package guid implements the identities of the data model: GUIDs, domain
// and participant ids, entity kinds, and locators (spec.md §3).
package guid

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Prefix is the 12-byte participant prefix shared by all entities owned by
// one participant.
type Prefix [12]byte

// EntityID is the 4-byte entity id; its low byte is the entity kind.
type EntityID [4]byte

// GUID is a 16-byte identity: 12-byte participant prefix + 4-byte entity id.
type GUID struct {
	Prefix Prefix
	Entity EntityID
}

func (g GUID) String() string {
	return hex.EncodeToString(g.Prefix[:]) + ":" + hex.EncodeToString(g.Entity[:])
}

func (g GUID) IsZero() bool {
	return g == GUID{}
}

// Entity kind low byte values, per RTPS built-in entity conventions.
const (
	EntityKindUnknown            byte = 0x00
	EntityKindParticipant        byte = 0xC1
	EntityKindWriterWithKey      byte = 0x02
	EntityKindWriterNoKey        byte = 0x03
	EntityKindReaderWithKey      byte = 0x07
	EntityKindReaderNoKey        byte = 0x04
	EntityKindWriterGroup        byte = 0x08
	EntityKindReaderGroup        byte = 0x09
	EntityKindBuiltinWriterWKey  byte = 0xC2
	EntityKindBuiltinWriterNoKey byte = 0xC3
	EntityKindBuiltinReaderWKey  byte = 0xC7
	EntityKindBuiltinReaderNoKey byte = 0xC4
)

// BuiltinEntityID returns reserved well-known entity ids for SPDP/SEDP
// built-in endpoints, keyed by a short stable offset so they're distinct
// per-participant without colliding with user entities (which start at a
// user-assigned counter — see EntityIDAllocator).
func BuiltinEntityID(offset uint16, kind byte) EntityID {
	return EntityID{byte(offset >> 8), byte(offset), 0x00, kind}
}

var (
	SPDPBuiltinParticipantWriter = BuiltinEntityID(0x00, EntityKindBuiltinWriterWKey)
	SPDPBuiltinParticipantReader = BuiltinEntityID(0x00, EntityKindBuiltinReaderWKey)
	SEDPBuiltinPublicationsWriter   = BuiltinEntityID(0x03, EntityKindBuiltinWriterWKey)
	SEDPBuiltinPublicationsReader   = BuiltinEntityID(0x03, EntityKindBuiltinReaderWKey)
	SEDPBuiltinSubscriptionsWriter  = BuiltinEntityID(0x04, EntityKindBuiltinWriterWKey)
	SEDPBuiltinSubscriptionsReader  = BuiltinEntityID(0x04, EntityKindBuiltinReaderWKey)
)

// EntityIDAllocator hands out monotonically increasing entity ids for
// user-created writers/readers of a single participant.
type EntityIDAllocator struct {
	next uint32
}

func (a *EntityIDAllocator) Next(kind byte) EntityID {
	a.next++
	n := a.next
	return EntityID{byte(n >> 16), byte(n >> 8), byte(n), kind}
}

// NewPrefix derives a pseudo-random 12-byte participant prefix. HDDS has no
// stable hardware identifier requirement, so the prefix is seeded from a
// UUIDv4 the way the rest of the pack derives opaque instance identifiers
// (cc-backend and sockstats both pull in google/uuid for exactly this).
func NewPrefix() Prefix {
	id := uuid.New()
	var p Prefix
	copy(p[:], id[:12])
	return p
}

// DomainID selects the multicast group/port base. Valid range [0, 232].
type DomainID uint32

func (d DomainID) Valid() bool { return d <= 232 }

// ParticipantID combines with DomainID to yield unique UDP ports.
// Valid range [0, 119].
type ParticipantID uint32

func (p ParticipantID) Valid() bool { return p <= 119 }

// LocatorKind discriminates transport address families.
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = iota
	LocatorKindUDPv4
	LocatorKindUDPv6
	LocatorKindSharedMemory
	LocatorKindSerial
)

// Locator is an addressable transport endpoint: kind, port, 16-byte
// address (IPv4 addresses are stored in the last 4 bytes, per RTPS wire
// convention; shared-memory/serial locators repurpose Address as an opaque
// name/id buffer).
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

func (l Locator) String() string {
	switch l.Kind {
	case LocatorKindUDPv4:
		a := l.Address
		return fmt.Sprintf("udp4://%d.%d.%d.%d:%d", a[12], a[13], a[14], a[15], l.Port)
	case LocatorKindUDPv6:
		return fmt.Sprintf("udp6://%s:%d", hex.EncodeToString(l.Address[:]), l.Port)
	case LocatorKindSharedMemory:
		return fmt.Sprintf("shm://%s", hex.EncodeToString(l.Address[:8]))
	case LocatorKindSerial:
		return fmt.Sprintf("serial://%s", hex.EncodeToString(l.Address[:4]))
	default:
		return "invalid://"
	}
}

func NewUDPv4Locator(a, b, c, d byte, port uint32) Locator {
	var loc Locator
	loc.Kind = LocatorKindUDPv4
	loc.Port = port
	loc.Address[12], loc.Address[13], loc.Address[14], loc.Address[15] = a, b, c, d
	return loc
}
