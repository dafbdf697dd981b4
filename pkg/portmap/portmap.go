// Package portmap implements the RTPS domain/participant port formulas
// of spec.md §6 (OMG RTPS §9.6.1.1).
package portmap

import "github.com/hdds-io/hdds/pkg/herrors"

// SPDPMulticastPort returns the well-known SPDP multicast port for a domain.
func SPDPMulticastPort(domain uint32) uint32 {
	return 7400 + 250*domain
}

// MetatrafficUnicastPort returns the SEDP/metatraffic unicast port for a
// domain and participant id.
func MetatrafficUnicastPort(domain, participant uint32) uint32 {
	return 7410 + 250*domain + 2*participant
}

// UserDataUnicastPort returns the user-data unicast port for a domain and
// participant id.
func UserDataUnicastPort(domain, participant uint32) uint32 {
	return 7411 + 250*domain + 2*participant
}

const (
	MaxDomainID      = 232
	MaxParticipantID = 119
)

// Validate checks domain and participant are within their valid ranges
// ([0,232] and [0,119] respectively, spec.md §6).
func Validate(domain, participant uint32) error {
	if domain > MaxDomainID {
		return herrors.New(herrors.KindConfig, "portmap", "domain id exceeds valid range [0,232]")
	}
	if participant > MaxParticipantID {
		return herrors.New(herrors.KindConfig, "portmap", "participant id exceeds valid range [0,119]")
	}
	return nil
}
