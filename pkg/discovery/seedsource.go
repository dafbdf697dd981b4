package discovery

import (
	"context"

	"github.com/hdds-io/hdds/pkg/guid"
)

// SeedSource resolves the set of RTPS peer locators a participant should
// direct its initial SPDP traffic to (spec.md §6 discovery options:
// RtpsMulticast, SeedList, K8sDns(service, namespace)).
type SeedSource interface {
	Seeds(ctx context.Context) ([]guid.Locator, error)
}

// RtpsMulticastSeedSource returns the well-known per-domain SPDP
// multicast locator — the default, zero-configuration discovery mode.
type RtpsMulticastSeedSource struct {
	Locator guid.Locator
}

func (s RtpsMulticastSeedSource) Seeds(context.Context) ([]guid.Locator, error) {
	return []guid.Locator{s.Locator}, nil
}

// SeedListSource is a static, operator-supplied list of unicast peer
// locators, for environments without multicast (spec.md §6).
type SeedListSource struct {
	Locators []guid.Locator
}

func (s SeedListSource) Seeds(context.Context) ([]guid.Locator, error) {
	out := make([]guid.Locator, len(s.Locators))
	copy(out, s.Locators)
	return out, nil
}
