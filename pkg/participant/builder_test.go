package participant

import (
	"context"
	"testing"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
)

func TestBuildDefaultsToInProcessSharedMemory(t *testing.T) {
	p, err := Build(WithName("alpha"), WithDomainID(0), WithParticipantID(1))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Name() != "alpha" {
		t.Fatalf("expected name alpha, got %q", p.Name())
	}
	if p.domain != 0 || p.id != 1 {
		t.Fatalf("unexpected domain/id: %v/%v", p.domain, p.id)
	}
}

func TestBuildRejectsInvalidDomain(t *testing.T) {
	_, err := Build(WithDomainID(9999), WithParticipantID(0))
	if err == nil {
		t.Fatal("expected error for out-of-range domain id")
	}
}

func TestBuildCompositeTransportRequiresChildren(t *testing.T) {
	_, err := Build(WithTransport(Composite))
	if err == nil {
		t.Fatal("expected error when Composite has no children")
	}
}

func TestBuildK8sDnsRequiresSource(t *testing.T) {
	_, err := Build(WithDiscovery(K8sDns))
	if err == nil {
		t.Fatal("expected error when K8sDns discovery has no source")
	}
}

func TestBuildWithSeedList(t *testing.T) {
	seed := guid.NewUDPv4Locator(10, 0, 0, 5, 7410)
	p, err := Build(WithSeedList(seed))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	locators, err := p.seeds.Seeds(context.Background())
	if err != nil {
		t.Fatalf("Seeds failed: %v", err)
	}
	if len(locators) != 1 || locators[0] != seed {
		t.Fatalf("expected seed list to round-trip, got %+v", locators)
	}
}

func TestBuildWithStatsEnablesDriver(t *testing.T) {
	p, err := Build(WithStats(250 * time.Millisecond))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !p.enableStats || p.statsInterval != 250*time.Millisecond {
		t.Fatalf("expected stats enabled with configured interval, got enabled=%v interval=%v", p.enableStats, p.statsInterval)
	}
}
