package participant

import (
	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/discovery"
	"github.com/hdds-io/hdds/pkg/endpoint"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/qos"
)

// defaultReaderRingCapacity bounds a reader's index ring absent an
// explicit ResourceLimits.MaxSamples (spec.md §4.7).
const defaultReaderRingCapacity = 256

// CreateWriter allocates a writer entity on p, registers it for SEDP
// advertisement and the reliability driver's HEARTBEAT ticking, and
// returns the typed handle callers write through. It is a free function,
// not a *Participant method, because Go forbids a generic method on a
// non-generic receiver (spec.md §4.7/§4.8).
func CreateWriter[T any](p *Participant, topicName, typeName string, desc endpoint.TypeDescriptor[T], profile qos.Profile, priority congestion.Priority) (*endpoint.Writer[T], error) {
	id := p.NextEntityID(endpointKindForWriter(profile))
	w := endpoint.NewWriter(id, desc, profile, p.NewWriterPacer(), priority)
	w.TopicName = topicName

	rec := discovery.EndpointRecord{
		EndpointGUID:    id,
		ParticipantGUID: p.GUID(),
		Kind:            discovery.Publication,
		TopicName:       topicName,
		TypeName:        typeName,
		Qos:             profile,
		Locators:        []guid.Locator{p.transport.LocalLocator()},
		Disposition:     discovery.Alive,
	}
	p.RegisterWriter(w, rec)
	return w, nil
}

// CreateReader allocates a reader entity on p, registers it for SEDP
// advertisement and — if profile is Reliable — the reliability driver's
// NACK/GAP tracking, and returns the typed handle callers take() from.
func CreateReader[T any](p *Participant, topicName, typeName string, desc endpoint.TypeDescriptor[T], profile qos.Profile, filter *endpoint.ContentFilter[T]) (*endpoint.Reader[T], error) {
	id := p.NextEntityID(endpointKindForReader(profile))
	ringCapacity := defaultReaderRingCapacity
	if profile.ResourceLimits.MaxSamples != qos.Unlimited && profile.ResourceLimits.MaxSamples > 0 {
		ringCapacity = profile.ResourceLimits.MaxSamples
	}
	r := endpoint.NewReader(id, desc, profile, ringCapacity, endpoint.NewSlabPool(), filter)

	rec := discovery.EndpointRecord{
		EndpointGUID:    id,
		ParticipantGUID: p.GUID(),
		Kind:            discovery.Subscription,
		TopicName:       topicName,
		TypeName:        typeName,
		Qos:             profile,
		Locators:        []guid.Locator{p.transport.LocalLocator()},
		Disposition:     discovery.Alive,
	}
	p.RegisterReader(r, rec, profile.Reliability == qos.ReliabilityReliable)
	return r, nil
}

func endpointKindForWriter(profile qos.Profile) byte {
	return guid.EntityKindWriterWithKey
}

func endpointKindForReader(profile qos.Profile) byte {
	return guid.EntityKindReaderWithKey
}
