package dialect

import "github.com/hdds-io/hdds/pkg/wire"

// Registry resolves a DialectEncoder by vendor id or by detector output.
type Registry struct {
	byVendor map[wire.VendorID]DialectEncoder
	byKind   map[Dialect]DialectEncoder
}

func NewRegistry() *Registry {
	r := &Registry{
		byVendor: make(map[wire.VendorID]DialectEncoder),
		byKind:   make(map[Dialect]DialectEncoder),
	}
	for _, enc := range []DialectEncoder{
		NewNativeEncoder(),
		NewFastDdsEncoder(),
		NewRtiEncoder(),
		NewOpenDdsEncoder(),
		NewCycloneDdsEncoder(),
		NewHybridEncoder(),
	} {
		// Hybrid reuses the native vendor id; the first encoder registered
		// for an id (Native) keeps it.
		if _, taken := r.byVendor[enc.VendorID()]; !taken {
			r.byVendor[enc.VendorID()] = enc
		}
		r.byKind[enc.Dialect()] = enc
	}
	return r
}

// ByVendorID returns the encoder registered for a vendor id, or the
// Hybrid fallback if the vendor is unknown.
func (r *Registry) ByVendorID(id wire.VendorID) DialectEncoder {
	if enc, ok := r.byVendor[id]; ok {
		return enc
	}
	return r.byKind[Hybrid]
}

// ByDialect returns the encoder for a known dialect kind.
func (r *Registry) ByDialect(d Dialect) DialectEncoder {
	if enc, ok := r.byKind[d]; ok {
		return enc
	}
	return r.byKind[Hybrid]
}
