// Package endpoint implements the typed writer/reader runtime of
// spec.md §4.7: generic Writer[T]/Reader[T] over a caller-supplied type
// descriptor, a fixed-capacity index ring and slab pool for reader
// storage, status/guard conditions, a coalescing WaitSet, and an
// equality content filter.
package endpoint

// TypeDescriptor is the capability a caller supplies to serialize and
// deserialize a sample type T to/from CDR2 bytes. HDDS does not ship an
// IDL/type-code generator (spec.md §1 Non-goals) — callers hand-write or
// generate this themselves.
type TypeDescriptor[T any] interface {
	Encode(sample T) ([]byte, error)
	Decode(data []byte) (T, error)

	// Field looks up a named field's value on a decoded sample for
	// content-filter evaluation. Returns ok=false if the field is
	// unknown to this type.
	Field(sample T, name string) (value any, ok bool)
}
