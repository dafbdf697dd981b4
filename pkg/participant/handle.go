// Package participant assembles the per-transport, per-discovery-mode
// pieces of the rest of the module into the single object an application
// builds once per domain join (spec.md §4.8, §6). Its Builder mirrors the
// functional-options construction style the pack uses for multi-knob
// constructors, and its background drivers follow the teacher's
// ticker-loop-with-running-flag shape (source/server/server.go's
// updateLoop/sessionCleanupLoop), generalized to context cancellation.
package participant

import (
	"github.com/hdds-io/hdds/pkg/congestion"
	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/reliability"
)

// WriterHandle is the narrow, type-erased view of an *endpoint.Writer[T]
// the participant's registry and drivers operate on without naming T —
// Go forbids a generic method on a non-generic receiver, so Participant
// cannot hold a map[guid.GUID]*endpoint.Writer[T] for varying T. Any
// *endpoint.Writer[T] satisfies this interface structurally.
type WriterHandle interface {
	ID() guid.GUID
	// Heartbeat returns the writer's HeartbeatTx, or nil for BestEffort.
	Heartbeat() *reliability.HeartbeatTx
	Range() (first, last uint64, ok bool)
	HistoryCache() *reliability.HistoryCache
	// Pacer exposes the writer's congestion pacer so the participant's
	// send driver can drain queued samples onto the wire.
	Pacer() *congestion.WriterPacer
}

// ReaderHandle is the narrow, type-erased view of an *endpoint.Reader[T].
// OnData takes the still-encoded DATA payload, so dispatch never needs to
// know the sample type T either.
type ReaderHandle interface {
	ID() guid.GUID
	OnData(writerSeq uint64, payload []byte) (ok bool, err error)
}

// SecurityPlugin is the capability a participant-level security plug-in
// implements (the builder's WithSecurity option). The concrete
// implementation lives in pkg/security; Participant depends only on this
// interface, the same capability-interface pattern as Transport and
// DialectEncoder.
type SecurityPlugin interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}
