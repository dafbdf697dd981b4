// Package transport implements the pluggable send/recv plugins of
// spec.md §4.3 behind a common Transport capability: UDP (with optional
// DSCP/SO_TXTIME via golang.org/x/sys/unix and github.com/higebu/netfd),
// a loopback shared-memory ring, a serial-radio framer, and a Composite
// fan-out over any subset of the above.
package transport

import (
	"context"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
)

// Transport is the capability every concrete plug-in implements
// (spec.md §4.3).
type Transport interface {
	Init() error
	Send(buf []byte, dst guid.Locator) error
	// Recv blocks until a datagram arrives or ctx is canceled.
	Recv(ctx context.Context, buf []byte) (n int, src guid.Locator, err error)
	// TryRecv is the non-blocking counterpart; (0, Locator{}, ErrWouldBlock)
	// when nothing is ready.
	TryRecv(buf []byte) (n int, src guid.Locator, err error)
	LocalLocator() guid.Locator
	MTU() int
	Shutdown() error
}

// ErrWouldBlock is returned by TryRecv when no datagram is pending.
var ErrWouldBlock = herrors.New(herrors.KindWouldBlock, "transport", "no datagram pending")
