package participant

import (
	"context"
	"sync"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/transport"
)

// fakeTransport is an in-memory, loopback-only Transport used by
// participant tests to exercise Start/Stop and dispatch without opening
// real sockets, mirroring the teacher's preference for dependency-free
// unit tests over integration sockets.
type fakeTransport struct {
	mu     sync.Mutex
	queue  [][]byte
	local  guid.Locator
	closed bool
	sent   [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{local: guid.NewUDPv4Locator(127, 0, 0, 1, 17500)}
}

func (f *fakeTransport) Init() error { return nil }

func (f *fakeTransport) Send(buf []byte, dst guid.Locator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Recv(ctx context.Context, buf []byte) (int, guid.Locator, error) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			next := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			n := copy(buf, next)
			return n, f.local, nil
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, guid.Locator{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeTransport) TryRecv(buf []byte) (int, guid.Locator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return 0, guid.Locator{}, transport.ErrWouldBlock
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	n := copy(buf, next)
	return n, f.local, nil
}

func (f *fakeTransport) LocalLocator() guid.Locator { return f.local }

func (f *fakeTransport) MTU() int { return 65507 }

func (f *fakeTransport) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) deliver(msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, msg)
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}
