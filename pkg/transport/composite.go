package transport

import (
	"context"

	"github.com/hdds-io/hdds/pkg/guid"
)

// Composite fans a Send out to every enabled child transport and merges
// Recv from whichever child is ready first (spec.md §6 lists Composite
// as a builder transport option).
type Composite struct {
	children []Transport
}

func NewComposite(children ...Transport) *Composite {
	return &Composite{children: children}
}

func (c *Composite) Init() error {
	for _, child := range c.children {
		if err := child.Init(); err != nil {
			return err
		}
	}
	return nil
}

// Send writes to every child, returning the first error encountered (if
// any) after attempting all of them.
func (c *Composite) Send(buf []byte, dst guid.Locator) error {
	var firstErr error
	for _, child := range c.children {
		if err := child.Send(buf, dst); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recv blocks until any child has a datagram ready or ctx is canceled,
// polling children via TryRecv, always starting from the first child.
func (c *Composite) Recv(ctx context.Context, buf []byte) (int, guid.Locator, error) {
	for {
		if n, src, err := c.TryRecv(buf); err != ErrWouldBlock {
			return n, src, err
		}
		select {
		case <-ctx.Done():
			return 0, guid.Locator{}, ctx.Err()
		default:
		}
	}
}

func (c *Composite) TryRecv(buf []byte) (int, guid.Locator, error) {
	for _, child := range c.children {
		n, src, err := child.TryRecv(buf)
		if err == nil {
			return n, src, nil
		}
		if err != ErrWouldBlock {
			return 0, guid.Locator{}, err
		}
	}
	return 0, guid.Locator{}, ErrWouldBlock
}

// LocalLocator returns the first child's local locator; children
// typically expose distinct locator kinds (UDP vs shm vs serial), so
// callers needing all of them should inspect Children() directly.
func (c *Composite) LocalLocator() guid.Locator {
	if len(c.children) == 0 {
		return guid.Locator{}
	}
	return c.children[0].LocalLocator()
}

// MTU returns the smallest MTU among children, the safe bound for a
// payload sent to all of them.
func (c *Composite) MTU() int {
	if len(c.children) == 0 {
		return 0
	}
	min := c.children[0].MTU()
	for _, child := range c.children[1:] {
		if m := child.MTU(); m < min {
			min = m
		}
	}
	return min
}

func (c *Composite) Shutdown() error {
	var firstErr error
	for _, child := range c.children {
		if err := child.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Composite) Children() []Transport { return c.children }

var _ Transport = (*Composite)(nil)
var _ Transport = (*SharedMemory)(nil)
var _ Transport = (*Serial)(nil)
var _ Transport = (*UDP)(nil)
