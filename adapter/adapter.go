// Package adapter exposes a single tlsf.Allocator to a host runtime behind
// a mutex. The core allocator implements no synchronization of its own (see
// package tlsf's doc comment); a real adapter — unlike the stub the source
// this design was distilled from shipped, which instantiated a fresh
// allocator on every call — holds exactly one allocator for the pool's
// whole lifetime.
package adapter

import (
	"log"
	"sync"
	"unsafe"

	"github.com/yazaldefilimone/tlsf/tlsf"
)

// Pool binds one tlsf.Allocator to a host-owned byte range and serializes
// access to it. pool_base is the address at which the managed range
// begins in the host's address space (for GPU memory this is typically a
// device-side base address the host never dereferences directly).
type Pool struct {
	mu   sync.Mutex
	a    *tlsf.Allocator
	base uintptr
}

// New creates a Pool managing poolSize bytes starting at base.
func New(base uintptr, poolSize uint64) (*Pool, error) {
	a, err := tlsf.New(poolSize)
	if err != nil {
		return nil, err
	}
	return &Pool{a: a, base: base}, nil
}

// Alloc requests size bytes aligned to alignment and returns the resulting
// pointer in the host's address space, along with the tlsf.Handle needed to
// free it later.
func (p *Pool) Alloc(size, alignment uint64) (unsafe.Pointer, tlsf.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.a.Allocate(size, alignment)
	if err != nil {
		return nil, tlsf.Handle{}, err
	}
	return unsafe.Pointer(p.base + uintptr(p.a.Offset(h))), h, nil //nolint:govet
}

// Free releases h. A panic raised inside the core while freeing (for
// example an index out of range from a handle this pool never issued) is
// logged and re-raised rather than silently swallowed, matching how
// concurrency/gopool's panic handling in the teacher's stack logs before
// propagating. The core does not detect a double-free, so one passes
// through here without a panic.
func (p *Pool) Free(h tlsf.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("tlsf/adapter: panic during Free, re-raising: %v", r)
			panic(r)
		}
	}()
	p.a.Deallocate(h)
}

// Stats returns the allocation and free-block counts of the underlying
// allocator.
func (p *Pool) Stats() (numAllocation, numFreeBlock uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.a.Stats()
}

// Allocator returns the underlying allocator for read-only inspection
// (e.g. by package diagnostics). Callers must not call mutating methods on
// it concurrently with this Pool's own use.
func (p *Pool) Allocator() *tlsf.Allocator {
	return p.a
}
