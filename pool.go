package maskrle

import (
	"io"
	"sync"
)

// Pool is a fixed size pool of resources that are not safe for concurrent
// use, such as detectors.  Each goroutine takes one resource with Get and
// hands it back with Return when finished
type Pool[T io.Closer] struct {
	// pool of resources
	items chan T
	// size of pool
	size  int
	close sync.Once
}

// NewPool creates a new pool of the given size, calling create once for
// each slot
func NewPool[T io.Closer](size int, create func(slot int) (T, error)) (*Pool[T], error) {

	if size < 1 {
		size = 1
	}

	p := &Pool[T]{
		items: make(chan T, size),
		size:  size,
	}

	for i := 0; i < size; i++ {
		item, err := create(i)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(item)
	}

	return p, nil
}

// Get takes a resource from the pool, blocking until one is available
func (p *Pool[T]) Get() T {
	return <-p.items
}

// Return a resource to the pool
func (p *Pool[T]) Return(item T) {
	select {
	case p.items <- item:
	default:
		// pool is full or closed
	}
}

// Size returns the number of resources the pool was created with
func (p *Pool[T]) Size() int {
	return p.size
}

// Close the pool and all resources in it
func (p *Pool[T]) Close() {
	p.close.Do(func() {
		// close channel
		close(p.items)

		// close all resources
		for next := range p.items {
			_ = next.Close()
		}
	})
}
