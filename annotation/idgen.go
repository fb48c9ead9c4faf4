package annotation

import "sync"

// IDGenerator hands out sequential ids starting at 1
type IDGenerator struct {
	id int
	sync.Mutex
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next id
func (id *IDGenerator) GetNext() int {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}

// Last returns the most recently issued id, zero if none has been issued
func (id *IDGenerator) Last() int {
	id.Lock()
	defer id.Unlock()
	return id.id
}
