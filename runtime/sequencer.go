package runtime

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 256

// Sequencer serializes work per aggregate key with a fixed set of striped
// mutexes. Two keys only contend when they hash to the same stripe.
type Sequencer struct {
	stripes []sync.Mutex
}

func NewSequencer(stripes int) *Sequencer {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &Sequencer{stripes: make([]sync.Mutex, stripes)}
}

// Lock acquires the stripe of key and returns its unlock function.
func (s *Sequencer) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &s.stripes[h.Sum32()%uint32(len(s.stripes))]
	m.Lock()
	return m.Unlock
}
