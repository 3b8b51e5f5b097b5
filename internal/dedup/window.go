package dedup

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// window is a sliding bloom filter made of two generations. Keys are added
// to current; lookups consult both. Rotating every half window keeps every
// key visible for at least one full window.
type window struct {
	mu       sync.RWMutex
	current  *bloom.BloomFilter
	previous *bloom.BloomFilter
	length   time.Duration
	capacity uint
	fpRate   float64
}

func newWindow(length time.Duration, capacity uint, fpRate float64) *window {
	return &window{
		current:  bloom.NewWithEstimates(capacity, fpRate),
		previous: bloom.NewWithEstimates(capacity, fpRate),
		length:   length,
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// testAndAdd reports whether key was already present, adding it if not.
func (w *window) testAndAdd(key string) bool {
	data := []byte(key)

	w.mu.RLock()
	seen := w.current.Test(data) || w.previous.Test(data)
	w.mu.RUnlock()
	if seen {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current.Test(data) || w.previous.Test(data) {
		return true
	}
	w.current.Add(data)
	return false
}

func (w *window) rotate() {
	w.mu.Lock()
	w.previous = w.current
	w.current = bloom.NewWithEstimates(w.capacity, w.fpRate)
	w.mu.Unlock()
}
