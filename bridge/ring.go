package bridge

import (
	"sync"

	"go.aimuz.me/mousebridge/mousecapture"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 10

// Record is one captured pointer event.
type Record struct {
	X, Y float64
	Kind mousecapture.Kind
}

// RingBuffer is a fixed-capacity circular store of records protected by a
// mutex. When full, Write overwrites the oldest unread record; the producer
// is never blocked by a slow consumer.
type RingBuffer struct {
	mu    sync.Mutex
	slots []Record
	read  int
	write int
	// count separates "empty" from "full by wraparound", which read == write
	// alone cannot.
	count       int
	overwritten uint64
}

// NewRingBuffer creates a ring buffer. Non-positive capacities use
// DefaultCapacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{slots: make([]Record, capacity)}
}

// Write stores r, dropping the oldest unread record if the buffer is full.
func (rb *RingBuffer) Write(r Record) {
	rb.mu.Lock()
	rb.slots[rb.write] = r
	rb.write = (rb.write + 1) % len(rb.slots)
	if rb.count == len(rb.slots) {
		rb.read = rb.write
		rb.overwritten++
	} else {
		rb.count++
	}
	rb.mu.Unlock()
}

// Drain hands every buffered record to sink, oldest first, and returns how
// many it handed over. Emptiness is rechecked under the lock before each
// record, so writes that land during the drain are delivered too. sink runs
// without the lock held.
func (rb *RingBuffer) Drain(sink func(Record)) int {
	n := 0
	for {
		rb.mu.Lock()
		if rb.count == 0 {
			rb.mu.Unlock()
			return n
		}
		r := rb.slots[rb.read]
		rb.read = (rb.read + 1) % len(rb.slots)
		rb.count--
		rb.mu.Unlock()

		sink(r)
		n++
	}
}

// Len returns the number of unread records.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the buffer capacity.
func (rb *RingBuffer) Cap() int {
	return len(rb.slots)
}

// Overwritten returns how many unread records were dropped because the
// buffer was full.
func (rb *RingBuffer) Overwritten() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.overwritten
}
