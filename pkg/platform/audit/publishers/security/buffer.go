package security

import (
	"sync"

	audit "geoseal/pkg/platform/audit"
)

// RingBuffer is a bounded, thread-safe FIFO of security events. When full,
// the oldest entries give way to new ones: a flood of rejections must never
// block or OOM the registry itself.
type RingBuffer struct {
	mu       sync.Mutex
	events   []audit.SecurityEvent
	head     int // next write slot
	tail     int // next read slot
	count    int
	capacity int
	dropped  int64
}

// NewRingBuffer creates a buffer holding up to capacity events.
// Non-positive capacities fall back to 10000.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		events:   make([]audit.SecurityEvent, capacity),
		capacity: capacity,
	}
}

// TryEnqueue adds an event if there is room, reporting whether it did.
func (b *RingBuffer) TryEnqueue(event audit.SecurityEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		return false
	}
	b.pushLocked(event)
	return true
}

// Enqueue adds an event unconditionally, evicting the oldest when full.
func (b *RingBuffer) Enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == b.capacity {
		b.evictLocked()
	}
	b.pushLocked(event)
}

// DropOldest evicts the oldest event, reporting whether one existed.
func (b *RingBuffer) DropOldest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return false
	}
	b.evictLocked()
	return true
}

// DequeueBatch removes and returns up to n events, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	batch := make([]audit.SecurityEvent, n)
	for i := range batch {
		batch[i] = b.events[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n

	return batch
}

// Len reports how many events are buffered.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped reports how many events have been evicted since creation.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *RingBuffer) pushLocked(event audit.SecurityEvent) {
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
}

func (b *RingBuffer) evictLocked() {
	b.tail = (b.tail + 1) % b.capacity
	b.count--
	b.dropped++
}
