package analytics

import (
	"sync"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
)

// DefaultBufferCapacity holds roughly 30 minutes of readings at the 2-second
// sampling interval the edge firmware ships with.
const DefaultBufferCapacity = 900

// RollingBuffer is a capacity-bounded FIFO of readings for one device.
// Insertion order is chronological; when full, the oldest entry is evicted
// on insert. All methods are safe for concurrent use.
type RollingBuffer struct {
	mu       sync.Mutex
	data     []models.Reading
	start    int
	size     int
	capacity int
}

// NewRollingBuffer creates a buffer with the given capacity (minimum 1).
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingBuffer{
		data:     make([]models.Reading, capacity),
		capacity: capacity,
	}
}

// Append adds a reading, evicting the oldest entry if the buffer is full.
func (b *RollingBuffer) Append(r models.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < b.capacity {
		b.data[(b.start+b.size)%b.capacity] = r
		b.size++
		return
	}
	b.data[b.start] = r
	b.start = (b.start + 1) % b.capacity
}

// Len returns the number of readings currently held.
func (b *RollingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Snapshot returns a chronological copy of the buffered readings. The copy
// may lag a concurrent write; dashboard reads tolerate that.
func (b *RollingBuffer) Snapshot() []models.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Reading, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.start+i)%b.capacity]
	}
	return out
}

// Last returns the most recent reading, if any.
func (b *RollingBuffer) Last() (models.Reading, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return models.Reading{}, false
	}
	return b.data[(b.start+b.size-1)%b.capacity], true
}

// FieldSeries extracts the values a field took across the buffered readings,
// oldest first, together with their timestamps. Readings that lack the field
// are skipped.
func FieldSeries(readings []models.Reading, field string) ([]float64, []int64) {
	values := make([]float64, 0, len(readings))
	stamps := make([]int64, 0, len(readings))
	for _, r := range readings {
		if v, ok := r.Fields[field]; ok {
			values = append(values, v)
			stamps = append(stamps, r.Timestamp.UnixNano())
		}
	}
	return values, stamps
}

// BufferRegistry owns one rolling buffer per device id. Buffers are created
// lazily on first reading and live for the process lifetime. The registry is
// built at the composition root and injected, never a package singleton.
type BufferRegistry struct {
	mu       sync.RWMutex
	buffers  map[string]*RollingBuffer
	capacity int
}

// NewBufferRegistry creates a registry whose buffers hold capacity readings.
func NewBufferRegistry(capacity int) *BufferRegistry {
	if capacity < 1 {
		capacity = DefaultBufferCapacity
	}
	return &BufferRegistry{
		buffers:  make(map[string]*RollingBuffer),
		capacity: capacity,
	}
}

// Get returns the buffer for deviceID, creating it if absent.
func (reg *BufferRegistry) Get(deviceID string) *RollingBuffer {
	reg.mu.RLock()
	b, ok := reg.buffers[deviceID]
	reg.mu.RUnlock()
	if ok {
		return b
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if b, ok := reg.buffers[deviceID]; ok {
		return b
	}
	b = NewRollingBuffer(reg.capacity)
	reg.buffers[deviceID] = b
	return b
}

// Lookup returns the buffer for deviceID without creating one.
func (reg *BufferRegistry) Lookup(deviceID string) (*RollingBuffer, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	b, ok := reg.buffers[deviceID]
	return b, ok
}

// Devices lists the device ids that currently have a buffer.
func (reg *BufferRegistry) Devices() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	ids := make([]string, 0, len(reg.buffers))
	for id := range reg.buffers {
		ids = append(ids, id)
	}
	return ids
}
