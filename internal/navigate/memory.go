package navigate

import "slices"

// WorkingMemory is a bounded FIFO of recently visited loci. Adding to a
// full memory forgets the oldest entry and counts it as load.
type WorkingMemory struct {
	capacity int
	items    []int
	load     int
}

// NewWorkingMemory returns an empty memory holding up to capacity loci.
func NewWorkingMemory(capacity int) *WorkingMemory {
	return &WorkingMemory{capacity: capacity, items: make([]int, 0, capacity)}
}

// Add remembers id, forgetting the oldest entry when full.
func (w *WorkingMemory) Add(id int) {
	if len(w.items) >= w.capacity {
		w.items = w.items[1:]
		w.load++
	}
	w.items = append(w.items, id)
}

// Has reports whether id is still remembered.
func (w *WorkingMemory) Has(id int) bool { return slices.Contains(w.items, id) }

// Clear forgets everything and resets the load.
func (w *WorkingMemory) Clear() {
	w.items = w.items[:0]
	w.load = 0
}

// Utilization is the fraction of capacity in use.
func (w *WorkingMemory) Utilization() float64 {
	return float64(len(w.items)) / float64(w.capacity)
}

// Forgotten is the number of entries pushed out since the last Clear.
func (w *WorkingMemory) Forgotten() int { return w.load }
