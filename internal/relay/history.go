package relay

import "sync"

// DefaultHistorySize is the number of lines kept when no size is given.
const DefaultHistorySize = 1000

// History is a thread-safe circular buffer of recent lines. When full, the
// oldest line is overwritten.
type History struct {
	// +checklocks:mu
	lines []Line
	size  int // immutable after creation
	// +checklocks:mu
	head int // next write position
	// +checklocks:mu
	count int
	mu    sync.RWMutex
}

// NewHistory creates a History holding up to size lines.
// If size <= 0, DefaultHistorySize is used.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		lines: make([]Line, size),
		size:  size,
	}
}

// Add appends a line.
func (h *History) Add(l Line) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lines[h.head] = l
	h.head = (h.head + 1) % h.size
	if h.count < h.size {
		h.count++
	}
}

// Lines returns the last n lines, oldest first.
// If n <= 0 or n exceeds the stored count, all stored lines are returned.
func (h *History) Lines(n int) []Line {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	if n == 0 {
		return nil
	}

	// head is one past the newest line whether or not the buffer is full.
	start := (h.head - n + h.size) % h.size
	result := make([]Line, n)
	for i := range n {
		result[i] = h.lines[(start+i)%h.size]
	}
	return result
}

// Len returns the number of lines stored.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Cap returns the maximum number of lines stored.
func (h *History) Cap() int {
	return h.size
}
