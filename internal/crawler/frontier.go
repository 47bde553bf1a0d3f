package crawler

import "sync"

// entry is one pending visit.
type entry struct {
	URL   string
	Depth int
}

// Frontier is a thread-safe LIFO stack of pending visits. Popping the most
// recently pushed entry first gives depth-first traversal.
type Frontier struct {
	mu    sync.Mutex
	stack []entry
}

// NewFrontier creates a new Frontier.
func NewFrontier() *Frontier {
	return &Frontier{stack: make([]entry, 0, 256)}
}

// Push adds an entry to the top of the stack.
func (f *Frontier) Push(e entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stack = append(f.stack, e)
}

// PushChildren pushes urls at depth in reverse, so the first url is popped
// first and visit order matches a recursive walk.
func (f *Frontier) PushChildren(urls []string, depth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(urls) - 1; i >= 0; i-- {
		f.stack = append(f.stack, entry{URL: urls[i], Depth: depth})
	}
}

// Pop removes and returns the top entry. ok is false when empty.
func (f *Frontier) Pop() (e entry, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.stack)
	if n == 0 {
		return entry{}, false
	}
	e = f.stack[n-1]
	f.stack[n-1] = entry{}
	f.stack = f.stack[:n-1]
	return e, true
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stack)
}
