package crawler

import "sync"

// visitedSet is the traversal-wide ledger of URLs already claimed for
// fetching. It is safe for concurrent use.
type visitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{urls: make(map[string]struct{})}
}

// add marks u visited and reports whether it was new.
// Check and insert happen under one lock, so two branches can never both
// claim the same URL.
func (v *visitedSet) add(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[u]; ok {
		return false
	}
	v.urls[u] = struct{}{}
	return true
}

// contains reports whether u has been marked visited.
func (v *visitedSet) contains(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[u]
	return ok
}

// len returns the number of visited URLs.
func (v *visitedSet) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// orderedSet keeps the first occurrence of each string in insertion order.
// Not safe for concurrent use.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{
		items: make([]string, 0),
		seen:  make(map[string]struct{}),
	}
}

// add appends s unless it is already present and reports whether it was added.
func (o *orderedSet) add(s string) bool {
	if _, ok := o.seen[s]; ok {
		return false
	}
	o.seen[s] = struct{}{}
	o.items = append(o.items, s)
	return true
}

// values returns the elements in insertion order.
func (o *orderedSet) values() []string {
	return o.items
}
