package aggregate

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Interner stores each distinct string once, keyed by the xxhash of its
// bytes. It is scoped to a single aggregation run.
type Interner struct {
	mu         sync.Mutex
	table      map[uint64]string
	collisions int
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{table: make(map[uint64]string)}
}

// Intern returns the shared copy of s. When s collides with a different
// string already in the table it is returned unshared.
func (in *Interner) Intern(s string) string {
	h := xxhash.Sum64String(s)
	in.mu.Lock()
	defer in.mu.Unlock()
	if v, ok := in.table[h]; ok {
		if v == s {
			return v
		}
		in.collisions++
		return s
	}
	// Clone so the table does not pin the line s was sliced from.
	v := strings.Clone(s)
	in.table[h] = v
	return v
}

// Len returns the number of distinct strings held.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.table)
}

// Collisions returns how many lookups hit a different string with the same hash.
func (in *Interner) Collisions() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.collisions
}
