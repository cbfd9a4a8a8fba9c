// Copyright (c) 2023 Colin McRae

package relation

import (
	"math/big"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Store collects relations from the sieve workers. Full relations are
// appended directly; partials feed the cofactor graph and surface as
// grouped full relations when a cycle closes. Relations are
// deduplicated by abscissa, so candidate order between windows does
// not matter. All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	seen     *redblacktree.Tree // X -> struct{}, over fulls and partials alike
	fulls    []*Group
	graph    *Graph
	partials bool
	target   int
}

func bigIntComparator(a, b interface{}) int {
	return a.(*big.Int).Cmp(b.(*big.Int))
}

// NewStore returns a store that declares itself done once target full
// relations have accumulated. When partials is false, partial
// relations are discarded on arrival.
func NewStore(target int, partials bool) *Store {
	return &Store{
		seen:     redblacktree.NewWith(bigIntComparator),
		graph:    NewGraph(),
		partials: partials,
		target:   target,
	}
}

// Add records one relation and reports whether the store now holds
// enough full relations. Duplicate abscissas are dropped.
func (s *Store) Add(r *Relation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen.Get(r.X); dup {
		return len(s.fulls) >= s.target
	}
	s.seen.Put(r.X, struct{}{})

	if r.IsFull() {
		s.fulls = append(s.fulls, &Group{Members: []*Relation{r}})
	} else if s.partials {
		if cycle := s.graph.Insert(r.Cofactor, 1, r); cycle != nil {
			s.fulls = append(s.fulls, &Group{Members: cycle})
		}
	}
	return len(s.fulls) >= s.target
}

// Done reports whether enough full relations have accumulated.
func (s *Store) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fulls) >= s.target
}

// Groups returns the accumulated full-relation groups.
func (s *Store) Groups() []*Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Group, len(s.fulls))
	copy(out, s.fulls)
	return out
}

// Counts returns the number of full-relation groups and of partial
// relations still waiting in the graph.
func (s *Store) Counts() (fulls, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fulls), s.graph.Pending()
}

// Target returns the full-relation goal.
func (s *Store) Target() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Raise lifts the full-relation goal to newTarget if it is higher,
// for re-entering the sieve after an unproductive matrix solve.
func (s *Store) Raise(newTarget int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newTarget > s.target {
		s.target = newTarget
	}
}
