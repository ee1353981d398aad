// Package scopetree stores values keyed by scope paths and finds the most
// specific value for a path, falling back to shorter scope names and to
// enclosing path elements.
//
// Paths are stored innermost element first. Within an element, each dotted
// atom is one edge ("string" -> "quoted" -> "double"); once an element is
// complete, the outer edge leads to the atoms of the enclosing element. A
// lookup therefore prefers, in order: the innermost path element that
// matches anything, the longest atom prefix of it, and then the same rules
// recursively for enclosing elements.
package scopetree

import (
	"github.com/zjrosen/lumen/internal/log"
	"github.com/zjrosen/lumen/internal/scope"
)

type node[T any] struct {
	atoms map[string]*node[T] // same element, one more atom
	outer *node[T]            // next enclosing element
	value T
	set   bool
}

func (n *node[T]) child(atom string) *node[T] {
	if n.atoms == nil {
		n.atoms = make(map[string]*node[T])
	}
	c, ok := n.atoms[atom]
	if !ok {
		c = &node[T]{}
		n.atoms[atom] = c
	}
	return c
}

// Tree maps scope paths to values. The zero value is ready to use.
// A Tree is not safe for concurrent writes; once populated it may be read
// from any number of goroutines.
type Tree[T any] struct {
	root node[T]
	size int
}

// New returns an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{}
}

// Len returns the number of stored paths.
func (t *Tree[T]) Len() int { return t.size }

// Add stores value at path. Re-adding an identical path replaces the old
// value and logs a warning.
func (t *Tree[T]) Add(path []scope.Scope, value T) {
	n := t.walk(path, true)
	if n == nil {
		return
	}
	if n.set {
		log.Warn(log.CatScope, "overwriting scope tree entry", "path", scope.PathString(path))
	} else {
		t.size++
	}
	n.value = value
	n.set = true
}

// Get returns the value stored at exactly path.
func (t *Tree[T]) Get(path []scope.Scope) (T, bool) {
	var zero T
	n := t.walk(path, false)
	if n == nil || !n.set {
		return zero, false
	}
	return n.value, true
}

// Find returns the value of the most specific stored path that matches path.
func (t *Tree[T]) Find(path []scope.Scope) (T, bool) {
	return t.FindFunc(path, nil)
}

// FindFunc is Find restricted to values accepted by accept. Rejected values
// are skipped and the search continues with the next most specific entry.
// A nil accept accepts everything.
func (t *Tree[T]) FindFunc(path []scope.Scope, accept func(T) bool) (T, bool) {
	var zero T
	if len(path) == 0 {
		return zero, false
	}
	atoms := make([][]string, len(path))
	for i, s := range path {
		atoms[i] = s.Atoms()
	}
	return find(&t.root, atoms, len(atoms), accept)
}

// walk follows (or with create, builds) the edges for path.
func (t *Tree[T]) walk(path []scope.Scope, create bool) *node[T] {
	if len(path) == 0 {
		return nil
	}
	n := &t.root
	for i := len(path) - 1; i >= 0; i-- {
		atoms := path[i].Atoms()
		if len(atoms) == 0 {
			return nil
		}
		for _, a := range atoms {
			if create {
				n = n.child(a)
				continue
			}
			next, ok := n.atoms[a]
			if !ok {
				return nil
			}
			n = next
		}
		if i == 0 {
			break
		}
		if n.outer == nil {
			if !create {
				return nil
			}
			n.outer = &node[T]{}
		}
		n = n.outer
	}
	return n
}

// find searches path elements [0, limit) starting from start, innermost
// element first.
func find[T any](start *node[T], path [][]string, limit int, accept func(T) bool) (T, bool) {
	var zero T
	for i := limit - 1; i >= 0; i-- {
		// Collect the chain of nodes for the atom prefixes of path[i].
		var chain []*node[T]
		n := start
		for _, a := range path[i] {
			next, ok := n.atoms[a]
			if !ok {
				break
			}
			chain = append(chain, next)
			n = next
		}

		// Longest prefix first; for each, a match that also constrains
		// enclosing elements beats the bare entry.
		for j := len(chain) - 1; j >= 0; j-- {
			c := chain[j]
			if c.outer != nil && i > 0 {
				if v, ok := find(c.outer, path, i, accept); ok {
					return v, true
				}
			}
			if c.set && (accept == nil || accept(c.value)) {
				return c.value, true
			}
		}
	}
	return zero, false
}
