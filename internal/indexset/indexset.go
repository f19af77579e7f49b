package indexset

import "errors"

var (
	ErrDuplicate = errors.New("already present")
	ErrNotFound  = errors.New("not found")
)

// Set is a dense slice with a side mapping from value to current slot.
// Removal swaps the target with the last element and pops, so deletion is O(1)
// but insertion order is not preserved across removals. Callers must not rely
// on an element keeping its index after an unrelated Remove.
type Set[T comparable] struct {
	items []T
	index map[T]int
}

func New[T comparable]() *Set[T] {
	return &Set[T]{
		index: make(map[T]int),
	}
}

// Add appends item and records its slot.
func (s *Set[T]) Add(item T) error {
	if _, ok := s.index[item]; ok {
		return ErrDuplicate
	}
	s.items = append(s.items, item)
	s.index[item] = len(s.items) - 1
	return nil
}

// Remove deletes item by swapping it with the last element.
// The swapped element's recorded index is updated before the pop.
func (s *Set[T]) Remove(item T) error {
	slot, ok := s.index[item]
	if !ok {
		return ErrNotFound
	}

	last := len(s.items) - 1
	if slot != last {
		s.items[slot] = s.items[last]
		s.index[s.items[slot]] = slot
	}

	s.items = s.items[:last]
	delete(s.index, item)
	return nil
}

func (s *Set[T]) Contains(item T) bool {
	_, ok := s.index[item]
	return ok
}

// IndexOf returns the current slot of item.
func (s *Set[T]) IndexOf(item T) (int, error) {
	slot, ok := s.index[item]
	if !ok {
		return 0, ErrNotFound
	}
	return slot, nil
}

// Values returns a copy of the backing slice.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Set[T]) Len() int {
	return len(s.items)
}
