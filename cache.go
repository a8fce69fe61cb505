// seehuhn.de/go/pdfcore - support for reading and writing PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdfcore

// lruCache keeps the most recently used values, up to a fixed number of
// entries.  The reader uses it for decoded object streams.
type lruCache[K comparable, V any] struct {
	capacity    int
	entries     map[K]*lruEntry[K, V]
	first, last *lruEntry[K, V]
}

type lruEntry[K comparable, V any] struct {
	prev, next *lruEntry[K, V]
	key        K
	val        V
}

func newLRUCache[K comparable, V any](capacity int) *lruCache[K, V] {
	return &lruCache[K, V]{
		capacity: capacity,
		entries:  make(map[K]*lruEntry[K, V], capacity),
	}
}

// Put adds a value to the cache, evicting the least recently used entry if
// the cache is full.
func (c *lruCache[K, V]) Put(key K, val V) {
	if c.capacity <= 0 {
		return
	}

	if e, ok := c.entries[key]; ok {
		e.val = val
		c.moveToFront(e)
		return
	}

	e := &lruEntry[K, V]{key: key, val: val}
	c.entries[key] = e
	c.moveToFront(e)

	if len(c.entries) > c.capacity {
		c.removeLast()
	}
}

// Get returns a value from the cache and marks it as recently used.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.val, true
}

// Len returns the number of cached values.
func (c *lruCache[K, V]) Len() int {
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *lruEntry[K, V]) {
	if e == c.first {
		return
	}

	// unlink
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if e == c.last {
		c.last = e.prev
	}

	e.prev = nil
	e.next = c.first
	if c.first != nil {
		c.first.prev = e
	}
	c.first = e
	if c.last == nil {
		c.last = e
	}
}

func (c *lruCache[K, V]) removeLast() {
	e := c.last
	if e == nil {
		return
	}
	delete(c.entries, e.key)
	c.last = e.prev
	if c.last != nil {
		c.last.next = nil
	} else {
		c.first = nil
	}
}
