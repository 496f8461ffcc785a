// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package graph

// heapEntry is an entry of the min-heap, ordered by priority then key.
type heapEntry[T any] struct {
	Key      int
	Value    T
	Priority int
}

// minHeap is a min-heap ordered by priority, ties broken by key.
// Push and Pop are O(log n).
//
// The builder uses it as the ready set of the topological sort so that
// independent vertices come out in declaration order. It is not safe for
// concurrent use.
type minHeap[T any] struct {
	heap []heapEntry[T]
}

func newMinHeap[T any](capacity int) *minHeap[T] {
	return &minHeap[T]{heap: make([]heapEntry[T], 0, capacity)}
}

// Push adds an entry to the heap. Keys are not checked for uniqueness.
func (h *minHeap[T]) Push(key int, value T, priority int) {
	h.heap = append(h.heap, heapEntry[T]{Key: key, Value: value, Priority: priority})
	h.bubbleUp(len(h.heap) - 1)
}

// Pop removes and returns the entry with the lowest priority.
// Returns nil if the heap is empty.
func (h *minHeap[T]) Pop() *heapEntry[T] {
	n := len(h.heap) - 1
	if n < 0 {
		return nil
	}
	entry := h.heap[0]
	h.heap[0] = h.heap[n]
	h.heap = h.heap[:n]
	h.bubbleDown(0)
	return &entry
}

// Len returns the number of entries in the heap.
func (h *minHeap[T]) Len() int {
	return len(h.heap)
}

func (h *minHeap[T]) less(i, j int) bool {
	a, b := h.heap[i], h.heap[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Key < b.Key
}

func (h *minHeap[T]) bubbleUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.heap[i], h.heap[parent] = h.heap[parent], h.heap[i]
		i = parent
	}
}

func (h *minHeap[T]) bubbleDown(i int) {
	n := len(h.heap)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}

		h.heap[i], h.heap[smallest] = h.heap[smallest], h.heap[i]
		i = smallest
	}
}
