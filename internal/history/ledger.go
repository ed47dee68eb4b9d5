// Package history keeps the bounded per-target check ledger and derives
// availability figures from it.
package history

import (
	"sync"

	"github.com/hamed0406/healthwatch/internal/domain"
)

// Ledger is a size-bounded, newest-first log per target. The bound is part of
// the structure: an insert past capacity drops the oldest entry in the same step.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	entries  map[domain.TargetRef][]domain.CheckResult
}

func NewLedger(capacity int) *Ledger {
	if capacity < 1 {
		capacity = 1
	}
	return &Ledger{
		capacity: capacity,
		entries:  make(map[domain.TargetRef][]domain.CheckResult),
	}
}

// Append inserts r ordered by CheckedAt; equal timestamps keep insertion order
// (the later insert counts as newer).
func (l *Ledger) Append(r domain.CheckResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.entries[r.Target]
	i := 0
	for i < len(cur) && cur[i].CheckedAt.After(r.CheckedAt) {
		i++
	}
	if i >= l.capacity {
		return // older than everything retained
	}

	n := len(cur) + 1
	if n > l.capacity {
		n = l.capacity
	}
	next := make([]domain.CheckResult, 0, n)
	next = append(next, cur[:i]...)
	next = append(next, r)
	next = append(next, cur[i:]...)
	l.entries[r.Target] = next[:n]
}

// Recent returns up to n entries, newest first. The slice is a copy.
func (l *Ledger) Recent(ref domain.TargetRef, n int) []domain.CheckResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cur := l.entries[ref]
	if n <= 0 || n > len(cur) {
		n = len(cur)
	}
	out := make([]domain.CheckResult, n)
	copy(out, cur[:n])
	return out
}

func (l *Ledger) Latest(ref domain.TargetRef) (domain.CheckResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cur := l.entries[ref]
	if len(cur) == 0 {
		return domain.CheckResult{}, false
	}
	return cur[0], true
}

func (l *Ledger) Len(ref domain.TargetRef) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[ref])
}

// Drop destroys the whole history of a target.
func (l *Ledger) Drop(ref domain.TargetRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ref)
}
