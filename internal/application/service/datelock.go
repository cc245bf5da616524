package service

import (
	"sort"
	"sync"
	"time"
)

// DateLocks serializes writers per calendar date, so at most one in-flight
// write touches a given summary_date's transaction set. The storage
// transaction handles durability; this guards the read-modify-write window.
// One instance is shared by the import and reconciliation services.
type DateLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDateLocks creates an empty lock table.
func NewDateLocks() *DateLocks {
	return &DateLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *DateLocks) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Lock acquires the write lock for one date and returns its release func.
func (l *DateLocks) Lock(day time.Time) func() {
	m := l.lockFor(day.Format("2006-01-02"))
	m.Lock()
	return m.Unlock
}

// LockAll acquires locks for several dates in a stable order, so two batches
// spanning overlapping date sets cannot deadlock each other.
func (l *DateLocks) LockAll(days []time.Time) func() {
	keys := make([]string, 0, len(days))
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		k := d.Format("2006-01-02")
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	muxes := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := l.lockFor(k)
		m.Lock()
		muxes = append(muxes, m)
	}
	return func() {
		for i := len(muxes) - 1; i >= 0; i-- {
			muxes[i].Unlock()
		}
	}
}
