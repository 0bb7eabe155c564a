//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package lock serializes work on a key, e.g. the runs of one thread.
package lock

import (
	"context"
	"sync"
)

// UnlockFunc releases a lock. It must be called exactly once.
type UnlockFunc func(ctx context.Context) error

// Locker hands out exclusive locks per key.
type Locker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}

// lockEntry is the mutex of one key and the number of callers holding or
// waiting for it.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker. Entries are garbage collected when the
// last holder or waiter leaves.
type Local struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*lockEntry)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	entry := l.acquire(key)
	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-entry.ch
			l.release(key)
		})
		return nil
	}, nil
}

func (l *Local) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// size reports the number of live entries.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
