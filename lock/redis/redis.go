//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a lock.Locker shared by processes through Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"trpc.group/trpc-go/trpc-agent-app/lock"
	"trpc.group/trpc-go/trpc-agent-app/log"
)

const (
	defaultPrefix       = "agentapp"
	defaultTTL          = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// ErrLockLost is returned by unlock when the lock expired and was taken
// over before it was released.
var ErrLockLost = errors.New("lock expired before release")

// unlockScript deletes the key only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker implements lock.Locker with SET NX PX.
//
// A held lock is renewed in the background every third of its TTL, so a
// run may outlive the TTL while a crashed holder still frees the key
// within one TTL.
type Locker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

var _ lock.Locker = (*Locker)(nil)

// Option configures the Locker.
type Option func(*Locker)

// WithKeyPrefix sets the key prefix, default is "agentapp".
func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithTTL sets the lease of a lock, default is 30s. It bounds how long a
// crashed holder keeps the lock.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPollInterval sets how often a waiter retries.
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// New creates a Redis locker.
func New(client redis.UniversalClient, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	l := &Locker{
		client:       client,
		prefix:       defaultPrefix,
		ttl:          defaultTTL,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Locker) key(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, key)
}

// Lock implements lock.Locker. It polls until the key is free or ctx is
// done.
func (l *Locker) Lock(ctx context.Context, key string) (lock.UnlockFunc, error) {
	lockKey := l.key(key)
	token := uuid.NewString()
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			return l.hold(lockKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold starts renewing the lease and returns the matching unlock func.
func (l *Locker) hold(lockKey, token string) lock.UnlockFunc {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(lockKey, token, stop)
	}()
	var once sync.Once
	release := l.unlockFunc(lockKey, token)
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return release(ctx)
	}
}

// keepAlive extends the lease until stop is closed or the lock is lost.
func (l *Locker) keepAlive(lockKey, token string, stop <-chan struct{}) {
	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			log.Warnf("redis: renew lock %s: %v", lockKey, err)
			continue
		}
		if n == 0 {
			log.Warnf("redis: lock %s lost before release", lockKey)
			return
		}
	}
}

func (l *Locker) unlockFunc(lockKey, token string) lock.UnlockFunc {
	return func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			return fmt.Errorf("redis: release lock: %w", err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
}
