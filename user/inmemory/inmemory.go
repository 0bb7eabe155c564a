//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a user.Store kept in memory.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-agent-app/user"
)

// Store is an in-memory user.Store.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]*user.User
}

var _ user.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{users: make(map[string]*user.User)}
}

func clone(u *user.User) *user.User {
	c := *u
	return &c
}

// Create implements user.Store.
func (s *Store) Create(_ context.Context, fullName, username, password string) (*user.User, error) {
	if err := user.Validate(fullName, username, password); err != nil {
		return nil, err
	}
	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return nil, fmt.Errorf("%w: %s", user.ErrUserExists, username)
	}
	s.nextID++
	now := time.Now().UTC()
	u := &user.User{
		ID:           s.nextID,
		FullName:     fullName,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[username] = u
	return clone(u), nil
}

// List implements user.Store.
func (s *Store) List(context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, clone(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	return users, nil
}

// Get implements user.Store.
func (s *Store) Get(_ context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", user.ErrUserNotFound, username)
	}
	return clone(u), nil
}

// UpdatePassword implements user.Store.
func (s *Store) UpdatePassword(_ context.Context, username, password string) (*user.User, error) {
	hash, err := user.HashPassword(password)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", user.ErrUserNotFound, username)
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return clone(u), nil
}

// Delete implements user.Store.
func (s *Store) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("%w: %s", user.ErrUserNotFound, username)
	}
	delete(s.users, username)
	return nil
}

// Close implements user.Store.
func (s *Store) Close() error {
	return nil
}
