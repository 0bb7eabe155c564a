//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package usertest holds the behavior every user.Store must have.
package usertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"trpc.group/trpc-go/trpc-agent-app/user"
)

// Run runs the suite against stores created by newStore.
func Run(t *testing.T, newStore func(t *testing.T) user.Store) {
	user.HashCost = bcrypt.MinCost
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("Duplicate", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("Invalid", func(t *testing.T) { testInvalid(t, newStore(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("UpdatePassword", func(t *testing.T) { testUpdatePassword(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
}

func testCreateGet(t *testing.T, s user.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, "Ada Lovelace", "ada", "engine")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Ada Lovelace", created.FullName)
	assert.Equal(t, "ada", created.Username)
	assert.True(t, created.CheckPassword("engine"))
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.Get(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.PasswordHash, got.PasswordHash)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Get(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func testDuplicate(t *testing.T, s user.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "Ada", "ada", "pw")
	require.NoError(t, err)
	_, err = s.Create(ctx, "Other Ada", "ada", "pw2")
	assert.ErrorIs(t, err, user.ErrUserExists)
}

func testInvalid(t *testing.T, s user.Store) {
	_, err := s.Create(context.Background(), "Ada", "", "pw")
	assert.ErrorIs(t, err, user.ErrInvalidUser)
	_, err = s.UpdatePassword(context.Background(), "ada", "")
	assert.Error(t, err)
}

func testList(t *testing.T, s user.Store) {
	ctx := context.Background()
	users, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	for _, name := range []string{"first", "second", "third"} {
		_, err := s.Create(ctx, name, name, "pw")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	users, err = s.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	assert.Equal(t, []string{"third", "second", "first"}, names)
}

func testUpdatePassword(t *testing.T, s user.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, "Ada", "ada", "old")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	updated, err := s.UpdatePassword(ctx, "ada", "new")
	require.NoError(t, err)
	assert.True(t, updated.CheckPassword("new"))
	assert.False(t, updated.CheckPassword("old"))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	got, err := s.Get(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, got.CheckPassword("new"))

	_, err = s.UpdatePassword(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func testDelete(t *testing.T, s user.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "Ada", "ada", "pw")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "ada"))
	_, err = s.Get(ctx, "ada")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "ada"), user.ErrUserNotFound)

	// The username is free again.
	_, err = s.Create(ctx, "Ada", "ada", "pw")
	assert.NoError(t, err)
}
