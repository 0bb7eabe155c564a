//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleTokenCounter_CountTokens(t *testing.T) {
	c := NewSimpleTokenCounter()
	ctx := context.Background()

	n, err := c.CountTokens(ctx, NewUserMessage(""))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.CountTokens(ctx, NewUserMessage("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.CountTokens(ctx, NewUserMessage(strings.Repeat("a", 40)))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestSimpleTokenCounter_CountTokensRange(t *testing.T) {
	c := NewSimpleTokenCounter()
	msgs := []Message{
		NewUserMessage(strings.Repeat("a", 8)),
		NewAssistantMessage(strings.Repeat("b", 12)),
	}
	n, err := c.CountTokensRange(context.Background(), msgs, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = c.CountTokensRange(context.Background(), msgs, 1, 1)
	assert.Error(t, err)
}

func TestTailorMessages(t *testing.T) {
	long := strings.Repeat("x", 40) // 10 tokens
	msgs := []Message{
		NewSystemMessage(long),
		NewUserMessage(long),
		{Role: RoleAssistant, ToolCalls: []ToolCall{NewToolCall("c1", "search", "{}")}},
		NewToolMessage("c1", "search", long),
		NewAssistantMessage(long),
		NewUserMessage(long),
		NewAssistantMessage(long),
	}
	ctx := context.Background()

	t.Run("fits", func(t *testing.T) {
		out, err := TailorMessages(ctx, nil, msgs, 1000)
		require.NoError(t, err)
		assert.Equal(t, msgs, out)
	})

	t.Run("drops whole oldest turn", func(t *testing.T) {
		out, err := TailorMessages(ctx, nil, msgs, 35)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, RoleSystem, out[0].Role)
		assert.Equal(t, RoleUser, out[1].Role)
		for _, m := range out {
			assert.NotEqual(t, RoleTool, m.Role)
		}
	})

	t.Run("keeps last turn when nothing fits", func(t *testing.T) {
		out, err := TailorMessages(ctx, nil, msgs, 1)
		require.NoError(t, err)
		assert.Len(t, out, 3)
		assert.Equal(t, msgs[5], out[1])
	})

	t.Run("disabled", func(t *testing.T) {
		out, err := TailorMessages(ctx, nil, msgs, 0)
		require.NoError(t, err)
		assert.Equal(t, msgs, out)
	})
}
