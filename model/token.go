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
	"fmt"
	"unicode/utf8"
)

const approxRunesPerToken = 4 // heuristic: ~1 token per 4 UTF-8 runes

// TokenCounter counts tokens for messages.
// The implementation is model-agnostic to keep the model package lightweight.
type TokenCounter interface {
	// CountTokens returns the estimated token count for a single message.
	CountTokens(ctx context.Context, message Message) (int, error)

	// CountTokensRange returns the estimated token count for a range of messages.
	CountTokensRange(ctx context.Context, messages []Message, start, end int) (int, error)
}

// SimpleTokenCounter provides a very rough token estimation based on rune length.
type SimpleTokenCounter struct{}

// NewSimpleTokenCounter creates a SimpleTokenCounter.
func NewSimpleTokenCounter() *SimpleTokenCounter {
	return &SimpleTokenCounter{}
}

// CountTokens estimates tokens for a single message.
func (c *SimpleTokenCounter) CountTokens(_ context.Context, message Message) (int, error) {
	total := utf8.RuneCountInString(message.Content) / approxRunesPerToken
	for _, call := range message.ToolCalls {
		total += utf8.RuneCountInString(call.Function.Arguments) / approxRunesPerToken
	}
	if len(message.Content) > 0 {
		return max(total, 1), nil
	}
	return total, nil
}

// CountTokensRange estimates tokens for a range of messages.
func (c *SimpleTokenCounter) CountTokensRange(ctx context.Context, messages []Message, start, end int) (int, error) {
	return countRange(ctx, c, messages, start, end)
}

func countRange(ctx context.Context, counter TokenCounter, messages []Message, start, end int) (int, error) {
	if start < 0 || end > len(messages) || start >= end {
		return 0, fmt.Errorf("invalid range: start=%d, end=%d, len=%d", start, end, len(messages))
	}
	total := 0
	for i := start; i < end; i++ {
		tokens, err := counter.CountTokens(ctx, messages[i])
		if err != nil {
			return 0, fmt.Errorf("count tokens for message %d failed: %w", i, err)
		}
		total += tokens
	}
	return total, nil
}

// TailorMessages drops the oldest turns until messages fit in maxTokens.
//
// Leading system messages and the last turn are always kept. A turn starts
// at a user message, so an assistant tool call and its tool results are
// removed together and no orphaned tool result is sent to the model.
// The input slice is not modified.
func TailorMessages(ctx context.Context, counter TokenCounter, messages []Message, maxTokens int) ([]Message, error) {
	if len(messages) == 0 || maxTokens <= 0 {
		return messages, nil
	}
	if counter == nil {
		counter = NewSimpleTokenCounter()
	}
	prefixSum := make([]int, len(messages)+1)
	for i, msg := range messages {
		tokens, err := counter.CountTokens(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		prefixSum[i+1] = prefixSum[i] + tokens
	}
	if prefixSum[len(messages)] <= maxTokens {
		return messages, nil
	}

	head := 0
	for head < len(messages) && messages[head].Role == RoleSystem {
		head++
	}
	var turnStarts []int
	for i := head; i < len(messages); i++ {
		if messages[i].Role == RoleUser {
			turnStarts = append(turnStarts, i)
		}
	}
	if len(turnStarts) == 0 {
		return messages, nil
	}

	// Pick the earliest turn start whose suffix fits; fall back to the last turn.
	cut := turnStarts[len(turnStarts)-1]
	for _, start := range turnStarts {
		if prefixSum[head]+prefixSum[len(messages)]-prefixSum[start] <= maxTokens {
			cut = start
			break
		}
	}
	result := make([]Message, 0, head+len(messages)-cut)
	result = append(result, messages[:head]...)
	result = append(result, messages[cut:]...)
	return result, nil
}
