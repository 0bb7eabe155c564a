//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

func TestNewRunOptions(t *testing.T) {
	assert.Equal(t, RunOptions{}, NewRunOptions())
	assert.Equal(t, "be brief", NewRunOptions(WithSuccessCriteria("be brief")).SuccessCriteria)
}

func TestConversationMessages(t *testing.T) {
	history := []model.Message{
		model.NewSystemMessage("prompt"),
		model.NewUserMessage("weather?"),
		{Role: model.RoleAssistant, Content: "let me look", ToolCalls: []model.ToolCall{model.NewToolCall("c1", "search", "{}")}},
		model.NewToolMessage("c1", "search", "sunny"),
		model.NewAssistantMessage(""),
		model.NewAssistantMessage("It is sunny."),
	}
	got := ConversationMessages(history)
	assert.Equal(t, []model.Message{
		model.NewUserMessage("weather?"),
		model.NewAssistantMessage("It is sunny."),
	}, got)
	assert.Empty(t, ConversationMessages(nil))
}
