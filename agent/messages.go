//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import "trpc.group/trpc-go/trpc-agent-app/model"

// ConversationMessages keeps the messages a person would see: user
// messages and assistant messages that carry an answer. System prompts,
// tool calls and tool results are execution detail and are dropped.
func ConversationMessages(history []model.Message) []model.Message {
	out := make([]model.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case model.RoleUser:
			out = append(out, msg)
		case model.RoleAssistant:
			if msg.Content != "" && !msg.HasToolCalls() {
				out = append(out, msg)
			}
		}
	}
	return out
}
