//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "trpc.group/trpc-go/trpc-agent-app/model"

// DefaultReducer overwrites the existing value with the update.
func DefaultReducer(existing, update any) any {
	return update
}

// MessageReducer appends messages in arrival order.
//
// A tool result is dropped when its ToolID was already answered after the
// latest assistant message carrying tool calls, so a replayed tools step
// cannot answer the outstanding call twice. IDs may repeat across turns.
// The returned slice never shares its backing array with existing.
func MessageReducer(existing, update any) any {
	existingMsgs, _ := existing.([]model.Message)
	var updateMsgs []model.Message
	switch u := update.(type) {
	case []model.Message:
		updateMsgs = u
	case model.Message:
		updateMsgs = []model.Message{u}
	default:
		return existing
	}

	answered := make(map[string]struct{})
	for _, msg := range existingMsgs {
		trackAnswered(answered, msg)
	}
	merged := make([]model.Message, len(existingMsgs), len(existingMsgs)+len(updateMsgs))
	copy(merged, existingMsgs)
	for _, msg := range updateMsgs {
		if msg.Role == model.RoleTool && msg.ToolID != "" {
			if _, dup := answered[msg.ToolID]; dup {
				continue
			}
		}
		trackAnswered(answered, msg)
		merged = append(merged, msg)
	}
	return merged
}

// trackAnswered records tool results of the current turn. A new assistant
// tool call round starts a fresh set.
func trackAnswered(answered map[string]struct{}, msg model.Message) {
	switch {
	case msg.Role == model.RoleAssistant && len(msg.ToolCalls) > 0:
		clear(answered)
	case msg.Role == model.RoleTool && msg.ToolID != "":
		answered[msg.ToolID] = struct{}{}
	}
}
