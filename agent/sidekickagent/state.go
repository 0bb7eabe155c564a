//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package sidekickagent

import (
	"reflect"

	"trpc.group/trpc-go/trpc-agent-app/graph"
)

// State keys added to graph.MessagesStateSchema.
const (
	StateKeySuccessCriteria    = "success_criteria"
	StateKeyFeedback           = "feedback_on_work"
	StateKeySuccessCriteriaMet = "success_criteria_met"
	StateKeyUserInputNeeded    = "user_input_needed"
	StateKeyEvaluationCycles   = "evaluation_cycles"
)

// DefaultSuccessCriteria is used when a run names none.
const DefaultSuccessCriteria = "The answer should be clear and accurate"

// StateSchema returns the schema of the supervised conversation. Every
// field besides messages is replaced by updates.
func StateSchema() *graph.StateSchema {
	schema := graph.MessagesStateSchema()
	schema.AddField(StateKeySuccessCriteria, graph.StateField{
		Type:    reflect.TypeOf(""),
		Default: func() any { return DefaultSuccessCriteria },
	})
	schema.AddField(StateKeyFeedback, graph.StateField{
		Type:    reflect.TypeOf(""),
		Default: func() any { return "" },
	})
	schema.AddField(StateKeySuccessCriteriaMet, graph.StateField{
		Type:    reflect.TypeOf(false),
		Default: func() any { return false },
	})
	schema.AddField(StateKeyUserInputNeeded, graph.StateField{
		Type:    reflect.TypeOf(false),
		Default: func() any { return false },
	})
	schema.AddField(StateKeyEvaluationCycles, graph.StateField{
		Type:    reflect.TypeOf(0),
		Default: func() any { return 0 },
	})
	return schema
}
