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
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

// Verdict is the structured output of the evaluator.
type Verdict struct {
	Feedback           string `json:"feedback" jsonschema:"description=Feedback on the assistant's response"`
	SuccessCriteriaMet bool   `json:"success_criteria_met" jsonschema:"description=Whether the success criteria have been met"`
	UserInputNeeded    bool   `json:"user_input_needed" jsonschema:"description=True if more input is needed from the user or the assistant is stuck"`
}

// applyVerdict records the verdict and counts the cycle. Reaching
// maxCycles without success hands the conversation back to the user.
func applyVerdict(maxCycles int) graph.ApplyFunc[Verdict] {
	return func(ctx context.Context, state graph.State, v Verdict) graph.State {
		cycles := state.Int(StateKeyEvaluationCycles) + 1
		if maxCycles > 0 && cycles >= maxCycles && !v.SuccessCriteriaMet && !v.UserInputNeeded {
			info, _ := graph.RunInfoFromContext(ctx)
			log.Infof("thread %s: evaluation cap of %d cycles reached", info.ThreadID, cycles)
			v.UserInputNeeded = true
			v.Feedback = fmt.Sprintf("%s (stopped after %d evaluation cycles without meeting the success criteria)",
				v.Feedback, cycles)
		}
		feedback := model.NewAssistantMessage(FeedbackPrefix + v.Feedback)
		feedback.Name = EvaluatorName
		return graph.State{
			graph.StateKeyMessages:     []model.Message{feedback},
			graph.StateKeyLastError:    "",
			StateKeyFeedback:           v.Feedback,
			StateKeySuccessCriteriaMet: v.SuccessCriteriaMet,
			StateKeyUserInputNeeded:    v.UserInputNeeded,
			StateKeyEvaluationCycles:   cycles,
		}
	}
}

// routeWorker sends tool calls to the tools node and answers to the
// evaluator. A failed worker call ends the run.
func routeWorker(_ context.Context, state graph.State) (string, error) {
	if state.String(graph.StateKeyLastError) != "" {
		return graph.End, nil
	}
	if last, ok := state.LastMessage(); ok && last.HasToolCalls() {
		return NodeTools, nil
	}
	return NodeEvaluator, nil
}

// routeEvaluation sends the run back to the worker until a stop flag or
// last_error is set.
func routeEvaluation(_ context.Context, state graph.State) (string, error) {
	if state.Bool(StateKeySuccessCriteriaMet) ||
		state.Bool(StateKeyUserInputNeeded) ||
		state.String(graph.StateKeyLastError) != "" {
		return graph.End, nil
	}
	return NodeWorker, nil
}
