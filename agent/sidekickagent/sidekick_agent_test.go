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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/model/mockmodel"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }

func verdict(feedback string, met, needed bool) mockmodel.Step {
	return mockmodel.Reply(fmt.Sprintf(`{"feedback":%q,"success_criteria_met":%t,"user_input_needed":%t}`,
		feedback, met, needed))
}

func newSidekick(t *testing.T, worker, evaluator model.Model, opts ...Option) agent.Agent {
	t.Helper()
	opts = append([]Option{
		WithEvaluatorModel(evaluator),
		WithClock(fixedNow),
		WithAgentOptions(graphagent.WithCheckpointSaver(inmemory.NewSaver())),
	}, opts...)
	a, err := New(worker, opts...)
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_NilModel(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestSidekick_AcceptedFirstTime(t *testing.T) {
	worker := mockmodel.New("worker", mockmodel.Reply("Paris"))
	evaluator := mockmodel.New("evaluator", verdict("Correct and concise.", true, false))
	a := newSidekick(t, worker, evaluator)
	ctx := context.Background()

	reply, err := a.Run(ctx, "bob_1", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, &agent.Reply{
		ThreadID:           "bob_1",
		Content:            "Paris",
		Feedback:           "Correct and concise.",
		SuccessCriteriaMet: true,
	}, reply)

	msgs, err := a.Messages(ctx, "bob_1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Paris", msgs[1].Content)
	assert.Equal(t, EvaluatorName, msgs[2].Name)
	assert.Equal(t, FeedbackPrefix+"Correct and concise.", msgs[2].Content)

	workerReq := worker.Requests()[0]
	require.Equal(t, model.RoleSystem, workerReq.Messages[0].Role)
	assert.Contains(t, workerReq.Messages[0].Content, "2025-06-01 09:30:00")
	assert.Contains(t, workerReq.Messages[0].Content, DefaultSuccessCriteria)
	assert.NotContains(t, workerReq.Messages[0].Content, "rejected")

	evalReq := evaluator.Requests()[0]
	require.NotNil(t, evalReq.StructuredOutput)
	assert.ElementsMatch(t,
		[]string{"feedback", "success_criteria_met", "user_input_needed"},
		evalReq.StructuredOutput.Schema.Required)
	require.Len(t, evalReq.Messages, 2)
	assert.Contains(t, evalReq.Messages[1].Content, "User: What is the capital of France?")
	assert.Contains(t, evalReq.Messages[1].Content, "final response from the Assistant that you are evaluating is:\nParis")
}

func TestSidekick_RetriesWithFeedback(t *testing.T) {
	worker := mockmodel.New("worker", mockmodel.Reply("Some city"), mockmodel.Reply("Paris"))
	evaluator := mockmodel.New("evaluator",
		verdict("Name the city.", false, false),
		verdict("Good.", true, false),
	)
	a := newSidekick(t, worker, evaluator)

	reply, err := a.Run(context.Background(), "bob_1", "Capital of France?", agent.WithSuccessCriteria("Name the city"))
	require.NoError(t, err)
	assert.Equal(t, "Paris", reply.Content)
	assert.True(t, reply.SuccessCriteriaMet)
	assert.Equal(t, 2, worker.Calls())
	assert.Equal(t, 2, evaluator.Calls())

	retry := worker.Requests()[1].Messages[0].Content
	assert.Contains(t, retry, "Name the city")
	assert.Contains(t, retry, "Here is the feedback on why this was rejected:\nName the city.")
	assert.Contains(t, evaluator.Requests()[1].Messages[1].Content, "you provided this feedback: Name the city.")

	msgs, err := a.Messages(context.Background(), "bob_1")
	require.NoError(t, err)
	// user, answer, feedback, answer, feedback
	assert.Len(t, msgs, 5)
}

func TestSidekick_UserInputNeeded(t *testing.T) {
	worker := mockmodel.New("worker", mockmodel.Reply("Question: which France?"))
	evaluator := mockmodel.New("evaluator", verdict("The assistant asked a question.", false, true))
	a := newSidekick(t, worker, evaluator)

	reply, err := a.Run(context.Background(), "bob_1", "Capital?")
	require.NoError(t, err)
	assert.True(t, reply.UserInputNeeded)
	assert.False(t, reply.SuccessCriteriaMet)
	assert.Equal(t, 1, worker.Calls())
}

func TestSidekick_CycleCap(t *testing.T) {
	worker := mockmodel.New("worker").WithFallback(mockmodel.Reply("not sure"))
	evaluator := mockmodel.New("evaluator").WithFallback(verdict("Try harder.", false, false))
	a := newSidekick(t, worker, evaluator, WithMaxEvaluationCycles(3))

	reply, err := a.Run(context.Background(), "bob_1", "Solve it")
	require.NoError(t, err)
	assert.Equal(t, 3, worker.Calls())
	assert.Equal(t, 3, evaluator.Calls())
	assert.True(t, reply.UserInputNeeded)
	assert.False(t, reply.SuccessCriteriaMet)
	assert.Contains(t, reply.Feedback, "stopped after 3 evaluation cycles")

	// A new run starts counting again.
	reply, err = a.Run(context.Background(), "bob_1", "Try once more")
	require.NoError(t, err)
	assert.Equal(t, 6, worker.Calls())
	assert.True(t, reply.UserInputNeeded)
}

func TestSidekick_DefaultCycleCap(t *testing.T) {
	worker := mockmodel.New("worker").WithFallback(mockmodel.Reply("not sure"))
	evaluator := mockmodel.New("evaluator").WithFallback(verdict("No.", false, false))
	a := newSidekick(t, worker, evaluator)

	reply, err := a.Run(context.Background(), "bob_1", "Solve it")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxEvaluationCycles, evaluator.Calls())
	assert.True(t, reply.UserInputNeeded)
}

func TestSidekick_WorkerFailureSkipsEvaluation(t *testing.T) {
	worker := mockmodel.New("worker", mockmodel.Fail(errors.New("timeout")))
	evaluator := mockmodel.New("evaluator")
	a := newSidekick(t, worker, evaluator)

	reply, err := a.Run(context.Background(), "bob_1", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply.Content, graph.ErrorMessagePrefix)
	assert.Contains(t, reply.Error, "timeout")
	assert.Equal(t, 0, evaluator.Calls())
}

func TestSidekick_InvalidVerdictEndsRun(t *testing.T) {
	worker := mockmodel.New("worker", mockmodel.Reply("Paris"))
	evaluator := mockmodel.New("evaluator", mockmodel.Reply(`{"feedback":"missing flags"}`))
	a := newSidekick(t, worker, evaluator)

	reply, err := a.Run(context.Background(), "bob_1", "Capital?")
	require.NoError(t, err)
	assert.Contains(t, reply.Content, graph.ErrorMessagePrefix)
	assert.Contains(t, reply.Error, "missing field success_criteria_met")
	assert.Equal(t, 1, worker.Calls())
}

type lookupInput struct {
	Topic string `json:"topic"`
}

func TestSidekick_ToolPath(t *testing.T) {
	lookup := function.NewFunctionTool(func(_ context.Context, in lookupInput) (string, error) {
		return "facts about " + in.Topic, nil
	}, function.WithName("lookup"), function.WithDescription("looks things up"))
	worker := mockmodel.New("worker",
		mockmodel.ToolCalls(model.NewToolCall("c1", "lookup", `{"topic":"go"}`)),
		mockmodel.Reply("Go is a language."),
	)
	evaluator := mockmodel.New("evaluator", verdict("Fine.", true, false))
	a := newSidekick(t, worker, evaluator, WithTools(lookup), WithToolPoolSize(2))

	reply, err := a.Run(context.Background(), "bob_1", "Tell me about go")
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.", reply.Content)

	msgs, err := a.Messages(context.Background(), "bob_1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "facts about go", msgs[2].Content)
	transcript := evaluator.Requests()[0].Messages[1].Content
	assert.Contains(t, transcript, "Assistant: [Tools use]")
	assert.NotContains(t, transcript, "facts about go")
}

func TestRouters(t *testing.T) {
	ctx := context.Background()
	call := model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{model.NewToolCall("c", "x", "{}")}}
	tests := []struct {
		name  string
		route graph.ConditionalFunc
		state graph.State
		want  string
	}{
		{"worker tool call", routeWorker, graph.State{graph.StateKeyMessages: []model.Message{call}}, NodeTools},
		{"worker answer", routeWorker, graph.State{graph.StateKeyMessages: []model.Message{model.NewAssistantMessage("a")}}, NodeEvaluator},
		{"worker failed", routeWorker, graph.State{graph.StateKeyLastError: "boom"}, graph.End},
		{"criteria met", routeEvaluation, graph.State{StateKeySuccessCriteriaMet: true}, graph.End},
		{"input needed", routeEvaluation, graph.State{StateKeyUserInputNeeded: true}, graph.End},
		{"evaluator failed", routeEvaluation, graph.State{graph.StateKeyLastError: "bad json"}, graph.End},
		{"rejected", routeEvaluation, graph.State{}, NodeWorker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.route(ctx, tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyVerdict(t *testing.T) {
	apply := applyVerdict(2)
	ctx := context.Background()

	update := apply(ctx, graph.State{}, Verdict{Feedback: "meh"})
	assert.Equal(t, 1, update[StateKeyEvaluationCycles])
	assert.Equal(t, false, update[StateKeyUserInputNeeded])
	msgs := update[graph.StateKeyMessages].([]model.Message)
	require.Len(t, msgs, 1)
	assert.Equal(t, EvaluatorName, msgs[0].Name)

	update = apply(ctx, graph.State{StateKeyEvaluationCycles: 1}, Verdict{Feedback: "meh"})
	assert.Equal(t, 2, update[StateKeyEvaluationCycles])
	assert.Equal(t, true, update[StateKeyUserInputNeeded])
	assert.Contains(t, update[StateKeyFeedback], "stopped after 2 evaluation cycles")

	update = apply(ctx, graph.State{StateKeyEvaluationCycles: 1}, Verdict{Feedback: "ok", SuccessCriteriaMet: true})
	assert.Equal(t, false, update[StateKeyUserInputNeeded])
	assert.Equal(t, "ok", update[StateKeyFeedback])
}

func TestStateSchema(t *testing.T) {
	defaults := StateSchema().Defaults()
	assert.Equal(t, DefaultSuccessCriteria, defaults[StateKeySuccessCriteria])
	assert.Equal(t, "", defaults[StateKeyFeedback])
	assert.Equal(t, false, defaults[StateKeySuccessCriteriaMet])
	assert.Equal(t, false, defaults[StateKeyUserInputNeeded])
	assert.Equal(t, 0, defaults[StateKeyEvaluationCycles])
	assert.Equal(t, []model.Message{}, defaults[graph.StateKeyMessages])

	in := runInput("hi", agent.RunOptions{})
	assert.Equal(t, DefaultSuccessCriteria, in[StateKeySuccessCriteria])
	in = runInput("hi", agent.NewRunOptions(agent.WithSuccessCriteria("short")))
	assert.Equal(t, "short", in[StateKeySuccessCriteria])
}

func TestFormatConversation(t *testing.T) {
	feedback := model.NewAssistantMessage(FeedbackPrefix + "too long")
	feedback.Name = EvaluatorName
	got := formatConversation([]model.Message{
		model.NewUserMessage("hi"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{model.NewToolCall("c", "x", "{}")}},
		model.NewToolMessage("c", "x", "raw"),
		model.NewAssistantMessage("hello"),
		feedback,
	})
	assert.Equal(t, "Conversation history:\n\n"+
		"User: hi\n"+
		"Assistant: [Tools use]\n"+
		"Assistant: hello\n"+
		"Evaluator: too long\n", got)
}
