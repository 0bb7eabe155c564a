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
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

// EvaluatorName tags the feedback messages of the evaluator.
const EvaluatorName = "evaluator"

// FeedbackPrefix starts the feedback message the evaluator appends.
const FeedbackPrefix = "Evaluator Feedback on this answer: "

const workerPrompt = `You are a helpful assistant that can use tools to complete tasks.
You keep working on a task until either you have a question or clarification for the user, or the success criteria is met.
You have many tools to help you, including tools to search the web, look up Wikipedia, work with files in a sandbox and send push notifications.
The current date and time is %s.

This is the success criteria:
%s

You should reply either with a question for the user about this assignment, or with your final response.
If you have a question for the user, you need to reply by clearly stating your question. An example might be:

Question: please clarify whether you want a summary or a detailed answer

If you've finished, reply with the final answer, and don't ask a question; simply reply with the answer.`

const retryPrompt = `

Previously you thought you completed the assignment, but your reply was rejected because the success criteria was not met.
Here is the feedback on why this was rejected:
%s
With this feedback, please continue the assignment, ensuring that you meet the success criteria or have a question for the user.`

const evaluatorSystemPrompt = `You are an evaluator that determines if a task has been completed successfully by an Assistant.
Assess the Assistant's last response based on the given criteria. Respond with your feedback, and with your decision on whether the success criteria has been met,
and whether more input is needed from the user.`

const evaluatorUserPrompt = `You are evaluating a conversation between the User and Assistant. You decide what action to take based on the last response from the Assistant.

The entire conversation with the assistant, with the user's original request and all replies, is:
%s

The success criteria for this assignment is:
%s

And the final response from the Assistant that you are evaluating is:
%s

Respond with your feedback, and decide if the success criteria is met by this response.
Also, decide if more user input is required, either because the assistant has a question, needs clarification, or seems to be stuck and unable to answer without help.`

const evaluatorRepeatPrompt = `
Also, note that in a prior attempt from the Assistant, you provided this feedback: %s
If you're seeing the Assistant repeating the same mistakes, then consider responding that user input is required.`

// workerInstruction builds the worker system prompt from the state.
func workerInstruction(now func() time.Time) graph.InstructionFunc {
	return func(_ context.Context, state graph.State) string {
		prompt := fmt.Sprintf(workerPrompt,
			now().Format("2006-01-02 15:04:05"), state.String(StateKeySuccessCriteria))
		if feedback := state.String(StateKeyFeedback); feedback != "" {
			prompt += fmt.Sprintf(retryPrompt, feedback)
		}
		return prompt
	}
}

// evaluatorMessages builds the evaluator request from the state.
func evaluatorMessages(_ context.Context, state graph.State) []model.Message {
	user := fmt.Sprintf(evaluatorUserPrompt,
		formatConversation(state.Messages()),
		state.String(StateKeySuccessCriteria),
		state.String(graph.StateKeyLastResponse),
	)
	if feedback := state.String(StateKeyFeedback); feedback != "" {
		user += fmt.Sprintf(evaluatorRepeatPrompt, feedback)
	}
	return []model.Message{
		model.NewSystemMessage(evaluatorSystemPrompt),
		model.NewUserMessage(user),
	}
}

// formatConversation renders the history as a transcript. Tool results
// are left out and tool calls are shown as a marker.
func formatConversation(messages []model.Message) string {
	var b strings.Builder
	b.WriteString("Conversation history:\n\n")
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", msg.Content)
		case model.RoleAssistant:
			switch {
			case msg.Name == EvaluatorName:
				fmt.Fprintf(&b, "Evaluator: %s\n", strings.TrimPrefix(msg.Content, FeedbackPrefix))
			case msg.Content == "" && msg.HasToolCalls():
				b.WriteString("Assistant: [Tools use]\n")
			default:
				fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
			}
		}
	}
	return b.String()
}
