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
	"time"
)

// Error type constants for ResponseError.Type field.
const (
	ErrorTypeAPIError      = "api_error"
	ErrorTypeInvalidOutput = "invalid_output"
)

// ObjectTypeChatCompletion is the object type for chat completion responses.
const ObjectTypeChatCompletion = "chat.completion"

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`

	// Message is the message content.
	Message Message `json:"message"`

	// FinishReason is the reason the choice was finished.
	// "stop", "length", "tool_calls", etc.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens in the response.
	TotalTokens int `json:"total_tokens"`
}

// Response is the response from the model.
//
// The Error field represents API-level errors that occur after successful
// communication with the model service. Function-level errors returned by
// GenerateContent() indicate failures that prevent communication entirely.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`

	// Object describes the type of object returned (e.g., "chat.completion").
	Object string `json:"object"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model used to generate the response.
	Model string `json:"model"`

	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`

	// Usage contains token usage information.
	Usage *Usage `json:"usage,omitempty"`

	// Error contains API-level error information if the request failed.
	Error *ResponseError `json:"error,omitempty"`

	// Timestamp when this response was received.
	Timestamp time.Time `json:"timestamp"`

	// Done marks the final response of a generation.
	Done bool `json:"done"`
}

// ResponseError represents an error response from the API.
type ResponseError struct {
	// Message is the error message.
	Message string `json:"message"`

	// Type is the type of error.
	Type string `json:"type"`
}

// NewErrorResponse builds a final response that carries only an error.
func NewErrorResponse(errType, message string) *Response {
	return &Response{
		Object:    "error",
		Error:     &ResponseError{Type: errType, Message: message},
		Timestamp: time.Now(),
		Done:      true,
	}
}

// Single wraps one response in a closed channel, which is how the
// non-streaming adapters deliver results.
func Single(rsp *Response) <-chan *Response {
	ch := make(chan *Response, 1)
	ch <- rsp
	close(ch)
	return ch
}
