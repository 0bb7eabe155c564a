//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package anthropic provides a model.Model backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// DefaultMaxTokens is sent when the request does not set MaxTokens; the
// Messages API requires it.
const DefaultMaxTokens = 4096

const functionToolType = "function"

// Model implements the model.Model interface for the Anthropic API.
type Model struct {
	client  anthropic.Client
	name    string
	baseURL string
	apiKey  string
}

type options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries *int
	Options    []option.RequestOption
}

// Option is a function that configures an Anthropic model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.APIKey = key
	}
}

// WithBaseURL sets the base URL of the API.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.BaseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.HTTPClient = c
	}
}

// WithMaxRetries sets how often a failed request is retried.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.MaxRetries = &n
	}
}

// WithAnthropicOptions appends raw SDK request options.
func WithAnthropicOptions(opts ...option.RequestOption) Option {
	return func(o *options) {
		o.Options = append(o.Options, opts...)
	}
}

// New creates a model for the named Claude model.
func New(name string, opts ...Option) *Model {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	var clientOpts []option.RequestOption
	if o.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(o.HTTPClient))
	}
	if o.MaxRetries != nil {
		clientOpts = append(clientOpts, option.WithMaxRetries(*o.MaxRetries))
	}
	clientOpts = append(clientOpts, o.Options...)
	return &Model{
		client:  anthropic.NewClient(clientOpts...),
		name:    name,
		baseURL: o.BaseURL,
		apiKey:  o.APIKey,
	}
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.name,
		Provider: "anthropic",
	}
}

// GenerateContent implements the model.Model interface.
// API failures are reported as a response carrying an Error.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	params, err := m.buildParams(request)
	if err != nil {
		return nil, err
	}
	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.Single(model.NewErrorResponse(model.ErrorTypeAPIError, err.Error())), nil
	}
	return model.Single(convertResponse(message)), nil
}

func (m *Model) buildParams(request *model.Request) (anthropic.MessageNewParams, error) {
	maxTokens := int64(DefaultMaxTokens)
	if request.MaxTokens != nil {
		maxTokens = int64(*request.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.name),
		Messages:  convertMessages(request.Messages),
		MaxTokens: maxTokens,
		Tools:     convertTools(request.Tools),
	}
	system := systemPrompt(request.Messages)
	if so := request.StructuredOutput; so != nil && so.Schema != nil {
		instruction, err := structuredInstruction(so)
		if err != nil {
			return params, err
		}
		system = append(system, instruction)
	}
	for _, text := range system {
		params.System = append(params.System, anthropic.TextBlockParam{Text: text})
	}
	if request.Temperature != nil {
		params.Temperature = anthropic.Float(*request.Temperature)
	}
	if request.TopP != nil {
		params.TopP = anthropic.Float(*request.TopP)
	}
	if len(request.Stop) > 0 {
		params.StopSequences = request.Stop
	}
	return params, nil
}

// structuredInstruction asks for a bare JSON document; the Messages API
// has no response format parameter.
func structuredInstruction(so *model.StructuredOutput) (string, error) {
	schema, err := json.Marshal(so.Schema)
	if err != nil {
		return "", fmt.Errorf("marshal %s schema: %w", so.Name, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Respond with a single JSON object named %s", so.Name)
	if so.Description != "" {
		fmt.Fprintf(&b, " (%s)", so.Description)
	}
	fmt.Fprintf(&b, " that conforms to this JSON schema:\n%s\n", schema)
	b.WriteString("Output only the JSON object, without markdown or commentary.")
	return b.String(), nil
}

func systemPrompt(messages []model.Message) []string {
	var system []string
	for _, msg := range messages {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			system = append(system, msg.Content)
		}
	}
	return system
}

// convertMessages maps the history onto alternating user and assistant
// turns. Tool results travel as tool_result blocks of a user turn, and
// consecutive messages of the same side are merged into one turn.
func convertMessages(messages []model.Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	appendBlocks := func(role anthropic.MessageParamRole, blocks []anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, blocks...)
			return
		}
		result = append(result, anthropic.MessageParam{Role: role, Content: blocks})
	}
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			continue
		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, toolInput(call.Function.Arguments), call.Function.Name))
			}
			appendBlocks(anthropic.MessageParamRoleAssistant, blocks)
		case model.RoleTool:
			isError := strings.HasPrefix(msg.Content, "Error: ")
			appendBlocks(anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{
				anthropic.NewToolResultBlock(msg.ToolID, msg.Content, isError),
			})
		default:
			if msg.Content != "" {
				appendBlocks(anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				})
			}
		}
	}
	return result
}

// toolInput decodes call arguments; malformed JSON is passed as a string.
func toolInput(arguments string) any {
	if arguments == "" {
		return map[string]any{}
	}
	var input any
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return arguments
	}
	return input
}

// convertTools sorts by name so requests are deterministic.
func convertTools(tools map[string]tool.Tool) []anthropic.ToolUnionParam {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []anthropic.ToolUnionParam
	for _, name := range names {
		declaration := tools[name].Declaration()
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if s := declaration.InputSchema; s != nil {
			if len(s.Properties) > 0 {
				inputSchema.Properties = s.Properties
			}
			inputSchema.Required = s.Required
		}
		param := anthropic.ToolUnionParamOfTool(inputSchema, declaration.Name)
		if declaration.Description != "" && param.OfTool != nil {
			param.OfTool.Description = anthropic.String(declaration.Description)
		}
		result = append(result, param)
	}
	return result
}

func convertResponse(message *anthropic.Message) *model.Response {
	msg := model.Message{Role: model.RoleAssistant}
	var text []string
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			text = append(text, block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			arguments := "{}"
			if toolUse.Input != nil {
				if raw, err := json.Marshal(toolUse.Input); err == nil && string(raw) != "null" {
					arguments = string(raw)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:   toolUse.ID,
				Type: functionToolType,
				Function: model.FunctionDefinitionParam{
					Name:      toolUse.Name,
					Arguments: arguments,
				},
			})
		}
	}
	msg.Content = strings.Join(text, "")
	finishReason := string(message.StopReason)
	response := &model.Response{
		ID:        message.ID,
		Object:    model.ObjectTypeChatCompletion,
		Created:   time.Now().Unix(),
		Model:     string(message.Model),
		Choices:   []model.Choice{{Message: msg, FinishReason: &finishReason}},
		Timestamp: time.Now(),
		Done:      true,
	}
	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		response.Usage = &model.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
	}
	return response
}
