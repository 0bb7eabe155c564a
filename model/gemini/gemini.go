//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a model.Model backed by the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// GoogleAPIKeyEnv is read when no API key is configured.
const GoogleAPIKeyEnv = "GOOGLE_API_KEY"

const functionToolType = "function"

// Model implements the model.Model interface for the Gemini API.
type Model struct {
	client *genai.Client
	name   string
}

type options struct {
	apiKey        string
	clientOptions *genai.ClientConfig
}

// Option configures the model.
type Option func(*options)

// WithAPIKey sets the API key.
// APIKey priority: WithClientOptions > WithAPIKey > GOOGLE_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithClientOptions sets the genai client config, e.g. HTTPOptions.BaseURL.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(o *options) {
		c := *clientOptions
		o.clientOptions = &c
	}
}

// New creates a model for the named Gemini model.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := &options{
		apiKey:        os.Getenv(GoogleAPIKeyEnv),
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.clientOptions.APIKey == "" {
		o.clientOptions.APIKey = o.apiKey
	}
	if o.clientOptions.APIKey == "" {
		return nil, fmt.Errorf("%s is not provided", GoogleAPIKeyEnv)
	}
	if o.clientOptions.Backend == genai.BackendUnspecified {
		o.clientOptions.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, o.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Model{client: client, name: name}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.name,
		Provider: "gemini",
	}
}

// GenerateContent implements the model.Model interface.
// API failures are reported as a response carrying an Error.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	contents, system := convertMessages(request.Messages)
	config := buildConfig(request, system)
	result, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return model.Single(model.NewErrorResponse(model.ErrorTypeAPIError, err.Error())), nil
	}
	return model.Single(convertResponse(m.name, result)), nil
}

func buildConfig(request *model.Request, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		t := float32(*request.Temperature)
		config.Temperature = &t
	}
	if request.TopP != nil {
		p := float32(*request.TopP)
		config.TopP = &p
	}
	if len(request.Stop) > 0 {
		config.StopSequences = request.Stop
	}
	if declarations := convertTools(request.Tools); len(declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}
	if so := request.StructuredOutput; so != nil && so.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = convertSchema(so.Schema)
	}
	return config
}

// convertMessages splits the system instruction from the turns. Gemini
// calls the assistant "model" and expects tool results in user turns.
func convertMessages(messages []model.Message) ([]*genai.Content, string) {
	var system []string
	var contents []*genai.Content
	add := func(role genai.Role, part *genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == string(role) {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, &genai.Content{Role: string(role), Parts: []*genai.Part{part}})
	}
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		case model.RoleAssistant:
			if msg.Content != "" {
				add(genai.RoleModel, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				add(genai.RoleModel, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Function.Name,
					Args: toolArgs(call.Function.Arguments),
				}})
			}
		case model.RoleTool:
			add(genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolID,
				Name:     msg.ToolName,
				Response: map[string]any{"output": msg.Content},
			}})
		default:
			if msg.Content != "" {
				add(genai.RoleUser, &genai.Part{Text: msg.Content})
			}
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func toolArgs(arguments string) map[string]any {
	args := map[string]any{}
	if arguments == "" {
		return args
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return map[string]any{"input": arguments}
	}
	return args
}

// convertTools sorts by name so requests are deterministic.
func convertTools(tools map[string]tool.Tool) []*genai.FunctionDeclaration {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	var declarations []*genai.FunctionDeclaration
	for _, name := range names {
		declaration := tools[name].Declaration()
		fd := &genai.FunctionDeclaration{
			Name:        declaration.Name,
			Description: declaration.Description,
		}
		if declaration.InputSchema != nil && len(declaration.InputSchema.Properties) > 0 {
			fd.Parameters = convertSchema(declaration.InputSchema)
		}
		declarations = append(declarations, fd)
	}
	return declarations
}

func convertSchema(s *tool.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	schema := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		schema.Items = convertSchema(s.Items)
	default:
		schema.Type = genai.TypeObject
	}
	if len(s.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			schema.Properties[name] = convertSchema(prop)
		}
	}
	return schema
}

func convertResponse(name string, result *genai.GenerateContentResponse) *model.Response {
	response := &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		Created:   time.Now().Unix(),
		Model:     name,
		Timestamp: time.Now(),
		Done:      true,
	}
	if result == nil {
		return response
	}
	for i, candidate := range result.Candidates {
		msg := model.Message{Role: model.RoleAssistant}
		var text []string
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					text = append(text, part.Text)
				}
				if fc := part.FunctionCall; fc != nil {
					msg.ToolCalls = append(msg.ToolCalls, convertFunctionCall(fc))
				}
			}
		}
		msg.Content = strings.Join(text, "")
		choice := model.Choice{Index: i, Message: msg}
		if candidate.FinishReason != "" {
			reason := strings.ToLower(string(candidate.FinishReason))
			choice.FinishReason = &reason
		}
		response.Choices = append(response.Choices, choice)
	}
	if u := result.UsageMetadata; u != nil {
		response.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return response
}

// convertFunctionCall gives calls without an ID a unique one; tool results
// are matched to calls by ID.
func convertFunctionCall(fc *genai.FunctionCall) model.ToolCall {
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	arguments := "{}"
	if len(fc.Args) > 0 {
		if raw, err := json.Marshal(fc.Args); err == nil {
			arguments = string(raw)
		}
	}
	return model.ToolCall{
		ID:   id,
		Type: functionToolType,
		Function: model.FunctionDefinitionParam{
			Name:      fc.Name,
			Arguments: arguments,
		},
	}
}
