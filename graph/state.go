//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

const (
	// StateKeyMessages is the key of the conversation history.
	// It is appended to by every node and never replaced.
	StateKeyMessages = "messages"
	// StateKeyLastResponse is the key of the content of the last assistant reply.
	StateKeyLastResponse = "last_response"
	// StateKeyLastError is the key of the last recovered node failure.
	// It is empty when the last model call succeeded.
	StateKeyLastError = "last_error"
)

// State represents the state that flows through the graph.
// This is the shared data structure that flows between nodes.
type State map[string]any

// Clone creates a shallow copy of the state.
// Reducers never mutate their inputs, so sharing values is safe.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Messages returns the conversation history held by the state.
func (s State) Messages() []model.Message {
	msgs, _ := s[StateKeyMessages].([]model.Message)
	return msgs
}

// LastMessage returns the newest message, if any.
func (s State) LastMessage() (model.Message, bool) {
	msgs := s.Messages()
	if len(msgs) == 0 {
		return model.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// String returns the string field key, or "" when it is unset.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Bool returns the bool field key, or false when it is unset.
func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// Int returns the int field key, or 0 when it is unset.
func (s State) Int(key string) int {
	v, _ := s[key].(int)
	return v
}

// StateReducer is a function that determines how state updates are merged.
// It takes existing and new values and returns the merged result.
type StateReducer func(existing, update any) any

// StateField defines a field in the state schema with its type and reducer.
type StateField struct {
	Type    reflect.Type
	Reducer StateReducer
	Default func() any
}

// StateSchema defines the structure and behavior of graph state.
type StateSchema struct {
	mu     sync.RWMutex
	Fields map[string]StateField
}

// NewStateSchema creates a new state schema.
func NewStateSchema() *StateSchema {
	return &StateSchema{
		Fields: make(map[string]StateField),
	}
}

// AddField adds a field to the state schema.
func (s *StateSchema) AddField(name string, field StateField) *StateSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field.Reducer == nil {
		field.Reducer = DefaultReducer
	}
	s.Fields[name] = field
	return s
}

// Defaults returns a state holding the default of every field that has one.
func (s *StateSchema) Defaults() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(State, len(s.Fields))
	for name, field := range s.Fields {
		if field.Default != nil {
			state[name] = field.Default()
		}
	}
	return state
}

// ApplyUpdate merges update into currentState with the declared reducers
// and returns the merged state. A nil value in update means no change,
// and a key without a field definition replaces.
func (s *StateSchema) ApplyUpdate(currentState State, update State) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := currentState.Clone()
	for key, updateValue := range update {
		if updateValue == nil {
			continue
		}
		field, exists := s.Fields[key]
		if !exists {
			result[key] = updateValue
			continue
		}
		currentValue, hasCurrentValue := result[key]
		if !hasCurrentValue && field.Default != nil {
			currentValue = field.Default()
		}
		result[key] = field.Reducer(currentValue, updateValue)
	}
	return result
}

// Restore decodes a state read back from storage, where values are generic
// JSON types, into the typed fields of the schema. Unknown keys are kept
// as they are and missing fields take their default.
func (s *StateSchema) Restore(raw map[string]any) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(State, len(s.Fields)+len(raw))
	for key, value := range raw {
		state[key] = value
	}
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field := s.Fields[name]
		value, ok := raw[name]
		if !ok || value == nil {
			if field.Default != nil {
				state[name] = field.Default()
			} else {
				delete(state, name)
			}
			continue
		}
		if field.Type == nil {
			continue
		}
		decoded, err := decodeField(value, field.Type)
		if err != nil {
			return nil, fmt.Errorf("restore field %s: %w", name, err)
		}
		state[name] = decoded
	}
	return state, nil
}

func decodeField(value any, typ reflect.Type) (any, error) {
	target := reflect.New(typ)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  target.Interface(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(value); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

// MessagesStateSchema creates a state schema for message-based workflows:
// messages, last_response and last_error.
func MessagesStateSchema() *StateSchema {
	schema := NewStateSchema()
	schema.AddField(StateKeyMessages, StateField{
		Type:    reflect.TypeOf([]model.Message{}),
		Reducer: MessageReducer,
		Default: func() any { return []model.Message{} },
	})
	schema.AddField(StateKeyLastResponse, StateField{
		Type:    reflect.TypeOf(""),
		Reducer: DefaultReducer,
		Default: func() any { return "" },
	})
	schema.AddField(StateKeyLastError, StateField{
		Type:    reflect.TypeOf(""),
		Reducer: DefaultReducer,
		Default: func() any { return "" },
	})
	return schema
}
