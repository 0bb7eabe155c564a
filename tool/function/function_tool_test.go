//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package function_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

type inputArgs struct {
	A int `json:"A" jsonschema:"description=First integer operand"`
	B int `json:"B" jsonschema:"description=Second integer operand"`
}

type outputArgs struct {
	Result int `json:"result"`
}

func sum(_ context.Context, args inputArgs) (outputArgs, error) {
	return outputArgs{Result: args.A + args.B}, nil
}

func TestFunctionTool_Call(t *testing.T) {
	fTool := function.NewFunctionTool(sum,
		function.WithName("sum"),
		function.WithDescription("Calculates the sum of two integers."))
	var _ tool.CallableTool = fTool

	args, err := json.Marshal(inputArgs{A: 2, B: 3})
	require.NoError(t, err)
	result, err := fTool.Call(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, outputArgs{Result: 5}, result)
}

func TestFunctionTool_Declaration(t *testing.T) {
	fTool := function.NewFunctionTool(sum, function.WithName("sum"), function.WithDescription("adds"))
	decl := fTool.Declaration()
	assert.Equal(t, "sum", decl.Name)
	assert.Equal(t, "adds", decl.Description)
	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
	assert.ElementsMatch(t, []string{"A", "B"}, decl.InputSchema.Required)
	assert.Equal(t, "First integer operand", decl.InputSchema.Properties["A"].Description)
	assert.Contains(t, decl.OutputSchema.Properties, "result")
}

func TestFunctionTool_InvalidArguments(t *testing.T) {
	fTool := function.NewFunctionTool(sum, function.WithName("sum"))
	_, err := fTool.Call(context.Background(), []byte(`{"A": "not a number"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments for sum")
}

func TestFunctionTool_EmptyArguments(t *testing.T) {
	fTool := function.NewFunctionTool(sum, function.WithName("sum"))
	result, err := fTool.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, outputArgs{}, result)
}

func TestFunctionTool_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	fTool := function.NewFunctionTool(func(context.Context, inputArgs) (string, error) {
		return "", boom
	}, function.WithName("fail"))
	_, err := fTool.Call(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, boom)
}
