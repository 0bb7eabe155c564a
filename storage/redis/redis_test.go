//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Test that SetClientBuilder installs a custom builder and that the
// returned builder is actually used when invoked.
func TestSetGetClientBuilder(t *testing.T) {
	oldBuilder := GetClientBuilder()
	defer func() { SetClientBuilder(oldBuilder) }()

	invoked := false
	custom := func(opts ...ClientBuilderOpt) (redis.UniversalClient, error) {
		invoked = true
		return nil, nil
	}
	SetClientBuilder(custom)
	_, err := GetClientBuilder()(WithClientBuilderURL("redis://localhost:6379"))
	require.NoError(t, err)
	require.True(t, invoked, "custom builder was not invoked")
}

func TestDefaultClientBuilder_EmptyURL(t *testing.T) {
	_, err := DefaultClientBuilder()
	require.EqualError(t, err, "redis: url is empty")
}

func TestDefaultClientBuilder_InvalidURL(t *testing.T) {
	_, err := DefaultClientBuilder(WithClientBuilderURL("127.0.0.1:6379"))
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "redis: parse url 127.0.0.1:6379:"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(),
		WithClientBuilderURL("redis://"+mr.Addr()+"/0"),
		WithClientName("agentapp"),
	)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := Connect(context.Background(), WithClientBuilderURL("redis://"+addr))
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis: ping")
}
