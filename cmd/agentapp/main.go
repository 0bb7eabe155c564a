//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command agentapp serves the conversational agents over HTTP and offers
// a terminal chat and thread administration.
package main

func main() {
	Execute()
}
