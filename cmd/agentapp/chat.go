//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/reactagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/sidekickagent"
	"trpc.group/trpc-go/trpc-agent-app/runner"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with an agent in the terminal",
	Long: `Reads one message per line from stdin and prints the agent's reply.
Type "exit" or send EOF to quit. Passing --thread resumes a conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("agent")
		username, _ := cmd.Flags().GetString("username")
		threadID, _ := cmd.Flags().GetString("thread")
		criteria, _ := cmd.Flags().GetString("success-criteria")
		if threadID == "" {
			threadID = username + "_" + uuid.NewString()
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return chat(ctx, a.runner, kind, threadID, criteria, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("agent", reactagent.Name, "Agent kind: reactive or sidekick")
	chatCmd.Flags().StringP("username", "u", "cli", "Username that prefixes new threads")
	chatCmd.Flags().StringP("thread", "t", "", "Thread to resume")
	chatCmd.Flags().String("success-criteria", "", "Success criteria of sidekick tasks")
}

// chat runs the read-reply loop until in is exhausted or "exit" is read.
func chat(ctx context.Context, r runner.Runner, kind, threadID, criteria string, in io.Reader, out io.Writer) error {
	handle, err := r.Setup(ctx, kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Thread %s with the %s agent. Type \"exit\" to quit.\n", threadID, kind)

	var opts []agent.RunOption
	if criteria != "" {
		opts = append(opts, agent.WithSuccessCriteria(criteria))
	}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		reply, err := r.Run(ctx, handle, threadID, line, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Content)
		if kind == sidekickagent.Name && reply.Feedback != "" {
			fmt.Fprintf(out, "[evaluator] %s\n", reply.Feedback)
		}
	}
}
