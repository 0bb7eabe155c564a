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
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"trpc.group/trpc-go/trpc-agent-app/agent/reactagent"
	"trpc.group/trpc-go/trpc-agent-app/runner"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List the threads of an agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("agent")
		username, _ := cmd.Flags().GetString("username")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return listThreads(cmd.Context(), a.runner, kind, username, cmd.OutOrStdout())
	},
}

var deleteThreadCmd = &cobra.Command{
	Use:   "delete-thread <thread-id>",
	Short: "Delete a thread and its checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("agent")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.runner.DeleteThread(cmd.Context(), kind, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Thread %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd, deleteThreadCmd)
	threadsCmd.Flags().String("agent", reactagent.Name, "Agent kind: reactive or sidekick")
	threadsCmd.Flags().StringP("username", "u", "", "Only list threads of this user")
	deleteThreadCmd.Flags().String("agent", reactagent.Name, "Agent kind: reactive or sidekick")
}

func listThreads(ctx context.Context, r runner.Runner, kind, username string, out io.Writer) error {
	prefix := ""
	if username != "" {
		prefix = username + "_"
	}
	threads, err := r.ListThreads(ctx, kind, prefix)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Fprintln(out, "No threads found.")
		return nil
	}
	for _, t := range threads {
		fmt.Fprintln(out, "- "+t)
	}
	return nil
}
