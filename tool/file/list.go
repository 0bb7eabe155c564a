//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

type listDirectoryRequest struct {
	DirPath string `json:"dir_path,omitempty" jsonschema:"description=Subdirectory to list, defaults to the sandbox root."`
}

func (f *fileToolSet) listDirectory(_ context.Context, req listDirectoryRequest) (string, error) {
	dirPath := req.DirPath
	if dirPath == "" {
		dirPath = "."
	}
	target, err := f.resolvePath(dirPath)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(target)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no such file or directory: %s", dirPath)
	}
	if err != nil {
		return "", fmt.Errorf("reading directory '%s': %w", dirPath, err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No files found in directory %s", dirPath), nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return strings.Join(names, "\n"), nil
}

func (f *fileToolSet) listDirectoryTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.listDirectory,
		function.WithName("list_directory"),
		function.WithDescription("List files and directories in a specified folder."),
	)
}

type fileSearchRequest struct {
	Pattern string `json:"pattern" jsonschema:"description=Glob pattern to match file names, e.g. *.txt or docs/**/*.md"`
	DirPath string `json:"dir_path,omitempty" jsonschema:"description=Subdirectory to search in, defaults to the sandbox root."`
}

func (f *fileToolSet) fileSearch(_ context.Context, req fileSearchRequest) (string, error) {
	dirPath := req.DirPath
	if dirPath == "" {
		dirPath = "."
	}
	target, err := f.resolvePath(dirPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no such file or directory: %s", dirPath)
	}
	// A bare name pattern matches at any depth.
	pattern := req.Pattern
	if pattern != "" && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	matches, err := f.matchFiles(target, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files found for pattern %s in directory %s", req.Pattern, dirPath), nil
	}
	return strings.Join(matches, "\n"), nil
}

func (f *fileToolSet) fileSearchTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.fileSearch,
		function.WithName("file_search"),
		function.WithDescription("Recursively search for files in a subdirectory that match the glob pattern."),
	)
}
