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
	"os"
	"path/filepath"

	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

const fileNotFound = "File not found."

type fileLinkRequest struct {
	FileName string `json:"file_name" jsonschema:"description=Name of the file in the sandbox."`
}

// fileLink returns the public URL of a sandbox file. A missing file is a
// normal answer for the model, not an error.
func (f *fileToolSet) fileLink(_ context.Context, req fileLinkRequest) (string, error) {
	filePath, err := f.resolvePath(req.FileName)
	if err != nil || req.FileName == "" {
		return fileNotFound, nil
	}
	if _, err := os.Stat(filePath); err != nil {
		return fileNotFound, nil
	}
	return f.baseURL + filepath.ToSlash(filepath.Clean(req.FileName)), nil
}

func (f *fileToolSet) fileLinkTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.fileLink,
		function.WithName("get_file_link"),
		function.WithDescription("Use this tool to get a public link for a file"),
	)
}
