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
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

type writeFileRequest struct {
	FilePath string `json:"file_path" jsonschema:"description=Name of the file to write, relative to the sandbox."`
	Text     string `json:"text" jsonschema:"description=Text to write to the file."`
	Append   bool   `json:"append,omitempty" jsonschema:"description=Whether to append to an existing file."`
}

func (f *fileToolSet) writeFile(_ context.Context, req writeFileRequest) (string, error) {
	if req.FilePath == "" {
		return "", errors.New("file_path cannot be empty")
	}
	filePath, err := f.resolvePath(req.FilePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), f.createDirMode); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if req.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(filePath, flags, f.createFileMode)
	if err != nil {
		return "", fmt.Errorf("opening file '%s': %w", req.FilePath, err)
	}
	if _, err := file.WriteString(req.Text); err != nil {
		file.Close()
		return "", fmt.Errorf("writing to file '%s': %w", req.FilePath, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing file '%s': %w", req.FilePath, err)
	}
	return fmt.Sprintf("File written successfully to %s.", req.FilePath), nil
}

func (f *fileToolSet) writeFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.writeFile,
		function.WithName("write_file"),
		function.WithDescription("Write file to disk. Set 'append' to add to an existing file instead of replacing it."),
	)
}

type pathPairRequest struct {
	SourcePath      string `json:"source_path" jsonschema:"description=Path of the file to copy or move."`
	DestinationPath string `json:"destination_path" jsonschema:"description=Path to save the file to."`
}

func (f *fileToolSet) resolvePair(req pathPairRequest) (string, string, error) {
	src, err := f.resolvePath(req.SourcePath)
	if err != nil {
		return "", "", err
	}
	dst, err := f.resolvePath(req.DestinationPath)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("no such file or directory: %s", req.SourcePath)
	}
	if err := os.MkdirAll(filepath.Dir(dst), f.createDirMode); err != nil {
		return "", "", fmt.Errorf("creating directory: %w", err)
	}
	return src, dst, nil
}

func (f *fileToolSet) copyFile(_ context.Context, req pathPairRequest) (string, error) {
	src, dst, err := f.resolvePair(req)
	if err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.createFileMode)
	if err != nil {
		return "", fmt.Errorf("opening destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copying file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing destination: %w", err)
	}
	return fmt.Sprintf("File copied successfully from %s to %s.", req.SourcePath, req.DestinationPath), nil
}

func (f *fileToolSet) copyFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.copyFile,
		function.WithName("copy_file"),
		function.WithDescription("Create a copy of a file in a specified location."),
	)
}

func (f *fileToolSet) moveFile(_ context.Context, req pathPairRequest) (string, error) {
	src, dst, err := f.resolvePair(req)
	if err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving file: %w", err)
	}
	return fmt.Sprintf("File moved successfully from %s to %s.", req.SourcePath, req.DestinationPath), nil
}

func (f *fileToolSet) moveFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.moveFile,
		function.WithName("move_file"),
		function.WithDescription("Move or rename a file from one location to another."),
	)
}

type deleteFileRequest struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file to delete."`
}

func (f *fileToolSet) deleteFile(_ context.Context, req deleteFileRequest) (string, error) {
	if req.FilePath == "" {
		return "", errors.New("file_path cannot be empty")
	}
	filePath, err := f.resolvePath(req.FilePath)
	if err != nil {
		return "", err
	}
	stat, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no such file or directory: %s", req.FilePath)
	}
	if err != nil {
		return "", fmt.Errorf("accessing file '%s': %w", req.FilePath, err)
	}
	if stat.IsDir() {
		return "", fmt.Errorf("target path '%s' is a directory, not a file", req.FilePath)
	}
	if err := os.Remove(filePath); err != nil {
		return "", fmt.Errorf("deleting file: %w", err)
	}
	return fmt.Sprintf("File deleted successfully: %s.", req.FilePath), nil
}

func (f *fileToolSet) deleteFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.deleteFile,
		function.WithName("file_delete"),
		function.WithDescription("Delete a file."),
	)
}
