//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package file provides file operation tools for AI agents.
// Every tool works inside one sandbox directory; paths given by the model
// are relative to it and may not escape it.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

const (
	// ToolSetName names the file tool set.
	ToolSetName = "file"

	// defaultBaseDir is the default sandbox directory.
	defaultBaseDir = "sandbox"
	// defaultBaseURL is where the HTTP server publishes the sandbox.
	defaultBaseURL = "http://localhost:8000/public/"
	// defaultCreateDirMode is the default permission mode for directory (0755: rwxr-xr-x).
	defaultCreateDirMode = os.FileMode(0755)
	// defaultCreateFileMode is the default permission mode for file (0644: rw-r--r--).
	defaultCreateFileMode = os.FileMode(0644)
	// defaultMaxFileSize is the default maximum file size to read, which is 1MB.
	defaultMaxFileSize = 1024 * 1024
)

// Option is a functional option for configuring the file tool set.
type Option func(*fileToolSet)

// WithBaseDir sets the sandbox directory, default is "sandbox".
func WithBaseDir(baseDir string) Option {
	return func(f *fileToolSet) {
		f.baseDir = baseDir
	}
}

// WithBaseURL sets the public URL prefix used by get_file_link.
func WithBaseURL(baseURL string) Option {
	return func(f *fileToolSet) {
		f.baseURL = baseURL
	}
}

// WithCreateBaseDir creates the sandbox directory when it is missing.
func WithCreateBaseDir(create bool) Option {
	return func(f *fileToolSet) {
		f.createBaseDir = create
	}
}

// WithCreateDirMode sets the permission mode for creating directory, default is 0755 (rwxr-xr-x).
func WithCreateDirMode(m os.FileMode) Option {
	return func(f *fileToolSet) {
		f.createDirMode = m
	}
}

// WithCreateFileMode sets the permission mode for creating file, default is 0644 (rw-r--r--).
func WithCreateFileMode(m os.FileMode) Option {
	return func(f *fileToolSet) {
		f.createFileMode = m
	}
}

// WithMaxFileSize sets the maximum file size to read, default is 1MB.
func WithMaxFileSize(s int64) Option {
	return func(f *fileToolSet) {
		f.maxFileSize = s
	}
}

// fileToolSet implements the ToolSet interface for file operations.
type fileToolSet struct {
	baseDir        string
	baseURL        string
	createBaseDir  bool
	createDirMode  os.FileMode
	createFileMode os.FileMode
	maxFileSize    int64
	tools          []tool.CallableTool
}

// Tools implements the ToolSet interface.
func (f *fileToolSet) Tools(context.Context) []tool.CallableTool {
	return f.tools
}

// Close implements the ToolSet interface.
func (f *fileToolSet) Close() error {
	return nil
}

// Name implements the ToolSet interface.
func (f *fileToolSet) Name() string {
	return ToolSetName
}

// NewToolSet creates the file tool set with the provided options.
func NewToolSet(opts ...Option) (tool.ToolSet, error) {
	f := &fileToolSet{
		baseDir:        defaultBaseDir,
		baseURL:        defaultBaseURL,
		createDirMode:  defaultCreateDirMode,
		createFileMode: defaultCreateFileMode,
		maxFileSize:    defaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.baseDir = filepath.Clean(f.baseDir)
	if f.createBaseDir {
		if err := os.MkdirAll(f.baseDir, f.createDirMode); err != nil {
			return nil, fmt.Errorf("creating base directory '%s': %w", f.baseDir, err)
		}
	}
	stat, err := os.Stat(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("base directory '%s' does not exist: %w", f.baseDir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("base directory '%s' is not a directory", f.baseDir)
	}
	f.tools = []tool.CallableTool{
		f.readFileTool(),
		f.writeFileTool(),
		f.listDirectoryTool(),
		f.fileSearchTool(),
		f.copyFileTool(),
		f.moveFileTool(),
		f.deleteFileTool(),
		f.readPDFTool(),
		f.fileLinkTool(),
	}
	return f, nil
}

// resolvePath maps a model supplied path into the sandbox.
// Absolute paths and paths leaving the sandbox are rejected.
func (f *fileToolSet) resolvePath(relativePath string) (string, error) {
	if relativePath == "" {
		relativePath = "."
	}
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("access denied to %s: absolute paths are not allowed", relativePath)
	}
	cleaned := filepath.Clean(relativePath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("access denied to %s: path is outside of the sandbox", relativePath)
	}
	return filepath.Join(f.baseDir, cleaned), nil
}

// matchFiles matches files with the given pattern in the target path.
// It returns relative paths, without the "", "." and ".." entries.
func (f *fileToolSet) matchFiles(targetPath string, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	matches, err := doublestar.Glob(os.DirFS(targetPath), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("searching files with pattern '%s': %w", pattern, err)
	}
	files := matches[:0]
	for _, match := range matches {
		if match == "" || match == "." || match == ".." {
			continue
		}
		files = append(files, match)
	}
	return files, nil
}
