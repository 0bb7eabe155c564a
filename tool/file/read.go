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

	"github.com/ledongthuc/pdf"
	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

type readFileRequest struct {
	FilePath  string `json:"file_path" jsonschema:"description=The path of the file to read, relative to the sandbox."`
	StartLine *int   `json:"start_line,omitempty" jsonschema:"description=The line number to start reading from."`
	NumLines  *int   `json:"num_lines,omitempty" jsonschema:"description=The maximum number of lines to read."`
}

// statFile resolves name and checks that it is a regular file within the size cap.
func (f *fileToolSet) statFile(name string) (string, error) {
	filePath, err := f.resolvePath(name)
	if err != nil {
		return "", err
	}
	stat, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no such file or directory: %s", name)
	}
	if err != nil {
		return "", fmt.Errorf("accessing file '%s': %w", name, err)
	}
	if stat.IsDir() {
		return "", fmt.Errorf("target path '%s' is a directory, not a file", name)
	}
	if stat.Size() > f.maxFileSize {
		return "", fmt.Errorf("file size %d exceeds the limit of %d bytes", stat.Size(), f.maxFileSize)
	}
	return filePath, nil
}

func (f *fileToolSet) readFile(_ context.Context, req readFileRequest) (string, error) {
	if req.StartLine != nil && *req.StartLine <= 0 {
		return "", fmt.Errorf("start line must be greater than 0, got %d", *req.StartLine)
	}
	if req.NumLines != nil && *req.NumLines <= 0 {
		return "", fmt.Errorf("number of lines must be greater than 0, got %d", *req.NumLines)
	}
	filePath, err := f.statFile(req.FilePath)
	if err != nil {
		return "", err
	}
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	if req.StartLine == nil && req.NumLines == nil {
		return string(contents), nil
	}

	lines := strings.Split(string(contents), "\n")
	startLine, numLines := 1, len(lines)
	if req.StartLine != nil {
		startLine = *req.StartLine
	}
	if req.NumLines != nil {
		numLines = *req.NumLines
	}
	if startLine > len(lines) {
		return "", fmt.Errorf("start line %d is out of range, total lines: %d", startLine, len(lines))
	}
	endLine := min(startLine+numLines-1, len(lines))
	return strings.Join(lines[startLine-1:endLine], "\n"), nil
}

func (f *fileToolSet) readFileTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.readFile,
		function.WithName("read_file"),
		function.WithDescription("Read file from disk. Optional 'start_line' and 'num_lines' select a "+
			"range of lines; by default the whole file is returned."),
	)
}

type readPDFRequest struct {
	FilePath string `json:"file_path" jsonschema:"description=The path of the PDF file, relative to the sandbox."`
}

func (f *fileToolSet) readPDF(_ context.Context, req readPDFRequest) (string, error) {
	filePath, err := f.statFile(req.FilePath)
	if err != nil {
		return "", err
	}
	file, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening pdf '%s': %w", req.FilePath, err)
	}
	defer file.Close()

	var text strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}
	if strings.TrimSpace(text.String()) == "" {
		return fmt.Sprintf("No text could be extracted from %s", req.FilePath), nil
	}
	return text.String(), nil
}

func (f *fileToolSet) readPDFTool() tool.CallableTool {
	return function.NewFunctionTool(
		f.readPDF,
		function.WithName("read_pdf"),
		function.WithDescription("Extract the plain text of a PDF file in the sandbox."),
	)
}
