package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

type readInput struct {
	Path      string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (r *Registry) readTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[readInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	absPath, verr := ValidatePath(r.gate, params.Path, "read")
	if verr != nil {
		if denied, ok := verr.(*DeniedError); ok {
			return deniedResult(denied.Message), nil
		}
		return "", verr
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return failedResult(fmt.Sprintf("file not found: %s", params.Path)), nil
		}
		return failedResult(err.Error()), nil
	}
	if !utf8.Valid(data) {
		return failedResult(fmt.Sprintf("%s is not valid UTF-8 text (binary file)", params.Path)), nil
	}

	lines := strings.Split(string(data), "\n")
	// strings.Split on a trailing-newline file yields one trailing empty
	// element; drop it so line counts match what a reader expects.
	totalLines := len(lines)
	if totalLines > 0 && lines[totalLines-1] == "" {
		totalLines--
	}

	startLine := params.StartLine
	if startLine <= 0 {
		startLine = 1
	}
	if startLine > totalLines && totalLines > 0 {
		return failedResult(fmt.Sprintf("start_line %d is out of range (file has %d lines)", startLine, totalLines)), nil
	}
	endLine := params.EndLine
	if endLine <= 0 || endLine > totalLines {
		endLine = totalLines
	}

	var annotated strings.Builder
	var raw strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 256*1024), 256*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum < startLine || lineNum > endLine {
			continue
		}
		annotated.WriteString(fmt.Sprintf("%6d\t%s\n", lineNum, scanner.Text()))
		raw.WriteString(scanner.Text())
		raw.WriteByte('\n')
	}

	return successResult(map[string]any{
		"content":     annotated.String(),
		"raw_content": raw.String(),
		"total_lines": totalLines,
	}), nil
}
