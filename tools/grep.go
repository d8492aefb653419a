package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type searchFilesInput struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"file_path"`
	IncludeContents *bool  `json:"include_contents"`
}

const (
	maxHitsPerFile   = 5
	maxSearchMatches = 50
)

func (r *Registry) searchFilesTool(ctx context.Context, input json.RawMessage) (string, error) {
	var params searchFilesInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if params.Pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}

	re, err := regexp.Compile("(?i)" + params.Pattern)
	if err != nil {
		return failedResult(fmt.Sprintf("invalid regex: %s", err)), nil
	}

	path := params.Path
	if path == "" {
		path = "."
	}
	searchDir, verr := ValidatePath(r.gate, path, "search")
	if verr != nil {
		if denied, ok := verr.(*DeniedError); ok {
			return deniedResult(denied.Message), nil
		}
		return "", verr
	}

	includeContents := true
	if params.IncludeContents != nil {
		includeContents = *params.IncludeContents
	}

	var hits []string
	total := 0

	walkErr := filepath.WalkDir(searchDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(r.gate.WorkDir(), path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if re.MatchString(d.Name()) {
			total++
			if len(hits) < maxSearchMatches {
				hits = append(hits, fmt.Sprintf("%s (name match)", rel))
			}
		}

		if !includeContents || isBinaryExtension(filepath.Ext(d.Name())) {
			return nil
		}

		file, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 256*1024), 256*1024)
		lineNum := 0
		fileHits := 0
		for scanner.Scan() {
			lineNum++
			if fileHits >= maxHitsPerFile {
				break
			}
			line := scanner.Text()
			if re.MatchString(line) {
				fileHits++
				total++
				if len(hits) < maxSearchMatches {
					hits = append(hits, fmt.Sprintf("%s:%d: %s", rel, lineNum, truncateLine(line, 200)))
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != ctx.Err() {
		return failedResult(walkErr.Error()), nil
	}

	truncated := total > maxSearchMatches

	return successResult(map[string]any{
		"content":   strings.Join(hits, "\n"),
		"truncated": truncated,
		"count":     total,
	}), nil
}

func truncateLine(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
