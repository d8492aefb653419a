package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type listDirectoryInput struct {
	Path     string `json:"file_path"`
	MaxDepth int    `json:"max_depth"`
}

func (r *Registry) listDirectoryTool(ctx context.Context, input json.RawMessage) (string, error) {
	var params listDirectoryInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	path := params.Path
	if path == "" {
		path = "."
	}
	dir, err := ValidatePath(r.gate, path, "list")
	if err != nil {
		if denied, ok := err.(*DeniedError); ok {
			return deniedResult(denied.Message), nil
		}
		return "", err
	}

	maxDepth := params.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	info, err := os.Stat(dir)
	if err != nil {
		return failedResult(fmt.Sprintf("directory not found: %s", path)), nil
	}
	if !info.IsDir() {
		return failedResult(fmt.Sprintf("not a directory: %s", path)), nil
	}

	var b strings.Builder
	b.WriteString(filepath.Base(dir))
	b.WriteString("/\n")
	renderTree(&b, dir, "", 1, maxDepth)

	return successResult(map[string]any{"content": b.String()}), nil
}

// renderTree walks dir one level at a time, printing files-first then
// lexicographic (case-insensitive), recursing into subdirectories up to
// maxDepth.
func renderTree(b *strings.Builder, dir, prefix string, depth, maxDepth int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type item struct {
		entry os.DirEntry
		info  os.FileInfo
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() && shouldSkipDir(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{e, info})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].entry.IsDir() != items[j].entry.IsDir() {
			return !items[i].entry.IsDir() // files first
		}
		return strings.ToLower(items[i].entry.Name()) < strings.ToLower(items[j].entry.Name())
	})

	for i, it := range items {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(items)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}

		if it.entry.IsDir() {
			b.WriteString(fmt.Sprintf("%s%s%s/\n", prefix, connector, it.entry.Name()))
			if depth < maxDepth {
				renderTree(b, filepath.Join(dir, it.entry.Name()), childPrefix, depth+1, maxDepth)
			}
			continue
		}

		b.WriteString(fmt.Sprintf("%s%s%-32s %8s  %s\n",
			prefix, connector, it.entry.Name(), formatSize(it.info.Size()), it.info.ModTime().Format("2006-01-02 15:04")))
	}
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
