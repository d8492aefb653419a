package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattshaw-dev/forge/tools/editstrategy"
)

type editInput struct {
	Path   string `json:"file_path"`
	OldStr string `json:"old_string"`
	NewStr string `json:"new_string"`
}

func (r *Registry) editTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[editInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	if params.OldStr == "" {
		return "", fmt.Errorf("old_str is required")
	}

	absPath, verr := ValidatePath(r.gate, params.Path, "edit")
	if verr != nil {
		if denied, ok := verr.(*DeniedError); ok {
			return deniedResult(denied.Message), nil
		}
		return "", verr
	}

	contentBytes, err := os.ReadFile(absPath)
	if err != nil {
		return failedResult(fmt.Sprintf("file not found: %s", params.Path)), nil
	}
	content := string(contentBytes)

	ok, newContent, strategy := editstrategy.ApplyEdit(content, params.OldStr, params.NewStr)
	if !ok {
		switch strategy {
		case "no_match":
			return failedResult(fmt.Sprintf("no match found for old_str in %s. Check for exact whitespace and indentation", params.Path)), nil
		default:
			return failedResult(fmt.Sprintf("old_str is ambiguous in %s (%s). Include more surrounding context to make the match unique", params.Path, strategy)), nil
		}
	}

	return "", &NeedsConfirmation{
		Tool:       "edit_file",
		Path:       params.Path,
		Preview:    content,
		NewContent: newContent,
		Execute: func() (string, error) {
			info, err := os.Stat(absPath)
			if err != nil {
				return "", fmt.Errorf("stat file: %w", err)
			}

			if err := AtomicWrite(absPath, []byte(newContent), info.Mode()); err != nil {
				return "", fmt.Errorf("write file: %w", err)
			}

			return successResult(map[string]any{
				"content":  fmt.Sprintf("Successfully edited %s", params.Path),
				"strategy": strategy,
			}), nil
		},
	}
}
