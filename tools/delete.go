package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

type deleteFileInput struct {
	Path string `json:"file_path"`
}

func (r *Registry) deleteFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	var params deleteFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	absPath, verr := ValidatePath(r.gate, params.Path, "delete")
	if verr != nil {
		if denied, ok := verr.(*DeniedError); ok {
			return deniedResult(denied.Message), nil
		}
		return "", verr
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return failedResult(fmt.Sprintf("file not found: %s", params.Path)), nil
	}
	if info.IsDir() {
		return failedResult(fmt.Sprintf("%s is a directory, refusing to delete", params.Path)), nil
	}

	return "", &NeedsConfirmation{
		Tool:    "delete_file",
		Path:    params.Path,
		Preview: "",
		Execute: func() (string, error) {
			if err := os.Remove(absPath); err != nil {
				return "", fmt.Errorf("delete file: %w", err)
			}
			return successResult(map[string]any{
				"content": fmt.Sprintf("Successfully deleted %s", params.Path),
			}), nil
		},
	}
}
