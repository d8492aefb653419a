package tools

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattshaw-dev/forge/safety"
)

// DeniedError signals that the safety gate refused an operation before any
// I/O took place. It carries the exact message the tool should surface to
// the model.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string { return e.Message }

// ValidatePath resolves requestedPath against the gate's working directory
// and consults the safety gate when it resolves outside the sandbox. A
// confirmation callback, if installed, may still approve the operation
// interactively; absent one (or on refusal) it returns a *DeniedError.
func ValidatePath(gate *safety.Gate, requestedPath, operation string) (string, error) {
	decision := gate.ClassifyPath(requestedPath, operation)
	if !decision.Dangerous {
		resolved, ok := resolveWithinGate(gate, requestedPath)
		if !ok {
			return "", &DeniedError{Message: fmt.Sprintf("Access denied: %s is outside working directory.", requestedPath)}
		}
		return resolved, nil
	}

	prompt := fmt.Sprintf(
		"OUTSIDE WORKING DIRECTORY\n\nOperation: %s\nPath: %s\nWorking directory: %s\n\nAllow this operation?",
		operation, requestedPath, gate.WorkDir(),
	)
	if approved, _ := gate.Confirm(prompt); approved {
		resolved, ok := resolveWithinGate(gate, requestedPath)
		if !ok {
			return "", &DeniedError{Message: fmt.Sprintf("Access denied: %s is outside working directory.", requestedPath)}
		}
		return resolved, nil
	}

	return "", &DeniedError{Message: fmt.Sprintf("Access denied: %s is outside working directory.", requestedPath)}
}

// resolveWithinGate resolves requestedPath to an absolute path, joining
// relative paths (including ones starting with "~", which is not expanded)
// against the working directory. The bool is false only for an empty path; a
// path outside the sandbox still resolves, it is the caller's job to gate it.
func resolveWithinGate(gate *safety.Gate, requestedPath string) (string, bool) {
	if requestedPath == "" {
		return "", false
	}
	if filepath.IsAbs(requestedPath) {
		return filepath.Clean(requestedPath), true
	}
	return filepath.Clean(filepath.Join(gate.WorkDir(), requestedPath)), true
}

// AtomicWrite writes content to a file atomically using a temp file + rename.
// The temp file is created in the same directory as the target to ensure rename works.
func AtomicWrite(targetPath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, ".forge-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	tmpPath = "" // prevent deferred cleanup
	return nil
}
