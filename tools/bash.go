package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

type bashInput struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir"`
	Timeout    int    `json:"timeout"`
}

const (
	defaultCommandTimeout = 120
	maxCommandTimeout     = 120
	maxOutputBytes        = 50000
)

func (r *Registry) bashTool(ctx context.Context, input json.RawMessage) (string, error) {
	var params bashInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if params.Command == "" {
		return "", fmt.Errorf("command is required")
	}

	workDir := r.workDir
	if params.WorkingDir != "" {
		resolved, err := ValidatePath(r.gate, params.WorkingDir, "execute in")
		if err != nil {
			if denied, ok := err.(*DeniedError); ok {
				return deniedResult(denied.Message), nil
			}
			return "", err
		}
		workDir = resolved
	}

	decision := r.gate.ClassifyCommand(params.Command)
	if decision.Dangerous {
		prompt := fmt.Sprintf("DANGEROUS COMMAND\n\nCommand: %s\nReason: %s\n\nAllow this operation?", params.Command, decision.Reason)
		approved, reason := r.gate.Confirm(prompt)
		if !approved {
			msg := fmt.Sprintf("Command blocked: %s. %s", decision.Reason, reason)
			return deniedResult(msg), nil
		}
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	if timeout > maxCommandTimeout {
		timeout = maxCommandTimeout
	}

	return "", &NeedsConfirmation{
		Tool:    "run_command",
		Path:    params.Command,
		Preview: params.Command,
		Execute: func() (string, error) {
			return runCommand(ctx, params.Command, workDir, timeout)
		},
	}
}

func runCommand(ctx context.Context, command, workDir string, timeoutSeconds int) (string, error) {
	timeoutDur := time.Duration(timeoutSeconds) * time.Second
	// Cancelling the run does not stop a command already started; only the timeout does.
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeoutDur)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "bash", "-c", command)
	}
	cmd.Dir = workDir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()

	output := buf.String()
	truncated := false
	if len(output) > maxOutputBytes {
		output = output[:maxOutputBytes]
		truncated = true
	}
	if truncated {
		output += "\n[output truncated at 50000 bytes]"
	}

	if execCtx.Err() == context.DeadlineExceeded {
		return toJSON("FAILED", map[string]any{
			"error":   fmt.Sprintf("command timed out after %ds", timeoutSeconds),
			"content": output,
		}), nil
	}
	if runErr != nil {
		exitCode := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return toJSON("FAILED", map[string]any{
			"error":     fmt.Sprintf("exit code %d", exitCode),
			"content":   output,
			"exit_code": exitCode,
		}), nil
	}

	return successResult(map[string]any{
		"content":   output,
		"exit_code": 0,
	}), nil
}
