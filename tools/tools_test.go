package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	// Create some test files
	os.WriteFile(filepath.Join(dir, "hello.go"), []byte("package main\n\nfunc main() {}\n"), 0644)
	os.WriteFile(filepath.Join(dir, "hello_test.go"), []byte("package main\n\nfunc TestMain() {}\n"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "nested.go"), []byte("package sub\n\nvar x = 42\n"), 0644)
	os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# Hello\nWorld\n"), 0644)
	return dir
}

func TestGlobTool(t *testing.T) {
	dir := setupTestDir(t)
	r := NewRegistry(dir)

	tests := []struct {
		name    string
		pattern string
		want    []string
		noMatch bool
	}{
		{"all go files", "**/*.go", []string{"hello.go", "hello_test.go", "sub/nested.go"}, false},
		{"test files only", "**/*_test.go", []string{"hello_test.go"}, false},
		{"top-level go files", "*.go", []string{"hello.go", "hello_test.go"}, false},
		{"nested only", "sub/*.go", []string{"sub/nested.go"}, false},
		{"no match", "**/*.rs", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, _ := json.Marshal(globInput{Pattern: tt.pattern})
			result, err := r.Execute(context.Background(), "glob", input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.noMatch {
				if !strings.Contains(result, "No files matched") {
					t.Errorf("expected no match message, got: %s", result)
				}
				return
			}
			for _, want := range tt.want {
				if !strings.Contains(result, want) {
					t.Errorf("expected %q in result, got: %s", want, result)
				}
			}
		})
	}
}

func TestSearchFilesTool(t *testing.T) {
	dir := setupTestDir(t)
	r := NewRegistry(dir)

	tests := []struct {
		name    string
		pattern string
		want    string
		noMatch bool
	}{
		{"find func", "func main", "hello.go:3", false},
		{"find var", "var x", "sub/nested.go:3", false},
		{"no match", "nonexistent_string_xyz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, _ := json.Marshal(searchFilesInput{Pattern: tt.pattern})
			result, err := r.Execute(context.Background(), "search_files", input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var decoded map[string]any
			if jerr := json.Unmarshal([]byte(result), &decoded); jerr != nil {
				t.Fatalf("result is not valid JSON: %v\n%s", jerr, result)
			}
			if decoded["status"] != "SUCCESS" {
				t.Fatalf("expected SUCCESS, got %v", decoded["status"])
			}
			content, _ := decoded["content"].(string)
			if tt.noMatch {
				if content != "" {
					t.Errorf("expected no matches, got: %s", content)
				}
				return
			}
			if !strings.Contains(content, tt.want) {
				t.Errorf("expected %q in result, got: %s", tt.want, content)
			}
		})
	}
}

func decodeResult(t *testing.T, result string) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal([]byte(result), &decoded); err != nil {
		t.Fatalf("result is not valid JSON: %v\n%s", err, result)
	}
	return decoded
}

func TestReadFileTool(t *testing.T) {
	dir := setupTestDir(t)
	r := NewRegistry(dir)

	tests := []struct {
		name      string
		path      string
		startLine int
		endLine   int
		wantLine  string
		wantRaw   string
		wantFail  bool
	}{
		{"read whole file", "hello.go", 0, 0, "func main()", "func main()", false},
		{"read line range", "hello.go", 1, 1, "package main", "package main", false},
		{"file not found", "nonexistent.txt", 0, 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, _ := json.Marshal(readInput{Path: tt.path, StartLine: tt.startLine, EndLine: tt.endLine})
			result, err := r.Execute(context.Background(), "read_file", input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			decoded := decodeResult(t, result)
			if tt.wantFail {
				if decoded["status"] != "FAILED" {
					t.Errorf("expected FAILED, got %v", decoded["status"])
				}
				return
			}
			if decoded["status"] != "SUCCESS" {
				t.Fatalf("expected SUCCESS, got %v: %v", decoded["status"], decoded["error"])
			}
			content, _ := decoded["content"].(string)
			raw, _ := decoded["raw_content"].(string)
			if !strings.Contains(content, tt.wantLine) {
				t.Errorf("expected %q in content, got: %s", tt.wantLine, content)
			}
			if !strings.Contains(raw, tt.wantRaw) {
				t.Errorf("expected %q in raw_content, got: %s", tt.wantRaw, raw)
			}
		})
	}
}

func TestListDirectoryTool(t *testing.T) {
	dir := setupTestDir(t)
	r := NewRegistry(dir)

	input, _ := json.Marshal(listDirectoryInput{})
	result, err := r.Execute(context.Background(), "list_directory", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	content, _ := decoded["content"].(string)
	for _, want := range []string{"hello.go", "sub/"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in result, got: %s", want, content)
		}
	}
}

func TestValidatePathOutsideSandbox(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	outsidePath := filepath.Join(os.TempDir(), "definitely_outside_forge_tests", "nope.txt")

	_, err := ValidatePath(r.gate, outsidePath, "read")
	if err == nil {
		t.Fatal("expected denial for path outside sandbox")
	}
	denied, ok := err.(*DeniedError)
	if !ok {
		t.Fatalf("expected *DeniedError, got %T", err)
	}
	if !strings.Contains(denied.Message, "is outside working directory") {
		t.Errorf("unexpected message: %s", denied.Message)
	}
}

func TestValidatePathInsideSandbox(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	for _, p := range []string{"foo.txt", "sub/foo.txt", filepath.Join(dir, "inside.txt")} {
		if _, err := ValidatePath(r.gate, p, "read"); err != nil {
			t.Errorf("unexpected error for %q: %v", p, err)
		}
	}
}

func TestWriteFileToolNeedsConfirmation(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	input, _ := json.Marshal(writeInput{Path: "newfile.txt", Content: "hello world"})
	_, err := r.Execute(context.Background(), "write_file", input)
	if err == nil {
		t.Fatal("expected NeedsConfirmation error")
	}

	confirm, ok := err.(*NeedsConfirmation)
	if !ok {
		t.Fatalf("expected *NeedsConfirmation, got %T: %v", err, err)
	}
	if confirm.Tool != "write_file" {
		t.Errorf("expected tool=write_file, got %s", confirm.Tool)
	}

	result, err := confirm.Execute()
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	decoded := decodeResult(t, result)
	content, _ := decoded["content"].(string)
	if !strings.Contains(content, "Successfully wrote") {
		t.Errorf("unexpected result: %s", result)
	}

	data, err := os.ReadFile(filepath.Join(dir, "newfile.txt"))
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected content: %s", string(data))
	}
}

func TestEditFileToolNeedsConfirmation(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello world"), 0644)
	r := NewRegistry(dir)

	input, _ := json.Marshal(editInput{Path: "test.txt", OldStr: "hello", NewStr: "goodbye"})
	_, err := r.Execute(context.Background(), "edit_file", input)
	if err == nil {
		t.Fatal("expected NeedsConfirmation error")
	}

	confirm, ok := err.(*NeedsConfirmation)
	if !ok {
		t.Fatalf("expected *NeedsConfirmation, got %T: %v", err, err)
	}

	result, err := confirm.Execute()
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	decoded := decodeResult(t, result)
	content, _ := decoded["content"].(string)
	if !strings.Contains(content, "Successfully edited") {
		t.Errorf("unexpected result: %s", result)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "test.txt"))
	if string(data) != "goodbye world" {
		t.Errorf("unexpected content: %s", string(data))
	}
}

func TestEditFileToolNoMatch(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello world"), 0644)
	r := NewRegistry(dir)

	input, _ := json.Marshal(editInput{Path: "test.txt", OldStr: "nonexistent", NewStr: "replacement"})
	result, err := r.Execute(context.Background(), "edit_file", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	if decoded["status"] != "FAILED" {
		t.Fatalf("expected FAILED, got %v", decoded["status"])
	}
}

func TestEditFileToolMultipleMatches(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("aaa\naaa\n"), 0644)
	r := NewRegistry(dir)

	input, _ := json.Marshal(editInput{Path: "test.txt", OldStr: "aaa", NewStr: "bbb"})
	result, err := r.Execute(context.Background(), "edit_file", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	if decoded["status"] != "FAILED" {
		t.Fatalf("expected FAILED for ambiguous match, got %v", decoded["status"])
	}
}

func TestDeleteFileTool(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("bye"), 0644)
	r := NewRegistry(dir)

	input, _ := json.Marshal(deleteFileInput{Path: "test.txt"})
	_, err := r.Execute(context.Background(), "delete_file", input)
	confirm, ok := err.(*NeedsConfirmation)
	if !ok {
		t.Fatalf("expected *NeedsConfirmation, got %T: %v", err, err)
	}
	if _, err := confirm.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "test.txt")); !os.IsNotExist(err) {
		t.Error("expected file to be removed")
	}
}

func TestDeleteFileToolRefusesDirectory(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "subdir"), 0755)
	r := NewRegistry(dir)

	input, _ := json.Marshal(deleteFileInput{Path: "subdir"})
	result, err := r.Execute(context.Background(), "delete_file", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	if decoded["status"] != "FAILED" {
		t.Fatalf("expected FAILED for directory delete, got %v", decoded["status"])
	}
}

func TestRunCommandToolNeedsConfirmation(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	input, _ := json.Marshal(bashInput{Command: "echo hello"})
	_, err := r.Execute(context.Background(), "run_command", input)
	if err == nil {
		t.Fatal("expected NeedsConfirmation error")
	}

	confirm, ok := err.(*NeedsConfirmation)
	if !ok {
		t.Fatalf("expected *NeedsConfirmation, got %T: %v", err, err)
	}
	if confirm.Tool != "run_command" {
		t.Errorf("expected tool=run_command, got %s", confirm.Tool)
	}

	result, err := confirm.Execute()
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	decoded := decodeResult(t, result)
	content, _ := decoded["content"].(string)
	if !strings.Contains(content, "hello") {
		t.Errorf("expected hello in output, got: %s", result)
	}
}

func TestRunCommandToolDangerousDenied(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	input, _ := json.Marshal(bashInput{Command: "rm -rf /tmp/x"})
	result, err := r.Execute(context.Background(), "run_command", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	if decoded["status"] != "DENIED" {
		t.Fatalf("expected DENIED, got %v", decoded["status"])
	}
	errMsg, _ := decoded["error"].(string)
	if !strings.Contains(errMsg, "Command blocked") || !strings.Contains(errMsg, "No confirmation callback available") {
		t.Errorf("unexpected denial message: %s", errMsg)
	}
}

func TestReadFileOutsideSandboxDenied(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	input, _ := json.Marshal(readInput{Path: "/etc/passwd"})
	result, err := r.Execute(context.Background(), "read_file", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	if decoded["status"] != "DENIED" {
		t.Fatalf("expected DENIED, got %v", decoded["status"])
	}
	errMsg, _ := decoded["error"].(string)
	if errMsg != "Access denied: /etc/passwd is outside working directory." {
		t.Errorf("unexpected denial message: %q", errMsg)
	}
}

func TestIsReadOnly(t *testing.T) {
	r := NewRegistry(t.TempDir())

	readOnlyTools := []string{"glob", "search_files", "list_directory", "read_file", "update_task", "read_tasks"}
	for _, name := range readOnlyTools {
		if !r.IsReadOnly(name) {
			t.Errorf("expected %s to be read-only", name)
		}
	}

	writeTools := []string{"write_file", "edit_file", "delete_file", "run_command", "write_tasks"}
	for _, name := range writeTools {
		if r.IsReadOnly(name) {
			t.Errorf("expected %s to NOT be read-only", name)
		}
	}
}

func TestToolNameNormalization(t *testing.T) {
	dir := setupTestDir(t)
	r := NewRegistry(dir)

	for _, variant := range []string{"ReadFile", "Read_File", "READ_FILE", "read_file"} {
		input, _ := json.Marshal(map[string]string{"file_path": "hello.go"})
		result, err := r.Execute(context.Background(), variant, input)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", variant, err)
		}
		decoded := decodeResult(t, result)
		if decoded["status"] != "SUCCESS" {
			t.Errorf("%s: expected SUCCESS, got %v", variant, decoded["status"])
		}
	}
}

func TestArgumentAliasNormalization(t *testing.T) {
	dir := setupTestDir(t)
	r := NewRegistry(dir)

	input, _ := json.Marshal(map[string]string{"filePath": "hello.go"})
	result, err := r.Execute(context.Background(), "read_file", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded := decodeResult(t, result)
	if decoded["status"] != "SUCCESS" {
		t.Errorf("expected SUCCESS via filePath alias, got %v", decoded["status"])
	}
}
