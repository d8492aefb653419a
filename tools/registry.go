// Package tools provides the tool registry and implementations for file operations,
// shell execution, and codebase exploration, with path sandboxing for security.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mattshaw-dev/forge/llm"
	"github.com/mattshaw-dev/forge/safety"
)

// ToolFunc is the signature for tool implementations.
type ToolFunc func(ctx context.Context, input json.RawMessage) (string, error)

type toolEntry struct {
	name   string
	fn     ToolFunc
	def    llm.ToolDef
	schema *jsonschema.Schema
}

// Registry holds all available tools and dispatches execution.
type Registry struct {
	tools         []toolEntry
	workDir       string
	gate          *safety.Gate
	exploreFunc   ExploreFunc
	taskCallbacks TaskCallbacks
	logger        zerolog.Logger
}

// NewRegistry creates a registry and registers all built-in tools. The
// safety gate starts with no confirmation callback installed (deny by
// default); wire one in with SetConfirm once a host UI is available.
func NewRegistry(workDir string) *Registry {
	r := &Registry{workDir: workDir, gate: safety.New(workDir, nil), logger: zerolog.Nop()}
	r.registerBuiltins()
	return r
}

// SetConfirm installs the confirmation callback used by the safety gate for
// dangerous commands and out-of-sandbox paths.
func (r *Registry) SetConfirm(confirm safety.ConfirmFunc) {
	r.gate.SetConfirm(confirm)
}

// SetLogger installs a structured logger for dispatch-level diagnostics.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

func (r *Registry) register(name, description string, schema json.RawMessage, fn ToolFunc) {
	compiled, err := jsonschema.CompileString(name+".schema.json", string(schema))
	if err != nil {
		// A malformed built-in schema is a programming error, not a runtime
		// condition a caller can react to; skip validation for this tool
		// rather than panicking the whole registry.
		compiled = nil
	}
	entry := toolEntry{
		name:   name,
		fn:     fn,
		schema: compiled,
		def: llm.ToolDef{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        name,
				Description: description,
				Parameters:  schema,
			},
		},
	}
	// A later registration under the same name replaces the earlier one in place.
	for i, t := range r.tools {
		if t.name == name {
			r.tools[i] = entry
			return
		}
	}
	r.tools = append(r.tools, entry)
}

// Execute normalizes the tool name and argument keys, validates against the
// tool's JSON schema, and dispatches to the matching handler.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	entry, ok := r.lookup(name)
	if !ok {
		r.logger.Warn().Str("tool", name).Msg("unknown tool requested")
		return "", fmt.Errorf("unknown tool %q; registered tools: %s", name, r.names())
	}

	normalized := normalizeArguments(input)
	r.logger.Debug().Str("tool", entry.name).Msg("dispatching tool call")

	if entry.schema != nil {
		var decoded any
		if err := json.Unmarshal(normalized, &decoded); err == nil {
			if verr := entry.schema.Validate(decoded); verr != nil {
				provided := []string{}
				if obj, ok := decoded.(map[string]any); ok {
					for k := range obj {
						provided = append(provided, k)
					}
				}
				sort.Strings(provided)
				return toJSON("FAILED", map[string]any{
					"error":              fmt.Sprintf("invalid arguments for %s: %s", entry.name, verr),
					"provided_arguments": provided,
					"hint":               fmt.Sprintf("check argument names and types against the %s parameter schema", entry.name),
				}), nil
			}
		}
	}

	return entry.fn(ctx, normalized)
}

// lookup finds a tool by its normalized name, falling back to the original
// (un-normalized) name.
func (r *Registry) lookup(name string) (toolEntry, bool) {
	normalized := normalizeToolName(name)
	for _, t := range r.tools {
		if t.name == normalized {
			return t, true
		}
	}
	for _, t := range r.tools {
		if t.name == name {
			return t, true
		}
	}
	return toolEntry{}, false
}

func (r *Registry) names() string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.name
	}
	b, _ := json.Marshal(names)
	return string(b)
}

// IsReadOnly returns true for tools that neither modify the filesystem nor ask
// for user confirmation, so a batch of them may be dispatched concurrently.
// write_tasks changes no file but needs confirmation, so it is not included.
func (r *Registry) IsReadOnly(name string) bool {
	switch normalizeToolName(name) {
	case "glob", "search_files", "list_directory", "read_file", "explore", "update_task", "read_tasks":
		return true
	default:
		return false
	}
}

// Definitions returns tool definitions in stable registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.def
	}
	return defs
}

// registerReadOnlyTools registers the read-only tools (glob, search_files,
// list_directory, read_file). Shared by both the full registry and the
// read-only registry used by the explore sub-agent.
func (r *Registry) registerReadOnlyTools() {
	r.register("glob",
		`Fast file pattern matching tool. Supports glob patterns like "**/*.go" or "src/**/*.ts". Returns matching file paths relative to working directory, sorted alphabetically. Use this tool when you need to find files by name patterns. Prefer this over bash find or ls commands.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {
					"type": "string",
					"description": "Glob pattern to match files (e.g., '**/*.go', 'src/**/*.ts')"
				},
				"path": {
					"type": "string",
					"description": "Directory to search within, relative to the working directory. Defaults to the working directory root."
				}
			},
			"required": ["pattern"]
		}`),
		r.globTool,
	)

	r.register("search_files",
		`Search file names and contents using a case-insensitive RE2 regex. Reports name matches always and content matches for non-binary files, up to 5 hits per file and 50 matches overall. ALWAYS use this tool for content search — never use bash grep or rg. Note: RE2 does not support lookaheads or lookbehinds. Literal braces need escaping (use "interface\\{\\}" to find "interface{}" in Go code).`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {
					"type": "string",
					"description": "RE2 regular expression to search for"
				},
				"file_path": {
					"type": "string",
					"description": "Directory to search in (default: working directory)"
				},
				"include_contents": {
					"type": "boolean",
					"description": "Whether to also search file contents, not just names (default: true)"
				}
			},
			"required": ["pattern"]
		}`),
		r.searchFilesTool,
	)

	r.register("list_directory",
		`List a directory as a tree, with per-entry size, modification time, and directory markers. Hidden, VCS, and build-artifact directories are excluded automatically. Use glob to find files by pattern instead.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "Directory path to list (default: working directory)"
				},
				"max_depth": {
					"type": "integer",
					"description": "Maximum recursion depth (default: 10)"
				}
			}
		}`),
		r.listDirectoryTool,
	)

	r.register("read_file",
		`Read file contents with line numbers (cat -n format, 1-indexed). Use start_line/end_line for large files to read specific sections. Can only read files, not directories — use list_directory for directories. Read multiple files in parallel when you need to understand several files at once. Always use this tool instead of bash cat, head, or tail.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "File path to read"
				},
				"start_line": {
					"type": "integer",
					"description": "First line to read (1-indexed, default: 1)"
				},
				"end_line": {
					"type": "integer",
					"description": "Last line to read (1-indexed, inclusive)"
				}
			},
			"required": ["file_path"]
		}`),
		r.readTool,
	)
}

func (r *Registry) registerTaskTools() {
	r.register("write_tasks",
		`Create or replace the task list for planning multi-step work. User confirmation required.
Each task has:
- content: short imperative title (e.g. "Add auth middleware")
- description: detailed implementation plan with files to create/modify, code patterns to follow, and what "done" looks like
- active_form: (optional) continuous form for status display

After the user approves the plan, immediately mark task 1 as in_progress and begin implementation.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"tasks": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"content": {
								"type": "string",
								"description": "Short imperative title (e.g. 'Add auth middleware')"
							},
							"description": {
								"type": "string",
								"description": "Detailed description of what needs to be done. Include enough detail for another agent to understand and complete the task: specific files to create/modify, functions to change, code patterns to follow, and acceptance criteria."
							},
							"active_form": {
								"type": "string",
								"description": "Task description in continuous form (e.g. 'Adding auth middleware')"
							}
						},
						"required": ["content", "description"]
					},
					"description": "Array of tasks to create"
				}
			},
			"required": ["tasks"]
		}`),
		r.writeTasksTool,
	)

	r.register("update_task",
		`Update the status of a task by ID. Valid statuses: pending, in_progress, completed. Mark tasks in_progress when you start working on them and completed when done. Returns the updated task list.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"id": {
					"type": "integer",
					"description": "Task ID to update"
				},
				"status": {
					"type": "string",
					"enum": ["pending", "in_progress", "completed"],
					"description": "New status for the task"
				}
			},
			"required": ["id", "status"]
		}`),
		r.updateTaskTool,
	)

	r.register("read_tasks",
		`Read the current task list. Task state is already in your system prompt at the start of each turn — you rarely need this tool. Only useful after many turns of work when context may have been compacted.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
		r.readTasksTool,
	)
}

func (r *Registry) registerBuiltins() {
	r.registerReadOnlyTools()
	r.registerTaskTools()

	r.register("write_file",
		`Create or overwrite a file with the given content. Creates parent directories if needed. User confirmation required. ALWAYS prefer editing existing files over writing new ones — use edit_file to modify existing files. Never proactively create documentation files (*.md) or README files unless explicitly requested.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "File path to write"
				},
				"content": {
					"type": "string",
					"description": "Content to write to the file"
				}
			},
			"required": ["file_path", "content"]
		}`),
		r.writeTool,
	)

	r.register("edit_file",
		`Edit a file by replacing old_string with new_string. If old_string doesn't match exactly, a cascade of looser strategies (line-trimmed, block-anchor, indentation-flexible, escape-normalized) is tried before giving up. When editing text from read_file output, preserve the exact indentation — do not include line numbers from the read output. If the edit fails because old_string is ambiguous, include more surrounding context lines to make it unique. Always prefer editing existing files over creating new ones.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "File path to edit"
				},
				"old_string": {
					"type": "string",
					"description": "String to find and replace"
				},
				"new_string": {
					"type": "string",
					"description": "Replacement string"
				}
			},
			"required": ["file_path", "old_string", "new_string"]
		}`),
		r.editTool,
	)

	r.register("delete_file",
		`Delete a regular file. Refuses to delete directories. User confirmation required.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "File path to delete"
				}
			},
			"required": ["file_path"]
		}`),
		r.deleteFileTool,
	)

	r.register("run_command",
		`Execute a shell command in the working directory. Use for terminal operations like git, builds, tests, and other system commands. Do NOT use this for file operations (reading, writing, editing, searching) — use the dedicated tools instead. Specifically, do not use cat, head, tail, sed, awk, find, grep, or echo when a dedicated tool exists.

Before executing commands that create new directories or files, first verify the parent directory exists using list_directory. Always quote file paths containing spaces. Use && to chain sequential dependent commands. Prefer absolute paths and avoid cd when possible.

Dangerous commands require user confirmation and are denied outright with no confirmation callback installed. Default and max timeout: 120s. Output is truncated at 50,000 bytes.

Git safety: Never force-push, reset --hard, use --no-verify, or amend unless the user explicitly asks. Never use interactive flags (-i). Prefer staging specific files over "git add -A". Only commit when explicitly requested by the user.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {
					"type": "string",
					"description": "Shell command to execute"
				},
				"working_dir": {
					"type": "string",
					"description": "Directory to run the command in (must be inside the sandbox, default: working directory)"
				},
				"timeout": {
					"type": "integer",
					"description": "Timeout in seconds (default: 120, max: 120)"
				}
			},
			"required": ["command"]
		}`),
		r.bashTool,
	)

	r.register("explore",
		`Explore the codebase to answer broad questions by delegating to a focused sub-agent. The sub-agent has its own context and read-only tools (glob, search_files, list_directory, read_file). Use this for questions like "how does authentication work?", "what's the project structure?", or "find all API endpoints". Do NOT use this for direct tasks like editing files or running commands — only for research and exploration.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"task": {
					"type": "string",
					"description": "What to explore or research in the codebase"
				}
			},
			"required": ["task"]
		}`),
		r.exploreTool,
	)

}
