package tools

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	camelBoundary  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// normalizeToolName canonicalizes an incoming tool-call name: split before
// any uppercase letter that follows a lowercase letter or digit, lowercase,
// collapse runs of underscores,
// strip leading/trailing underscores. WriteFile, Write_File, and WRITE_FILE
// all normalize to write_file.
func normalizeToolName(name string) string {
	split := camelBoundary.ReplaceAllString(name, "${1}_${2}")
	lower := strings.ToLower(split)
	collapsed := underscoreRuns.ReplaceAllString(lower, "_")
	return strings.Trim(collapsed, "_")
}

// argumentAliases maps common variant argument-key spellings to the
// canonical key a tool handler expects.
var argumentAliases = map[string]string{
	"filePath":    "file_path",
	"file_path":   "file_path",
	"path":        "file_path",
	"filepath":    "file_path",
	"oldString":   "old_string",
	"old_string":  "old_string",
	"oldStr":      "old_string",
	"newString":   "new_string",
	"new_string":  "new_string",
	"newStr":      "new_string",
	"cmd":         "command",
	"command":     "command",
	"workingDir":  "working_dir",
	"working_dir": "working_dir",
	"cwd":         "working_dir",
	"timeoutSecs": "timeout",
	"timeout":     "timeout",
	"maxDepth":    "max_depth",
	"max_depth":   "max_depth",
	"includeContents": "include_contents",
}

func camelToSnake(key string) string {
	snake := camelBoundary.ReplaceAllString(key, "${1}_${2}")
	return strings.ToLower(snake)
}

// normalizeArguments rewrites every key of a JSON object argument payload
// using argumentAliases, falling back to a generic camelCase->snake_case
// rewrite for keys not in the table. Non-object payloads pass through
// unchanged.
func normalizeArguments(input json.RawMessage) json.RawMessage {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(input, &raw); err != nil {
		return input
	}

	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		canonical, ok := argumentAliases[k]
		if !ok {
			canonical = camelToSnake(k)
		}
		out[canonical] = v
	}

	b, err := json.Marshal(out)
	if err != nil {
		return input
	}
	return b
}
