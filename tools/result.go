package tools

import "encoding/json"

// toJSON renders fields as pretty JSON, injecting status. Tool handlers use
// this for their happy-path return value; a genuine Go error is reserved for
// malformed input the registry itself should report.
func toJSON(status string, fields map[string]any) string {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = status
	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return `{"status":"FAILED","error":"internal: result marshal failed"}`
	}
	return string(b)
}

func successResult(fields map[string]any) string { return toJSON("SUCCESS", fields) }

func failedResult(errMsg string) string {
	return toJSON("FAILED", map[string]any{"error": errMsg})
}

func deniedResult(errMsg string) string {
	return toJSON("DENIED", map[string]any{"error": errMsg})
}
