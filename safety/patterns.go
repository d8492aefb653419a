package safety

import "regexp"

// dangerPattern pairs a compiled regex with a human-readable description of
// the danger it flags, surfaced verbatim in confirmation prompts and denial
// messages.
type dangerPattern struct {
	re     *regexp.Regexp
	reason string
}

var dangerousCommandPatterns = []dangerPattern{
	// File/directory deletion
	{regexp.MustCompile(`(?i)\brm\s+`), "removes files/directories"},
	{regexp.MustCompile(`(?i)\brm\b.*-.*r`), "recursively removes files/directories"},
	{regexp.MustCompile(`(?i)\brmdir\s+`), "removes directories"},
	{regexp.MustCompile(`(?i)\bdel\s+`), "deletes files (Windows)"},
	{regexp.MustCompile(`(?i)\brd\s+`), "removes directories (Windows)"},
	{regexp.MustCompile(`(?i)\brd\b.*/s`), "recursively removes directories (Windows)"},

	// Disk/partition operations
	{regexp.MustCompile(`(?i)\bmkfs\b`), "formats filesystem"},
	{regexp.MustCompile(`(?i)\bfdisk\b`), "modifies disk partitions"},
	{regexp.MustCompile(`(?i)\bdd\s+`), "low-level disk copy (can overwrite data)"},
	{regexp.MustCompile(`(?i)\bformat\s+`), "formats drive (Windows)"},

	// Permission/ownership changes
	{regexp.MustCompile(`(?i)\bchmod\s+.*777`), "sets world-writable permissions"},
	{regexp.MustCompile(`(?i)\bchown\s+`), "changes file ownership"},

	// System modification
	{regexp.MustCompile(`(?i)\bsudo\s+`), "runs with elevated privileges"},
	{regexp.MustCompile(`(?i)\bsu\s+`), "switches user"},
	{regexp.MustCompile(`(?i)>\s*/dev/sd[a-z]`), "writes directly to disk device"},
	{regexp.MustCompile(`(?i)\bmv\s+.*\s+/dev/null`), "moves files to /dev/null"},

	// Network operations that could be dangerous
	{regexp.MustCompile(`(?i)\bcurl\b.*\|\s*(ba)?sh`), "pipes remote content to shell"},
	{regexp.MustCompile(`(?i)\bwget\b.*\|\s*(ba)?sh`), "pipes remote content to shell"},

	// Git destructive operations
	{regexp.MustCompile(`(?i)\bgit\s+push\b.*--force`), "force pushes (can overwrite history)"},
	{regexp.MustCompile(`(?i)\bgit\s+push\b.*-f\b`), "force pushes (can overwrite history)"},
	{regexp.MustCompile(`(?i)\bgit\s+reset\b.*--hard`), "hard reset (discards changes)"},
	{regexp.MustCompile(`(?i)\bgit\s+clean\b.*-fd`), "removes untracked files and directories"},

	// Database operations
	{regexp.MustCompile(`(?i)\bDROP\s+(DATABASE|TABLE|SCHEMA)\b`), "drops database objects"},
	{regexp.MustCompile(`(?i)\bTRUNCATE\s+`), "truncates table data"},
	// unqualified DELETE FROM (no WHERE clause) is checked separately in
	// classifyCommand: RE2 has no negative lookahead, so "DELETE FROM ... no
	// WHERE anywhere after it" can't be expressed as a single pattern here.

	// Kill operations
	{regexp.MustCompile(`(?i)\bkill\s+-9\s+`), "force kills process"},
	{regexp.MustCompile(`(?i)\bkillall\s+`), "kills processes by name"},
	{regexp.MustCompile(`(?i)\bpkill\s+`), "kills processes by pattern"},
	{regexp.MustCompile(`(?i)\btaskkill\s+`), "kills processes (Windows)"},

	// Shutdown/reboot
	{regexp.MustCompile(`(?i)\bshutdown\b`), "shuts down system"},
	{regexp.MustCompile(`(?i)\breboot\b`), "reboots system"},
	{regexp.MustCompile(`(?i)\binit\s+[06]\b`), "changes runlevel (shutdown/reboot)"},
}

// pathExtractionPatterns finds tokens in a command string that look like
// paths escaping the working directory: absolute Unix paths, home-anchored
// paths, parent-escaping paths, Windows drive paths, and UNC paths.
var pathExtractionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\s|["'])(/[a-zA-Z0-9_\-./\\]+)`),
	regexp.MustCompile(`(?:^|\s|["'])(~[a-zA-Z0-9_\-./\\]*)`),
	regexp.MustCompile(`(?:^|\s|["'])(\.\.[/\\][a-zA-Z0-9_\-./\\]*)`),
	regexp.MustCompile(`(?:^|\s|["'])([A-Za-z]:[/\\][a-zA-Z0-9_\-./\\]*)`),
	regexp.MustCompile(`(?:^|\s|["'])(\\\\[a-zA-Z0-9_\-./\\]+)`),
}

// safeOutsidePathCommands lists command prefixes that are safe even when a
// path-looking token in them resolves outside the working directory, since
// they are read-only or inherently reach outside the sandbox (clone targets,
// remote URLs, package installs).
var safeOutsidePathCommands = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*cd\s+`),
	regexp.MustCompile(`(?i)^\s*echo\s+`),
	regexp.MustCompile(`(?i)^\s*which\s+`),
	regexp.MustCompile(`(?i)^\s*where\s+`),
	regexp.MustCompile(`(?i)^\s*type\s+`),
	regexp.MustCompile(`(?i)^\s*git\s+clone\s+`),
	regexp.MustCompile(`(?i)^\s*git\s+remote\s+`),
	regexp.MustCompile(`(?i)^\s*git\s+fetch\s+`),
	regexp.MustCompile(`(?i)^\s*git\s+pull\s+`),
	regexp.MustCompile(`(?i)^\s*git\s+push\s+`),
	regexp.MustCompile(`(?i)^\s*pip\s+install\s+`),
	regexp.MustCompile(`(?i)^\s*npm\s+install\s+`),
	regexp.MustCompile(`(?i)^\s*yarn\s+add\s+`),
	regexp.MustCompile(`(?i)^\s*cargo\s+`),
}

func isSafeOutsidePathCommand(command string) bool {
	for _, p := range safeOutsidePathCommands {
		if p.MatchString(command) {
			return true
		}
	}
	return false
}

var (
	deleteFromPattern = regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`)
	whereClausePattern = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// isUnqualifiedDeleteFrom reports whether command contains a DELETE FROM
// statement with no WHERE clause anywhere after it (RE2 can't express the
// original's negative lookahead directly).
func isUnqualifiedDeleteFrom(command string) bool {
	loc := deleteFromPattern.FindStringIndex(command)
	if loc == nil {
		return false
	}
	return !whereClausePattern.MatchString(command[loc[1]:])
}
