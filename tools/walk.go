package tools

import "strings"

// skipDirs defines directory names that file-walking tools (search_files,
// glob, list_directory) ignore during traversal: version control, dependency
// caches, build output, and editor metadata.
var skipDirs = map[string]bool{
	".git":          true,
	".svn":          true,
	".hg":           true,
	".idea":         true,
	".vscode":       true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".ruff_cache":   true,
	"dist":          true,
	"build":         true,
	"target":        true,
	"out":           true,
	"bin":           true,
	"obj":           true,
	"vendor":        true,
	".next":         true,
	".nuxt":         true,
	".cache":        true,
	".parcel-cache": true,
	"coverage":      true,
	".terraform":    true,
	".gradle":       true,
	".tox":          true,
	"__MACOSX":      true,
}

// shouldSkipDir reports whether a directory should be skipped during file
// traversal: any name in skipDirs, or any dot-directory (hidden).
func shouldSkipDir(name string) bool {
	if skipDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// binaryExtensions lists file extensions search_files excludes from content
// matching; names are still matched against the pattern regardless.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true,
	".class": true, ".jar": true, ".war": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".pyc": true, ".pyo": true,
}

func isBinaryExtension(ext string) bool {
	return binaryExtensions[strings.ToLower(ext)]
}
