// Package editstrategy locates a unique match for a target string inside
// file content under progressively looser string equivalences, and applies
// a replacement at that match. Strategies are tried in order from most to
// least precise; the first one that finds a unique match wins.
package editstrategy

import (
	"strconv"
	"strings"
)

// MatchResult describes the outcome of one strategy's attempt to find
// search inside content.
type MatchResult struct {
	Success     bool
	StartPos    int
	EndPos      int
	MatchedText string
	Strategy    string
}

// Strategy finds a unique match for search within content.
type Strategy interface {
	Name() string
	FindMatch(content, search string) MatchResult
}

// Default is the ordered cascade applied by FindBestMatch and ApplyEdit.
var Default = []Strategy{
	exactStrategy{},
	lineTrimmedStrategy{},
	blockAnchorStrategy{},
	indentationFlexibleStrategy{},
	escapeNormalizedStrategy{},
	whitespaceNormalizedStrategy{},
}

func fail(name string) MatchResult {
	return MatchResult{Strategy: name}
}

// FindBestMatch tries each strategy in order, returning the first success.
func FindBestMatch(content, search string, strategies []Strategy) MatchResult {
	if strategies == nil {
		strategies = Default
	}
	for _, s := range strategies {
		if r := s.FindMatch(content, search); r.Success {
			return r
		}
	}
	return MatchResult{Strategy: "none"}
}

// ApplyEdit replaces the sole occurrence of old in content with new,
// returning the resulting content and the name of the strategy used. The
// fast path handles an exact single occurrence directly; an exact count > 1
// fails as ambiguous (strategy name "exact_multiple_N"); an exact count of 0
// falls back to the strategy cascade.
func ApplyEdit(content, old, new string) (success bool, newContent string, strategy string) {
	count := strings.Count(content, old)
	if count == 1 {
		pos := strings.Index(content, old)
		if new == "" {
			if deleted, ok := applyDeletionSugar(content, pos, pos+len(old)); ok {
				return true, deleted, "exact"
			}
		}
		return true, content[:pos] + new + content[pos+len(old):], "exact"
	}
	if count > 1 {
		return false, content, ambiguousStrategyName(count)
	}

	result := FindBestMatch(content, old, nil)
	if !result.Success {
		return false, content, "no_match"
	}

	if result.MatchedText != "" && result.StartPos >= 0 {
		newContent := content[:result.StartPos] + new + content[result.StartPos+len(result.MatchedText):]
		return true, newContent, result.Strategy
	}
	if result.StartPos >= 0 && result.EndPos >= 0 {
		newContent := content[:result.StartPos] + new + content[result.EndPos:]
		return true, newContent, result.Strategy
	}
	return false, content, result.Strategy + "_imprecise"
}

func ambiguousStrategyName(count int) string {
	return "exact_multiple_" + strconv.Itoa(count)
}

// applyDeletionSugar removes the entire line containing [start,end) when that
// line consists of only whitespace besides the matched span, so deleting a
// whole statement doesn't leave a blank line behind.
func applyDeletionSugar(content string, start, end int) (string, bool) {
	lineStart := strings.LastIndexByte(content[:start], '\n') + 1
	rest := content[end:]
	nl := strings.IndexByte(rest, '\n')
	var lineEnd int
	if nl == -1 {
		lineEnd = len(content)
	} else {
		lineEnd = end + nl + 1
	}

	before := content[lineStart:start]
	afterInLine := rest
	if nl != -1 {
		afterInLine = rest[:nl]
	}
	if strings.TrimSpace(before) != "" || strings.TrimSpace(afterInLine) != "" {
		return "", false
	}
	return content[:lineStart] + content[lineEnd:], true
}
