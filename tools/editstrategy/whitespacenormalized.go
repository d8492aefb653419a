package editstrategy

import (
	"strings"
	"unicode"
)

type whitespaceNormalizedStrategy struct{}

func (whitespaceNormalizedStrategy) Name() string { return "whitespace_normalized" }

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FindMatch is a last-resort, approximate strategy: whitespace runs are
// collapsed to a single space on both sides before matching, and the
// reported position is the start of the matching word in the original
// content. The caller should not rely on EndPos or MatchedText from this
// strategy — ApplyEdit handles that by falling through to the
// start/end-position branch, which whitespace_normalized deliberately leaves
// unusable (EndPos -1, MatchedText "") so ApplyEdit reports it as imprecise
// unless the caller supplies its own replacement boundary.
func (s whitespaceNormalizedStrategy) FindMatch(content, search string) MatchResult {
	normContent := normalizeWhitespace(content)
	normSearch := normalizeWhitespace(search)
	if normSearch == "" {
		return fail(s.Name())
	}
	if strings.Count(normContent, normSearch) != 1 {
		return fail(s.Name())
	}

	normPos := strings.Index(normContent, normSearch)
	wordsBefore := strings.Count(normContent[:normPos], " ")

	var originalPos int
	wordCount := 0
	inWhitespace := true
	for i, r := range content {
		if unicode.IsSpace(r) {
			inWhitespace = true
			continue
		}
		if inWhitespace {
			wordCount++
			inWhitespace = false
		}
		if wordCount > wordsBefore {
			originalPos = i
			break
		}
	}

	return MatchResult{
		Success:     true,
		StartPos:    originalPos,
		EndPos:      -1,
		MatchedText: "",
		Strategy:    s.Name(),
	}
}
