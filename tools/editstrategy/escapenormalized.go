package editstrategy

import "strings"

type escapeNormalizedStrategy struct{}

func (escapeNormalizedStrategy) Name() string { return "escape_normalized" }

func normalizeEscapes(text string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\t`, "\t",
		`\r`, "\r",
		`\"`, `"`,
		`\'`, `'`,
		`\\`, `\`,
	)
	return replacer.Replace(text)
}

func (s escapeNormalizedStrategy) FindMatch(content, search string) MatchResult {
	normalized := normalizeEscapes(search)
	if normalized == search {
		return fail(s.Name())
	}
	if strings.Count(content, normalized) != 1 {
		return fail(s.Name())
	}
	pos := strings.Index(content, normalized)
	return MatchResult{
		Success:     true,
		StartPos:    pos,
		EndPos:      pos + len(normalized),
		MatchedText: normalized,
		Strategy:    s.Name(),
	}
}
