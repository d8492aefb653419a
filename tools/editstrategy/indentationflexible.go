package editstrategy

import "strings"

type indentationFlexibleStrategy struct{}

func (indentationFlexibleStrategy) Name() string { return "indentation_flexible" }

// stripCommonIndent removes the minimum leading-whitespace run shared by all
// non-blank lines of text.
func stripCommonIndent(text string) string {
	lines := strings.Split(text, "\n")
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return text
	}
	stripped := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			stripped[i] = ""
			continue
		}
		if len(l) >= minIndent {
			stripped[i] = l[minIndent:]
		} else {
			stripped[i] = l
		}
	}
	return strings.Join(stripped, "\n")
}

func (s indentationFlexibleStrategy) FindMatch(content, search string) MatchResult {
	searchNormalized := stripCommonIndent(search)
	contentLines := strings.Split(content, "\n")
	searchLines := strings.Split(searchNormalized, "\n")

	searchFirstLine := strings.TrimSpace(searchLines[0])
	if searchFirstLine == "" {
		return fail(s.Name())
	}

	matchesFullBlock := func(start int) bool {
		if start+len(searchLines) > len(contentLines) {
			return false
		}
		for k, sLine := range searchLines {
			if strings.TrimSpace(sLine) != strings.TrimSpace(contentLines[start+k]) {
				return false
			}
		}
		return true
	}

	for i, line := range contentLines {
		if strings.TrimSpace(line) != searchFirstLine {
			continue
		}
		if !matchesFullBlock(i) {
			continue
		}

		otherMatches := 0
		for j, other := range contentLines {
			if j == i || strings.TrimSpace(other) != searchFirstLine {
				continue
			}
			if matchesFullBlock(j) {
				otherMatches++
			}
		}
		if otherMatches != 0 {
			continue
		}

		var startPos int
		for _, l := range contentLines[:i] {
			startPos += len(l) + 1
		}
		matchLines := contentLines[i : i+len(searchLines)]
		matchedText := strings.Join(matchLines, "\n")
		return MatchResult{
			Success:     true,
			StartPos:    startPos,
			EndPos:      startPos + len(matchedText),
			MatchedText: matchedText,
			Strategy:    s.Name(),
		}
	}
	return fail(s.Name())
}
