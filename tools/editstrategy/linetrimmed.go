package editstrategy

import "strings"

type lineTrimmedStrategy struct{}

func (lineTrimmedStrategy) Name() string { return "line_trimmed" }

func trimLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Join(lines, "\n")
}

func (s lineTrimmedStrategy) FindMatch(content, search string) MatchResult {
	trimmedContent := trimLines(content)
	trimmedSearch := trimLines(search)

	if strings.Count(trimmedContent, trimmedSearch) != 1 {
		return fail(s.Name())
	}

	trimmedPos := strings.Index(trimmedContent, trimmedSearch)
	linesBefore := strings.Count(trimmedContent[:trimmedPos], "\n")
	originalLines := strings.Split(content, "\n")

	var originalPos int
	if linesBefore > 0 {
		for _, l := range originalLines[:linesBefore] {
			originalPos += len(l) + 1
		}
	}

	trimmedLinesBefore := strings.Split(trimmedContent[:trimmedPos], "\n")
	offsetInLine := len(trimmedLinesBefore[len(trimmedLinesBefore)-1])
	originalPos += offsetInLine

	searchLineCount := strings.Count(trimmedSearch, "\n")
	endLine := linesBefore + searchLineCount
	if endLine+1 > len(originalLines) {
		endLine = len(originalLines) - 1
	}

	matchedLines := originalLines[linesBefore : endLine+1]
	matchedText := strings.Join(matchedLines, "\n")

	return MatchResult{
		Success:     true,
		StartPos:    originalPos,
		EndPos:      originalPos + len(matchedText),
		MatchedText: matchedText,
		Strategy:    s.Name(),
	}
}
