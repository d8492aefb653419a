package editstrategy

import "strings"

type blockAnchorStrategy struct{}

func (blockAnchorStrategy) Name() string { return "block_anchor" }

func (s blockAnchorStrategy) FindMatch(content, search string) MatchResult {
	searchLines := strings.Split(search, "\n")
	if len(searchLines) < 2 {
		return fail(s.Name())
	}
	contentLines := strings.Split(content, "\n")

	var firstAnchor, lastAnchor string
	for _, l := range searchLines {
		if strings.TrimSpace(l) != "" {
			firstAnchor = strings.TrimSpace(l)
			break
		}
	}
	for i := len(searchLines) - 1; i >= 0; i-- {
		if strings.TrimSpace(searchLines[i]) != "" {
			lastAnchor = strings.TrimSpace(searchLines[i])
			break
		}
	}
	if firstAnchor == "" || lastAnchor == "" {
		return fail(s.Name())
	}

	firstMatches := []int{}
	for i, l := range contentLines {
		if strings.TrimSpace(l) == firstAnchor {
			firstMatches = append(firstMatches, i)
		}
	}
	if len(firstMatches) != 1 {
		return fail(s.Name())
	}
	startLine := firstMatches[0]
	expectedLines := len(searchLines)

	limit := startLine + expectedLines + 5
	if limit > len(contentLines) {
		limit = len(contentLines)
	}
	for endLine := startLine + 1; endLine < limit; endLine++ {
		if strings.TrimSpace(contentLines[endLine]) != lastAnchor {
			continue
		}
		actualLines := endLine - startLine + 1
		diff := actualLines - expectedLines
		if diff < 0 {
			diff = -diff
		}
		if diff > 2 {
			continue
		}
		var startPos, endPos int
		for _, l := range contentLines[:startLine] {
			startPos += len(l) + 1
		}
		for _, l := range contentLines[:endLine+1] {
			endPos += len(l) + 1
		}
		matchedText := strings.Join(contentLines[startLine:endLine+1], "\n")
		return MatchResult{
			Success:     true,
			StartPos:    startPos,
			EndPos:      endPos,
			MatchedText: matchedText,
			Strategy:    s.Name(),
		}
	}
	return fail(s.Name())
}
