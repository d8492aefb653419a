package editstrategy

import "strings"

type exactStrategy struct{}

func (exactStrategy) Name() string { return "exact" }

func (s exactStrategy) FindMatch(content, search string) MatchResult {
	if strings.Count(content, search) == 1 {
		pos := strings.Index(content, search)
		return MatchResult{
			Success:     true,
			StartPos:    pos,
			EndPos:      pos + len(search),
			MatchedText: search,
			Strategy:    s.Name(),
		}
	}
	return fail(s.Name())
}
