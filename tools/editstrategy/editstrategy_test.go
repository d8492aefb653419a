package editstrategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyEditExactSingleOccurrence(t *testing.T) {
	content := "line one\nline two\nline three\n"
	ok, newContent, strategy := ApplyEdit(content, "line two", "line TWO")
	assert.True(t, ok)
	assert.Equal(t, "exact", strategy)
	assert.Equal(t, "line one\nline TWO\nline three\n", newContent)
}

func TestApplyEditAmbiguous(t *testing.T) {
	content := "dup\ndup\n"
	ok, newContent, strategy := ApplyEdit(content, "dup", "x")
	assert.False(t, ok)
	assert.Equal(t, "exact_multiple_2", strategy)
	assert.Equal(t, content, newContent)
}

func TestApplyEditLineTrimmed(t *testing.T) {
	content := "foo   \nbar\n"
	ok, newContent, strategy := ApplyEdit(content, "foo\nbar", "baz")
	assert.True(t, ok)
	assert.Equal(t, "line_trimmed", strategy)
	assert.Equal(t, "baz\n", newContent)
}

func TestApplyEditIdempotentNoOp(t *testing.T) {
	content := "unchanged block\nsecond line\n"
	ok, newContent, _ := ApplyEdit(content, "unchanged block\nsecond line", "unchanged block\nsecond line")
	assert.True(t, ok)
	assert.Equal(t, content, newContent)
}

func TestApplyEditNoMatch(t *testing.T) {
	ok, newContent, strategy := ApplyEdit("hello world", "not present", "x")
	assert.False(t, ok)
	assert.Equal(t, "no_match", strategy)
	assert.Equal(t, "hello world", newContent)
}

func TestBlockAnchorStrategy(t *testing.T) {
	content := "func f() {\n\tx := 1\n\ty := 2\n\treturn x + y\n}\n"
	search := "func f() {\n\tx := 99\n\treturn x + y\n}"
	result := FindBestMatch(content, search, nil)
	assert.True(t, result.Success)
	assert.Equal(t, "block_anchor", result.Strategy)
}

func TestIndentationFlexibleStrategy(t *testing.T) {
	// The leading "if true {\n}\n" duplicates the search's opening anchor
	// line so block_anchor's uniqueness check fails and the cascade falls
	// through to indentation_flexible, which matches on a full-block
	// comparison rather than anchor lines alone.
	content := "if true {\n}\nif true {\n    doSomething()\n    doOther()\n}\n"
	search := "if true {\n  doSomething()\n  doOther()\n}"
	result := FindBestMatch(content, search, nil)
	assert.True(t, result.Success)
	assert.Equal(t, "indentation_flexible", result.Strategy)
}

func TestEscapeNormalizedStrategy(t *testing.T) {
	content := "first\nsecond\nthird\n"
	search := `first\nsecond`
	result := FindBestMatch(content, search, nil)
	assert.True(t, result.Success)
	assert.Equal(t, "escape_normalized", result.Strategy)
}
