package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_EmptySearchAppends(t *testing.T) {
	result := Apply("package foo\n", Block{Search: "", Replace: "import \"fmt\""})
	assert.Equal(t, ReasonAppended, result.Reason)
	assert.Equal(t, "import \"fmt\"\npackage foo\n", result.Patched)
}

func TestApply_ExactMatchReplace(t *testing.T) {
	original := "func f() {\n\treturn 1\n}\n"
	result := Apply(original, Block{Search: "\treturn 1", Replace: "\treturn 2"})
	require.Equal(t, ReasonOK, result.Reason)
	assert.Equal(t, "func f() {\n\treturn 2\n}\n", result.Patched)
}

func TestApply_NoopWhenReplaceEqualsSearch(t *testing.T) {
	original := "func f() {\n\treturn 1\n}\n"
	result := Apply(original, Block{Search: "\treturn 1", Replace: "\treturn 1"})
	assert.Equal(t, ReasonNoop, result.Reason)
}

func TestApply_NoMatch(t *testing.T) {
	result := Apply("package foo\n", Block{Search: "nonexistent line", Replace: "x"})
	assert.Equal(t, ReasonNoMatch, result.Reason)
}

func TestApply_Ambiguous(t *testing.T) {
	original := "a\nb\na\nb\n"
	result := Apply(original, Block{Search: "a\nb", Replace: "c"})
	assert.Equal(t, ReasonAmbiguous, result.Reason)
}

func TestApply_TolerantWhitespaceMatch(t *testing.T) {
	original := "func f() {\n    return 1   \n}\n"
	result := Apply(original, Block{Search: "return 1", Replace: "return 2"})
	require.Equal(t, ReasonOK, result.Reason)
	assert.Contains(t, result.Patched, "return 2")
}

func TestApply_ReindentPreservesRelativeIndentation(t *testing.T) {
	original := "func f() {\n\tif true {\n\t\told()\n\t}\n}\n"
	replace := "if true {\n\tnew1()\n\tnew2()\n}"
	result := Apply(original, Block{Search: "\tif true {\n\t\told()\n\t}", Replace: replace})
	require.Equal(t, ReasonOK, result.Reason)
	want := "func f() {\n\tif true {\n\t\tnew1()\n\t\tnew2()\n\t}\n}\n"
	assert.Equal(t, want, result.Patched)
}

func TestParsePayload_MultipleBlocks(t *testing.T) {
	payload := "<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n" +
		"some prose in between\n" +
		"<<<<<<< SEARCH\nbaz\n=======\nqux\n>>>>>>> REPLACE\n"
	blocks := ParsePayload(payload)
	require.Len(t, blocks, 2)
	assert.Equal(t, "foo", blocks[0].Search)
	assert.Equal(t, "bar", blocks[0].Replace)
	assert.Equal(t, "baz", blocks[1].Search)
	assert.Equal(t, "qux", blocks[1].Replace)
}

func TestApplyPayload_StopsAtFirstFailure(t *testing.T) {
	original := "a\nb\nc\n"
	blocks := []Block{
		{Search: "a", Replace: "x"},
		{Search: "nonexistent", Replace: "y"},
		{Search: "c", Replace: "z"},
	}
	patched, reason, failedAt := ApplyPayload(original, blocks)
	assert.Equal(t, ReasonNoMatch, reason)
	assert.Equal(t, 1, failedAt)
	assert.Contains(t, patched, "x")
	assert.NotContains(t, patched, "z")
}

func TestInsertImport_SkipsIfPresent(t *testing.T) {
	original := "import \"fmt\"\npackage foo\n"
	result := InsertImport(original, "import \"fmt\"")
	assert.Equal(t, ReasonNoop, result.Reason)
	assert.Equal(t, original, result.Patched)
}

func TestAppendToFile_AddsTrailingNewlineBeforeAppending(t *testing.T) {
	result := AppendToFile("package foo", "// trailer")
	assert.Equal(t, ReasonOK, result.Reason)
	assert.Equal(t, "package foo\n// trailer", result.Patched)
}

func TestRoundTrip_ApplyThenReverse(t *testing.T) {
	original := "line one\nline two\nline three\n"
	forward := Apply(original, Block{Search: "line two", Replace: "line TWO"})
	require.Equal(t, ReasonOK, forward.Reason)
	backward := Apply(forward.Patched, Block{Search: "line TWO", Replace: "line two"})
	require.Equal(t, ReasonOK, backward.Reason)
	assert.Equal(t, original, backward.Patched)
}
