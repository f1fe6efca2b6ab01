package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_IdenticalContentAlwaysFails(t *testing.T) {
	assert.False(t, Validate("add import fmt", "main.go", "package main\n", "package main\n"))
}

func TestValidate_DeleteLines(t *testing.T) {
	before := "a\nb\nc\nd\n"
	after := "a\nd\n"
	assert.True(t, Validate("delete lines 2-3", "f.go", before, after))
}

func TestValidate_DeleteLines_WrongCount(t *testing.T) {
	before := "a\nb\nc\nd\n"
	after := "a\nb\nd\n"
	assert.False(t, Validate("delete lines 2-3", "f.go", before, after))
}

func TestValidate_AddImport(t *testing.T) {
	before := "package main\n"
	after := "import \"fmt\"\npackage main\n"
	assert.True(t, Validate("add import \"fmt\"", "f.go", before, after))
}

func TestValidate_AddImport_AlreadyPresent(t *testing.T) {
	before := "import \"fmt\"\npackage main\n"
	after := "import \"fmt\"\npackage main\nextra\n"
	assert.False(t, Validate("add import \"fmt\"", "f.go", before, after))
}

func TestValidate_UpdateAssignment(t *testing.T) {
	before := "timeout = 30\n"
	after := "timeout = 60\n"
	assert.True(t, Validate("update timeout = 60", "f.go", before, after))
}

func TestValidate_UpdateAssignment_WrongValue(t *testing.T) {
	before := "timeout = 30\n"
	after := "timeout = 45\n"
	assert.False(t, Validate("update timeout = 60", "f.go", before, after))
}

func TestValidate_AddComment(t *testing.T) {
	before := "func f() {}\n"
	after := "// does a thing\nfunc f() {}\n"
	assert.True(t, Validate("add comment does a thing", "f.go", before, after))
}

func TestValidate_DefaultNontrivialDiff(t *testing.T) {
	before := "x := 1\n"
	after := "x := 2\n"
	assert.True(t, Validate("make the change requested", "f.go", before, after))
}

func TestValidate_DefaultRejectsWhitespaceOnlyChurn(t *testing.T) {
	before := "x := 1\n\n"
	after := "x := 1\n"
	assert.False(t, Validate("make the change requested", "f.go", before, after))
}
