package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathMatch_DeleteLines(t *testing.T) {
	content := "a\nb\nc\nd\n"
	block, ok := FastPathMatch("delete lines 2-3", content)
	require.True(t, ok)
	assert.Equal(t, "b\nc", block.Search)
	assert.Equal(t, "", block.Replace)
}

func TestFastPathMatch_AddImport_AbsentMatches(t *testing.T) {
	content := "package main\n"
	block, ok := FastPathMatch("add import fmt", content)
	require.True(t, ok)
	assert.Equal(t, "", block.Search)
	assert.Equal(t, "fmt", block.Replace)
}

func TestFastPathMatch_AddImport_PresentFallsThrough(t *testing.T) {
	content := "import fmt\npackage main\n"
	_, ok := FastPathMatch("add import fmt", content)
	assert.False(t, ok)
}

func TestFastPathMatch_UpdateConstant(t *testing.T) {
	content := "const timeout = 30\n"
	block, ok := FastPathMatch("update timeout = 60", content)
	require.True(t, ok)
	assert.Contains(t, block.Replace, "timeout = 60")
}

func TestFastPathMatch_NoPatternMatches(t *testing.T) {
	_, ok := FastPathMatch("do something complicated", "content\n")
	assert.False(t, ok)
}

func TestClassifyGoal_EachVariant(t *testing.T) {
	assert.Equal(t, RuleDeleteLines, ClassifyGoal("delete lines 1-2").Kind)
	assert.Equal(t, RuleAddImport, ClassifyGoal("add import fmt").Kind)
	assert.Equal(t, RuleUpdateAssignment, ClassifyGoal("update x = 1").Kind)
	assert.Equal(t, RuleAddComment, ClassifyGoal("add comment explains this").Kind)
	assert.Equal(t, RuleNontrivialDiff, ClassifyGoal("refactor everything").Kind)
}

func TestLoopDetected_ThreeIdenticalActions(t *testing.T) {
	history := []string{"a", "x", "x", "x"}
	assert.True(t, loopDetected(history))
}

func TestLoopDetected_NoRepeat(t *testing.T) {
	history := []string{"a", "b", "c", "d"}
	assert.False(t, loopDetected(history))
}

func TestLoopDetected_TooShort(t *testing.T) {
	assert.False(t, loopDetected([]string{"x", "x"}))
}

func TestDispatch_RejectsToolOutsidePermission(t *testing.T) {
	state := NewState("goal", "/tmp/repo")
	state.Phase = Reviewer
	m := &Machine{}
	err := m.Dispatch(state, "rewrite_function", map[string]string{"file": "f.go"})
	assert.Error(t, err)
}

func TestDispatch_PermitsCoderTool(t *testing.T) {
	state := NewState("goal", "/tmp/repo")
	state.Phase = Coder
	m := &Machine{}
	err := m.Dispatch(state, "rewrite_function", map[string]string{"file": "f.go"})
	assert.NoError(t, err)
	assert.Equal(t, 1, state.StepCounter)
}

func TestDispatch_StepBudgetExhausted(t *testing.T) {
	state := NewState("goal", "/tmp/repo")
	state.Phase = Coder
	state.StepCounter = MaxSteps
	m := &Machine{}
	err := m.Dispatch(state, "rewrite_function", map[string]string{"file": "f.go"})
	assert.Error(t, err)
	assert.Equal(t, Failed, state.Phase)
}

func TestDispatch_LoopDetectionForcesHandoff(t *testing.T) {
	state := NewState("goal", "/tmp/repo")
	state.Phase = Coder
	m := &Machine{}
	payload := map[string]string{"file": "f.go"}
	require.NoError(t, m.Dispatch(state, "read_file", payload))
	require.NoError(t, m.Dispatch(state, "read_file", payload))
	require.NoError(t, m.Dispatch(state, "read_file", payload))
	assert.Equal(t, Reviewer, state.Phase)
}

func TestObserve_NoOpStreakForcesHandoffAfterMax(t *testing.T) {
	state := NewState("goal", "/tmp/repo")
	state.Phase = Coder
	m := &Machine{}
	for i := 0; i <= NoOpStreakMax; i++ {
		m.Observe(state, "rewrite_function", nil, "written", "noop", true, true)
	}
	assert.Equal(t, Reviewer, state.Phase)
	assert.Equal(t, 0, state.NoOpStreak)
}

func TestObserve_SuccessfulWriteResetsStreak(t *testing.T) {
	state := NewState("goal", "/tmp/repo")
	state.NoOpStreak = 2
	m := &Machine{}
	m.Observe(state, "rewrite_function", nil, "written", "ok", true, false)
	assert.Equal(t, 0, state.NoOpStreak)
}

func TestParsePlan_ValidPayload(t *testing.T) {
	raw := "```json\n" +
		`[{"description":"d","target_file":"f.go","rule":{"kind":"add_import","name":"fmt"}}]` +
		"\n```"
	steps, err := ParsePlan(raw)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "f.go", steps[0].TargetFile)
	assert.Equal(t, RuleAddImport, steps[0].Rule.Kind)
}

func TestParsePlan_RejectsMissingTargetFile(t *testing.T) {
	raw := `[{"description":"d"}]`
	_, err := ParsePlan(raw)
	assert.Error(t, err)
}

func TestParsePlan_RejectsUnknownRuleKind(t *testing.T) {
	raw := `[{"description":"d","target_file":"f.go","rule":{"kind":"bogus"}}]`
	_, err := ParsePlan(raw)
	assert.Error(t, err)
}

func TestParsePlan_RejectsEmptyList(t *testing.T) {
	_, err := ParsePlan(`[]`)
	assert.Error(t, err)
}

func TestParsePlan_RejectsNonJSON(t *testing.T) {
	_, err := ParsePlan("I cannot produce a plan for that.")
	assert.Error(t, err)
}

func TestSingleStepPlan(t *testing.T) {
	steps := SingleStepPlan("add import fmt", "main.go")
	require.Len(t, steps, 1)
	assert.Equal(t, "main.go", steps[0].TargetFile)
	assert.Equal(t, RuleAddImport, steps[0].Rule.Kind)
}

func TestValidate_DelegatesToValidatePackage(t *testing.T) {
	step := Step{TargetFile: "f.go", Rule: Rule{Kind: RuleAddImport, Name: "fmt"}}
	before := "package main\n"
	after := "import \"fmt\"\npackage main\n"
	assert.True(t, Validate(step, before, after))
}
