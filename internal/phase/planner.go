package phase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qasimio/Operon/internal/audit"
	"github.com/qasimio/Operon/internal/oracle"
)

// planStepJSON mirrors the oracle's expected plan document shape: an
// ordered list of step records, each carrying a validator rule variant.
// Treat this as untrusted input — it is decoded strictly and rejected
// wholesale on any structural mismatch rather than partially accepted.
type planStepJSON struct {
	Description string `json:"description"`
	TargetFile  string `json:"target_file"`
	IsQuestion  bool   `json:"is_question"`
	Rule        *struct {
		Kind  string `json:"kind"`
		Start int    `json:"start"`
		End   int    `json:"end"`
		Name  string `json:"name"`
		Value string `json:"value"`
		Text  string `json:"text"`
	} `json:"rule"`
}

// ParsePlan validates and decodes the oracle's raw planner response into an
// ordered step list. Malformed plans return an error; the caller transitions
// the run to FAILED/plan rather than retrying blindly.
func ParsePlan(raw string) ([]Step, error) {
	extracted, ok := oracle.ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("plan: no JSON payload found in oracle response")
	}

	var decoded []planStepJSON
	if err := json.Unmarshal([]byte(extracted), &decoded); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("plan: empty step list")
	}

	steps := make([]Step, 0, len(decoded))
	for i, d := range decoded {
		if d.TargetFile == "" {
			return nil, fmt.Errorf("plan: step %d missing target_file", i)
		}
		step := Step{Description: d.Description, TargetFile: d.TargetFile, IsQuestion: d.IsQuestion}
		if d.Rule == nil {
			step.Rule = Rule{Kind: RuleNontrivialDiff}
			steps = append(steps, step)
			continue
		}
		kind := RuleKind(d.Rule.Kind)
		switch kind {
		case RuleDeleteLines, RuleAddImport, RuleUpdateAssignment, RuleAddComment, RuleNontrivialDiff:
		case "":
			kind = RuleNontrivialDiff
		default:
			return nil, fmt.Errorf("plan: step %d has unknown rule kind %q", i, d.Rule.Kind)
		}
		step.Rule = Rule{
			Kind: kind, Start: d.Rule.Start, End: d.Rule.End,
			Name: d.Rule.Name, Value: d.Rule.Value, Text: d.Rule.Text,
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// RunPlanner implements the PLANNER phase (§9's "Oracle-driven planner
// output"): a single oracle call seeded with the goal and retrieved context
// (C12), its response validated against the plan schema before the state
// machine is allowed to enter CODER. A malformed response fails the run as
// FAILED/plan rather than improvising a plan locally.
func (m *Machine) RunPlanner(ctx context.Context, state *State, retrievedContext string) error {
	if m.Audit != nil {
		m.Audit.Record(m.RunID, audit.EventPhaseEnter, "", string(Planner))
	}

	prompt := fmt.Sprintf(
		"goal: %s\nrepository: %s\nretrieved context:\n%s\n\n"+
			"respond with a JSON array of steps. each step: "+
			"{\"description\":string, \"target_file\":string, \"is_question\":bool, "+
			"\"rule\":{\"kind\":\"delete_lines|add_import|update_assignment|add_comment|nontrivial_diff\","+
			"\"start\":int,\"end\":int,\"name\":string,\"value\":string,\"text\":string}}",
		state.Goal, state.RepoRoot, retrievedContext,
	)

	raw, err := m.Oracle.Call(ctx, prompt, true)
	if err != nil {
		state.Phase = Failed
		state.FailureReason = "plan"
		if m.Audit != nil {
			m.Audit.Record(m.RunID, audit.EventRunFailed, "", "plan: oracle unavailable: "+err.Error())
		}
		return fmt.Errorf("planner oracle call: %w", err)
	}

	steps, err := ParsePlan(raw)
	if err != nil {
		state.Phase = Failed
		state.FailureReason = "plan"
		if m.Audit != nil {
			m.Audit.Record(m.RunID, audit.EventRunFailed, "", "plan: "+err.Error())
		}
		return err
	}

	state.Plan = steps
	state.StepIndex = 0
	state.Phase = Coder
	if m.Audit != nil {
		m.Audit.Record(m.RunID, audit.EventPhaseEnter, "", string(Coder))
	}
	return nil
}

// SingleStepPlan builds a one-step plan directly from goal and targetFile,
// classifying the goal against the CRUD pattern library for the validator's
// benefit, without any oracle round trip. Used when the caller already
// knows the target file (e.g. a CLI invocation naming it explicitly) and
// the planner's only job would otherwise be to restate that fact.
func SingleStepPlan(goal, targetFile string) []Step {
	return []Step{{
		Description: goal,
		TargetFile:  targetFile,
		Rule:        ClassifyGoal(goal),
	}}
}

// ClassifyGoal matches goal against the CRUD pattern library to produce the
// Rule the validator expects, falling back to RuleNontrivialDiff when no
// pattern matches.
func ClassifyGoal(goal string) Rule {
	if m := deleteLineRangeRe.FindStringSubmatch(goal); m != nil {
		start, end := atoiOr(m[1], 0), atoiOr(m[2], 0)
		return Rule{Kind: RuleDeleteLines, Start: start, End: end}
	}
	if m := addImportGoalRe.FindStringSubmatch(goal); m != nil {
		return Rule{Kind: RuleAddImport, Name: m[1]}
	}
	if m := updateConstantRe.FindStringSubmatch(goal); m != nil {
		return Rule{Kind: RuleUpdateAssignment, Name: m[1], Value: m[2]}
	}
	if m := addCommentGoalRe.FindStringSubmatch(goal); m != nil {
		return Rule{Kind: RuleAddComment, Text: m[1]}
	}
	return Rule{Kind: RuleNontrivialDiff}
}

func atoiOr(s string, fallback int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}
