// Package phase implements the agent state machine (C10) and the
// deterministic reviewer (C11): a Planner → Coder ↔ Reviewer → {Done,
// Failed} loop with tool permissioning, loop/no-op detection, a step
// budget, and the CRUD fast path that skips the oracle for structurally
// trivial edits.
package phase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/qasimio/Operon/internal/audit"
	"github.com/qasimio/Operon/internal/chunk"
	"github.com/qasimio/Operon/internal/diff"
	"github.com/qasimio/Operon/internal/gate"
	"github.com/qasimio/Operon/internal/graph"
	"github.com/qasimio/Operon/internal/obslog"
	"github.com/qasimio/Operon/internal/oracle"
	"github.com/qasimio/Operon/internal/resolve"
	"github.com/qasimio/Operon/internal/safety"
	"github.com/qasimio/Operon/internal/validate"
	"github.com/qasimio/Operon/internal/world"
)

// Phase is one of the state machine's five states.
type Phase string

const (
	Planner Phase = "PLANNER"
	Coder   Phase = "CODER"
	Reviewer Phase = "REVIEWER"
	Done    Phase = "DONE"
	Failed  Phase = "FAILED"
)

const (
	MaxSteps       = 35
	NoOpStreakMax  = 2
	RejectThreshold = 3
	observationRingSize = 50
	actionHistorySize   = 10
)

// Tool permission tables, enforced before dispatch.
var (
	coderTools = map[string]bool{
		"find_file": true, "read_file": true, "semantic_search": true,
		"exact_search": true, "rewrite_function": true, "create_file": true,
		"insert_line": true, "append_file": true,
	}
	reviewerTools = map[string]bool{
		"approve_step": true, "reject_step": true, "finish": true,
	}
)

// RuleKind is the tagged variant of a plan step's validator rule.
type RuleKind string

const (
	RuleDeleteLines      RuleKind = "delete_lines"
	RuleAddImport        RuleKind = "add_import"
	RuleUpdateAssignment RuleKind = "update_assignment"
	RuleAddComment       RuleKind = "add_comment"
	RuleNontrivialDiff   RuleKind = "nontrivial_diff"
)

// Rule is a plan step's validator rule.
type Rule struct {
	Kind  RuleKind
	Start int
	End   int
	Name  string
	Value string
	Text  string
}

// Step is one planner-emitted atomic write milestone.
type Step struct {
	Description string
	TargetFile  string
	Rule        Rule
	IsQuestion  bool
}

// Observation is one recorded tool-call result, kept in a bounded ring.
type Observation struct {
	Action  string
	Payload map[string]string
	Result  string
	Reason  string
}

// State is the full agent state for one run (§3's "Agent state").
type State struct {
	Goal          string
	RepoRoot      string
	Phase         Phase
	Plan          []Step
	StepIndex     int
	Observations  []Observation
	ContextBuffer map[string]string
	FilesRead     map[string]bool
	FilesModified map[string]bool
	DiffMemory    map[string]string
	ActionHistory []string
	NoOpStreak    int
	RejectCounts  map[int]int
	StepCounter   int
	RetryBudget   map[int]int
	Git           *safety.GitSidecar
	FailureReason string
}

// NewState initializes agent state for goal at repoRoot.
func NewState(goal, repoRoot string) *State {
	return &State{
		Goal:          goal,
		RepoRoot:      repoRoot,
		Phase:         Planner,
		ContextBuffer: make(map[string]string),
		FilesRead:     make(map[string]bool),
		FilesModified: make(map[string]bool),
		DiffMemory:    make(map[string]string),
		RejectCounts:  make(map[int]int),
		RetryBudget:   make(map[int]int),
	}
}

// Machine wires the phase state machine to its collaborators: the symbol
// graph, the approval gate, the oracle, and the durable audit log.
type Machine struct {
	Graph    *graph.Graph
	Gate     *gate.Gate
	Oracle   oracle.Oracle
	Audit    *audit.Log
	RunID    string
	RepoRoot string
	Registry *world.Registry
	Tx       *safety.FileTransaction
}

// NewMachine constructs a Machine with a fresh file transaction and the
// symbol registry used for post-edit syntax checks.
func NewMachine(g *graph.Graph, gt *gate.Gate, o oracle.Oracle, al *audit.Log, runID, repoRoot string) *Machine {
	return &Machine{
		Graph:    g,
		Gate:     gt,
		Oracle:   o,
		Audit:    al,
		RunID:    runID,
		RepoRoot: repoRoot,
		Registry: world.NewRegistry(),
		Tx:       safety.NewFileTransaction(),
	}
}

// permitted enforces the tool permission table for the state's current
// phase; any other combination fails fast.
func permitted(phase Phase, tool string) bool {
	switch phase {
	case Coder:
		return coderTools[tool]
	case Reviewer:
		return reviewerTools[tool]
	default:
		return false
	}
}

func canonicalize(action string, payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(action)
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(payload[k])
	}
	return sb.String()
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Dispatch enforces tool permissions and loop detection for one outgoing
// action, recording it into the observations and action-history rings.
// Call this before actually executing a tool.
func (m *Machine) Dispatch(state *State, action string, payload map[string]string) error {
	if state.StepCounter >= MaxSteps {
		state.Phase = Failed
		state.FailureReason = "step_budget_exhausted"
		return fmt.Errorf("step budget exhausted")
	}
	if !permitted(state.Phase, action) {
		return fmt.Errorf("tool not permitted in phase: %s/%s", state.Phase, action)
	}

	state.StepCounter++
	canon := canonicalize(action, payload)
	state.ActionHistory = append(state.ActionHistory, canon)
	if len(state.ActionHistory) > actionHistorySize {
		state.ActionHistory = state.ActionHistory[len(state.ActionHistory)-actionHistorySize:]
	}

	if loopDetected(state.ActionHistory) {
		obslog.Get(obslog.CategoryPhase).Infof("loop_detected action=%s", action)
		if m.Audit != nil {
			m.Audit.Record(m.RunID, audit.EventLoopDetected, "", action)
		}
		forceHandoff(state)
		state.Observations = nil
		if loopDetected(state.ActionHistory[:len(state.ActionHistory)-1]) {
			state.Phase = Failed
			state.FailureReason = "loop"
		}
	}
	return nil
}

func loopDetected(history []string) bool {
	n := len(history)
	if n < 3 {
		return false
	}
	return history[n-1] == history[n-2] && history[n-2] == history[n-3]
}

func forceHandoff(state *State) {
	switch state.Phase {
	case Coder:
		state.Phase = Reviewer
	case Reviewer:
		state.Phase = Coder
	}
}

// Observe records a completed tool result, updating the no-op streak and
// forcing a handoff when it exceeds NoOpStreakMax.
func (m *Machine) Observe(state *State, action string, payload map[string]string, result, reason string, isWrite, noop bool) {
	state.Observations = append(state.Observations, Observation{Action: action, Payload: payload, Result: result, Reason: reason})
	if len(state.Observations) > observationRingSize {
		state.Observations = state.Observations[len(state.Observations)-observationRingSize:]
	}

	if isWrite && noop {
		state.NoOpStreak++
		if state.NoOpStreak > NoOpStreakMax {
			forceHandoff(state)
			state.NoOpStreak = 0
		}
	} else if isWrite {
		state.NoOpStreak = 0
	}
}

// CRUD fast-path pattern library.
var (
	deleteLineRangeRe = regexp.MustCompile(`(?i)delete lines?\s*(\d+)\s*[-to]+\s*(\d+)`)
	addImportGoalRe   = regexp.MustCompile(`(?i)add import\s+(\S+)`)
	updateConstantRe  = regexp.MustCompile(`(?i)update\s+(\w+)\s*=\s*(\S+)`)
	addCommentGoalRe  = regexp.MustCompile(`(?i)add comment\s+(.+)`)
)

// FastPathMatch attempts to classify goal against the CRUD pattern library,
// constructing SEARCH/REPLACE blocks deterministically without consulting
// the oracle. ok is false when no pattern matches and the caller should
// fall through to the oracle.
func FastPathMatch(goal, content string) (block diff.Block, ok bool) {
	lines := strings.Split(content, "\n")

	if m := deleteLineRangeRe.FindStringSubmatch(goal); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if a >= 1 && b <= len(lines) && a <= b {
			search := strings.Join(lines[a-1:b], "\n")
			return diff.Block{Search: search, Replace: ""}, true
		}
	}

	if m := addImportGoalRe.FindStringSubmatch(goal); m != nil {
		token := m[1]
		if strings.Contains(content, token) {
			return diff.Block{}, false
		}
		return diff.Block{Search: "", Replace: token}, true
	}

	if m := updateConstantRe.FindStringSubmatch(goal); m != nil {
		name, value := m[1], m[2]
		for _, line := range lines {
			if strings.Contains(line, name) && strings.Contains(line, "=") {
				indent := leadingWhitespace(line)
				replaced := fmt.Sprintf("%s%s = %s", indent, name, value)
				return diff.Block{Search: line, Replace: replaced}, true
			}
		}
	}

	if m := addCommentGoalRe.FindStringSubmatch(goal); m != nil {
		text := strings.TrimSpace(m[1])
		if len(lines) > 0 {
			return diff.Block{Search: lines[0], Replace: "// " + text + "\n" + lines[0]}, true
		}
	}

	return diff.Block{}, false
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i]
}

// EditResult is the outcome of running the edit pipeline for one step.
type EditResult struct {
	Approved bool
	Reason   string
	Path     string
}

// RunEditPipeline implements §4.11: resolve target, read disk, produce
// SEARCH/REPLACE (fast path or oracle), apply with bounded retry, syntax
// check, gate, atomic write, diff-memory fingerprint, handoff to REVIEWER.
func (m *Machine) RunEditPipeline(ctx context.Context, state *State, step Step, cancel <-chan struct{}) (EditResult, error) {
	res := resolve.Resolve(m.Graph, step.TargetFile)
	absPath := filepath.Join(state.RepoRoot, res.Path)

	var before string
	if res.Found {
		data, err := os.ReadFile(absPath)
		if err != nil {
			return EditResult{}, fmt.Errorf("read target: %w", err)
		}
		before = string(data)
	}
	state.FilesRead[res.Path] = true

	block, matched := FastPathMatch(state.Goal, before)
	if !matched {
		prompt := fmt.Sprintf("goal: %s\nfile: %s\ncontent:\n%s", state.Goal, res.Path, before)
		raw, err := m.Oracle.Call(ctx, prompt, false)
		if err != nil {
			return EditResult{}, fmt.Errorf("oracle call: %w", err)
		}
		blocks := diff.ParsePayload(raw)
		if len(blocks) == 0 {
			return EditResult{Reason: "no_match"}, nil
		}
		block = blocks[0]
	}

	var after string
	var reason diff.Reason
	for retry := 0; retry <= 2; retry++ {
		r := diff.Apply(before, block)
		if r.Reason != diff.ReasonNoMatch && r.Reason != diff.ReasonAmbiguous {
			after, reason = r.Patched, r.Reason
			break
		}
		reason = r.Reason
		if retry == 2 {
			return EditResult{Reason: string(reason)}, nil
		}
		prompt := fmt.Sprintf("the previous SEARCH block did not match. goal: %s\nfile: %s\ncurrent content:\n%s", state.Goal, res.Path, before)
		raw, err := m.Oracle.Call(ctx, prompt, false)
		if err != nil {
			return EditResult{}, fmt.Errorf("oracle retry: %w", err)
		}
		blocks := diff.ParsePayload(raw)
		if len(blocks) == 0 {
			return EditResult{Reason: "no_match"}, nil
		}
		block = blocks[0]
	}

	if !Validate(step, before, after) {
		return EditResult{Reason: "validation_failed"}, nil
	}

	language := languageFor(res.Path)
	extractor := m.Registry.For(language)
	syntax := extractor.CheckSyntax([]byte(after))
	if !syntax.OK {
		return EditResult{Reason: "syntax_error"}, nil
	}

	summary := fmt.Sprintf("%s (%s)", step.Description, reason)
	outcome := m.Gate.Ask("rewrite_function", gate.Payload{File: res.Path, Search: block.Search, Replace: block.Replace, Summary: summary}, cancel)
	if m.Audit != nil {
		m.Audit.Record(m.RunID, audit.EventApprovalAsk, res.Path, summary)
	}
	if outcome != gate.Approved {
		if m.Audit != nil {
			m.Audit.Record(m.RunID, audit.EventApprovalRejected, res.Path, "")
		}
		return EditResult{Reason: "rejected"}, nil
	}
	if m.Audit != nil {
		m.Audit.Record(m.RunID, audit.EventApprovalApproved, res.Path, "")
	}

	if err := m.Tx.Stage(absPath); err != nil {
		return EditResult{}, fmt.Errorf("stage transaction: %w", err)
	}
	if err := writeAtomic(absPath, after); err != nil {
		return EditResult{}, fmt.Errorf("write file: %w", err)
	}

	// The fingerprint recorded here is the PRE-edit hash: the deterministic
	// reviewer rejects when disk content still hashes to it, meaning the
	// write never actually took structural effect.
	state.DiffMemory[res.Path] = contentHash(before)
	state.FilesModified[res.Path] = true
	if m.Audit != nil {
		m.Audit.Record(m.RunID, audit.EventWriteCommitted, res.Path, "")
	}

	noop := before == after || reason == diff.ReasonNoop
	m.Observe(state, "rewrite_function", map[string]string{"file": res.Path}, "written", "", true, noop)

	state.Phase = Reviewer
	return EditResult{Approved: true, Path: res.Path}, nil
}

func languageFor(path string) string {
	if strings.HasSuffix(path, ".go") {
		return "go"
	}
	return ""
}

func writeAtomic(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReviewDecision is the deterministic reviewer's verdict for one file.
type ReviewDecision struct {
	File    string
	Reject  bool
	Reason  string
	AskOracle bool
	Content string
}

// RunDeterministicReview implements C11: for each modified file, read disk
// directly (bypassing any cache), hash it, and compare to the recorded
// diff-memory fingerprint.
func (m *Machine) RunDeterministicReview(state *State) []ReviewDecision {
	var decisions []ReviewDecision
	if len(state.FilesModified) == 0 {
		return []ReviewDecision{{Reject: true, Reason: "no edits produced"}}
	}
	var files []string
	for f := range state.FilesModified {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		abs := filepath.Join(state.RepoRoot, f)
		data, err := os.ReadFile(abs)
		if err != nil {
			decisions = append(decisions, ReviewDecision{File: f, Reject: true, Reason: "read_failed"})
			continue
		}
		content := string(data)
		hash := contentHash(content)
		preEditHash, ok := state.DiffMemory[f]
		if !ok || hash == preEditHash {
			decisions = append(decisions, ReviewDecision{File: f, Reject: true, Reason: "no change on disk"})
			continue
		}
		decisions = append(decisions, ReviewDecision{File: f, AskOracle: true, Content: content})
	}
	return decisions
}

// JudgeGoalSatisfaction implements §4.9 step 3: once the deterministic
// reviewer has confirmed disk actually changed, ask the oracle whether the
// new content satisfies the goal, rather than accepting any observed change.
func (m *Machine) JudgeGoalSatisfaction(ctx context.Context, goal, content string) (bool, error) {
	prompt := fmt.Sprintf("goal: %s\n\nfile content after the edit:\n%s\n\ndoes this content satisfy the goal? respond with JSON: {\"satisfied\": true or false}", goal, content)
	raw, err := m.Oracle.Call(ctx, prompt, true)
	if err != nil {
		return false, fmt.Errorf("goal-satisfaction judgement: %w", err)
	}
	var verdict struct {
		Satisfied bool `json:"satisfied"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return false, fmt.Errorf("parse goal-satisfaction verdict: %w", err)
	}
	return verdict.Satisfied, nil
}

// Validate runs the deterministic validator (C9) for one step's before/after
// file content, translating the step's Rule into the goal text the
// validate package's pattern library expects.
func Validate(step Step, before, after string) bool {
	return validate.Validate(goalTextFor(step), step.TargetFile, before, after)
}

func goalTextFor(step Step) string {
	switch step.Rule.Kind {
	case RuleDeleteLines:
		return fmt.Sprintf("delete lines %d-%d", step.Rule.Start, step.Rule.End)
	case RuleAddImport:
		return fmt.Sprintf("add import %s", step.Rule.Name)
	case RuleUpdateAssignment:
		return fmt.Sprintf("update %s = %s", step.Rule.Name, step.Rule.Value)
	case RuleAddComment:
		return fmt.Sprintf("add comment %s", step.Rule.Text)
	default:
		return step.Description
	}
}

// AssembleContext bridges to the chunk loader (C12): build candidate
// chunks from the graph's known symbols for every file in files and
// assemble a bounded-size context string.
func (m *Machine) AssembleContext(query string, files []string, budget int) string {
	var chunks []*chunk.Chunk
	for _, f := range files {
		for _, s := range m.Graph.SymbolsInFile(f) {
			c, err := chunk.Extract(m.RepoRoot, m.Graph, f, s.Name)
			if err == nil {
				chunks = append(chunks, c)
			}
		}
	}
	return chunk.AssembleContext(query, chunks, budget)
}
