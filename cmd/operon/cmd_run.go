package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/qasimio/Operon/internal/audit"
	"github.com/qasimio/Operon/internal/gate"
	"github.com/qasimio/Operon/internal/gateui"
	"github.com/qasimio/Operon/internal/oracle"
	"github.com/qasimio/Operon/internal/phase"
	"github.com/qasimio/Operon/internal/safety"
)

var (
	runFile     string
	runApply    bool
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Drive the planner/coder/reviewer loop to accomplish a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGoal(args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "target file, when known, skips the planner oracle call")
	runCmd.Flags().BoolVar(&runApply, "apply", false, "auto-approve every proposed edit; takes effect only together with --headless")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run without the interactive approval UI; without --apply, each edit waits for the gate timeout and is rejected")
	rootCmd.AddCommand(runCmd)
}

func runGoal(goal string) error {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	cancel := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			close(cancel)
			cancelCtx()
		case <-ctx.Done():
		}
	}()

	g, err := loadGraph()
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	al, err := audit.Open(repoRoot)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer al.Close()

	gt := gate.New(runHeadless, runApply)

	var program *tea.Program
	if !runHeadless {
		ui := gateui.New(gt)
		program = tea.NewProgram(ui)
		go func() {
			if _, err := program.Run(); err != nil {
				fmt.Fprintln(os.Stderr, "approval UI:", err)
			}
		}()
		defer program.Quit()
	}

	o := oracle.NewCoreOracle(repoRoot, noopTransport{})
	runID := uuid.NewString()
	machine := phase.NewMachine(g, gt, o, al, runID, repoRoot)

	state := phase.NewState(goal, repoRoot)
	state.Git = safety.NewGitSidecar(repoRoot)
	if err := state.Git.Begin(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "git sidecar: begin:", err)
	}

	if runFile != "" {
		state.Plan = phase.SingleStepPlan(goal, runFile)
		state.Phase = phase.Coder
	} else {
		retrieved := machine.AssembleContext(goal, g.TrackedPaths(), 4000)
		if err := machine.RunPlanner(ctx, state, retrieved); err != nil {
			al.Record(runID, audit.EventRunFailed, "", err.Error())
			fmt.Fprintln(os.Stderr, "plan failed:", err)
			os.Exit(1)
		}
	}

	outcome := driveLoop(ctx, machine, state, cancel)

	switch outcome {
	case phase.Done:
		machine.Tx.Commit()
		if err := state.Git.Finish(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "git sidecar: finish:", err)
		}
		al.Record(runID, audit.EventRunDone, "", "")
		fmt.Println("done")
		return nil
	case phase.Failed:
		machine.Tx.Rollback()
		if err := state.Git.Rollback(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "git sidecar: rollback:", err)
		}
		al.Record(runID, audit.EventRunFailed, "", state.FailureReason)
		fmt.Fprintf(os.Stderr, "failed: %s\n", state.FailureReason)
		if state.FailureReason == "cancelled" {
			os.Exit(130)
		}
		os.Exit(1)
	}
	return nil
}

// driveLoop runs the PLANNER→CODER↔REVIEWER→{DONE,FAILED} loop to
// completion, one plan step at a time: each step is dispatched through the
// edit pipeline, then handed to the deterministic reviewer before the next
// step begins.
func driveLoop(ctx context.Context, m *phase.Machine, state *phase.State, cancel <-chan struct{}) phase.Phase {
	for state.Phase != phase.Done && state.Phase != phase.Failed {
		select {
		case <-cancel:
			state.Phase = phase.Failed
			state.FailureReason = "cancelled"
			return state.Phase
		default:
		}

		if state.StepIndex >= len(state.Plan) {
			state.Phase = phase.Done
			break
		}
		step := state.Plan[state.StepIndex]

		if err := m.Dispatch(state, "rewrite_function", map[string]string{"file": step.TargetFile}); err != nil {
			if state.Phase != phase.Failed {
				state.Phase = phase.Failed
				state.FailureReason = err.Error()
			}
			break
		}

		result, err := m.RunEditPipeline(ctx, state, step, cancel)
		if err != nil {
			state.Phase = phase.Failed
			state.FailureReason = err.Error()
			break
		}
		if !result.Approved {
			state.RejectCounts[state.StepIndex]++
			if state.RejectCounts[state.StepIndex] >= phase.RejectThreshold {
				state.Phase = phase.Failed
				state.FailureReason = "reject_threshold:" + result.Reason
				break
			}
			continue
		}

		decisions := m.RunDeterministicReview(state)
		allGood := true
		for _, d := range decisions {
			if d.Reject {
				allGood = false
				continue
			}
			if !d.AskOracle {
				continue
			}
			// CRUD fast-path steps were classified without the oracle at
			// plan time; the deterministic validator already judged them,
			// so the reviewer doesn't re-litigate them against the oracle.
			if step.Rule.Kind != phase.RuleNontrivialDiff {
				continue
			}
			satisfied, err := m.JudgeGoalSatisfaction(ctx, state.Goal, d.Content)
			if err != nil {
				state.Phase = phase.Failed
				state.FailureReason = "oracle_unavailable"
				return state.Phase
			}
			if !satisfied {
				allGood = false
			}
		}
		if !allGood {
			state.Phase = phase.Coder
			continue
		}

		state.StepIndex++
		state.Phase = phase.Coder
	}
	return state.Phase
}
