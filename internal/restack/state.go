package restack

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"basalt.dev/basalt/internal/stack"
)

const stateFileName = "restack-state.yml"

// savedBranch is one stack branch as persisted across an interrupted run
type savedBranch struct {
	Name   string `yaml:"name"`
	OldTip string `yaml:"old_tip"`
	NewTip string `yaml:"new_tip,omitempty"`
	State  string `yaml:"state"`
}

// savedState is the on-disk record of a restack halted by a conflict.
// It carries everything Continue needs: the frozen pre-rebase tips, the
// per-branch progress, and which branch the rebase stopped on.
type savedState struct {
	BaseBranch   string        `yaml:"base_branch"`
	BaseTip      string        `yaml:"base_tip"`
	CurrentIndex int           `yaml:"current_index"`
	Branches     []savedBranch `yaml:"branches"`
}

func (o *Orchestrator) statePath() string {
	return filepath.Join(o.stateDir, stateFileName)
}

func (o *Orchestrator) saveState(s *stack.Stack, baseTip string, oldTips map[string]string, report *Report, currentIndex int) error {
	state := savedState{
		BaseBranch:   s.Base,
		BaseTip:      baseTip,
		CurrentIndex: currentIndex,
	}

	for i, branch := range s.Branches {
		state.Branches = append(state.Branches, savedBranch{
			Name:   branch.Name,
			OldTip: oldTips[branch.Name],
			NewTip: report.Results[i].NewTip,
			State:  string(report.Results[i].State),
		})
	}

	data, err := yaml.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to serialize restack state: %w", err)
	}

	if err := os.MkdirAll(o.stateDir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(o.statePath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write restack state: %w", err)
	}
	return nil
}

func (o *Orchestrator) loadState() (*savedState, error) {
	data, err := os.ReadFile(o.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no interrupted restack found; run 'bt restack' instead")
		}
		return nil, fmt.Errorf("failed to read restack state: %w", err)
	}

	var state savedState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse restack state: %w", err)
	}
	if state.CurrentIndex < 0 || state.CurrentIndex >= len(state.Branches) {
		return nil, fmt.Errorf("restack state is inconsistent; run 'bt restack --abort'")
	}
	return &state, nil
}

func (o *Orchestrator) clearState() {
	_ = os.Remove(o.statePath())
}

// restore rebuilds the in-memory structures Run works with
func (s *savedState) restore() (*stack.Stack, map[string]string, *Report) {
	st := &stack.Stack{Base: s.BaseBranch}
	oldTips := make(map[string]string, len(s.Branches))
	report := &Report{}

	for _, branch := range s.Branches {
		st.Branches = append(st.Branches, stack.Branch{Name: branch.Name, Commit: branch.OldTip})
		oldTips[branch.Name] = branch.OldTip
		report.Results = append(report.Results, BranchResult{
			Branch: branch.Name,
			State:  BranchState(branch.State),
			OldTip: branch.OldTip,
			NewTip: branch.NewTip,
		})
	}

	return st, oldTips, report
}

func (s *savedState) toReport() *Report {
	_, _, report := s.restore()
	return report
}
