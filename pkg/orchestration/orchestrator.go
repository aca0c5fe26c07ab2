// Package orchestration sequences the pipeline phases against one
// specification, persisting a resumable run state after every phase
// transition. Scheduling is cooperative: phases of one run never execute
// concurrently, and cancellation is honored between phases only.
package orchestration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specdrive/specdrive/pkg/gates"
	"github.com/specdrive/specdrive/pkg/provider"
	"github.com/specdrive/specdrive/pkg/runstate"
	"github.com/specdrive/specdrive/pkg/spec"
	"github.com/specdrive/specdrive/pkg/utils"
)

// Orchestrator drives one or more pipeline runs.
type Orchestrator struct {
	registry *Registry
	gateway  provider.Gateway
	logger   *utils.Logger
	opts     RunOptions
}

// New builds an orchestrator over the given phase registry.
func New(registry *Registry, gateway provider.Gateway, logger *utils.Logger, opts RunOptions) *Orchestrator {
	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Join(".specdrive", "runs")
	}
	if opts.WorkTree == "" {
		opts.WorkTree = "."
	}
	if opts.PhaseTimeout == 0 {
		opts.PhaseTimeout = 5 * time.Minute
	}
	return &Orchestrator{registry: registry, gateway: gateway, logger: logger, opts: opts}
}

// ApplicablePhases filters the full phase set by each phase's
// applicability predicate.
func (o *Orchestrator) ApplicablePhases(rc *RunContext) []Phase {
	var out []Phase
	for _, p := range o.registry.Phases() {
		if p.Applies == nil || p.Applies(rc) {
			out = append(out, p)
		}
	}
	return out
}

// Run executes the pipeline against specPath, resuming a prior run when
// its stored spec hash still matches the file's current content.
func (o *Orchestrator) Run(ctx context.Context, specPath string) (*runstate.RunState, error) {
	absPath, err := filepath.Abs(specPath)
	if err != nil {
		return nil, utils.NewFileSystemError("resolve", specPath, err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, utils.NewFileSystemError("read", absPath, err)
	}

	parsed, err := spec.Parse(string(content))
	if err != nil {
		return nil, err
	}

	rc := &RunContext{
		Spec:        parsed,
		SpecPath:    absPath,
		SpecHash:    runstate.HashSpec(content),
		Options:     o.opts,
		Gateway:     o.gateway,
		Logger:      o.logger,
		GateResults: map[string]gates.GateResult{},
		Diffs:       map[string]string{},
	}

	if err := o.prepareRun(rc); err != nil {
		return nil, err
	}

	err = o.executePhases(ctx, rc)
	return rc.State, err
}

// prepareRun resumes the latest compatible prior run for the spec, or
// starts a fresh one. A stored hash that no longer matches the file's
// current content invalidates the prior state so a run never resumes
// against an edited specification.
func (o *Orchestrator) prepareRun(rc *RunContext) error {
	priorDir, prior, err := runstate.FindLatestRunDir(o.opts.BaseDir, rc.SpecPath)
	if err != nil {
		return err
	}
	if prior != nil && prior.SpecHash == rc.SpecHash {
		rc.RunID = prior.RunID
		rc.RunDir = priorDir
		rc.State = prior
		o.logger.LogProcessStep(fmt.Sprintf("Resuming run %s", prior.RunID))
		o.loadDiffArtifacts(rc)
		return nil
	}
	if prior != nil {
		o.logger.LogProcessStep("Specification changed since last run; starting fresh")
	}

	runID, runDir, err := runstate.CreateRunDir(o.opts.BaseDir)
	if err != nil {
		return err
	}
	rc.RunID = runID
	rc.RunDir = runDir
	rc.State = runstate.InitRunState(runID, rc.SpecPath, rc.SpecHash)
	return runstate.SaveRunState(runDir, rc.State)
}

// executePhases runs every applicable phase in dependency order,
// persisting the whole run document after each transition.
func (o *Orchestrator) executePhases(ctx context.Context, rc *RunContext) error {
	applicable := o.ApplicablePhases(rc)
	applicableNames := map[string]bool{}
	for _, p := range applicable {
		applicableNames[p.Name] = true
		if _, tracked := rc.State.Steps[p.Name]; !tracked {
			rc.State.SetStep(p.Name, runstate.StepState{Status: runstate.StatusPending})
		}
	}
	if err := runstate.SaveRunState(rc.RunDir, rc.State); err != nil {
		return err
	}

	var firstFailure error
	// On resume, failed and skipped phases from the prior attempt still
	// block their dependents.
	failed := map[string]bool{}
	for name, step := range rc.State.Steps {
		if step.Status == runstate.StatusFailed || step.Status == runstate.StatusSkipped {
			failed[name] = true
		}
	}

	for _, p := range applicable {
		// Aborts happen between phases; a running phase is never preempted.
		if err := ctx.Err(); err != nil {
			return err
		}

		step := rc.State.Steps[p.Name]
		if step.Status.Terminal() {
			// Resumed run: terminal phases are never re-invoked.
			continue
		}

		if dep := o.firstFailedDependency(p, failed, applicableNames); dep != "" {
			o.transition(rc, p.Name, runstate.StepState{
				Status: runstate.StatusSkipped,
				Error:  fmt.Sprintf("dependency %s failed", dep),
			})
			failed[p.Name] = true
			continue
		}

		started := time.Now().UTC().Format(time.RFC3339)
		o.transition(rc, p.Name, runstate.StepState{Status: runstate.StatusRunning, StartedAt: started})

		err := p.Run(ctx, rc)
		finished := time.Now().UTC().Format(time.RFC3339)

		if err != nil {
			phaseErr := utils.NewExecutionError(p.Name, err)
			o.transition(rc, p.Name, runstate.StepState{
				Status:     runstate.StatusFailed,
				StartedAt:  started,
				FinishedAt: finished,
				Error:      err.Error(),
			})
			failed[p.Name] = true
			if firstFailure == nil {
				firstFailure = phaseErr
			}
			continue
		}

		o.transition(rc, p.Name, runstate.StepState{
			Status:     runstate.StatusCompleted,
			StartedAt:  started,
			FinishedAt: finished,
		})
	}

	return firstFailure
}

// firstFailedDependency returns the name of a failed (or transitively
// skipped) dependency, ignoring dependencies filtered out by
// applicability.
func (o *Orchestrator) firstFailedDependency(p Phase, failed map[string]bool, applicable map[string]bool) string {
	for _, dep := range p.DependsOn {
		if !applicable[dep] {
			continue
		}
		if failed[dep] {
			return dep
		}
	}
	return ""
}

// transition updates one step and persists the whole document, then
// appends the transition to the event log.
func (o *Orchestrator) transition(rc *RunContext, phase string, st runstate.StepState) {
	rc.State.SetStep(phase, st)
	if err := runstate.SaveRunState(rc.RunDir, rc.State); err != nil {
		o.logger.LogError(err)
	}
	entry := runstate.LogEntry{
		"message": fmt.Sprintf("phase %s -> %s", phase, st.Status),
		"phase":   phase,
		"status":  string(st.Status),
	}
	if st.Error != "" {
		entry["level"] = "error"
		entry["error"] = st.Error
	}
	if err := runstate.AppendLogLine(rc.RunDir, entry); err != nil {
		o.logger.LogError(err)
	}
}

// saveDiffArtifact persists generated diff text under the run directory
// so a resumed run can still apply it.
func saveDiffArtifact(rc *RunContext, phase, diffText string) error {
	dir := filepath.Join(rc.RunDir, "artifacts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return utils.NewFileSystemError("mkdir", dir, err)
	}
	path := filepath.Join(dir, phase+".diff")
	if err := os.WriteFile(path, []byte(diffText), 0644); err != nil {
		return utils.NewFileSystemError("write", path, err)
	}
	rc.Diffs[phase] = diffText
	return nil
}

// loadDiffArtifacts restores previously generated diffs when resuming.
func (o *Orchestrator) loadDiffArtifacts(rc *RunContext) {
	dir := filepath.Join(rc.RunDir, "artifacts")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".diff" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		rc.Diffs[name[:len(name)-len(".diff")]] = string(data)
	}
}
