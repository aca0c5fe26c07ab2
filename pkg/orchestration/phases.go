package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/specdrive/specdrive/pkg/filediscovery"
	"github.com/specdrive/specdrive/pkg/gates"
	"github.com/specdrive/specdrive/pkg/patch"
	"github.com/specdrive/specdrive/pkg/prompts"
	"github.com/specdrive/specdrive/pkg/provider"
	"github.com/specdrive/specdrive/pkg/review"
	"github.com/specdrive/specdrive/pkg/scope"
)

// Built-in pipeline phase names.
const (
	PhaseValidate      = "validate"
	PhaseReview        = "review"
	PhaseAnalyze       = "analyze"
	PhaseGenerateTests = "generate-tests"
	PhaseImplement     = "implement"
	PhasePatch         = "patch"
	PhaseFinalize      = "finalize"
)

// BuildPipeline registers the built-in phase set. Registration order is
// the execution order; Register enforces it is dependency-consistent.
func BuildPipeline() *Registry {
	r := NewRegistry()

	r.MustRegister(Phase{
		Name:    PhaseValidate,
		Outputs: []string{"gate_results"},
		Run:     runValidate,
	})

	r.MustRegister(Phase{
		Name:      PhaseReview,
		DependsOn: []string{PhaseValidate},
		Outputs:   []string{"review_report"},
		Applies:   func(rc *RunContext) bool { return !rc.Options.SkipReview },
		Run:       runReview,
	})

	r.MustRegister(Phase{
		Name:      PhaseAnalyze,
		DependsOn: []string{PhaseValidate},
		Outputs:   []string{"scope_assessment"},
		Run:       runAnalyze,
	})

	r.MustRegister(Phase{
		Name:      PhaseGenerateTests,
		DependsOn: []string{PhaseValidate, PhaseAnalyze},
		Outputs:   []string{"tests_diff"},
		Applies:   func(rc *RunContext) bool { return !rc.Options.SkipTests },
		Run:       runGenerateTests,
	})

	r.MustRegister(Phase{
		Name:      PhaseImplement,
		DependsOn: []string{PhaseValidate, PhaseAnalyze},
		Outputs:   []string{"implementation_diff"},
		Run:       runImplement,
	})

	r.MustRegister(Phase{
		Name:      PhasePatch,
		DependsOn: []string{PhaseImplement},
		Outputs:   []string{"applied_files"},
		Run:       runPatch,
	})

	r.MustRegister(Phase{
		Name:      PhaseFinalize,
		DependsOn: []string{PhasePatch},
		Outputs:   []string{},
		Run:       runFinalize,
	})

	return r
}

// runValidate executes all four gates and fails the pipeline when any
// gate reports violations.
func runValidate(_ context.Context, rc *RunContext) error {
	results := gates.RunAllGates(rc.Spec)
	rc.GateResults = results

	for _, name := range []string{"G1", "G2", "G3", "G4"} {
		res := results[name]
		for _, v := range res.Violations {
			rc.Logger.Logf("%s violation %s: %s", name, v.Code, v.Message)
		}
	}

	if !gates.AllPassed(results) {
		var codes []string
		for _, name := range []string{"G1", "G2", "G3", "G4"} {
			for _, v := range results[name].Violations {
				codes = append(codes, v.Code)
			}
		}
		return fmt.Errorf("gate validation failed: %s", strings.Join(codes, ", "))
	}
	return nil
}

// runReview runs the adversarial reviewers; critical findings stop the
// pipeline before any code generation happens.
func runReview(_ context.Context, rc *RunContext) error {
	report := review.Review(rc.Spec)
	rc.Review = &report
	for _, f := range report.Findings {
		rc.Logger.Logf("review [%s/%s] %s", f.Adversary, f.Severity, f.Issue)
	}
	if report.CriticalCount > 0 {
		return fmt.Errorf("adversarial review found %d critical issue(s)", report.CriticalCount)
	}
	return nil
}

// runAnalyze scores the spec's scope. An over-threshold score is advice,
// not an error: the pipeline proceeds and records the assessment.
func runAnalyze(_ context.Context, rc *RunContext) error {
	assessment := scope.Analyze(rc.Spec)
	rc.Assessment = &assessment
	if assessment.ShouldSplit {
		rc.Logger.Logf("scope score %.2f exceeds threshold; consider splitting %s", assessment.Score, rc.Spec.Metadata.ID)
	}
	return nil
}

func runGenerateTests(ctx context.Context, rc *RunContext) error {
	return generateDiff(ctx, rc, PhaseGenerateTests, prompts.TestGenerationSystem())
}

func runImplement(ctx context.Context, rc *RunContext) error {
	return generateDiff(ctx, rc, PhaseImplement, prompts.ImplementationSystem())
}

// generateDiff asks the provider gateway for a unified diff and persists
// it as a run artifact. The diff must parse cleanly before the phase is
// considered done.
func generateDiff(ctx context.Context, rc *RunContext, phase, systemPrompt string) error {
	if existing, ok := rc.Diffs[phase]; ok && existing != "" {
		return nil
	}

	userPrompt := prompts.SpecUser(rc.Spec)
	files, err := filediscovery.ContextFiles(rc.Options.WorkTree, rc.Options.MaxContextFiles)
	if err == nil && len(files) > 0 {
		userPrompt += "\n\n" + prompts.ContextFilesUser(files)
	}

	result, err := rc.Gateway.Generate(ctx, systemPrompt, userPrompt, provider.Options{
		Timeout: rc.Options.PhaseTimeout,
	})
	if err != nil {
		return err
	}

	diffText := extractDiff(result.Content)
	if _, err := patch.ParseUnified(diffText); err != nil {
		return fmt.Errorf("provider %s returned an unusable diff: %w", result.Provider, err)
	}
	return saveDiffArtifact(rc, phase, diffText)
}

// runPatch applies the generated diffs to the work tree. Test diffs
// apply first so a partial multi-file failure surfaces before the
// implementation lands.
func runPatch(_ context.Context, rc *RunContext) error {
	opts := patch.ApplyOptions{
		RootDir:           rc.Options.WorkTree,
		AtomicAcrossFiles: rc.Options.AtomicAcrossFiles,
		DryRun:            rc.Options.DryRun,
	}
	for _, phase := range []string{PhaseGenerateTests, PhaseImplement} {
		diffText, ok := rc.Diffs[phase]
		if !ok || diffText == "" {
			continue
		}
		if err := patch.Apply(diffText, opts); err != nil {
			return fmt.Errorf("applying %s diff: %w", phase, err)
		}
	}
	return nil
}

// runFinalize writes the closing log entries for the run.
func runFinalize(_ context.Context, rc *RunContext) error {
	rc.Logger.LogProcessStep(fmt.Sprintf("Run %s complete for %s (%s, complexity %s)",
		rc.RunID, rc.Spec.Metadata.ID, rc.SpecPath, rc.Spec.Metadata.Complexity))
	return nil
}

// extractDiff pulls the unified diff out of a provider response,
// stripping a surrounding fenced code block when present.
func extractDiff(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	// Drop the opening fence (with optional language tag) and a closing
	// fence if one exists.
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
