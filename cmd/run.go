package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/specdrive/specdrive/pkg/orchestration"
	"github.com/specdrive/specdrive/pkg/provider"
	"github.com/specdrive/specdrive/pkg/utils"
)

var runOpts = struct {
	stateDir          string
	workTree          string
	skipTests         bool
	skipReview        bool
	dryRun            bool
	atomicAcrossFiles bool
	model             string
	fallbackModel     string
	phaseTimeout      time.Duration
	maxContextFiles   int
}{}

// runCmd executes the full pipeline. Re-running against an unchanged
// spec resumes the latest run instead of starting over.
var runCmd = &cobra.Command{
	Use:   "run <spec-file>",
	Short: "Execute the full pipeline against a spec",
	Long: `Run parses the spec, validates it through the gates, reviews and
scores it, generates tests and an implementation via the configured
AI provider, and applies the resulting diffs to the work tree.

Provider access is configured through the environment:
  SPECDRIVE_API_KEY   (falls back to OPENAI_API_KEY)
  SPECDRIVE_API_BASE  (any OpenAI-compatible endpoint)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := utils.GetLogger()

		gateway, err := buildGateway(logger)
		if err != nil {
			return err
		}

		orch := orchestration.New(orchestration.BuildPipeline(), gateway, logger, orchestration.RunOptions{
			BaseDir:           runOpts.stateDir,
			WorkTree:          runOpts.workTree,
			SkipTests:         runOpts.skipTests,
			SkipReview:        runOpts.skipReview,
			DryRun:            runOpts.dryRun,
			AtomicAcrossFiles: runOpts.atomicAcrossFiles,
			PhaseTimeout:      runOpts.phaseTimeout,
			MaxContextFiles:   runOpts.maxContextFiles,
		})

		state, err := orch.Run(cmd.Context(), args[0])
		if state != nil {
			fmt.Println(state.Summary())
		}
		return err
	},
}

// buildGateway wires the primary provider plus an optional fallback
// model behind the retrying wrapper.
func buildGateway(logger *utils.Logger) (provider.Gateway, error) {
	apiKey := os.Getenv("SPECDRIVE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key set; export SPECDRIVE_API_KEY or OPENAI_API_KEY")
	}
	baseURL := os.Getenv("SPECDRIVE_API_BASE")

	primary := provider.NewOpenAICompatible(baseURL, apiKey, runOpts.model)
	var fallback provider.Gateway
	if runOpts.fallbackModel != "" {
		fallback = provider.NewOpenAICompatible(baseURL, apiKey, runOpts.fallbackModel)
	}
	return provider.NewRetrying(primary, fallback, logger), nil
}

func init() {
	runCmd.Flags().StringVar(&runOpts.stateDir, "state-dir", "", "Directory for run state (default .specdrive/runs)")
	runCmd.Flags().StringVar(&runOpts.workTree, "work-tree", ".", "Root directory diffs are applied under")
	runCmd.Flags().BoolVar(&runOpts.skipTests, "skip-tests", false, "Skip the test generation phase")
	runCmd.Flags().BoolVar(&runOpts.skipReview, "skip-review", false, "Skip the adversarial review phase")
	runCmd.Flags().BoolVar(&runOpts.dryRun, "dry-run", false, "Verify generated diffs without writing files")
	runCmd.Flags().BoolVar(&runOpts.atomicAcrossFiles, "atomic-across-files", false, "Roll back every file if any file in a diff fails")
	runCmd.Flags().StringVar(&runOpts.model, "model", "gpt-4o-mini", "Model for generation phases")
	runCmd.Flags().StringVar(&runOpts.fallbackModel, "fallback-model", "", "Model tried after the primary exhausts its retries")
	runCmd.Flags().DurationVar(&runOpts.phaseTimeout, "phase-timeout", 5*time.Minute, "Per-provider-call timeout")
	runCmd.Flags().IntVar(&runOpts.maxContextFiles, "max-context-files", 0, "Cap on workspace files included in prompts (0 = default)")
}
