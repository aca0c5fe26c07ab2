package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/specdrive/specdrive/pkg/runstate"
)

var runsStateDir string

// runsCmd lists recorded pipeline runs, newest first.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := runsStateDir
		if baseDir == "" {
			baseDir = filepath.Join(".specdrive", "runs")
		}
		states, err := runstate.ListRunStates(baseDir)
		if err != nil {
			return err
		}
		if len(states) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}
		for _, st := range states {
			completed := 0
			failed := 0
			for _, step := range st.Steps {
				switch step.Status {
				case runstate.StatusCompleted:
					completed++
				case runstate.StatusFailed:
					failed++
				}
			}
			status := "in progress"
			if failed > 0 {
				status = "failed"
			} else if completed == len(st.Steps) && len(st.Steps) > 0 {
				status = "completed"
			}
			fmt.Printf("%s  %-11s %d/%d steps  %s\n", st.RunID, status, completed, len(st.Steps), st.SpecPath)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStateDir, "state-dir", "", "Directory holding run state (default .specdrive/runs)")
}
