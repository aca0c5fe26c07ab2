package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specdrive/specdrive/pkg/patch"
	"github.com/specdrive/specdrive/pkg/utils"
)

var applyOpts = struct {
	root              string
	atomicAcrossFiles bool
	dryRun            bool
	preview           bool
}{}

// applyCmd applies a unified diff from a file (or stdin with "-") with
// strict context verification. A rejected hunk leaves every target file
// untouched.
var applyCmd = &cobra.Command{
	Use:   "apply <diff-file>",
	Short: "Apply a unified diff with strict verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return utils.NewFileSystemError("read", args[0], err)
		}
		diffText := string(data)

		opts := patch.ApplyOptions{
			RootDir:           applyOpts.root,
			AtomicAcrossFiles: applyOpts.atomicAcrossFiles,
			DryRun:            applyOpts.dryRun,
		}

		if applyOpts.preview {
			rendered, err := patch.Preview(diffText, opts)
			if err != nil {
				return err
			}
			fmt.Print(rendered)
		}

		if err := patch.Apply(diffText, opts); err != nil {
			return err
		}
		if applyOpts.dryRun {
			fmt.Println("Dry run: diff verified, no files written")
		} else {
			fmt.Println("Diff applied")
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyOpts.root, "root", ".", "Root directory paths in the diff resolve under")
	applyCmd.Flags().BoolVar(&applyOpts.atomicAcrossFiles, "atomic-across-files", false, "Roll back every file if any file fails")
	applyCmd.Flags().BoolVar(&applyOpts.dryRun, "dry-run", false, "Verify without writing")
	applyCmd.Flags().BoolVar(&applyOpts.preview, "preview", false, "Print a colored summary of the changes")
}
