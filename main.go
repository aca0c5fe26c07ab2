package main

import (
	"os"

	"github.com/specdrive/specdrive/cmd"
	"github.com/specdrive/specdrive/pkg/utils"
)

func main() {
	logger := utils.GetLogger()
	// Close the logger on exit so buffered log lines reach disk.
	defer func() {
		if err := logger.Close(); err != nil {
			os.Stderr.WriteString("Error closing logger: " + err.Error() + "\n")
		}
	}()

	if err := cmd.Execute(); err != nil {
		logger.Logf("Application error: %v", err)
		os.Stderr.WriteString(utils.FormatError(err) + "\n")
		os.Exit(1)
	}
}
