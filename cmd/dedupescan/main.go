package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dedupescan",
		Short:   "Analyze fingerprint listings for whole-file and sub-file deduplication opportunities",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newAnalyzeCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
