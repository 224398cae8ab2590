package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivoronin/dedupescan/internal/config"
	"github.com/ivoronin/dedupescan/internal/pipeline"
	"github.com/ivoronin/dedupescan/internal/report"
	"github.com/ivoronin/dedupescan/internal/resolver"
)

// analyzeOptions holds CLI flags for the analyze command.
type analyzeOptions struct {
	checksumType string
	minBlocks    int
	dumpVectors  bool
	debug        bool
	showGraph    bool
	configPath   string
	dbPath       string
	summary      bool
	workers      int
}

// newAnalyzeCmd creates the analyze subcommand.
func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{
		checksumType: "MD5",
		minBlocks:    2,
		workers:      runtime.NumCPU(),
	}

	cmd := &cobra.Command{
		Use:   "analyze <whole_checksums_file> [block_checksums_file]",
		Short: "Find whole-file and sub-file deduplication opportunities",
		Long: `Reads a whole-file checksum listing and, optionally, a block-level
checksum listing, and emits whole-file duplicate groups and proposed
dedupe groups for sub-file sharing.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.checksumType, "checksum-type", opts.checksumType, "Checksum algorithm used in the input files (MD5, SHA1, SHA256, SHA512)")
	cmd.Flags().IntVar(&opts.minBlocks, "min-blocks", opts.minBlocks, "Minimum number of shared blocks for a file to be considered")
	cmd.Flags().BoolVar(&opts.dumpVectors, "dump-vectors", false, "Write the pruned block vectors to a JSON sidecar")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Diagnostic toggle: turns off progress bars (no other diagnostic output in this port)")
	cmd.Flags().BoolVar(&opts.showGraph, "show-graph", false, "Display the bipartite graph (no-op: no plotting backend in this port)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Write resolved dedupe groups to a queryable sqlite database")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a console summary table after analysis")
	cmd.Flags().IntVar(&opts.workers, "workers", opts.workers, "Number of parallel workers resolving independent components")

	return cmd
}

// drainWarnings consumes non-fatal parse warnings from a channel and writes
// them to stderr. Clears the progress bar line before printing to avoid
// visual collision.
func drainWarnings(warnings <-chan error) {
	for w := range warnings {
		fmt.Fprintf(os.Stderr, "\r\033[Kwarning: %v\n", w)
	}
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, opts, cfg); err != nil {
		return err
	}

	wholePath := args[0]
	wholeFile, err := os.Open(wholePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", wholePath, err)
	}
	defer wholeFile.Close()

	blockPath := ""
	blockFile, err := os.Open(os.DevNull)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer blockFile.Close()
	if len(args) == 2 {
		blockPath = args[1]
		blockFile.Close()
		blockFile, err = os.Open(blockPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", blockPath, err)
		}
		defer blockFile.Close()
	}

	warnings := make(chan error, 100)
	go drainWarnings(warnings)
	defer close(warnings)

	result, err := pipeline.Analyze(wholeFile, blockFile, pipeline.Options{
		MinBlocks:    cfg.MinBlocks,
		Workers:      opts.workers,
		ShowProgress: !opts.debug,
	}, warnings)
	if err != nil {
		var sepErr *resolver.NoSeparatingEdgeError
		if errors.As(err, &sepErr) {
			return fmt.Errorf("could not resolve conflicts in group %s: %w", sepErr.GroupName, err)
		}
		return err
	}

	base := strings.TrimSuffix(wholePath, filepath.Ext(wholePath))
	if err := report.WriteDuplicates(result.DuplicateGroups, base+".json"); err != nil {
		return err
	}

	if blockPath == "" {
		return nil
	}

	dedupeBase := strings.TrimSuffix(blockPath, filepath.Ext(blockPath))
	if err := report.WriteDedupeGroups(result.DedupeGroups, dedupeBase+".dedupe.json"); err != nil {
		return err
	}
	if cfg.DumpVectors {
		if err := report.WriteVectors(result.Vectors, result.Interner, dedupeBase+".vectors.json"); err != nil {
			return err
		}
	}
	if cfg.Report.DBPath != "" {
		if err := report.WriteSQLite(result.DedupeGroups, cfg.Report.DBPath); err != nil {
			return err
		}
	}
	if cfg.Report.SummaryTable {
		report.PrintSummary(result.DedupeGroups, os.Stdout)
	}

	return nil
}

// applyFlagOverrides layers only the flags the user actually set on top of
// cfg, preserving the defaults < config file < CLI flags precedence.
func applyFlagOverrides(cmd *cobra.Command, opts *analyzeOptions, cfg *config.Config) error {
	flags := cmd.Flags()
	overrides := config.Overrides{}
	if flags.Changed("checksum-type") {
		overrides.ChecksumType = &opts.checksumType
	}
	if flags.Changed("min-blocks") {
		overrides.MinBlocks = &opts.minBlocks
	}
	if flags.Changed("dump-vectors") {
		overrides.DumpVectors = &opts.dumpVectors
	}
	if flags.Changed("db") {
		overrides.DBPath = &opts.dbPath
	}
	if flags.Changed("summary") {
		overrides.SummaryTable = &opts.summary
	}
	return cfg.Apply(overrides)
}
