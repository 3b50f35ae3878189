package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l7mp/reldb/internal/buildinfo"
)

// version, commitHash and buildDate are overridden at link time via
// -ldflags, following the teacher's convention.
var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reldemo",
	Short: "reldb scenario runner",
	Long:  "reldemo drives the reldb engine through a handful of worked scenarios, printing the three-phase observer protocol as it fires.",
}

func main() {
	rootCmd.AddCommand(runScenarioCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.BuildInfo{Version: version, CommitHash: commitHash, BuildDate: buildDate}
		fmt.Println(info.String())
		return nil
	},
}

var runScenarioCmd = &cobra.Command{
	Use:   "run-scenario <s1|s2|s3|s4|s5|s6>",
	Short: "run one of the worked scenarios S1-S6 to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zapLog, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer zapLog.Sync()
		logger := zapr.NewLogger(zapLog)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		switch args[0] {
		case "s1":
			return runS1(ctx, logger)
		case "s2":
			return runS2(ctx, logger)
		case "s3":
			return runS3(ctx, logger)
		case "s4":
			return runS4(ctx, logger)
		case "s5":
			return runS5(ctx, logger)
		case "s6":
			return runS6(ctx, logger)
		default:
			return fmt.Errorf("unknown scenario %q, want one of s1..s6", args[0])
		}
	},
}
