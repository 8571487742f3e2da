// Package commands implements the quarterly CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quarterly-dev/quarterly/internal/buildinfo"
	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/submission"
)

// Root builds the root command with all subcommands attached.
func Root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "quarterly",
		Short:   "Classify spreadsheet transactions into quarterly tax summaries",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(aggregateCmd())
	return rootCmd
}

// newService builds the submission service for a command run. Dry runs use
// the offline rule-only classifier with no structural analyzer, so nothing
// leaves the machine.
func newService(dryRun bool, log zerolog.Logger) *submission.Service {
	if dryRun {
		return submission.NewService(classify.NewRuleClassifier(), nil, classify.DefaultConfig, log)
	}
	gemini := classify.NewGeminiClassifier(os.Getenv("GEMINI_API_KEY"))
	return submission.NewService(gemini, gemini, classify.DefaultConfig, log)
}
