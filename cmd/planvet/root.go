package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootDir string

// usageError marks an invalid invocation. Execute exits with code 2 for
// these, so scripts can tell bad arguments apart from failed runs.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// featureIDArg validates the single positional feature identifier.
func featureIDArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageErrorf("expected exactly one feature id, got %d arguments", len(args))
	}
	if args[0] == "" {
		return usageErrorf("feature id must not be empty")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "planvet",
	Short: "Plan orchestration and validation engine",
	Long: `Planvet validates a feature's planning artifacts against each other
before any implementation starts.

It discovers the plan documents for a feature (schema, API contract,
backend logic, frontend, UI components), orders them by their natural
dependencies, and cross-checks each adjacent pair for type, naming,
reference and completeness drift. Validation runs inside a bounded
fix loop: failing runs get another iteration until the plans agree or
the budget runs out and the feature escalates to a human.

Core commands:
  validate     Run the validate-fix loop for a feature
  orchestrate  Produce the checkpointed execution plan
  synthesize   Render the implementation plan document
  reindex      Rebuild the governance document index
  status       Show a feature's session and recent runs`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps errors to exit codes: 0 for
// success, 1 for failed runs, 2 for invalid invocations.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "dir", "", "Project root (default: nearest directory with .planvet.yaml, else the current one)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
