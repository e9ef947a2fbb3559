package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	synthesizeOutput string
	synthesizePrint  bool
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <feature-id>",
	Short: "Render the implementation plan document",
	Long: `Render a feature's execution plan as a markdown document and store
it alongside the feature's artifacts.

The document lists the execution order, per-step checkpoints and open
findings, ready to hand to whoever implements the feature.`,
	Args: featureIDArg,
	RunE: runSynthesize,
}

func init() {
	synthesizeCmd.Flags().StringVar(&synthesizeOutput, "output", "", "Also write the document to this path")
	synthesizeCmd.Flags().BoolVar(&synthesizePrint, "print", false, "Print the document to stdout")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	featureID := args[0]

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	doc, err := eng.Synthesize(ctx, featureID)
	if err != nil {
		return err
	}

	if synthesizePrint {
		fmt.Print(doc.Markdown)
	}

	if synthesizeOutput != "" {
		if err := os.WriteFile(synthesizeOutput, []byte(doc.Markdown), 0644); err != nil {
			return fmt.Errorf("write %s: %w", synthesizeOutput, err)
		}
		if !synthesizePrint {
			fmt.Printf("Plan document written to %s\n", synthesizeOutput)
		}
	}

	if !doc.Written {
		// The canonical copy under the workspace could not be stored.
		if synthesizeOutput == "" && !synthesizePrint {
			return doc.WriteErr
		}
		fmt.Fprintf(os.Stderr, "Warning: %s\n", doc.WriteErr)
		return nil
	}
	if !synthesizePrint && synthesizeOutput == "" {
		fmt.Printf("Plan document written to %s\n", doc.Path)
	}
	return nil
}
