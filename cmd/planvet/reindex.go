package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planvet/planvet/internal/index"
)

var (
	reindexVerify bool
	reindexWatch  bool
)

// watchDebounce coalesces editor write bursts into one rebuild.
const watchDebounce = 500 * time.Millisecond

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the governance document index",
	Long: `Rebuild the checksummed index of governance documents: the project
constitution, the always-loaded rule documents and the on-demand docs.

With --verify, no rebuild happens; the stored index is checked against
the files on disk and any drift is reported. With --watch, the index
is rebuilt automatically whenever a governance file changes.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexVerify, "verify", false, "Check the stored index against disk instead of rebuilding")
	reindexCmd.Flags().BoolVar(&reindexWatch, "watch", false, "Keep rebuilding as governance files change")
}

func runReindex(cmd *cobra.Command, args []string) error {
	if reindexVerify && reindexWatch {
		return usageErrorf("--verify and --watch are mutually exclusive")
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if reindexVerify {
		stale, err := eng.VerifyIndex(ctx)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			fmt.Printf("%s Index matches disk.\n", color.GreenString("✓"))
			return nil
		}
		for _, s := range stale {
			fmt.Printf("%s %s: %s\n", color.YellowString("⚠"), s.Path, s.Reason)
		}
		return fmt.Errorf("index is stale: %d file(s) drifted", len(stale))
	}

	idx, warnings, err := eng.Reindex(ctx)
	if err != nil {
		return err
	}
	printIndexResult(idx, warnings)

	if !reindexWatch {
		return nil
	}

	watcher, err := eng.IndexCache().NewWatcher(watchDebounce, func(idx *index.Index, warnings []string, err error) {
		stamp := time.Now().Format("15:04:05")
		if err != nil {
			fmt.Printf("[%s] rebuild failed: %v\n", stamp, err)
			return
		}
		fmt.Printf("[%s] reindexed %d file(s)\n", stamp, idx.Validation.TotalFiles)
		for _, w := range warnings {
			fmt.Printf("  %s %s\n", color.YellowString("⚠"), w)
		}
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	fmt.Println("Watching governance files; press Ctrl-C to stop.")
	watcher.Run(ctx)
	return nil
}

func printIndexResult(idx *index.Index, warnings []string) {
	fmt.Printf("%s Indexed %d file(s) (%d auto-loaded, %d path-specific, %d on-demand).\n",
		color.GreenString("✓"),
		idx.Validation.TotalFiles,
		len(idx.AutoLoaded), len(idx.PathSpecific), len(idx.OnDemand))
	for _, w := range warnings {
		fmt.Printf("  %s %s\n", color.YellowString("⚠"), w)
	}
}
