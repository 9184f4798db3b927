package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/curbdata/parking-aggregator/internal/dedup"
	"github.com/curbdata/parking-aggregator/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one fetch-dedup-persist cycle",
	Long: `Ingest fetches every configured source (or only those named with
--sources), deduplicates the combined candidates, and persists the merged
spots. Sources that fail are reported; the rest of the run proceeds.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSlice("sources", nil, "source names to run (default: all)")
	ingestCmd.Flags().Bool("json", false, "print the run report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

// reportView mirrors ingest.Report with printable error strings.
type reportView struct {
	PerSourceCounts   map[string]int    `json:"per_source_counts"`
	SkippedRecords    map[string]int    `json:"skipped_records"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	FinalSpots        int               `json:"final_spots"`
	Errors            map[string]string `json:"errors,omitempty"`
}

func runIngest(cmd *cobra.Command, _ []string) error {
	sources, _ := cmd.Flags().GetStringSlice("sources")
	asJSON, _ := cmd.Flags().GetBool("json")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	strategy, err := dedup.New(e.cfg.Dedup.Strategy, e.cfg.Dedup.ThresholdMeters)
	if err != nil {
		return err
	}
	orchestrator := ingest.NewOrchestrator(
		buildAdapters(e.cfg, e.logger), strategy, e.store, e.logger, e.metrics, e.cfg.Ingest)

	report, err := orchestrator.Ingest(cmd.Context(), sources...)
	if err != nil {
		return err
	}

	if asJSON {
		view := reportView{
			PerSourceCounts:   report.PerSourceCounts,
			SkippedRecords:    report.SkippedRecords,
			DuplicatesRemoved: report.DuplicatesRemoved,
			FinalSpots:        report.FinalSpots,
		}
		if len(report.Errors) > 0 {
			view.Errors = make(map[string]string, len(report.Errors))
			for name, srcErr := range report.Errors {
				view.Errors[name] = srcErr.Error()
			}
		}
		if err := printJSON(view); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if len(report.Errors) > 0 {
		return fmt.Errorf("%d source(s) failed", len(report.Errors))
	}
	return nil
}

func printReport(report *ingest.Report) {
	names := make([]string, 0, len(report.PerSourceCounts))
	for name := range report.PerSourceCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-20s %6d candidates, %d skipped\n",
			name, report.PerSourceCounts[name], report.SkippedRecords[name])
	}

	fmt.Printf("\nduplicates removed: %d\n", report.DuplicatesRemoved)
	fmt.Printf("spots persisted:    %d\n", report.FinalSpots)

	if len(report.Errors) == 0 {
		return
	}
	failed := make([]string, 0, len(report.Errors))
	for name := range report.Errors {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	fmt.Println()
	for _, name := range failed {
		fmt.Printf("error %s: %v\n", name, report.Errors[name])
	}
}
