package main

import (
	"time"

	"helprag/loader/service"

	"github.com/spf13/cobra"
)

var (
	ingestSourceDir string
	ingestWatch     bool
	ingestDebounce  time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index every HTML article in the source directory",
	Long: `Extracts, chunks and embeds every *.html file in the source directory and
upserts the chunks into the vector index. Each run is a full rebuild keyed by
deterministic chunk ids. With --watch the run repeats whenever files change.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceDir, "source-dir", "", "directory of HTML snapshots (default LOADER_SOURCE_DIR)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "re-run ingestion when source files change")
	ingestCmd.Flags().DurationVar(&ingestDebounce, "debounce", 0, "quiet period before a watched change triggers a run (default LOADER_DEBOUNCE)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	sourceDir := ingestSourceDir
	if sourceDir == "" {
		sourceDir = d.cfg.Loader.SourceDir
	}
	svc := service.New(d.embedder, d.index, service.OptionsFromConfig(d.cfg))

	if !ingestWatch {
		report, err := svc.RunIngestion(ctx, sourceDir)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	}

	debounce := ingestDebounce
	if debounce <= 0 {
		debounce = d.cfg.Loader.Debounce
	}
	return svc.Watch(ctx, sourceDir, debounce, func(report *service.Report, err error) {
		if err != nil {
			printError(cmd.ErrOrStderr(), err)
			return
		}
		printReport(cmd.OutOrStdout(), report)
	})
}
