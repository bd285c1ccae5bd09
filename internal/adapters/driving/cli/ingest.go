package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbchat/internal/connectors/filesystem"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/services"
)

var (
	ingestWatch    bool
	ingestDebounce time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest a corpus directory into the knowledge base",
	Long: `Extracts text from every .txt, .pdf and .docx file in the directory,
splits it into overlapping chunks, embeds each chunk and stores it in the
vector index. Files in other formats are skipped.

The directory defaults to corpus.dir (./data). Re-running ingestion over an
unchanged corpus does not create duplicate chunks.

With --watch the command keeps running and re-ingests whenever files in the
directory change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "re-ingest when the corpus changes")
	ingestCmd.Flags().DurationVar(&ingestDebounce, "debounce", services.DefaultDebounce,
		"quiet period after a change before re-ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := settings.CorpusDir
	if len(args) == 1 {
		dir = args[0]
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, domain.PurposeIngest)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	report, err := app.Ingest.Ingest(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", dir, err)
	}
	printReport(cmd.OutOrStdout(), dir, report)

	if !ingestWatch {
		return nil
	}

	watcher := filesystem.New(dir)
	defer func() { _ = watcher.Close() }()

	corpusSync := services.NewCorpusSync(watcher, app.Ingest, dir, ingestDebounce)
	corpusSync.OnRun(func(report *domain.IngestReport, err error) {
		if err != nil {
			cmd.PrintErrf("Re-ingest failed: %v\n", err)
			return
		}
		printReport(cmd.OutOrStdout(), dir, report)
	})

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", dir)
	if err := corpusSync.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printReport(w io.Writer, dir string, report *domain.IngestReport) {
	fmt.Fprintf(w, "Ingested %d chunks from %d documents in %s (%s)\n",
		report.Chunks, report.Documents, dir, report.Duration.Round(time.Millisecond))
	if n := len(report.Unsupported); n > 0 {
		fmt.Fprintf(w, "  Skipped %d unsupported files\n", n)
	}
	for _, path := range report.Removed {
		fmt.Fprintf(w, "  Removed: %s\n", path)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  Failed: %s: %v\n", f.Path, f.Err)
	}
}
