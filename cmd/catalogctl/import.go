package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a product feed",
	Long: `Import a .csv or .xlsx product feed synchronously and print the run summary.

Rows are processed in chunks; each chunk is committed in its own transaction.
Per-row messages are written to the import log and can be listed with the API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		currency, _ := cmd.Flags().GetString("currency")
		return runImport(cmd, args[0], chunkSize, currency)
	},
}

func init() {
	importCmd.Flags().Int("chunk-size", 0, "Rows per chunk (default from IMPORT_CHUNK_SIZE)")
	importCmd.Flags().String("currency", "", "Currency for bare prices (default from IMPORT_DEFAULT_CURRENCY)")
}

func runImport(cmd *cobra.Command, path string, chunkSize int, currency string) error {
	if !core.IsSupportedFormat(path) {
		return core.ErrUnsupportedFormat
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chunkSize > 0 {
		cfg.Import.ChunkSize = chunkSize
	}
	if currency != "" {
		cfg.Import.DefaultCurrency = currency
	}

	ctx := cmd.Context()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	events := core.NewEventLog(pool, slog.Default())
	importer := core.NewImporter(core.NewPostgresStore(pool), core.NewLedgerStore(pool), events, nil, core.ImporterConfigFrom(cfg.Import))

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Importing %s...", filepath.Base(path)))
	result := importer.Process(ctx, path)
	if result.Success {
		spinner.Success("Import completed")
	} else {
		spinner.Fail("Import failed")
	}

	printResult(path, result)
	if !result.Success {
		return fmt.Errorf("import failed: %s", result.Error)
	}
	return nil
}

func printResult(path string, r core.RunResult) {
	pterm.Println()
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"File", "Run", "Total", "Succeeded", "Warnings", "Failed", "Time"},
		{
			filepath.Base(path), r.RunID,
			strconv.Itoa(r.Total), strconv.Itoa(r.SuccessCount),
			strconv.Itoa(r.WarningCount), strconv.Itoa(r.FailureCount),
			fmt.Sprintf("%.2fs", r.ElapsedSeconds()),
		},
	}).Render()
}
