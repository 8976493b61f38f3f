package main

import (
	"fmt"
	"strconv"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List import runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		file, _ := cmd.Flags().GetString("file")
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("page-size")

		filter := core.RunFilter{FileName: file, Status: core.RunStatus(status)}
		if filter.Status != "" && !filter.Status.Valid() {
			return fmt.Errorf("invalid status %q: want processing, completed or failed", status)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := openPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		result, err := core.NewLedgerStore(pool).List(cmd.Context(), filter, page, size)
		if err != nil {
			return err
		}

		if len(result.Results) == 0 {
			pterm.Info.Println("No import runs found")
			return nil
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(runsTable(result.Results)).Render()
		pterm.Info.Printf("Page %d of %d (%d runs)\n", result.Page, result.TotalPages, result.Count)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("status", "", "Filter by status (processing, completed, failed)")
	runsCmd.Flags().String("file", "", "Filter by file name (partial match)")
	runsCmd.Flags().Int("page", 1, "Page number")
	runsCmd.Flags().Int("page-size", core.DefaultPageSize, "Runs per page")
}

func runsTable(runs []core.ImportRun) pterm.TableData {
	data := pterm.TableData{{"ID", "File", "Status", "Started", "Total", "OK", "Warn", "Failed", "Time"}}
	for _, r := range runs {
		data = append(data, []string{
			r.ID, r.SourceName, string(r.Status), r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.TotalRecords), strconv.Itoa(r.SuccessCount),
			strconv.Itoa(r.WarningCount), strconv.Itoa(r.FailureCount),
			fmt.Sprintf("%.2fs", r.ElapsedSeconds),
		})
	}
	return data
}
