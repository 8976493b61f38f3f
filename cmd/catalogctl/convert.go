package main

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.csv>",
	Short: "Convert a CSV feed to an Excel workbook",
	Long: `Convert a CSV feed to .xlsx. Every cell is written as text so identifiers
and GTINs keep their leading zeros.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		sheet, _ := cmd.Flags().GetString("sheet")
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".xlsx"
		}

		rows, err := convertCSV(args[0], out, sheet)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Converted %d rows to %s\n", rows, out)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "Output .xlsx path (default: input name with .xlsx)")
	convertCmd.Flags().StringP("sheet", "s", "Sheet1", "Worksheet name")
}

// convertCSV streams src into a new workbook at dst and returns the number
// of rows written, header included.
func convertCSV(src, dst, sheet string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrap(err, "open csv")
	}
	defer in.Close()

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return 0, errors.Wrap(err, "name sheet")
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, errors.Wrap(err, "open sheet writer")
	}

	n := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "read csv row %d", n+1)
		}
		if n == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}

		n++
		cells := make([]any, len(record))
		for i, v := range record {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return n, err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return n, errors.Wrapf(err, "write row %d", n)
		}
	}

	if err := sw.Flush(); err != nil {
		return n, errors.Wrap(err, "flush sheet")
	}
	if err := f.SaveAs(dst); err != nil {
		return n, errors.Wrap(err, "save workbook")
	}
	return n, nil
}
