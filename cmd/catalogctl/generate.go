package main

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic product feed for load testing",
	Long: `Write a synthetic .xlsx product feed. Optional columns are left blank at
random so the feed exercises the salvage and warning paths.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, _ := cmd.Flags().GetInt("rows")
		out, _ := cmd.Flags().GetString("output")
		seed, _ := cmd.Flags().GetUint64("seed")
		if rows <= 0 {
			return fmt.Errorf("--rows must be positive")
		}

		bar, _ := pterm.DefaultProgressbar.WithTotal(rows).WithTitle("Generating").Start()
		err := generateFeed(out, rows, seed, func(n int) { bar.Add(n) })
		_, _ = bar.Stop()
		if err != nil {
			return err
		}
		pterm.Success.Printf("Wrote %d products to %s\n", rows, out)
		return nil
	},
}

func init() {
	generateCmd.Flags().Int("rows", 1000, "Number of product rows")
	generateCmd.Flags().StringP("output", "o", "products.xlsx", "Output .xlsx path")
	generateCmd.Flags().Uint64("seed", 42, "Random seed")
}

var generatedColumns = []string{
	"id", "title", "description", "link", "image_link", "availability", "price", "condition",
	"brand", "gtin", "sale_price", "item_group_id", "google_product_category", "product_type",
	"shipping", "additional_image_links", "size", "color", "material", "pattern", "gender", "Model",
	"product_length", "product_width", "product_height", "product_weight", "lifestyle_image_link",
	"max_handling_time", "is_bundle",
}

var (
	genAvailability = []string{"in_stock", "out_of_stock", "preorder"}
	genCondition    = []string{"new", "used", "refurbished"}
	genGender       = []string{"male", "female", "unisex"}
	genMaterials    = []string{"Wool", "Synthetic", "Silk", "Cotton", "Jute", "Polyester", "Viscose"}
	genPatterns     = []string{"Solid", "Striped", "Floral", "Geometric", "Abstract", "Checkered"}
	genColors       = []string{"Red", "Blue", "Green", "Yellow", "Black", "White", "Gray", "Beige"}
	genTypes        = []string{"Rug", "Carpet", "Floor Mat", "Runner", "Area Rug", "Shag Rug"}
	genSizes        = []string{"80x150", "120x170", "160x230", "200x290", "300x400"}
	genBrands       = []string{"Morgenland", "Rugvista", "Esprit", "Nourison", "Safavieh"}
	genWords        = []string{"soft", "modern", "classic", "woven", "hand", "knotted", "vintage", "rug", "runner", "wool"}
)

// generateFeed writes rows synthetic products to path. progress is called
// every 1000 rows and once at the end.
func generateFeed(path string, rows int, seed uint64, progress func(int)) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return errors.Wrap(err, "open sheet writer")
	}

	header := make([]any, len(generatedColumns))
	for i, c := range generatedColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return errors.Wrap(err, "write header")
	}

	reported := 0
	for i := 0; i < rows; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, generateProduct(rng, i)); err != nil {
			return errors.Wrapf(err, "write row %d", i+1)
		}
		if progress != nil && (i+1)%1000 == 0 {
			progress(1000)
			reported += 1000
		}
	}
	if progress != nil && rows > reported {
		progress(rows - reported)
	}

	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flush sheet")
	}
	return errors.Wrap(f.SaveAs(path), "save workbook")
}

func generateProduct(rng *rand.Rand, index int) []any {
	pick := func(xs []string) string { return xs[rng.IntN(len(xs))] }
	maybe := func(missing float64, v string) any {
		if rng.Float64() < missing {
			return ""
		}
		return v
	}

	title := make([]string, 4)
	for i := range title {
		title[i] = pick(genWords)
	}
	gtin := make([]byte, 13)
	for i := range gtin {
		gtin[i] = byte('0' + rng.IntN(10))
	}
	price := 50 + rng.Float64()*450
	bundle := "no"
	if rng.Float64() > 0.8 {
		bundle = "yes"
	}
	id := fmt.Sprintf("SKU%05d", index)

	return []any{
		id,
		strings.Join(title, " "),
		maybe(0.10, "A "+pick(genWords)+" "+pick(genTypes)+" for every room."),
		maybe(0.08, "https://shop.example/p/"+id),
		maybe(0.05, fmt.Sprintf("https://img.example/%d/%d.jpg", rng.IntN(900)+100, index)),
		maybe(0.07, pick(genAvailability)),
		fmt.Sprintf("%.2f EUR", price),
		maybe(0.15, pick(genCondition)),
		maybe(0.12, pick(genBrands)),
		maybe(0.25, string(gtin)),
		maybe(0.15, fmt.Sprintf("%.2f EUR", price*0.9)),
		maybe(0.10, fmt.Sprintf("ITEM%d", rng.IntN(5))),
		maybe(0.22, "598"),
		maybe(0.20, pick(genTypes)),
		maybe(0.20, "DE:0.00 EUR"),
		maybe(0.30, fmt.Sprintf("https://img.example/a/%d.jpg,https://img.example/b/%d.jpg", index, index)),
		maybe(0.25, pick(genSizes)),
		maybe(0.15, pick(genColors)),
		maybe(0.18, pick(genMaterials)),
		maybe(0.28, pick(genPatterns)),
		maybe(0.30, pick(genGender)),
		maybe(0.25, fmt.Sprintf("Model-%c%d", 'A'+rng.IntN(26), rng.IntN(1000))),
		maybe(0.35, fmt.Sprintf("%d cm", rng.IntN(220)+80)),
		maybe(0.35, fmt.Sprintf("%d cm", rng.IntN(170)+30)),
		maybe(0.35, fmt.Sprintf("%d cm", rng.IntN(10)+1)),
		maybe(0.35, fmt.Sprintf("%.2f kg", 0.5+rng.Float64()*14.5)),
		maybe(0.40, fmt.Sprintf("https://img.example/life/%d.jpg", index)),
		maybe(0.30, fmt.Sprintf("%d", rng.IntN(10)+1)),
		maybe(0.30, bundle),
	}
}
