package main

import (
	"fmt"

	"github.com/JonMunkholm/catalogimport/internal/db"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply or roll back schema migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		switch action {
		case "version":
			v, dirty, err := db.SchemaVersion(cfg.Database.URL)
			if err != nil {
				return err
			}
			pterm.Info.Printf("Schema version %d (dirty: %v)\n", v, dirty)
			return nil
		case "down":
			if err := db.Migrate(cfg.Database.URL, db.Down); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
		default:
			if err := db.Migrate(cfg.Database.URL, db.Up); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
		}
		pterm.Success.Printf("Migrations applied (%s)\n", action)
		return nil
	},
}
