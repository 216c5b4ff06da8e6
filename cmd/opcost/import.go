package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/opcost/internal/logger"
	"github.com/matthewbaird/opcost/internal/snapshotfile"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load YAML fixtures into the source tables",
	Long: `Load the building, units, contracts, categories, cost entries and advance
payments of one or more YAML fixtures into the database. Records with an
existing ID are replaced. A fixture's request section is ignored.`,
	Example: `  opcost import --file testdata/lindenhof.yaml`,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringSlice("file", nil, "fixture file (repeatable)")
	importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("import")
	files, _ := cmd.Flags().GetStringSlice("file")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range files {
		f, err := snapshotfile.ReadFile(path)
		if err != nil {
			return err
		}
		snap, err := f.Snapshot()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := a.source.Import(cmd.Context(), snap); err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		log.Info().
			Str("file", path).
			Str("building_id", snap.Building.ID).
			Int("units", len(snap.Units)).
			Int("contracts", len(snap.Contracts)).
			Int("cost_entries", len(snap.CostEntries)).
			Msg("fixture imported")
	}
	return nil
}
