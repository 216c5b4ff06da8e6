package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/opcost/internal/engine"
	"github.com/matthewbaird/opcost/internal/logger"
	"github.com/matthewbaird/opcost/internal/settlement"
	"github.com/matthewbaird/opcost/internal/snapshotfile"
	"github.com/matthewbaird/opcost/internal/statement"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute statements from YAML fixtures",
	Long: `Run the allocation engine on YAML fixtures (snapshot plus request) and print
the statements as JSON.

Without --finalize nothing is written. With --finalize each fixture is imported
into the source tables and its statement is finalized and persisted; several
fixtures are finalized in parallel, bounded by max_parallel.

A fixture that fails validation prints its problem list and makes the command
exit non-zero.`,
	Example: `  # Preview a statement
  opcost compute --file testdata/lindenhof.yaml

  # Finalize two buildings
  opcost compute --file a.yaml --file b.yaml --finalize --actor alice`,
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)
	computeCmd.Flags().StringSlice("file", nil, "fixture file (repeatable)")
	computeCmd.Flags().Bool("finalize", false, "persist the statements as Completed")
	computeCmd.Flags().String("actor", "cli", "actor recorded on finalized statements")
	computeCmd.MarkFlagRequired("file")
}

type fixture struct {
	path string
	snap engine.Snapshot
	req  engine.Request
}

// errRejected marks a run where at least one fixture failed validation.
var errRejected = errors.New("one or more statements were rejected")

func runCompute(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	finalize, _ := cmd.Flags().GetBool("finalize")
	actor, _ := cmd.Flags().GetString("actor")

	fixtures := make([]fixture, 0, len(files))
	for _, path := range files {
		f, err := snapshotfile.ReadFile(path)
		if err != nil {
			return err
		}
		snap, err := f.Snapshot()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		req, err := f.EngineRequest()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fixtures = append(fixtures, fixture{path: path, snap: snap, req: req})
	}

	out := cmd.OutOrStdout()
	if !finalize {
		return preview(out, fixtures)
	}
	return finalizeAll(cmd, out, fixtures, actor)
}

func preview(out io.Writer, fixtures []fixture) error {
	rejected := false
	for _, fx := range fixtures {
		res, err := engine.Compute(fx.snap, fx.req, engine.Options{Tolerance: cfg.Tolerance(), Currency: cfg.Currency})
		if err := printOutcome(out, fx.path, resultStatement(res), err); err != nil {
			if !errors.Is(err, errRejected) {
				return err
			}
			rejected = true
		}
	}
	if rejected {
		return errRejected
	}
	return nil
}

func finalizeAll(cmd *cobra.Command, out io.Writer, fixtures []fixture, actor string) error {
	log := logger.WithComponent("compute")
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs := make([]statement.Job, len(fixtures))
	for i, fx := range fixtures {
		if err := a.source.Import(ctx, fx.snap); err != nil {
			return fmt.Errorf("importing %s: %w", fx.path, err)
		}
		jobs[i] = statement.Job{BuildingID: fx.snap.Building.ID, Request: fx.req}
	}

	outcomes, err := a.svc.FinalizeAll(ctx, jobs, actor)
	if err != nil {
		return err
	}
	rejected := false
	for i, o := range outcomes {
		if err := printOutcome(out, fixtures[i].path, o.Statement, o.Err); err != nil {
			if !errors.Is(err, errRejected) {
				return err
			}
			rejected = true
			continue
		}
		log.Info().Str("building_id", o.BuildingID).Str("statement_id", o.Statement.ID).Msg("statement finalized")
	}
	if rejected {
		return errRejected
	}
	return nil
}

func resultStatement(res *engine.Result) *settlement.Statement {
	if res == nil {
		return nil
	}
	return res.Statement
}

// printOutcome writes one fixture's statement or problem list as JSON.
func printOutcome(out io.Writer, path string, stmt *settlement.Statement, err error) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err != nil {
		var ve *engine.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("%s: %w", path, err)
		}
		if encErr := enc.Encode(map[string]any{"file": path, "problems": ve.Report()}); encErr != nil {
			return encErr
		}
		return errRejected
	}
	return enc.Encode(map[string]any{"file": path, "statement": stmt})
}
