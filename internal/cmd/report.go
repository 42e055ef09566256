package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haven-app/haven/internal/engine"
	"github.com/haven-app/haven/internal/output"
	"github.com/haven-app/haven/internal/store"
)

var (
	reportDBPath    string
	reportOutputDir string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a markdown recovery report from persisted history",
	Long: `Report loads the persisted weekly snapshot history, recomputes
recovery trends, habits, regression warnings, and feature exposure,
and writes a markdown summary. Only derived aggregates appear in the
report; raw interaction events are never included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport()
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDBPath, "db", "", "SQLite database holding profile and snapshots")
	reportCmd.Flags().StringVarP(&reportOutputDir, "output", "o", "./reports", "Directory for the generated report")
	reportCmd.MarkFlagRequired("db")
	rootCmd.AddCommand(reportCmd)
}

func runReport() error {
	st, err := store.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	eng, err := engine.New(engine.Options{
		Store:  st,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer eng.Close()

	ctx := context.Background()
	if err := eng.CatchUp(ctx); err != nil {
		return fmt.Errorf("failed to fill snapshot gaps: %w", err)
	}

	status, err := eng.RecoveryStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute recovery status: %w", err)
	}
	fmt.Printf("Loaded %d finalized weeks\n", len(status.Snapshots))

	gen := output.NewGenerator(reportOutputDir)
	path, err := gen.Generate(status)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}
