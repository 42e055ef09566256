package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/haven-app/haven/internal/classifier"
	"github.com/haven-app/haven/internal/engine"
	"github.com/haven-app/haven/internal/replay"
	"github.com/haven-app/haven/internal/response"
	"github.com/haven-app/haven/internal/store"
)

var (
	replayFile    string
	replayDBPath  string
	replayTickSec int
	replayVerbose bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded interaction trace through the detection engine",
	Long: `Replay reads a newline-delimited JSON trace of interaction events,
feeds it through the full detection pipeline at the trace's own pace,
and prints every crisis assessment and adaptation directive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay()
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayFile, "file", "f", "", "Path to the session trace (JSONL)")
	replayCmd.Flags().StringVar(&replayDBPath, "db", "", "SQLite database to persist profile and snapshots (optional)")
	replayCmd.Flags().IntVar(&replayTickSec, "tick", 30, "Assessment interval in trace seconds")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "Print every assessment, not just detections")
	replayCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(replayCmd)
}

func runReplay() error {
	reader, err := replay.NewReader()
	if err != nil {
		return fmt.Errorf("failed to initialize trace reader: %w", err)
	}

	fmt.Printf("Reading trace from %s...\n", replayFile)
	count, first, last, err := reader.Stats(replayFile)
	if err != nil {
		return fmt.Errorf("failed to inspect trace: %w", err)
	}
	fmt.Printf("Trace contains %d rows spanning %s to %s\n",
		count, first.Format(time.RFC3339), last.Format(time.RFC3339))

	events, err := reader.ReadEvents(replayFile)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("trace contains no usable events")
	}

	var st store.Store
	if replayDBPath != "" {
		sq, err := store.NewSQLite(replayDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		st = sq
	}

	// The clock follows the trace instead of the wall, so inactivity
	// gaps and tick cadence come out the same as they did live.
	var mu sync.Mutex
	now := events[0].Timestamp
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(t time.Time) {
		mu.Lock()
		defer mu.Unlock()
		if t.After(now) {
			now = t
		}
	}

	eng, err := engine.New(engine.Options{
		Store:  st,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		Clock:  clock,
		OnChange: func(d response.Directive) {
			fmt.Printf("  -> directive: %s (%s) at %s\n", d.Mode, d.Category, d.At.Format(time.RFC3339))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer eng.Close()

	tick := time.Duration(replayTickSec) * time.Second
	nextTick := events[0].Timestamp.Add(tick)
	detections := 0
	for _, ev := range events {
		for !ev.Timestamp.Before(nextTick) {
			advance(nextTick)
			if printAssessment(eng.Tick()) {
				detections++
			}
			nextTick = nextTick.Add(tick)
		}
		advance(ev.Timestamp)
		eng.RecordEvent(ev)
	}
	advance(events[len(events)-1].Timestamp)
	if printAssessment(eng.Tick()) {
		detections++
	}

	fmt.Printf("\nReplay complete: %d events, %d crisis detections, %d response transitions\n",
		len(events), detections, len(eng.Transitions()))
	if replayDBPath != "" {
		fmt.Printf("State persisted to %s\n", replayDBPath)
	}
	return nil
}

func printAssessment(a classifier.Assessment) bool {
	if a.Detected() {
		fmt.Printf("[%s] detected %s (confidence %.2f, %d signals)\n",
			a.At.Format(time.RFC3339), a.DetectedCrisis, a.Confidence, len(a.Signals))
		return true
	}
	if replayVerbose {
		if a.InsufficientData {
			fmt.Printf("[%s] insufficient data\n", a.At.Format(time.RFC3339))
		} else {
			fmt.Printf("[%s] no crisis\n", a.At.Format(time.RFC3339))
		}
	}
	return false
}
