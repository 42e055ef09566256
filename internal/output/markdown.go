package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/haven-app/haven/internal/engine"
	"github.com/haven-app/haven/internal/recovery"
)

// Generator renders a recovery report as markdown. Reports contain only
// derived aggregates (weeks, counts, category names, scores); raw
// interaction data never reaches this layer.
type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{outputDir: outputDir}
}

// Generate writes the report and returns the file path.
func (g *Generator) Generate(status engine.Status) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Recovery Report\n\n")
	writeSummary(&sb, status)
	writeTrends(&sb, status.Trends)
	writeHabits(&sb, status.Habits)
	writeWarning(&sb, status.Warning)
	writeExposure(&sb, status.Exposure)
	writeWeeks(&sb, status.Snapshots)

	path := filepath.Join(g.outputDir, "recovery-report.md")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func writeSummary(sb *strings.Builder, status engine.Status) {
	var totalCrises, totalEntries int
	for _, s := range status.Snapshots {
		totalCrises += len(s.CrisisEvents)
		totalEntries += s.EntriesLogged
	}
	fmt.Fprintf(sb, "%d weeks tracked, %d entries logged, %d crisis events detected.\n\n",
		len(status.Snapshots), totalEntries, totalCrises)
}

func writeTrends(sb *strings.Builder, trends []recovery.Trend) {
	if len(trends) == 0 {
		return
	}
	sb.WriteString("## Trends\n\n")
	for _, tr := range trends {
		fmt.Fprintf(sb, "- %s: %s (slope %+.2f over %d weeks)\n",
			tr.Metric, tr.Direction, tr.Slope, tr.Weeks)
	}
	sb.WriteString("\n")
}

func writeHabits(sb *strings.Builder, habits []recovery.Habit) {
	if len(habits) == 0 {
		return
	}
	sb.WriteString("## Habits\n\n")
	for _, h := range habits {
		fmt.Fprintf(sb, "- %s formed in %s (weekly mean %.1f)\n", h.Name, h.FormedWeek, h.Mean)
	}
	sb.WriteString("\n")
}

func writeWarning(sb *strings.Builder, w *recovery.RelapseWarning) {
	if w == nil {
		return
	}
	sb.WriteString("## Warning\n\n")
	fmt.Fprintf(sb, "Detected a %s starting %s (confidence %.2f).\n", w.Kind, w.Week, w.Confidence)
	fmt.Fprintf(sb, "Signals: %s.\n", strings.Join(w.Signals, ", "))
	fmt.Fprintf(sb, "Recommended: %s.\n\n", w.RecommendedAction)
}

func writeExposure(sb *strings.Builder, exp recovery.Exposure) {
	sb.WriteString("## Feature Exposure\n\n")
	fmt.Fprintf(sb, "Level %d", exp.Level)
	if exp.Retreated {
		sb.WriteString(" (held back after a recent setback)")
	}
	sb.WriteString("\n\nUnlocked features:\n")
	for _, f := range exp.Features {
		fmt.Fprintf(sb, "- %s\n", f)
	}
	sb.WriteString("\n")
}

func writeWeeks(sb *strings.Builder, snaps []recovery.WeeklySnapshot) {
	if len(snaps) == 0 {
		return
	}
	sb.WriteString("## Weekly Detail\n\n")
	sb.WriteString("| Week | Entries | Crises | Severity | Features | Sessions |\n")
	sb.WriteString("|------|---------|--------|----------|----------|----------|\n")
	for _, s := range snaps {
		fmt.Fprintf(sb, "| %s | %d | %d | %.2f | %d | %d |\n",
			s.Week, s.EntriesLogged, len(s.CrisisEvents), s.CrisisSeverity(),
			len(s.FeaturesUsed), s.SessionPatterns.Sessions)
	}
	sb.WriteString("\n")
}
