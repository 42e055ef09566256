package recovery

// Stage is one rung of the progressive feature-exposure ladder.
type Stage struct {
	Level          int
	MinStableWeeks int
	Features       []string
}

// DefaultStages gates interface complexity to demonstrated recovery
// stability. Feature names are cumulative across levels.
func DefaultStages() []Stage {
	return []Stage{
		{Level: 0, MinStableWeeks: 0, Features: []string{"pain_entry", "mood_entry"}},
		{Level: 1, MinStableWeeks: 2, Features: []string{"weekly_summary"}},
		{Level: 2, MinStableWeeks: 4, Features: []string{"trend_charts", "custom_indicators"}},
		{Level: 3, MinStableWeeks: 8, Features: []string{"data_export", "advanced_insights"}},
	}
}

// Exposure is the currently-unlocked feature surface.
type Exposure struct {
	Level    int
	Features []string
	// Retreated reports that the latest week reduced or froze exposure.
	Retreated bool
}

// ExposureFor replays the snapshot history week by week. Exposure only
// advances one level at a time, never skips ahead, and retreats for at
// least one full week after any crisis spike before advancement resumes.
func ExposureFor(snaps []WeeklySnapshot, stages []Stage, cfg Config) Exposure {
	if len(stages) == 0 {
		stages = DefaultStages()
	}

	counts := make([]float64, len(snaps))
	for i, s := range snaps {
		counts[i] = float64(len(s.CrisisEvents))
	}

	level, streak, hold := 0, 0, 0
	retreated := false
	for i := range snaps {
		retreated = false

		baseline := meanTail(counts[:i], cfg.BaselineWeeks)
		if counts[i] >= baseline+cfg.SpikeDelta {
			if level > 0 {
				level--
			}
			streak = 0
			hold = 1
			retreated = true
			continue
		}
		if hold > 0 {
			hold--
			streak = 0
			retreated = true
			continue
		}

		streak++
		cur, _ := stageAt(stages, level)
		if next, ok := stageAt(stages, level+1); ok && streak >= next.MinStableWeeks-cur.MinStableWeeks {
			level++
			streak = 0
		}
	}

	var features []string
	for _, st := range stages {
		if st.Level <= level {
			features = append(features, st.Features...)
		}
	}
	return Exposure{Level: level, Features: features, Retreated: retreated}
}

func stageAt(stages []Stage, level int) (Stage, bool) {
	for _, st := range stages {
		if st.Level == level {
			return st, true
		}
	}
	return Stage{}, false
}
