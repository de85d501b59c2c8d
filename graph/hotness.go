package graph

import (
	"time"

	"ginko-backend/types"
)

// Hotness weighting windows. An event contributes by age bucket; the
// total is capped at 100. Future-dated events (clock skew) contribute
// nothing.
const (
	hotnessCap      = 100
	weightUnder4h   = 30
	weightUnder24h  = 20
	weightUnder7d   = 10
	hotnessWindow7d = 7 * 24 * time.Hour
)

// ComputeHotness scores a task's recent activity from its events.
func ComputeHotness(events []types.Event, now time.Time) (int, types.HotnessLevel) {
	score := 0
	for _, ev := range events {
		ts, err := types.ParseTimestamp(ev.Timestamp)
		if err != nil {
			continue
		}
		age := now.Sub(ts)
		switch {
		case age < 0:
			// skew
		case age <= 4*time.Hour:
			score += weightUnder4h
		case age <= 24*time.Hour:
			score += weightUnder24h
		case age <= hotnessWindow7d:
			score += weightUnder7d
		}
	}
	if score > hotnessCap {
		score = hotnessCap
	}
	return score, HotnessLevelFor(score)
}

// HotnessLevelFor buckets a score into its level.
func HotnessLevelFor(score int) types.HotnessLevel {
	switch {
	case score <= 0:
		return types.HotnessCold
	case score < 30:
		return types.HotnessWarm
	case score < 70:
		return types.HotnessHot
	default:
		return types.HotnessBlazing
	}
}

// ActivityReport assembles the full hotness response for a task from
// its recent events, which must be sorted newest first.
func ActivityReport(taskID string, events []types.Event, now time.Time) types.TaskActivity {
	report := types.TaskActivity{
		TaskID:       taskID,
		RecentEvents: []types.Event{},
	}
	var inWindow []types.Event
	for _, ev := range events {
		ts, err := types.ParseTimestamp(ev.Timestamp)
		if err != nil {
			continue
		}
		age := now.Sub(ts)
		if age < 0 || age > hotnessWindow7d {
			continue
		}
		inWindow = append(inWindow, ev)
		report.EventCount7d++
		if age <= 24*time.Hour {
			report.EventCount24h++
		}
		if report.LastActivityAt == "" || ev.Timestamp > report.LastActivityAt {
			report.LastActivityAt = ev.Timestamp
		}
	}
	report.Hotness, report.Level = ComputeHotness(inWindow, now)
	if len(inWindow) > 10 {
		inWindow = inWindow[:10]
	}
	if inWindow != nil {
		report.RecentEvents = inWindow
	}
	return report
}
