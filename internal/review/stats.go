package review

import (
	"time"

	"afropedia/api/internal/consensus"
	"afropedia/api/internal/workflow"
)

// Record is the part of a stored review that reviewer statistics need.
type Record struct {
	Status           workflow.ReviewStatus
	Score            *float64
	TimeSpentMinutes *int
	CompletedAt      *time.Time
}

type Stats struct {
	TotalReviews       int                           `json:"totalReviews"`
	CompletedReviews   int                           `json:"completedReviews"`
	CompletionRate     float64                       `json:"completionRate"`
	AverageScore       *float64                      `json:"averageScore"`
	AverageTimeMinutes *float64                      `json:"averageTimeMinutes"`
	Verdicts           map[workflow.ReviewStatus]int `json:"verdicts"`
	LastCompletedAt    *time.Time                    `json:"lastCompletedAt"`
}

// Summarize computes a reviewer's track record. The completion rate is the
// share of reviews in a terminal status, as a percentage.
func Summarize(records []Record) Stats {
	stats := Stats{
		TotalReviews: len(records),
		Verdicts:     make(map[workflow.ReviewStatus]int),
	}
	scoreSum, scoreCount := 0.0, 0
	timeSum, timeCount := 0, 0
	for _, record := range records {
		if record.Status.Terminal() {
			stats.CompletedReviews++
			stats.Verdicts[record.Status]++
		}
		if record.Score != nil {
			scoreSum += *record.Score
			scoreCount++
		}
		if record.TimeSpentMinutes != nil {
			timeSum += *record.TimeSpentMinutes
			timeCount++
		}
		if record.CompletedAt != nil && (stats.LastCompletedAt == nil || record.CompletedAt.After(*stats.LastCompletedAt)) {
			completed := *record.CompletedAt
			stats.LastCompletedAt = &completed
		}
	}
	if stats.TotalReviews > 0 {
		stats.CompletionRate = consensus.Round2(float64(stats.CompletedReviews) / float64(stats.TotalReviews) * 100)
	}
	if scoreCount > 0 {
		avg := consensus.Round2(scoreSum / float64(scoreCount))
		stats.AverageScore = &avg
	}
	if timeCount > 0 {
		avg := consensus.Round2(float64(timeSum) / float64(timeCount))
		stats.AverageTimeMinutes = &avg
	}
	return stats
}
