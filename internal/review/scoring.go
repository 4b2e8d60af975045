// Package review validates reviewer input and derives scores and reviewer
// statistics from completed reviews.
package review

import (
	"fmt"
	"math"
	"strings"

	"afropedia/api/internal/consensus"
	"afropedia/api/internal/workflow"
)

const (
	MinScore = 1
	MaxScore = 5

	maxSummaryLength  = 2000
	maxFeedbackLength = 10000
	maxTimeSpent      = 7 * 24 * 60
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Feedback struct {
	Summary          string `json:"summary,omitempty"`
	Strengths        string `json:"strengths,omitempty"`
	Weaknesses       string `json:"weaknesses,omitempty"`
	Suggestions      string `json:"suggestions,omitempty"`
	DetailedFeedback string `json:"detailedFeedback,omitempty"`
	TimeSpentMinutes *int   `json:"timeSpentMinutes,omitempty"`
	ConfidenceLevel  *int   `json:"confidenceLevel,omitempty"`
}

// ResolveOverall validates the scores a reviewer submitted and returns the
// overall score to store. When only criteria are given, the overall score is
// their mean rounded to two decimals.
func ResolveOverall(overall *float64, criteria map[workflow.Criterion]int, required []workflow.Criterion) (*float64, error) {
	if overall != nil {
		if math.IsNaN(*overall) || *overall < MinScore || *overall > MaxScore {
			return nil, &FieldError{Field: "overallScore", Message: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)}
		}
	}

	if criteria != nil {
		if len(criteria) == 0 {
			return nil, &FieldError{Field: "criteriaScores", Message: "must not be empty when supplied"}
		}
		for _, criterion := range workflow.Criteria() {
			value, ok := criteria[criterion]
			if !ok {
				continue
			}
			if value < MinScore || value > MaxScore {
				return nil, &FieldError{Field: "criteriaScores." + string(criterion), Message: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)}
			}
		}
		for criterion := range criteria {
			if _, err := workflow.ParseCriterion(string(criterion)); err != nil {
				return nil, &FieldError{Field: "criteriaScores", Message: err.Error()}
			}
		}
		missing := make([]string, 0)
		for _, criterion := range required {
			if _, ok := criteria[criterion]; !ok {
				missing = append(missing, string(criterion))
			}
		}
		if len(missing) > 0 {
			return nil, &FieldError{Field: "criteriaScores", Message: "missing required criteria: " + strings.Join(missing, ", ")}
		}
	}

	if overall != nil {
		value := consensus.Round2(*overall)
		return &value, nil
	}
	if len(criteria) == 0 {
		return nil, nil
	}

	sum := 0
	for _, value := range criteria {
		sum += value
	}
	mean := consensus.Round2(float64(sum) / float64(len(criteria)))
	return &mean, nil
}

func ValidateFeedback(feedback Feedback) error {
	if len(feedback.Summary) > maxSummaryLength {
		return &FieldError{Field: "summary", Message: fmt.Sprintf("must be at most %d characters", maxSummaryLength)}
	}
	long := []struct {
		field string
		value string
	}{
		{"strengths", feedback.Strengths},
		{"weaknesses", feedback.Weaknesses},
		{"suggestions", feedback.Suggestions},
		{"detailedFeedback", feedback.DetailedFeedback},
	}
	for _, item := range long {
		if len(item.value) > maxFeedbackLength {
			return &FieldError{Field: item.field, Message: fmt.Sprintf("must be at most %d characters", maxFeedbackLength)}
		}
	}
	if feedback.TimeSpentMinutes != nil && (*feedback.TimeSpentMinutes < 0 || *feedback.TimeSpentMinutes > maxTimeSpent) {
		return &FieldError{Field: "timeSpentMinutes", Message: fmt.Sprintf("must be between 0 and %d", maxTimeSpent)}
	}
	if feedback.ConfidenceLevel != nil && (*feedback.ConfidenceLevel < MinScore || *feedback.ConfidenceLevel > MaxScore) {
		return &FieldError{Field: "confidenceLevel", Message: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)}
	}
	return nil
}
