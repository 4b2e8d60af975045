package review

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afropedia/api/internal/consensus"
	"afropedia/api/internal/workflow"
)

var required = consensus.DefaultPolicy().RequiredCriteria

func ptr[T any](v T) *T { return &v }

func TestResolveOverallDerivesMeanFromCriteria(t *testing.T) {
	criteria := map[workflow.Criterion]int{
		workflow.CriterionAccuracy:     4,
		workflow.CriterionClarity:      5,
		workflow.CriterionCompleteness: 3,
		workflow.CriterionSources:      4,
		workflow.CriterionNeutrality:   5,
	}
	overall, err := ResolveOverall(nil, criteria, required)
	require.NoError(t, err)
	require.NotNil(t, overall)
	assert.Equal(t, 4.20, *overall)
}

func TestResolveOverallPrefersExplicitScore(t *testing.T) {
	criteria := map[workflow.Criterion]int{
		workflow.CriterionAccuracy:     1,
		workflow.CriterionClarity:      1,
		workflow.CriterionCompleteness: 1,
		workflow.CriterionSources:      1,
		workflow.CriterionNeutrality:   1,
	}
	overall, err := ResolveOverall(ptr(3.456), criteria, required)
	require.NoError(t, err)
	assert.Equal(t, 3.46, *overall)
}

func TestResolveOverallWithNothing(t *testing.T) {
	overall, err := ResolveOverall(nil, nil, required)
	require.NoError(t, err)
	assert.Nil(t, overall)
}

func TestResolveOverallValidation(t *testing.T) {
	full := func(overrides map[workflow.Criterion]int) map[workflow.Criterion]int {
		out := map[workflow.Criterion]int{
			workflow.CriterionAccuracy:     3,
			workflow.CriterionClarity:      3,
			workflow.CriterionCompleteness: 3,
			workflow.CriterionSources:      3,
			workflow.CriterionNeutrality:   3,
		}
		for k, v := range overrides {
			out[k] = v
		}
		return out
	}

	cases := []struct {
		name     string
		overall  *float64
		criteria map[workflow.Criterion]int
		field    string
	}{
		{name: "overall too low", overall: ptr(0.5), field: "overallScore"},
		{name: "overall too high", overall: ptr(5.01), field: "overallScore"},
		{name: "overall not a number", overall: ptr(math.NaN()), field: "overallScore"},
		{name: "overall infinite", overall: ptr(math.Inf(1)), field: "overallScore"},
		{name: "criterion out of range", criteria: full(map[workflow.Criterion]int{workflow.CriterionStyle: 6}), field: "criteriaScores.style"},
		{name: "criterion zero", criteria: full(map[workflow.Criterion]int{workflow.CriterionAccuracy: 0}), field: "criteriaScores.accuracy"},
		{name: "missing required", criteria: map[workflow.Criterion]int{workflow.CriterionAccuracy: 4}, field: "criteriaScores"},
		{name: "empty criteria", criteria: map[workflow.Criterion]int{}, field: "criteriaScores"},
		{name: "unknown criterion", criteria: full(map[workflow.Criterion]int{"vibes": 3}), field: "criteriaScores"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveOverall(tc.overall, tc.criteria, required)
			var fieldErr *FieldError
			require.True(t, errors.As(err, &fieldErr), "got %v", err)
			assert.Equal(t, tc.field, fieldErr.Field)
		})
	}
}

func TestStyleIsOptional(t *testing.T) {
	criteria := map[workflow.Criterion]int{
		workflow.CriterionAccuracy:     5,
		workflow.CriterionClarity:      5,
		workflow.CriterionCompleteness: 5,
		workflow.CriterionSources:      5,
		workflow.CriterionNeutrality:   5,
		workflow.CriterionStyle:        2,
	}
	overall, err := ResolveOverall(nil, criteria, required)
	require.NoError(t, err)
	assert.Equal(t, 4.5, *overall)
}

func TestValidateFeedback(t *testing.T) {
	assert.NoError(t, ValidateFeedback(Feedback{Summary: "solid", TimeSpentMinutes: ptr(30), ConfidenceLevel: ptr(4)}))
	assert.Error(t, ValidateFeedback(Feedback{TimeSpentMinutes: ptr(-1)}))
	assert.Error(t, ValidateFeedback(Feedback{ConfidenceLevel: ptr(6)}))
	assert.Error(t, ValidateFeedback(Feedback{Summary: string(make([]byte, maxSummaryLength+1))}))
}

func TestSummarize(t *testing.T) {
	early := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	stats := Summarize([]Record{
		{Status: workflow.ReviewApproved, Score: ptr(4.0), TimeSpentMinutes: ptr(20), CompletedAt: &early},
		{Status: workflow.ReviewRejected, Score: ptr(2.0), TimeSpentMinutes: ptr(40), CompletedAt: &late},
		{Status: workflow.ReviewInProgress},
	})

	assert.Equal(t, 3, stats.TotalReviews)
	assert.Equal(t, 2, stats.CompletedReviews)
	assert.Equal(t, 66.67, stats.CompletionRate)
	require.NotNil(t, stats.AverageScore)
	assert.Equal(t, 3.0, *stats.AverageScore)
	require.NotNil(t, stats.AverageTimeMinutes)
	assert.Equal(t, 30.0, *stats.AverageTimeMinutes)
	assert.Equal(t, 1, stats.Verdicts[workflow.ReviewApproved])
	require.NotNil(t, stats.LastCompletedAt)
	assert.True(t, stats.LastCompletedAt.Equal(late))
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)
	assert.Zero(t, stats.CompletionRate)
	assert.Nil(t, stats.AverageScore)
	assert.Nil(t, stats.LastCompletedAt)
}
