package workflow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsUnknownValues(t *testing.T) {
	cases := []struct {
		name  string
		parse func(string) error
	}{
		{"revision status", func(s string) error { _, err := ParseRevisionStatus(s); return err }},
		{"review status", func(s string) error { _, err := ParseReviewStatus(s); return err }},
		{"priority", func(s string) error { _, err := ParsePriority(s); return err }},
		{"content type", func(s string) error { _, err := ParseContentType(s); return err }},
		{"flag type", func(s string) error { _, err := ParseFlagType(s); return err }},
		{"criterion", func(s string) error { _, err := ParseCriterion(s); return err }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.parse("bogus")
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, "bogus", parseErr.Value)
			assert.Error(t, tc.parse(""))
		})
	}
}

func TestParseAcceptsKnownValues(t *testing.T) {
	status, err := ParseRevisionStatus(" needs_changes ")
	require.NoError(t, err)
	assert.Equal(t, RevisionNeedsChanges, status)

	priority, err := ParsePriority("urgent")
	require.NoError(t, err)
	assert.Greater(t, priority.Rank(), PriorityHigh.Rank())

	_, err = ParsePriority("critical")
	assert.Error(t, err)
}

func TestParseVerdictOnlyAllowsTerminalStatuses(t *testing.T) {
	for _, raw := range []string{"approved", "rejected", "needs_changes"} {
		verdict, err := ParseVerdict(raw)
		require.NoError(t, err)
		assert.True(t, verdict.Terminal())
	}
	for _, raw := range []string{"pending", "in_progress", "conflict", "escalated"} {
		_, err := ParseVerdict(raw)
		assert.Error(t, err, raw)
	}
}

func TestUnmarshalTextValidatesJSON(t *testing.T) {
	var body struct {
		Priority Priority          `json:"priority"`
		Scores   map[Criterion]int `json:"scores"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"priority":"high","scores":{"accuracy":4}}`), &body))
	assert.Equal(t, PriorityHigh, body.Priority)
	assert.Equal(t, 4, body.Scores[CriterionAccuracy])

	err := json.Unmarshal([]byte(`{"priority":"whenever"}`), &body)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))

	err = json.Unmarshal([]byte(`{"scores":{"vibes":5}}`), &body)
	assert.True(t, errors.As(err, &parseErr))
}

func TestTransitions(t *testing.T) {
	assert.True(t, RevisionPending.CanTransition(RevisionApproved))
	assert.False(t, RevisionApproved.CanTransition(RevisionPending))
	assert.False(t, RevisionRejected.CanTransition(RevisionApproved))

	assert.True(t, QueuePending.CanTransition(QueueInReview))
	assert.False(t, QueueApproved.CanTransition(QueueRejected))

	assert.True(t, AssignmentPending.CanTransition(AssignmentAccepted))
	assert.False(t, AssignmentDeclined.CanTransition(AssignmentAccepted))
	assert.False(t, AssignmentAccepted.CanTransition(AssignmentDeclined))

	assert.True(t, ReviewEscalated.CanTransition(ReviewApproved))
	assert.False(t, ReviewApproved.CanTransition(ReviewRejected))
}

func TestSourcesMatchOpenStates(t *testing.T) {
	assert.ElementsMatch(t, OpenRevisionStatuses, RevisionSources(RevisionApproved))
	assert.ElementsMatch(t, OpenReviewStatuses, ReviewSources(ReviewApproved))
	assert.ElementsMatch(t, []AssignmentStatus{AssignmentPending, AssignmentAccepted}, AssignmentSources(AssignmentCompleted))
	assert.ElementsMatch(t, OpenQueueStatuses, QueueSources(QueueRejected))
}
