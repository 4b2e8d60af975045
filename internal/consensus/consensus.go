// Package consensus turns the reviews of one revision into a decision.
//
// Evaluation is pure: it reads a slice of votes and returns a Decision with no
// side effects, so the same set of reviews always produces the same result
// regardless of order or repetition.
package consensus

import (
	"fmt"
	"math"
	"slices"

	"afropedia/api/internal/workflow"
)

type Outcome string

const (
	Approved Outcome = "approved"
	Rejected Outcome = "rejected"
	Open     Outcome = "needs_more_reviews"
)

type Agreement string

const (
	AgreementHigh     Agreement = "high_agreement"
	AgreementModerate Agreement = "moderate_agreement"
	AgreementLow      Agreement = "low_agreement"
	AgreementNone     Agreement = "no_scores"
)

// Policy holds the thresholds for automatic decisions.
type Policy struct {
	MinApprovals     int                  `yaml:"minApprovals"`
	MinApprovalRate  float64              `yaml:"minApprovalRate"`
	RequiredCriteria []workflow.Criterion `yaml:"requiredCriteria"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinApprovals:    5,
		MinApprovalRate: 0.5,
		RequiredCriteria: []workflow.Criterion{
			workflow.CriterionAccuracy,
			workflow.CriterionClarity,
			workflow.CriterionCompleteness,
			workflow.CriterionSources,
			workflow.CriterionNeutrality,
		},
	}
}

func (p Policy) Validate() error {
	if p.MinApprovals < 1 {
		return fmt.Errorf("minApprovals must be at least 1, got %d", p.MinApprovals)
	}
	if p.MinApprovalRate < 0 || p.MinApprovalRate >= 1 {
		return fmt.Errorf("minApprovalRate must be in [0, 1), got %v", p.MinApprovalRate)
	}
	return nil
}

// Vote is the slice of a review the evaluator looks at.
type Vote struct {
	Status workflow.ReviewStatus
	Score  *float64
}

type Decision struct {
	Outcome      Outcome   `json:"status"`
	Confidence   float64   `json:"confidence"`
	AverageScore *float64  `json:"averageScore"`
	ApprovalRate float64   `json:"approvalRate"`
	Agreement    Agreement `json:"agreement"`
	Approved     int       `json:"approvedCount"`
	Rejected     int       `json:"rejectedCount"`
	Pending      int       `json:"pendingCount"`
	Total        int       `json:"totalReviews"`
}

// Evaluate applies the default policy.
func Evaluate(votes []Vote) Decision {
	return DefaultPolicy().Evaluate(votes)
}

func (p Policy) Evaluate(votes []Vote) Decision {
	d := Decision{Total: len(votes)}
	scores := make([]float64, 0, len(votes))
	for _, vote := range votes {
		switch vote.Status {
		case workflow.ReviewApproved:
			d.Approved++
		case workflow.ReviewRejected:
			d.Rejected++
		case workflow.ReviewPending, workflow.ReviewInProgress:
			d.Pending++
		}
		if vote.Score != nil {
			scores = append(scores, *vote.Score)
		}
	}

	if d.Total > 0 {
		d.ApprovalRate = float64(d.Approved) / float64(d.Total)
	}

	switch {
	case d.Approved >= p.MinApprovals && d.ApprovalRate > p.MinApprovalRate && d.Pending == 0:
		d.Outcome = Approved
	case d.Pending == 0 && d.Rejected > d.Approved:
		d.Outcome = Rejected
	default:
		d.Outcome = Open
	}

	if len(scores) == 0 {
		d.Agreement = AgreementNone
		return d
	}

	// summation order is fixed so float results do not depend on input order
	slices.Sort(scores)
	mean := 0.0
	for _, score := range scores {
		mean += score
	}
	mean /= float64(len(scores))
	variance := 0.0
	for _, score := range scores {
		variance += (score - mean) * (score - mean)
	}
	variance /= float64(len(scores))

	avg := Round2(mean)
	d.AverageScore = &avg
	d.Confidence = math.Max(0, 1-variance/4)
	d.Agreement = agreementFor(d.Confidence)
	return d
}

func agreementFor(confidence float64) Agreement {
	switch {
	case confidence > 0.8:
		return AgreementHigh
	case confidence > 0.6:
		return AgreementModerate
	default:
		return AgreementLow
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
