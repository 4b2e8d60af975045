package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/consensus"
	"afropedia/api/internal/events"
	"afropedia/api/internal/metrics"
	"afropedia/api/internal/rbac"
	"afropedia/api/internal/review"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

// CreateReview opens a review of a revision for the caller. A reviewer gets
// one review per revision.
func (s *Service) CreateReview(ctx context.Context, actor auth.Identity, revisionID int64, anonymous bool) (ReviewView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return ReviewView{}, err
	}
	var created store.Review
	err := s.run(ctx, "create review", func(ctx context.Context, u *unit) error {
		rev, err := s.store.LockRevision(ctx, revisionID)
		if err != nil {
			return lookup("revision", revisionID, err)
		}
		if rev.Status.Terminal() {
			return conflict(CodeRevisionDecided, fmt.Sprintf("revision %d is already %s", revisionID, rev.Status))
		}
		if rev.AuthorID == actor.UserID {
			return forbidden("authors cannot review their own revisions")
		}
		created, err = s.store.InsertReview(ctx, store.Review{
			RevisionID:  revisionID,
			ReviewerID:  actor.UserID,
			Status:      workflow.ReviewPending,
			IsAnonymous: anonymous,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return conflict(CodeReviewExists, fmt.Sprintf("%s already reviews revision %d", actor.UserID, revisionID))
		}
		if err != nil {
			return err
		}
		if rev.Status != workflow.RevisionPending {
			return nil
		}
		ok, err := s.store.TransitionRevision(ctx, revisionID, workflow.RevisionInReview, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return conflict(CodeRevisionDecided, fmt.Sprintf("revision %d left pending before review %d opened", revisionID, created.ID))
		}
		return nil
	})
	if err != nil {
		return ReviewView{}, err
	}
	return reviewView(created, actor), nil
}

// StartReview marks the reviewer as working. Starting twice is harmless.
func (s *Service) StartReview(ctx context.Context, actor auth.Identity, reviewID int64) (ReviewView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return ReviewView{}, err
	}
	var started store.Review
	err := s.run(ctx, "start review", func(ctx context.Context, u *unit) error {
		current, err := s.ownReview(ctx, actor, reviewID)
		if err != nil {
			return err
		}
		switch {
		case current.Status == workflow.ReviewInProgress:
			started = current
			return nil
		case current.Status.Terminal():
			return conflict(CodeReviewCompleted, fmt.Sprintf("review %d is already %s", reviewID, current.Status))
		}
		ok, err := s.store.TransitionReview(ctx, reviewID, workflow.ReviewInProgress, "", s.now())
		if err != nil {
			return err
		}
		if !ok {
			return conflict(CodeInvalidTransition, fmt.Sprintf("review %d cannot start from %s", reviewID, current.Status))
		}
		started, err = s.store.GetReview(ctx, reviewID)
		return err
	})
	if err != nil {
		return ReviewView{}, err
	}
	return reviewView(started, actor), nil
}

type CompletionInput struct {
	Verdict        string          `json:"status"`
	OverallScore   *float64        `json:"overallScore"`
	CriteriaScores map[string]int  `json:"criteriaScores"`
	Feedback       review.Feedback `json:"feedback"`
}

// CompleteReview records the reviewer's verdict and, in the same unit of
// work, re-evaluates consensus for the revision and applies any decision.
// The revision row lock serializes concurrent completions, so only one of
// them can decide the revision.
func (s *Service) CompleteReview(ctx context.Context, actor auth.Identity, reviewID int64, input CompletionInput) (CompletionView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return CompletionView{}, err
	}
	verdict, err := workflow.ParseVerdict(input.Verdict)
	if err != nil {
		return CompletionView{}, validation(err)
	}
	var criteria map[workflow.Criterion]int
	if input.CriteriaScores != nil {
		criteria = make(map[workflow.Criterion]int, len(input.CriteriaScores))
		for name, value := range input.CriteriaScores {
			criterion, err := workflow.ParseCriterion(name)
			if err != nil {
				return CompletionView{}, invalid("criteriaScores", err.Error())
			}
			criteria[criterion] = value
		}
	}
	overall, err := review.ResolveOverall(input.OverallScore, criteria, s.policy.RequiredCriteria)
	if err != nil {
		return CompletionView{}, validation(err)
	}
	if err := review.ValidateFeedback(input.Feedback); err != nil {
		return CompletionView{}, validation(err)
	}

	var view CompletionView
	var decided bool
	err = s.run(ctx, "complete review", func(ctx context.Context, u *unit) error {
		decided = false
		current, err := s.ownReview(ctx, actor, reviewID)
		if err != nil {
			return err
		}
		rev, err := s.store.LockRevision(ctx, current.RevisionID)
		if err != nil {
			return err
		}
		// re-read under the lock: a concurrent completion may have finished
		if current, err = s.store.GetReview(ctx, reviewID); err != nil {
			return err
		}

		if current.Status.Terminal() {
			if current.Status != verdict {
				return conflict(CodeReviewCompleted, fmt.Sprintf("review %d was completed as %s", reviewID, current.Status))
			}
			reviews, err := s.store.ListReviewsForRevision(ctx, rev.ID)
			if err != nil {
				return err
			}
			view = CompletionView{
				Review:         reviewView(current, actor),
				Consensus:      s.policy.Evaluate(votes(reviews)),
				RevisionStatus: rev.Status,
			}
			return nil
		}

		at := s.now()
		ok, err := s.store.CompleteReview(ctx, reviewID, store.ReviewCompletion{
			Status:         verdict,
			OverallScore:   overall,
			CriteriaScores: criteria,
			Feedback:       input.Feedback,
			CompletedAt:    at,
		})
		if err != nil {
			return err
		}
		if !ok {
			return conflict(CodeReviewCompleted, fmt.Sprintf("review %d is no longer open", reviewID))
		}
		if _, err := s.store.CompleteAssignments(ctx, rev.ID, actor.UserID, at); err != nil {
			return err
		}

		reviews, err := s.store.ListReviewsForRevision(ctx, rev.ID)
		if err != nil {
			return err
		}
		outcome := s.policy.Evaluate(votes(reviews))
		completed, err := s.store.GetReview(ctx, reviewID)
		if err != nil {
			return err
		}
		view = CompletionView{
			Review:         reviewView(completed, actor),
			Consensus:      outcome,
			RevisionStatus: rev.Status,
		}

		completedEvent := events.New(events.ReviewCompleted, actor.UserID)
		completedEvent.DocumentID = rev.DocumentID
		completedEvent.RevisionID = rev.ID
		completedEvent.Payload = map[string]any{"reviewId": reviewID, "verdict": string(verdict)}
		u.emit(completedEvent)
		u.onCommit(func() {
			metrics.ReviewsCompleted.WithLabelValues(string(verdict)).Inc()
		})

		if rev.Status.Terminal() {
			return nil
		}
		d := decision{actor: store.SystemActor, path: "consensus"}
		switch outcome.Outcome {
		case consensus.Approved:
			d.status, d.action = workflow.RevisionApproved, workflow.ActionAutoApprove
		case consensus.Rejected:
			d.status, d.action = workflow.RevisionRejected, workflow.ActionAutoReject
			d.reason = "rejected by peer review consensus"
		default:
			return nil
		}
		applied, head, err := s.decide(ctx, u, rev, d)
		if err != nil {
			return err
		}
		view.RevisionStatus = applied.Status
		view.Head = head
		decided = true
		return nil
	})
	if err != nil {
		return CompletionView{}, err
	}
	if decided {
		s.log.Info("consensus decided revision",
			zap.Int64("revision_id", view.Review.RevisionID),
			zap.String("status", string(view.RevisionStatus)),
			zap.String("head", string(view.Head)),
			zap.Float64("confidence", view.Consensus.Confidence),
		)
	}
	return view, nil
}

// EscalateReview hands a review to the moderators.
func (s *Service) EscalateReview(ctx context.Context, actor auth.Identity, reviewID int64, reason string) (ReviewView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return ReviewView{}, err
	}
	reason, err := requiredText("reason", reason, maxReasonLength)
	if err != nil {
		return ReviewView{}, err
	}
	var escalated store.Review
	err = s.run(ctx, "escalate review", func(ctx context.Context, u *unit) error {
		current, err := s.store.GetReview(ctx, reviewID)
		if err != nil {
			return lookup("review", reviewID, err)
		}
		escalated, err = s.moveReview(ctx, current, workflow.ReviewEscalated, reason)
		if err != nil {
			return err
		}
		if _, err := s.store.InsertAction(ctx, store.ModerationAction{
			ContentType: workflow.ContentRevision,
			ContentID:   current.RevisionID,
			ModeratorID: actor.UserID,
			Action:      workflow.ActionEscalate,
			Reason:      reason,
		}); err != nil {
			return err
		}
		event := events.New(events.ReviewEscalated, actor.UserID)
		event.RevisionID = current.RevisionID
		event.Payload = map[string]any{"reviewId": reviewID, "reason": reason}
		u.emit(event)
		return nil
	})
	if err != nil {
		return ReviewView{}, err
	}
	return reviewView(escalated, actor), nil
}

// ReportConflict lets a reviewer declare a conflict of interest on their own
// review.
func (s *Service) ReportConflict(ctx context.Context, actor auth.Identity, reviewID int64, reason string) (ReviewView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return ReviewView{}, err
	}
	reason, err := requiredText("reason", reason, maxReasonLength)
	if err != nil {
		return ReviewView{}, err
	}
	var updated store.Review
	err = s.run(ctx, "report conflict", func(ctx context.Context, u *unit) error {
		current, err := s.ownReview(ctx, actor, reviewID)
		if err != nil {
			return err
		}
		updated, err = s.moveReview(ctx, current, workflow.ReviewConflict, reason)
		return err
	})
	if err != nil {
		return ReviewView{}, err
	}
	return reviewView(updated, actor), nil
}

func (s *Service) moveReview(ctx context.Context, current store.Review, to workflow.ReviewStatus, reason string) (store.Review, error) {
	if current.Status.Terminal() {
		return store.Review{}, conflict(CodeReviewCompleted, fmt.Sprintf("review %d is already %s", current.ID, current.Status))
	}
	ok, err := s.store.TransitionReview(ctx, current.ID, to, reason, s.now())
	if err != nil {
		return store.Review{}, err
	}
	if !ok {
		return store.Review{}, conflict(CodeInvalidTransition, fmt.Sprintf("review %d cannot move from %s to %s", current.ID, current.Status, to))
	}
	return s.store.GetReview(ctx, current.ID)
}

func (s *Service) ownReview(ctx context.Context, actor auth.Identity, reviewID int64) (store.Review, error) {
	current, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return store.Review{}, lookup("review", reviewID, err)
	}
	if current.ReviewerID != actor.UserID {
		return store.Review{}, forbidden("only the reviewer may change this review")
	}
	return current, nil
}

func (s *Service) GetReview(ctx context.Context, actor auth.Identity, reviewID int64) (ReviewView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return ReviewView{}, err
	}
	r, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return ReviewView{}, lookup("review", reviewID, err)
	}
	return reviewView(r, actor), nil
}

func (s *Service) ReviewsForRevision(ctx context.Context, actor auth.Identity, revisionID int64) ([]ReviewView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRevision(ctx, revisionID); err != nil {
		return nil, lookup("revision", revisionID, err)
	}
	reviews, err := s.store.ListReviewsForRevision(ctx, revisionID)
	if err != nil {
		return nil, storeError("list reviews", err)
	}
	return reviewViews(reviews, actor), nil
}

func (s *Service) ReviewsByReviewer(ctx context.Context, actor auth.Identity, reviewerID, status string, limit, offset int) ([]ReviewView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if reviewerID == "" {
		reviewerID = actor.UserID
	}
	if reviewerID != actor.UserID && !isModerator(actor) {
		return nil, forbidden("cannot list another reviewer's reviews")
	}
	limit, offset, err := pageLimit(limit, offset)
	if err != nil {
		return nil, err
	}
	filter := store.ReviewFilter{ReviewerID: reviewerID, Limit: limit, Offset: offset}
	if status != "" {
		if filter.Status, err = workflow.ParseReviewStatus(status); err != nil {
			return nil, validation(err)
		}
	}
	reviews, err := s.store.ListReviews(ctx, filter)
	if err != nil {
		return nil, storeError("list reviews", err)
	}
	return reviewViews(reviews, actor), nil
}

// GetConsensus evaluates the current reviews without applying anything.
func (s *Service) GetConsensus(ctx context.Context, actor auth.Identity, revisionID int64) (ConsensusView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return ConsensusView{}, err
	}
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return ConsensusView{}, lookup("revision", revisionID, err)
	}
	reviews, err := s.store.ListReviewsForRevision(ctx, revisionID)
	if err != nil {
		return ConsensusView{}, storeError("list reviews", err)
	}
	return ConsensusView{
		RevisionID:     rev.ID,
		RevisionStatus: rev.Status,
		Decision:       s.policy.Evaluate(votes(reviews)),
	}, nil
}

// ReviewerMetrics summarizes every review a reviewer has written.
func (s *Service) ReviewerMetrics(ctx context.Context, actor auth.Identity, reviewerID string) (ReviewerMetricsView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return ReviewerMetricsView{}, err
	}
	if reviewerID == "" {
		reviewerID = actor.UserID
	}
	if reviewerID != actor.UserID && !isModerator(actor) {
		return ReviewerMetricsView{}, forbidden("cannot read another reviewer's metrics")
	}
	records := make([]review.Record, 0)
	for offset := 0; ; offset += maxPageSize {
		page, err := s.store.ListReviews(ctx, store.ReviewFilter{ReviewerID: reviewerID, Limit: maxPageSize, Offset: offset})
		if err != nil {
			return ReviewerMetricsView{}, storeError("list reviews", err)
		}
		for _, r := range page {
			records = append(records, review.Record{
				Status:           r.Status,
				Score:            r.OverallScore,
				TimeSpentMinutes: r.Feedback.TimeSpentMinutes,
				CompletedAt:      r.CompletedAt,
			})
		}
		if len(page) < maxPageSize {
			break
		}
	}
	return ReviewerMetricsView{ReviewerID: reviewerID, Stats: review.Summarize(records)}, nil
}

func votes(reviews []store.Review) []consensus.Vote {
	out := make([]consensus.Vote, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, consensus.Vote{Status: r.Status, Score: r.OverallScore})
	}
	return out
}
