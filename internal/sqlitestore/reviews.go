package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

func (s *Store) InsertAssignment(ctx context.Context, a store.Assignment) (store.Assignment, error) {
	row := assignmentRow{
		RevisionID:   a.RevisionID,
		AssigneeID:   a.AssigneeID,
		AssignedBy:   a.AssignedBy,
		Priority:     a.Priority,
		DueAt:        a.DueAt,
		Instructions: a.Instructions,
		Status:       workflow.AssignmentPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		return store.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetAssignment(ctx context.Context, id int64) (store.Assignment, error) {
	var row assignmentRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.Assignment{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) TransitionAssignment(ctx context.Context, id int64, to workflow.AssignmentStatus, reason string, at time.Time) (bool, error) {
	updates := map[string]any{"status": string(to)}
	switch to {
	case workflow.AssignmentAccepted:
		updates["responded_at"] = at.UTC()
	case workflow.AssignmentDeclined:
		updates["responded_at"] = at.UTC()
		updates["declined_reason"] = reason
	case workflow.AssignmentCompleted:
		updates["completed_at"] = at.UTC()
	}
	result := s.dbFromContext(ctx).Model(&assignmentRow{}).
		Where("id = ? AND status IN ?", id, statusStrings(workflow.AssignmentSources(to))).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("transition assignment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) CompleteAssignments(ctx context.Context, revisionID int64, assignee string, at time.Time) (int, error) {
	result := s.dbFromContext(ctx).Model(&assignmentRow{}).
		Where("revision_id = ? AND assignee_id = ? AND status IN ?", revisionID, assignee, statusStrings(workflow.AssignmentSources(workflow.AssignmentCompleted))).
		Updates(map[string]any{"status": string(workflow.AssignmentCompleted), "completed_at": at.UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("complete assignments: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *Store) ListAssignments(ctx context.Context, filter store.AssignmentFilter) ([]store.Assignment, error) {
	query := s.dbFromContext(ctx).Model(&assignmentRow{})
	if filter.AssigneeID != "" {
		query = query.Where("assignee_id = ?", filter.AssigneeID)
	}
	if filter.RevisionID != 0 {
		query = query.Where("revision_id = ?", filter.RevisionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []assignmentRow
	err := query.
		Order(priorityOrder + ", due_at IS NULL, due_at asc, id asc").
		Limit(limitOrDefault(filter.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return mapRows[store.Assignment](rows), nil
}

func (s *Store) InsertReview(ctx context.Context, r store.Review) (store.Review, error) {
	row := reviewRow{
		RevisionID:     r.RevisionID,
		ReviewerID:     r.ReviewerID,
		Status:         workflow.ReviewPending,
		CriteriaScores: map[workflow.Criterion]int{},
		IsAnonymous:    r.IsAnonymous,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.Review{}, store.ErrDuplicate
		}
		return store.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetReview(ctx context.Context, id int64) (store.Review, error) {
	var row reviewRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.Review{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) TransitionReview(ctx context.Context, id int64, to workflow.ReviewStatus, reason string, at time.Time) (bool, error) {
	updates := map[string]any{"status": string(to)}
	if to == workflow.ReviewInProgress {
		updates["started_at"] = at.UTC()
	}
	if reason != "" {
		updates["escalation_reason"] = reason
	}
	result := s.dbFromContext(ctx).Model(&reviewRow{}).
		Where("id = ? AND status IN ?", id, statusStrings(workflow.ReviewSources(to))).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("transition review: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) CompleteReview(ctx context.Context, id int64, c store.ReviewCompletion) (bool, error) {
	criteria := c.CriteriaScores
	if criteria == nil {
		criteria = map[workflow.Criterion]int{}
	}
	completedAt := c.CompletedAt.UTC()
	row := reviewRow{
		Status:           c.Status,
		OverallScore:     c.OverallScore,
		CriteriaScores:   criteria,
		Summary:          c.Feedback.Summary,
		Strengths:        c.Feedback.Strengths,
		Weaknesses:       c.Feedback.Weaknesses,
		Suggestions:      c.Feedback.Suggestions,
		DetailedFeedback: c.Feedback.DetailedFeedback,
		TimeSpentMinutes: c.Feedback.TimeSpentMinutes,
		ConfidenceLevel:  c.Feedback.ConfidenceLevel,
		CompletedAt:      &completedAt,
	}
	result := s.dbFromContext(ctx).Model(&reviewRow{}).
		Where("id = ? AND status IN ?", id, statusStrings(workflow.OpenReviewStatuses)).
		Select("status", "overall_score", "criteria_scores", "summary", "strengths", "weaknesses",
			"suggestions", "detailed_feedback", "time_spent_minutes", "confidence_level", "completed_at").
		Updates(&row)
	if result.Error != nil {
		return false, fmt.Errorf("complete review: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) ListReviewsForRevision(ctx context.Context, revisionID int64) ([]store.Review, error) {
	var rows []reviewRow
	if err := s.dbFromContext(ctx).Where("revision_id = ?", revisionID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reviews for revision: %w", err)
	}
	return mapRows[store.Review](rows), nil
}

func (s *Store) ListReviews(ctx context.Context, filter store.ReviewFilter) ([]store.Review, error) {
	query := s.dbFromContext(ctx).Where("reviewer_id = ?", filter.ReviewerID)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []reviewRow
	if err := query.Order("id desc").Limit(limitOrDefault(filter.Limit)).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return mapRows[store.Review](rows), nil
}

func (s *Store) InsertComment(ctx context.Context, c store.Comment) (store.Comment, error) {
	row := commentRow{
		ReviewID:    c.ReviewID,
		CommenterID: c.CommenterID,
		Content:     c.Content,
		IsInternal:  c.IsInternal,
		ParentID:    c.ParentID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		return store.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetComment(ctx context.Context, id int64) (store.Comment, error) {
	var row commentRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.Comment{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) ResolveComment(ctx context.Context, id int64, at time.Time) (bool, error) {
	result := s.dbFromContext(ctx).Model(&commentRow{}).
		Where("id = ? AND is_resolved = ?", id, false).
		Updates(map[string]any{"is_resolved": true, "resolved_at": at.UTC()})
	if result.Error != nil {
		return false, fmt.Errorf("resolve comment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) ListComments(ctx context.Context, reviewID int64, includeInternal bool) ([]store.Comment, error) {
	query := s.dbFromContext(ctx).Where("review_id = ?", reviewID)
	if !includeInternal {
		query = query.Where("is_internal = ?", false)
	}
	var rows []commentRow
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return mapRows[store.Comment](rows), nil
}
