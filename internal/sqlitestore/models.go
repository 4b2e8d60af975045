package sqlitestore

import (
	"time"

	"afropedia/api/internal/review"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

type documentRow struct {
	ID             int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	Title          string                  `gorm:"column:title;type:text;not null"`
	Status         workflow.DocumentStatus `gorm:"column:status;type:text;not null"`
	HeadRevisionID *int64                  `gorm:"column:head_revision_id"`
	CreatedBy      string                  `gorm:"column:created_by;type:text;not null"`
	CreatedAt      time.Time               `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;not null"`
}

func (documentRow) TableName() string { return "documents" }

func (r documentRow) domain() store.Document {
	return store.Document{
		ID:             r.ID,
		Title:          r.Title,
		Status:         r.Status,
		HeadRevisionID: r.HeadRevisionID,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type revisionRow struct {
	ID         int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID int64                   `gorm:"column:document_id;not null;index:idx_revisions_document"`
	AuthorID   string                  `gorm:"column:author_id;type:text;not null"`
	Content    string                  `gorm:"column:content;type:text;not null"`
	Comment    string                  `gorm:"column:comment;type:text;not null;default:''"`
	Status     workflow.RevisionStatus `gorm:"column:status;type:text;not null;index"`
	CreatedAt  time.Time               `gorm:"column:created_at;not null"`
	DecidedAt  *time.Time              `gorm:"column:decided_at"`
}

func (revisionRow) TableName() string { return "revisions" }

func (r revisionRow) domain() store.Revision {
	return store.Revision{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		AuthorID:   r.AuthorID,
		Content:    r.Content,
		Comment:    r.Comment,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		DecidedAt:  r.DecidedAt,
	}
}

type queueRow struct {
	ID          int64                `gorm:"column:id;primaryKey;autoIncrement"`
	ContentType workflow.ContentType `gorm:"column:content_type;type:text;not null"`
	ContentID   int64                `gorm:"column:content_id;not null"`
	SubmittedBy string               `gorm:"column:submitted_by;type:text;not null"`
	Priority    workflow.Priority    `gorm:"column:priority;type:text;not null"`
	Status      workflow.QueueStatus `gorm:"column:status;type:text;not null;index"`
	AssignedTo  *string              `gorm:"column:assigned_to;type:text"`
	Notes       string               `gorm:"column:notes;type:text;not null;default:''"`
	CreatedAt   time.Time            `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;not null"`
	ClosedAt    *time.Time           `gorm:"column:closed_at"`
}

func (queueRow) TableName() string { return "moderation_queue" }

func (r queueRow) domain() store.QueueItem {
	return store.QueueItem{
		ID:          r.ID,
		ContentType: r.ContentType,
		ContentID:   r.ContentID,
		SubmittedBy: r.SubmittedBy,
		Priority:    r.Priority,
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ClosedAt:    r.ClosedAt,
	}
}

type assignmentRow struct {
	ID             int64                     `gorm:"column:id;primaryKey;autoIncrement"`
	RevisionID     int64                     `gorm:"column:revision_id;not null;index"`
	AssigneeID     string                    `gorm:"column:assignee_id;type:text;not null;index"`
	AssignedBy     string                    `gorm:"column:assigned_by;type:text;not null"`
	Priority       workflow.Priority         `gorm:"column:priority;type:text;not null"`
	DueAt          *time.Time                `gorm:"column:due_at"`
	Instructions   string                    `gorm:"column:instructions;type:text;not null;default:''"`
	Status         workflow.AssignmentStatus `gorm:"column:status;type:text;not null"`
	DeclinedReason string                    `gorm:"column:declined_reason;type:text;not null;default:''"`
	CreatedAt      time.Time                 `gorm:"column:created_at;not null"`
	RespondedAt    *time.Time                `gorm:"column:responded_at"`
	CompletedAt    *time.Time                `gorm:"column:completed_at"`
}

func (assignmentRow) TableName() string { return "review_assignments" }

func (r assignmentRow) domain() store.Assignment {
	return store.Assignment{
		ID:             r.ID,
		RevisionID:     r.RevisionID,
		AssigneeID:     r.AssigneeID,
		AssignedBy:     r.AssignedBy,
		Priority:       r.Priority,
		DueAt:          r.DueAt,
		Instructions:   r.Instructions,
		Status:         r.Status,
		DeclinedReason: r.DeclinedReason,
		CreatedAt:      r.CreatedAt,
		RespondedAt:    r.RespondedAt,
		CompletedAt:    r.CompletedAt,
	}
}

type reviewRow struct {
	ID               int64                      `gorm:"column:id;primaryKey;autoIncrement"`
	RevisionID       int64                      `gorm:"column:revision_id;not null;uniqueIndex:uq_peer_reviews_reviewer"`
	ReviewerID       string                     `gorm:"column:reviewer_id;type:text;not null;uniqueIndex:uq_peer_reviews_reviewer"`
	Status           workflow.ReviewStatus      `gorm:"column:status;type:text;not null"`
	OverallScore     *float64                   `gorm:"column:overall_score"`
	CriteriaScores   map[workflow.Criterion]int `gorm:"column:criteria_scores;type:text;serializer:json"`
	Summary          string                     `gorm:"column:summary;type:text;not null;default:''"`
	Strengths        string                     `gorm:"column:strengths;type:text;not null;default:''"`
	Weaknesses       string                     `gorm:"column:weaknesses;type:text;not null;default:''"`
	Suggestions      string                     `gorm:"column:suggestions;type:text;not null;default:''"`
	DetailedFeedback string                     `gorm:"column:detailed_feedback;type:text;not null;default:''"`
	TimeSpentMinutes *int                       `gorm:"column:time_spent_minutes"`
	ConfidenceLevel  *int                       `gorm:"column:confidence_level"`
	IsAnonymous      bool                       `gorm:"column:is_anonymous;not null;default:false"`
	EscalationReason string                     `gorm:"column:escalation_reason;type:text;not null;default:''"`
	CreatedAt        time.Time                  `gorm:"column:created_at;not null"`
	StartedAt        *time.Time                 `gorm:"column:started_at"`
	CompletedAt      *time.Time                 `gorm:"column:completed_at"`
}

func (reviewRow) TableName() string { return "peer_reviews" }

func (r reviewRow) domain() store.Review {
	criteria := r.CriteriaScores
	if criteria == nil {
		criteria = map[workflow.Criterion]int{}
	}
	return store.Review{
		ID:             r.ID,
		RevisionID:     r.RevisionID,
		ReviewerID:     r.ReviewerID,
		Status:         r.Status,
		OverallScore:   r.OverallScore,
		CriteriaScores: criteria,
		Feedback: review.Feedback{
			Summary:          r.Summary,
			Strengths:        r.Strengths,
			Weaknesses:       r.Weaknesses,
			Suggestions:      r.Suggestions,
			DetailedFeedback: r.DetailedFeedback,
			TimeSpentMinutes: r.TimeSpentMinutes,
			ConfidenceLevel:  r.ConfidenceLevel,
		},
		IsAnonymous:      r.IsAnonymous,
		EscalationReason: r.EscalationReason,
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
}

type commentRow struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ReviewID    int64      `gorm:"column:review_id;not null;index"`
	CommenterID string     `gorm:"column:commenter_id;type:text;not null"`
	Content     string     `gorm:"column:content;type:text;not null"`
	IsInternal  bool       `gorm:"column:is_internal;not null;default:false"`
	IsResolved  bool       `gorm:"column:is_resolved;not null;default:false"`
	ParentID    *int64     `gorm:"column:parent_id"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	ResolvedAt  *time.Time `gorm:"column:resolved_at"`
}

func (commentRow) TableName() string { return "review_comments" }

func (r commentRow) domain() store.Comment {
	return store.Comment{
		ID:          r.ID,
		ReviewID:    r.ReviewID,
		CommenterID: r.CommenterID,
		Content:     r.Content,
		IsInternal:  r.IsInternal,
		IsResolved:  r.IsResolved,
		ParentID:    r.ParentID,
		CreatedAt:   r.CreatedAt,
		ResolvedAt:  r.ResolvedAt,
	}
}

type flagRow struct {
	ID             int64                `gorm:"column:id;primaryKey;autoIncrement"`
	ContentType    workflow.ContentType `gorm:"column:content_type;type:text;not null"`
	ContentID      int64                `gorm:"column:content_id;not null"`
	FlaggedBy      string               `gorm:"column:flagged_by;type:text;not null"`
	FlagType       workflow.FlagType    `gorm:"column:flag_type;type:text;not null"`
	Reason         string               `gorm:"column:reason;type:text;not null;default:''"`
	Status         workflow.FlagStatus  `gorm:"column:status;type:text;not null;index"`
	ResolvedBy     string               `gorm:"column:resolved_by;type:text;not null;default:''"`
	ResolutionNote string               `gorm:"column:resolution_note;type:text;not null;default:''"`
	CreatedAt      time.Time            `gorm:"column:created_at;not null"`
	ResolvedAt     *time.Time           `gorm:"column:resolved_at"`
}

func (flagRow) TableName() string { return "content_flags" }

func (r flagRow) domain() store.Flag {
	return store.Flag{
		ID:             r.ID,
		ContentType:    r.ContentType,
		ContentID:      r.ContentID,
		FlaggedBy:      r.FlaggedBy,
		FlagType:       r.FlagType,
		Reason:         r.Reason,
		Status:         r.Status,
		ResolvedBy:     r.ResolvedBy,
		ResolutionNote: r.ResolutionNote,
		CreatedAt:      r.CreatedAt,
		ResolvedAt:     r.ResolvedAt,
	}
}

type actionRow struct {
	ID          int64                `gorm:"column:id;primaryKey;autoIncrement"`
	ContentType workflow.ContentType `gorm:"column:content_type;type:text;not null;index:idx_moderation_actions_content"`
	ContentID   int64                `gorm:"column:content_id;not null;index:idx_moderation_actions_content"`
	ModeratorID string               `gorm:"column:moderator_id;type:text;not null"`
	Action      workflow.ActionType  `gorm:"column:action;type:text;not null"`
	Reason      string               `gorm:"column:reason;type:text;not null;default:''"`
	CreatedAt   time.Time            `gorm:"column:created_at;not null"`
}

func (actionRow) TableName() string { return "moderation_actions" }

func (r actionRow) domain() store.ModerationAction {
	return store.ModerationAction{
		ID:          r.ID,
		ContentType: r.ContentType,
		ContentID:   r.ContentID,
		ModeratorID: r.ModeratorID,
		Action:      r.Action,
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
	}
}

func mapRows[T any, R interface{ domain() T }](rows []R) []T {
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.domain())
	}
	return items
}
