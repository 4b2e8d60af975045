package store

import (
	"time"

	"afropedia/api/internal/review"
	"afropedia/api/internal/workflow"
)

type Document struct {
	ID             int64
	Title          string
	Status         workflow.DocumentStatus
	HeadRevisionID *int64
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Revision rows are append-only: only Status and DecidedAt change after insert.
type Revision struct {
	ID         int64
	DocumentID int64
	AuthorID   string
	Content    string
	Comment    string
	Status     workflow.RevisionStatus
	CreatedAt  time.Time
	DecidedAt  *time.Time
}

func (r Revision) IsApproved() bool {
	return r.Status == workflow.RevisionApproved
}

func (r Revision) NeedsReview() bool {
	return !r.Status.Terminal()
}

type QueueItem struct {
	ID          int64
	ContentType workflow.ContentType
	ContentID   int64
	SubmittedBy string
	Priority    workflow.Priority
	Status      workflow.QueueStatus
	AssignedTo  *string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

type Assignment struct {
	ID             int64
	RevisionID     int64
	AssigneeID     string
	AssignedBy     string
	Priority       workflow.Priority
	DueAt          *time.Time
	Instructions   string
	Status         workflow.AssignmentStatus
	DeclinedReason string
	CreatedAt      time.Time
	RespondedAt    *time.Time
	CompletedAt    *time.Time
}

type Review struct {
	ID               int64
	RevisionID       int64
	ReviewerID       string
	Status           workflow.ReviewStatus
	OverallScore     *float64
	CriteriaScores   map[workflow.Criterion]int
	Feedback         review.Feedback
	IsAnonymous      bool
	EscalationReason string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// ReviewCompletion is the terminal write applied to a review.
type ReviewCompletion struct {
	Status         workflow.ReviewStatus
	OverallScore   *float64
	CriteriaScores map[workflow.Criterion]int
	Feedback       review.Feedback
	CompletedAt    time.Time
}

type Comment struct {
	ID          int64
	ReviewID    int64
	CommenterID string
	Content     string
	IsInternal  bool
	IsResolved  bool
	ParentID    *int64
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

type Flag struct {
	ID             int64
	ContentType    workflow.ContentType
	ContentID      int64
	FlaggedBy      string
	FlagType       workflow.FlagType
	Reason         string
	Status         workflow.FlagStatus
	ResolvedBy     string
	ResolutionNote string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

type ModerationAction struct {
	ID          int64
	ContentType workflow.ContentType
	ContentID   int64
	ModeratorID string
	Action      workflow.ActionType
	Reason      string
	CreatedAt   time.Time
}

type QueueFilter struct {
	Status      workflow.QueueStatus
	ContentType workflow.ContentType
	Limit       int
	Offset      int
}

type ReviewFilter struct {
	ReviewerID string
	Status     workflow.ReviewStatus
	Limit      int
	Offset     int
}

type AssignmentFilter struct {
	AssigneeID string
	RevisionID int64
	Status     workflow.AssignmentStatus
	Limit      int
}

type FlagFilter struct {
	Status workflow.FlagStatus
	Limit  int
	Offset int
}

type ActionFilter struct {
	ContentType workflow.ContentType
	ContentID   int64
	Limit       int
}

// SystemActor is recorded as the moderator of automatic decisions.
const SystemActor = "system"
