package app

import (
	"time"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/consensus"
	"afropedia/api/internal/diff"
	"afropedia/api/internal/review"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

type RevisionView struct {
	ID         int64                   `json:"id"`
	DocumentID int64                   `json:"documentId"`
	AuthorID   string                  `json:"authorId"`
	Content    string                  `json:"content"`
	Comment    string                  `json:"comment,omitempty"`
	Status     workflow.RevisionStatus `json:"status"`
	CreatedAt  time.Time               `json:"createdAt"`
	DecidedAt  *time.Time              `json:"decidedAt,omitempty"`
}

func revisionView(rev store.Revision) RevisionView {
	return RevisionView{
		ID:         rev.ID,
		DocumentID: rev.DocumentID,
		AuthorID:   rev.AuthorID,
		Content:    rev.Content,
		Comment:    rev.Comment,
		Status:     rev.Status,
		CreatedAt:  rev.CreatedAt,
		DecidedAt:  rev.DecidedAt,
	}
}

type DocumentView struct {
	ID             int64                   `json:"id"`
	Title          string                  `json:"title"`
	Status         workflow.DocumentStatus `json:"status"`
	HeadRevisionID *int64                  `json:"headRevisionId"`
	Head           *RevisionView           `json:"head,omitempty"`
	CreatedBy      string                  `json:"createdBy"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

func documentView(doc store.Document) DocumentView {
	return DocumentView{
		ID:             doc.ID,
		Title:          doc.Title,
		Status:         doc.Status,
		HeadRevisionID: doc.HeadRevisionID,
		CreatedBy:      doc.CreatedBy,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

type HeadView struct {
	DocumentID     int64 `json:"documentId"`
	HeadRevisionID int64 `json:"headRevisionId"`
	Changed        bool  `json:"changed"`
}

type QueueItemView struct {
	ID          int64                `json:"id"`
	ContentType workflow.ContentType `json:"contentType"`
	ContentID   int64                `json:"contentId"`
	SubmittedBy string               `json:"submittedBy"`
	Priority    workflow.Priority    `json:"priority"`
	Status      workflow.QueueStatus `json:"status"`
	AssignedTo  *string              `json:"assignedTo"`
	Notes       string               `json:"notes,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	ClosedAt    *time.Time           `json:"closedAt,omitempty"`
}

func queueItemView(item store.QueueItem) QueueItemView {
	return QueueItemView(item)
}

type AssignmentView struct {
	ID             int64                     `json:"id"`
	RevisionID     int64                     `json:"revisionId"`
	AssigneeID     string                    `json:"assigneeId"`
	AssignedBy     string                    `json:"assignedBy"`
	Priority       workflow.Priority         `json:"priority"`
	DueAt          *time.Time                `json:"dueAt,omitempty"`
	Instructions   string                    `json:"instructions,omitempty"`
	Status         workflow.AssignmentStatus `json:"status"`
	DeclinedReason string                    `json:"declinedReason,omitempty"`
	CreatedAt      time.Time                 `json:"createdAt"`
	RespondedAt    *time.Time                `json:"respondedAt,omitempty"`
	CompletedAt    *time.Time                `json:"completedAt,omitempty"`
}

func assignmentView(a store.Assignment) AssignmentView {
	return AssignmentView(a)
}

type ReviewView struct {
	ID               int64                      `json:"id"`
	RevisionID       int64                      `json:"revisionId"`
	ReviewerID       string                     `json:"reviewerId,omitempty"`
	Status           workflow.ReviewStatus      `json:"status"`
	OverallScore     *float64                   `json:"overallScore"`
	CriteriaScores   map[workflow.Criterion]int `json:"criteriaScores,omitempty"`
	Feedback         review.Feedback            `json:"feedback"`
	IsAnonymous      bool                       `json:"isAnonymous"`
	EscalationReason string                     `json:"escalationReason,omitempty"`
	CreatedAt        time.Time                  `json:"createdAt"`
	StartedAt        *time.Time                 `json:"startedAt,omitempty"`
	CompletedAt      *time.Time                 `json:"completedAt,omitempty"`
}

// reviewView hides the reviewer of an anonymous review from everyone but the
// reviewer and moderators.
func reviewView(r store.Review, viewer auth.Identity) ReviewView {
	view := ReviewView{
		ID:               r.ID,
		RevisionID:       r.RevisionID,
		ReviewerID:       r.ReviewerID,
		Status:           r.Status,
		OverallScore:     r.OverallScore,
		CriteriaScores:   r.CriteriaScores,
		Feedback:         r.Feedback,
		IsAnonymous:      r.IsAnonymous,
		EscalationReason: r.EscalationReason,
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
	if r.IsAnonymous && viewer.UserID != r.ReviewerID && !isModerator(viewer) {
		view.ReviewerID = ""
	}
	return view
}

func reviewViews(reviews []store.Review, viewer auth.Identity) []ReviewView {
	out := make([]ReviewView, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, reviewView(r, viewer))
	}
	return out
}

// CompletionView reports a completed review and what it did to the revision.
type CompletionView struct {
	Review         ReviewView              `json:"review"`
	Consensus      consensus.Decision      `json:"consensus"`
	RevisionStatus workflow.RevisionStatus `json:"revisionStatus"`
	Head           HeadOutcome             `json:"head,omitempty"`
}

type HeadOutcome string

const (
	HeadUnchanged  HeadOutcome = ""
	HeadMoved      HeadOutcome = "advanced"
	HeadSuperseded HeadOutcome = "superseded"
)

// DecisionView is the result of a moderator decision on a revision.
type DecisionView struct {
	Revision RevisionView `json:"revision"`
	Head     HeadOutcome  `json:"head,omitempty"`
}

type ConsensusView struct {
	RevisionID     int64                   `json:"revisionId"`
	RevisionStatus workflow.RevisionStatus `json:"revisionStatus"`
	Decision       consensus.Decision      `json:"consensus"`
}

type CommentView struct {
	ID          int64      `json:"id"`
	ReviewID    int64      `json:"reviewId"`
	CommenterID string     `json:"commenterId"`
	Content     string     `json:"content"`
	IsInternal  bool       `json:"isInternal"`
	IsResolved  bool       `json:"isResolved"`
	ParentID    *int64     `json:"parentId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

func commentView(c store.Comment) CommentView {
	return CommentView(c)
}

type FlagView struct {
	ID             int64                `json:"id"`
	ContentType    workflow.ContentType `json:"contentType"`
	ContentID      int64                `json:"contentId"`
	FlaggedBy      string               `json:"flaggedBy"`
	FlagType       workflow.FlagType    `json:"flagType"`
	Reason         string               `json:"reason"`
	Status         workflow.FlagStatus  `json:"status"`
	ResolvedBy     string               `json:"resolvedBy,omitempty"`
	ResolutionNote string               `json:"resolutionNote,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	ResolvedAt     *time.Time           `json:"resolvedAt,omitempty"`
}

func flagView(f store.Flag) FlagView {
	return FlagView(f)
}

type ActionView struct {
	ID          int64                `json:"id"`
	ContentType workflow.ContentType `json:"contentType"`
	ContentID   int64                `json:"contentId"`
	ModeratorID string               `json:"moderatorId"`
	Action      workflow.ActionType  `json:"action"`
	Reason      string               `json:"reason,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func actionView(a store.ModerationAction) ActionView {
	return ActionView(a)
}

type DiffView struct {
	RevisionID         int64  `json:"revisionId"`
	PreviousRevisionID *int64 `json:"previousRevisionId"`
	IsFirstRevision    bool   `json:"isFirstRevision"`
	diff.Result
}

type ReviewerMetricsView struct {
	ReviewerID string `json:"reviewerId"`
	review.Stats
}

func mapViews[T, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}
