// Package workflow holds the closed sets of states used by the review
// pipeline. Every value enters the system through a Parse function; an
// unknown string is an error, never a silent default.
package workflow

import (
	"fmt"
	"strings"
)

// ParseError reports a string that is not a member of an enumeration.
type ParseError struct {
	Kind  string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Kind, e.Value)
}

func parse[T ~string](kind, raw string, values []T) (T, error) {
	trimmed := strings.TrimSpace(raw)
	for _, value := range values {
		if string(value) == trimmed {
			return value, nil
		}
	}
	var zero T
	return zero, &ParseError{Kind: kind, Value: raw}
}

type DocumentStatus string

const (
	DocumentDraft         DocumentStatus = "draft"
	DocumentPendingReview DocumentStatus = "pending_review"
	DocumentApproved      DocumentStatus = "approved"
	DocumentRejected      DocumentStatus = "rejected"
)

var documentStatuses = []DocumentStatus{DocumentDraft, DocumentPendingReview, DocumentApproved, DocumentRejected}

func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	return parse("document status", raw, documentStatuses)
}

func (s *DocumentStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type RevisionStatus string

const (
	RevisionPending      RevisionStatus = "pending"
	RevisionInReview     RevisionStatus = "in_review"
	RevisionApproved     RevisionStatus = "approved"
	RevisionRejected     RevisionStatus = "rejected"
	RevisionNeedsChanges RevisionStatus = "needs_changes"
)

var revisionStatuses = []RevisionStatus{RevisionPending, RevisionInReview, RevisionApproved, RevisionRejected, RevisionNeedsChanges}

// OpenRevisionStatuses are the states a decision may still be applied from.
var OpenRevisionStatuses = []RevisionStatus{RevisionPending, RevisionInReview}

func ParseRevisionStatus(raw string) (RevisionStatus, error) {
	return parse("revision status", raw, revisionStatuses)
}

func (s RevisionStatus) Terminal() bool {
	return s == RevisionApproved || s == RevisionRejected || s == RevisionNeedsChanges
}

func (s *RevisionStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseRevisionStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type ContentType string

const (
	ContentRevision ContentType = "revision"
	ContentArticle  ContentType = "article"
	ContentBook     ContentType = "book"
)

var contentTypes = []ContentType{ContentRevision, ContentArticle, ContentBook}

func ParseContentType(raw string) (ContentType, error) {
	return parse("content type", raw, contentTypes)
}

func (c *ContentType) UnmarshalText(text []byte) error {
	parsed, err := ParseContentType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

func ParsePriority(raw string) (Priority, error) {
	return parse("priority", raw, priorities)
}

// Rank orders priorities for queue listings; higher is more pressing.
func (p Priority) Rank() int {
	for i, value := range priorities {
		if value == p {
			return i
		}
	}
	return -1
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type QueueStatus string

const (
	QueuePending  QueueStatus = "pending"
	QueueInReview QueueStatus = "in_review"
	QueueApproved QueueStatus = "approved"
	QueueRejected QueueStatus = "rejected"
)

var queueStatuses = []QueueStatus{QueuePending, QueueInReview, QueueApproved, QueueRejected}

var OpenQueueStatuses = []QueueStatus{QueuePending, QueueInReview}

func ParseQueueStatus(raw string) (QueueStatus, error) {
	return parse("queue status", raw, queueStatuses)
}

// ParseQueueVerdict accepts only the terminal queue states.
func ParseQueueVerdict(raw string) (QueueStatus, error) {
	return parse("queue verdict", raw, []QueueStatus{QueueApproved, QueueRejected})
}

func (s QueueStatus) Open() bool {
	return s == QueuePending || s == QueueInReview
}

func (s *QueueStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseQueueStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentDeclined  AssignmentStatus = "declined"
	AssignmentCompleted AssignmentStatus = "completed"
)

var assignmentStatuses = []AssignmentStatus{AssignmentPending, AssignmentAccepted, AssignmentDeclined, AssignmentCompleted}

func ParseAssignmentStatus(raw string) (AssignmentStatus, error) {
	return parse("assignment status", raw, assignmentStatuses)
}

func (s *AssignmentStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAssignmentStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type ReviewStatus string

const (
	ReviewPending      ReviewStatus = "pending"
	ReviewInProgress   ReviewStatus = "in_progress"
	ReviewApproved     ReviewStatus = "approved"
	ReviewRejected     ReviewStatus = "rejected"
	ReviewNeedsChanges ReviewStatus = "needs_changes"
	ReviewConflict     ReviewStatus = "conflict"
	ReviewEscalated    ReviewStatus = "escalated"
)

var reviewStatuses = []ReviewStatus{
	ReviewPending, ReviewInProgress, ReviewApproved, ReviewRejected,
	ReviewNeedsChanges, ReviewConflict, ReviewEscalated,
}

// OpenReviewStatuses are the states from which a review can still be completed.
var OpenReviewStatuses = []ReviewStatus{ReviewPending, ReviewInProgress, ReviewConflict, ReviewEscalated}

func ParseReviewStatus(raw string) (ReviewStatus, error) {
	return parse("review status", raw, reviewStatuses)
}

// ParseVerdict accepts only the statuses a reviewer may complete with.
func ParseVerdict(raw string) (ReviewStatus, error) {
	return parse("verdict", raw, []ReviewStatus{ReviewApproved, ReviewRejected, ReviewNeedsChanges})
}

func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected || s == ReviewNeedsChanges
}

func (s *ReviewStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseReviewStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type FlagType string

const (
	FlagInappropriate FlagType = "inappropriate"
	FlagSpam          FlagType = "spam"
	FlagInaccurate    FlagType = "inaccurate"
	FlagCopyright     FlagType = "copyright"
	FlagOther         FlagType = "other"
)

var flagTypes = []FlagType{FlagInappropriate, FlagSpam, FlagInaccurate, FlagCopyright, FlagOther}

func ParseFlagType(raw string) (FlagType, error) {
	return parse("flag type", raw, flagTypes)
}

func (f *FlagType) UnmarshalText(text []byte) error {
	parsed, err := ParseFlagType(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

type FlagStatus string

const (
	FlagPending  FlagStatus = "pending"
	FlagResolved FlagStatus = "resolved"
)

func ParseFlagStatus(raw string) (FlagStatus, error) {
	return parse("flag status", raw, []FlagStatus{FlagPending, FlagResolved})
}

func (s *FlagStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseFlagStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type ActionType string

const (
	ActionApprove        ActionType = "approve"
	ActionReject         ActionType = "reject"
	ActionRequestChanges ActionType = "request_changes"
	ActionAutoApprove    ActionType = "auto_approve"
	ActionAutoReject     ActionType = "auto_reject"
	ActionFastPath       ActionType = "fast_path"
	ActionAssign         ActionType = "assign"
	ActionEscalate       ActionType = "escalate"
	ActionFlag           ActionType = "flag"
	ActionUnflag         ActionType = "unflag"
)

var actionTypes = []ActionType{
	ActionApprove, ActionReject, ActionRequestChanges, ActionAutoApprove, ActionAutoReject,
	ActionFastPath, ActionAssign, ActionEscalate, ActionFlag, ActionUnflag,
}

func ParseActionType(raw string) (ActionType, error) {
	return parse("moderation action", raw, actionTypes)
}

// Criterion is one named dimension of a review score.
type Criterion string

const (
	CriterionAccuracy     Criterion = "accuracy"
	CriterionClarity      Criterion = "clarity"
	CriterionCompleteness Criterion = "completeness"
	CriterionSources      Criterion = "sources"
	CriterionNeutrality   Criterion = "neutrality"
	CriterionStyle        Criterion = "style"
)

var criteria = []Criterion{
	CriterionAccuracy, CriterionClarity, CriterionCompleteness,
	CriterionSources, CriterionNeutrality, CriterionStyle,
}

func ParseCriterion(raw string) (Criterion, error) {
	return parse("criterion", raw, criteria)
}

// Criteria returns every scoring dimension in display order.
func Criteria() []Criterion {
	out := make([]Criterion, len(criteria))
	copy(out, criteria)
	return out
}

func (c *Criterion) UnmarshalText(text []byte) error {
	parsed, err := ParseCriterion(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
