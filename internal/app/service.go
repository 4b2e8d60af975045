package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/consensus"
	"afropedia/api/internal/events"
	"afropedia/api/internal/gitrepo"
	"afropedia/api/internal/metrics"
	"afropedia/api/internal/rbac"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100

	maxTitleLength   = 200
	maxCommentLength = 500
	maxReasonLength  = 1000
)

// dataStore is implemented by store.PostgresStore and sqlitestore.Store.
// Every method joins the transaction carried by ctx when there is one.
type dataStore interface {
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertDocument(ctx context.Context, doc store.Document) (store.Document, error)
	GetDocument(ctx context.Context, id int64) (store.Document, error)
	SetDocumentStatus(ctx context.Context, id int64, status workflow.DocumentStatus) error
	AdvanceHead(ctx context.Context, documentID, revisionID int64) (bool, error)

	InsertRevision(ctx context.Context, rev store.Revision) (store.Revision, error)
	GetRevision(ctx context.Context, id int64) (store.Revision, error)
	LockRevision(ctx context.Context, id int64) (store.Revision, error)
	PreviousRevision(ctx context.Context, documentID, beforeID int64) (store.Revision, error)
	ListRevisions(ctx context.Context, documentID int64, limit, offset int) ([]store.Revision, error)
	CountOpenRevisions(ctx context.Context, documentID int64) (int, error)
	TransitionRevision(ctx context.Context, id int64, to workflow.RevisionStatus, at time.Time) (bool, error)

	InsertQueueItem(ctx context.Context, item store.QueueItem) (store.QueueItem, error)
	GetQueueItem(ctx context.Context, id int64) (store.QueueItem, error)
	OpenQueueItem(ctx context.Context, contentType workflow.ContentType, contentID int64) (store.QueueItem, error)
	AssignQueueItem(ctx context.Context, id int64, assignee string, at time.Time) (bool, error)
	CloseQueueItem(ctx context.Context, id int64, verdict workflow.QueueStatus, at time.Time) (bool, error)
	ListQueue(ctx context.Context, filter store.QueueFilter) ([]store.QueueItem, error)

	InsertAssignment(ctx context.Context, a store.Assignment) (store.Assignment, error)
	GetAssignment(ctx context.Context, id int64) (store.Assignment, error)
	TransitionAssignment(ctx context.Context, id int64, to workflow.AssignmentStatus, reason string, at time.Time) (bool, error)
	CompleteAssignments(ctx context.Context, revisionID int64, assignee string, at time.Time) (int, error)
	ListAssignments(ctx context.Context, filter store.AssignmentFilter) ([]store.Assignment, error)

	InsertReview(ctx context.Context, r store.Review) (store.Review, error)
	GetReview(ctx context.Context, id int64) (store.Review, error)
	TransitionReview(ctx context.Context, id int64, to workflow.ReviewStatus, reason string, at time.Time) (bool, error)
	CompleteReview(ctx context.Context, id int64, c store.ReviewCompletion) (bool, error)
	ListReviewsForRevision(ctx context.Context, revisionID int64) ([]store.Review, error)
	ListReviews(ctx context.Context, filter store.ReviewFilter) ([]store.Review, error)

	InsertComment(ctx context.Context, c store.Comment) (store.Comment, error)
	GetComment(ctx context.Context, id int64) (store.Comment, error)
	ResolveComment(ctx context.Context, id int64, at time.Time) (bool, error)
	ListComments(ctx context.Context, reviewID int64, includeInternal bool) ([]store.Comment, error)

	InsertFlag(ctx context.Context, f store.Flag) (store.Flag, error)
	GetFlag(ctx context.Context, id int64) (store.Flag, error)
	ResolveFlag(ctx context.Context, id int64, resolver, note string, at time.Time) (bool, error)
	ListFlags(ctx context.Context, filter store.FlagFilter) ([]store.Flag, error)

	InsertAction(ctx context.Context, a store.ModerationAction) (store.ModerationAction, error)
	ListActions(ctx context.Context, filter store.ActionFilter) ([]store.ModerationAction, error)
}

// archive serves the published history kept by the git mirror.
type archive interface {
	History(documentID int64, limit int) ([]gitrepo.CommitInfo, error)
	ContentAt(documentID int64, hash string) (gitrepo.Content, error)
}

type Options struct {
	Policy  consensus.Policy
	Events  *events.Fanout
	Logger  *zap.Logger
	Archive archive
	Now     func() time.Time
}

type Service struct {
	store   dataStore
	policy  consensus.Policy
	events  *events.Fanout
	log     *zap.Logger
	archive archive
	now     func() time.Time
}

func New(db dataStore, opts Options) *Service {
	if opts.Policy.MinApprovals == 0 {
		opts.Policy = consensus.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:   db,
		policy:  opts.Policy,
		events:  opts.Events,
		log:     opts.Logger,
		archive: opts.Archive,
		now:     opts.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Policy() consensus.Policy {
	return s.policy
}

// unit collects what a unit of work wants to announce. Nothing in it leaves
// the process until the transaction commits.
type unit struct {
	events []events.Event
	after  []func()
}

func (u *unit) emit(event events.Event) {
	u.events = append(u.events, event)
}

func (u *unit) onCommit(fn func()) {
	u.after = append(u.after, fn)
}

// run executes fn as one unit of work. The store may retry fn on transient
// failures, so the unit is reset on every attempt.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, u *unit) error) error {
	var u *unit
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		u = &unit{}
		return fn(ctx, u)
	})
	if err != nil {
		mapped := storeError(op, err)
		var domainErr *DomainError
		if errors.As(mapped, &domainErr) {
			switch domainErr.Kind {
			case KindConflict:
				metrics.Conflicts.WithLabelValues(domainErr.Code).Inc()
			case KindExternal:
				s.log.Error("unit of work failed", zap.String("op", op), zap.Error(err))
			}
		}
		return mapped
	}
	for _, fn := range u.after {
		fn()
	}
	s.events.Publish(u.events...)
	return nil
}

func authorize(actor auth.Identity, action rbac.Action) error {
	if actor.UserID == "" {
		return forbidden("an identity is required")
	}
	if !rbac.Can(actor.Role, action) {
		return forbidden("role " + string(actor.Role) + " may not " + string(action))
	}
	return nil
}

func isModerator(actor auth.Identity) bool {
	return rbac.Can(actor.Role, rbac.ActionModerate)
}

func pageLimit(limit, offset int) (int, int, error) {
	if offset < 0 {
		return 0, 0, invalid("offset", "offset must not be negative")
	}
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return limit, offset, nil
}

func requiredText(field, value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", invalid(field, field+" is required")
	}
	if len(trimmed) > maxLen {
		return "", invalid(field, field+" is too long")
	}
	return trimmed, nil
}

func optionalText(field, value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) > maxLen {
		return "", invalid(field, field+" is too long")
	}
	return trimmed, nil
}

func parsePriority(raw string) (workflow.Priority, error) {
	if strings.TrimSpace(raw) == "" {
		return workflow.PriorityNormal, nil
	}
	priority, err := workflow.ParsePriority(raw)
	if err != nil {
		return "", validation(err)
	}
	return priority, nil
}
