package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/events"
	"afropedia/api/internal/rbac"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

type SubmitInput struct {
	ContentType string `json:"contentType"`
	ContentID   int64  `json:"contentId"`
	Priority    string `json:"priority"`
	Notes       string `json:"notes"`
}

// Submit opens a queue item for a piece of content. For revisions it is also
// how a revision left without an open item re-enters the queue.
func (s *Service) Submit(ctx context.Context, actor auth.Identity, input SubmitInput) (QueueItemView, error) {
	if err := authorize(actor, rbac.ActionEdit); err != nil {
		return QueueItemView{}, err
	}
	contentType, err := workflow.ParseContentType(input.ContentType)
	if err != nil {
		return QueueItemView{}, validation(err)
	}
	priority, err := parsePriority(input.Priority)
	if err != nil {
		return QueueItemView{}, err
	}
	notes, err := optionalText("notes", input.Notes, maxReasonLength)
	if err != nil {
		return QueueItemView{}, err
	}

	var item store.QueueItem
	err = s.run(ctx, "submit for moderation", func(ctx context.Context, u *unit) error {
		var documentID int64
		switch contentType {
		case workflow.ContentRevision:
			rev, err := s.store.GetRevision(ctx, input.ContentID)
			if err != nil {
				return lookup("revision", input.ContentID, err)
			}
			if rev.Status.Terminal() {
				return conflict(CodeRevisionDecided, fmt.Sprintf("revision %d is already %s", rev.ID, rev.Status))
			}
			documentID = rev.DocumentID
		default:
			doc, err := s.store.GetDocument(ctx, input.ContentID)
			if err != nil {
				return lookup("document", input.ContentID, err)
			}
			documentID = doc.ID
		}

		if open, err := s.store.OpenQueueItem(ctx, contentType, input.ContentID); err == nil {
			return queueItemOpen(open)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		created, err := s.store.InsertQueueItem(ctx, store.QueueItem{
			ContentType: contentType,
			ContentID:   input.ContentID,
			SubmittedBy: actor.UserID,
			Priority:    priority,
			Status:      workflow.QueuePending,
			Notes:       notes,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return conflict(CodeQueueItemOpen, fmt.Sprintf("%s %d already has an open queue item", contentType, input.ContentID))
		}
		if err != nil {
			return err
		}
		item = created

		if contentType == workflow.ContentRevision {
			if err := s.store.SetDocumentStatus(ctx, documentID, workflow.DocumentPendingReview); err != nil {
				return err
			}
			event := events.New(events.RevisionSubmitted, actor.UserID)
			event.DocumentID = documentID
			event.RevisionID = input.ContentID
			u.emit(event)
		}
		return nil
	})
	if err != nil {
		return QueueItemView{}, err
	}
	return queueItemView(item), nil
}

func queueItemOpen(item store.QueueItem) *DomainError {
	return domainError(KindConflict, CodeQueueItemOpen,
		fmt.Sprintf("%s %d already has an open queue item", item.ContentType, item.ContentID),
		map[string]any{"queueItemId": item.ID})
}

// AssignQueueItem takes a pending item into review. A queued revision moves
// into review with it.
func (s *Service) AssignQueueItem(ctx context.Context, actor auth.Identity, itemID int64, assigneeID string) (QueueItemView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return QueueItemView{}, err
	}
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID == "" {
		assigneeID = actor.UserID
	}

	var item store.QueueItem
	err := s.run(ctx, "assign queue item", func(ctx context.Context, u *unit) error {
		current, err := s.store.GetQueueItem(ctx, itemID)
		if err != nil {
			return lookup("queue item", itemID, err)
		}
		at := s.now()
		ok, err := s.store.AssignQueueItem(ctx, itemID, assigneeID, at)
		if err != nil {
			return err
		}
		if !ok {
			return conflict(CodeInvalidTransition, fmt.Sprintf("queue item %d is %s", itemID, current.Status))
		}
		if current.ContentType == workflow.ContentRevision {
			if _, err := s.store.TransitionRevision(ctx, current.ContentID, workflow.RevisionInReview, at); err != nil {
				return err
			}
		}
		if _, err := s.store.InsertAction(ctx, store.ModerationAction{
			ContentType: current.ContentType,
			ContentID:   current.ContentID,
			ModeratorID: actor.UserID,
			Action:      workflow.ActionAssign,
			Reason:      "assigned to " + assigneeID,
		}); err != nil {
			return err
		}
		item, err = s.store.GetQueueItem(ctx, itemID)
		if err != nil {
			return err
		}
		event := events.New(events.QueueAssigned, actor.UserID)
		if current.ContentType == workflow.ContentRevision {
			event.RevisionID = current.ContentID
		}
		event.Payload = map[string]any{"queueItemId": itemID, "assigneeId": assigneeID}
		u.emit(event)
		return nil
	})
	if err != nil {
		return QueueItemView{}, err
	}
	return queueItemView(item), nil
}

// CloseQueueItem records a moderator verdict on an open item. Revision items
// are decided through the revision so the head pointer follows.
func (s *Service) CloseQueueItem(ctx context.Context, actor auth.Identity, itemID int64, rawVerdict, reason string) (QueueItemView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return QueueItemView{}, err
	}
	verdict, err := workflow.ParseQueueVerdict(rawVerdict)
	if err != nil {
		return QueueItemView{}, validation(err)
	}
	reason, err = optionalText("reason", reason, maxReasonLength)
	if err != nil {
		return QueueItemView{}, err
	}
	if verdict == workflow.QueueRejected && reason == "" {
		return QueueItemView{}, invalid("reason", "reason is required")
	}

	var item store.QueueItem
	err = s.run(ctx, "close queue item", func(ctx context.Context, u *unit) error {
		current, err := s.store.GetQueueItem(ctx, itemID)
		if err != nil {
			return lookup("queue item", itemID, err)
		}
		if !current.Status.Open() {
			return conflict(CodeInvalidTransition, fmt.Sprintf("queue item %d is already %s", itemID, current.Status))
		}

		if current.ContentType == workflow.ContentRevision {
			status := workflow.RevisionRejected
			if verdict == workflow.QueueApproved {
				status = workflow.RevisionApproved
			}
			if _, _, err := s.moderate(ctx, u, actor, current.ContentID, status, reason); err != nil {
				return err
			}
		} else {
			ok, err := s.store.CloseQueueItem(ctx, itemID, verdict, s.now())
			if err != nil {
				return err
			}
			if !ok {
				return conflict(CodeInvalidTransition, fmt.Sprintf("queue item %d is no longer open", itemID))
			}
			action := workflow.ActionReject
			if verdict == workflow.QueueApproved {
				action = workflow.ActionApprove
			}
			if _, err := s.store.InsertAction(ctx, store.ModerationAction{
				ContentType: current.ContentType,
				ContentID:   current.ContentID,
				ModeratorID: actor.UserID,
				Action:      action,
				Reason:      reason,
			}); err != nil {
				return err
			}
		}
		item, err = s.store.GetQueueItem(ctx, itemID)
		return err
	})
	if err != nil {
		return QueueItemView{}, err
	}
	return queueItemView(item), nil
}

type QueueQuery struct {
	Status      string
	ContentType string
	Limit       int
	Offset      int
}

// ListQueue returns queue items most pressing first, oldest first within a
// priority.
func (s *Service) ListQueue(ctx context.Context, actor auth.Identity, query QueueQuery) ([]QueueItemView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return nil, err
	}
	limit, offset, err := pageLimit(query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	filter := store.QueueFilter{Limit: limit, Offset: offset}
	if query.Status != "" {
		if filter.Status, err = workflow.ParseQueueStatus(query.Status); err != nil {
			return nil, validation(err)
		}
	}
	if query.ContentType != "" {
		if filter.ContentType, err = workflow.ParseContentType(query.ContentType); err != nil {
			return nil, validation(err)
		}
	}
	items, err := s.store.ListQueue(ctx, filter)
	if err != nil {
		return nil, storeError("list queue", err)
	}
	return mapViews(items, queueItemView), nil
}

func (s *Service) ApproveRevision(ctx context.Context, actor auth.Identity, revisionID int64, reason string) (DecisionView, error) {
	return s.moderateRevision(ctx, actor, revisionID, workflow.RevisionApproved, reason)
}

func (s *Service) RejectRevision(ctx context.Context, actor auth.Identity, revisionID int64, reason string) (DecisionView, error) {
	return s.moderateRevision(ctx, actor, revisionID, workflow.RevisionRejected, reason)
}

// RequestChanges sends a revision back to its author. The revision is final;
// the author answers with a new revision.
func (s *Service) RequestChanges(ctx context.Context, actor auth.Identity, revisionID int64, reason string) (DecisionView, error) {
	return s.moderateRevision(ctx, actor, revisionID, workflow.RevisionNeedsChanges, reason)
}

func (s *Service) moderateRevision(ctx context.Context, actor auth.Identity, revisionID int64, status workflow.RevisionStatus, reason string) (DecisionView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return DecisionView{}, err
	}
	reason, err := optionalText("reason", reason, maxReasonLength)
	if err != nil {
		return DecisionView{}, err
	}
	if status != workflow.RevisionApproved && reason == "" {
		return DecisionView{}, invalid("reason", "reason is required")
	}

	var view DecisionView
	err = s.run(ctx, "moderate revision", func(ctx context.Context, u *unit) error {
		rev, head, err := s.moderate(ctx, u, actor, revisionID, status, reason)
		if err != nil {
			return err
		}
		view = DecisionView{Revision: revisionView(rev), Head: head}
		return nil
	})
	if err != nil {
		return DecisionView{}, err
	}
	return view, nil
}

func (s *Service) moderate(ctx context.Context, u *unit, actor auth.Identity, revisionID int64, status workflow.RevisionStatus, reason string) (store.Revision, HeadOutcome, error) {
	rev, err := s.store.LockRevision(ctx, revisionID)
	if err != nil {
		return store.Revision{}, HeadUnchanged, lookup("revision", revisionID, err)
	}
	if rev.Status.Terminal() {
		return store.Revision{}, HeadUnchanged, conflict(CodeRevisionDecided, fmt.Sprintf("revision %d is already %s", revisionID, rev.Status))
	}
	return s.decide(ctx, u, rev, decision{
		status: status,
		actor:  actor.UserID,
		action: actionFor(status),
		reason: reason,
		path:   "moderator",
	})
}

type ActionQuery struct {
	ContentType string
	ContentID   int64
	Limit       int
}

func (s *Service) ListModerationActions(ctx context.Context, actor auth.Identity, query ActionQuery) ([]ActionView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return nil, err
	}
	limit, _, err := pageLimit(query.Limit, 0)
	if err != nil {
		return nil, err
	}
	filter := store.ActionFilter{ContentID: query.ContentID, Limit: limit}
	if query.ContentType != "" {
		if filter.ContentType, err = workflow.ParseContentType(query.ContentType); err != nil {
			return nil, validation(err)
		}
	}
	actions, err := s.store.ListActions(ctx, filter)
	if err != nil {
		return nil, storeError("list moderation actions", err)
	}
	return mapViews(actions, actionView), nil
}
