package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"afropedia/api/internal/events"
	"afropedia/api/internal/metrics"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

// decision is a terminal verdict on a revision together with who made it.
type decision struct {
	status workflow.RevisionStatus
	actor  string
	action workflow.ActionType
	reason string
	// path labels head advances in metrics.
	path string
}

// decide moves a non-terminal revision to its verdict and applies every
// follow-up in the caller's unit of work: the head pointer, the queue item,
// the audit trail and the document status.
func (s *Service) decide(ctx context.Context, u *unit, rev store.Revision, d decision) (store.Revision, HeadOutcome, error) {
	at := s.now()
	ok, err := s.store.TransitionRevision(ctx, rev.ID, d.status, at)
	if err != nil {
		return store.Revision{}, HeadUnchanged, err
	}
	if !ok {
		return store.Revision{}, HeadUnchanged, conflict(CodeRevisionDecided, fmt.Sprintf("revision %d is already decided", rev.ID))
	}
	rev.Status = d.status
	rev.DecidedAt = &at

	head := HeadUnchanged
	if d.status == workflow.RevisionApproved {
		head, err = s.publishHead(ctx, u, rev, d.actor, d.path)
		if err != nil {
			return store.Revision{}, HeadUnchanged, err
		}
	}

	if err := s.closeRevisionItem(ctx, rev.ID, d.status, at); err != nil {
		return store.Revision{}, HeadUnchanged, err
	}
	if _, err := s.store.InsertAction(ctx, store.ModerationAction{
		ContentType: workflow.ContentRevision,
		ContentID:   rev.ID,
		ModeratorID: d.actor,
		Action:      d.action,
		Reason:      d.reason,
	}); err != nil {
		return store.Revision{}, HeadUnchanged, err
	}
	if err := s.settleDocument(ctx, rev.DocumentID); err != nil {
		return store.Revision{}, HeadUnchanged, err
	}

	event := events.New(revisionEvent(d.status), d.actor)
	event.DocumentID = rev.DocumentID
	event.RevisionID = rev.ID
	if d.reason != "" {
		event.Payload = map[string]any{"reason": d.reason}
	}
	u.emit(event)
	u.onCommit(func() {
		metrics.ConsensusDecisions.WithLabelValues(string(d.status)).Inc()
	})
	return rev, head, nil
}

// publishHead advances the document head to an approved revision. Losing to
// a newer head is not an error: the revision stays approved and is reported
// as superseded.
func (s *Service) publishHead(ctx context.Context, u *unit, rev store.Revision, actor, path string) (HeadOutcome, error) {
	moved, err := s.store.AdvanceHead(ctx, rev.DocumentID, rev.ID)
	if err != nil {
		return HeadUnchanged, err
	}
	if !moved {
		event := events.New(events.HeadSuperseded, actor)
		event.DocumentID = rev.DocumentID
		event.RevisionID = rev.ID
		u.emit(event)
		return HeadSuperseded, nil
	}

	doc, err := s.store.GetDocument(ctx, rev.DocumentID)
	if err != nil {
		return HeadUnchanged, err
	}
	event := events.New(events.HeadAdvanced, actor)
	event.DocumentID = rev.DocumentID
	event.RevisionID = rev.ID
	event.Payload = map[string]any{
		"title":   doc.Title,
		"content": rev.Content,
		"path":    path,
	}
	u.emit(event)
	u.onCommit(func() {
		metrics.HeadAdvances.WithLabelValues(path).Inc()
	})
	return HeadMoved, nil
}

func (s *Service) closeRevisionItem(ctx context.Context, revisionID int64, status workflow.RevisionStatus, at time.Time) error {
	item, err := s.store.OpenQueueItem(ctx, workflow.ContentRevision, revisionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	verdict := workflow.QueueRejected
	if status == workflow.RevisionApproved {
		verdict = workflow.QueueApproved
	}
	_, err = s.store.CloseQueueItem(ctx, item.ID, verdict, at)
	return err
}

// settleDocument derives the document status after a decision: open
// revisions keep it in review, otherwise a published head means approved.
func (s *Service) settleDocument(ctx context.Context, documentID int64) error {
	open, err := s.store.CountOpenRevisions(ctx, documentID)
	if err != nil {
		return err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	status := workflow.DocumentRejected
	switch {
	case open > 0:
		status = workflow.DocumentPendingReview
	case doc.HeadRevisionID != nil:
		status = workflow.DocumentApproved
	}
	if status == doc.Status {
		return nil
	}
	return s.store.SetDocumentStatus(ctx, documentID, status)
}

func revisionEvent(status workflow.RevisionStatus) events.Type {
	switch status {
	case workflow.RevisionApproved:
		return events.RevisionApproved
	case workflow.RevisionRejected:
		return events.RevisionRejected
	default:
		return events.RevisionNeedsChanges
	}
}

func actionFor(status workflow.RevisionStatus) workflow.ActionType {
	switch status {
	case workflow.RevisionApproved:
		return workflow.ActionApprove
	case workflow.RevisionRejected:
		return workflow.ActionReject
	default:
		return workflow.ActionRequestChanges
	}
}
