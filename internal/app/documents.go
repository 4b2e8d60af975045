package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/diff"
	"afropedia/api/internal/events"
	"afropedia/api/internal/rbac"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

func (s *Service) CreateDocument(ctx context.Context, actor auth.Identity, title string) (DocumentView, error) {
	if err := authorize(actor, rbac.ActionEdit); err != nil {
		return DocumentView{}, err
	}
	title, err := requiredText("title", title, maxTitleLength)
	if err != nil {
		return DocumentView{}, err
	}
	doc, err := s.store.InsertDocument(ctx, store.Document{
		Title:     title,
		Status:    workflow.DocumentDraft,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		return DocumentView{}, storeError("create document", err)
	}
	return documentView(doc), nil
}

// GetDocument returns the document with its published head, if any.
func (s *Service) GetDocument(ctx context.Context, actor auth.Identity, documentID int64) (DocumentView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return DocumentView{}, err
	}
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return DocumentView{}, lookup("document", documentID, err)
	}
	view := documentView(doc)
	if doc.HeadRevisionID != nil {
		head, err := s.store.GetRevision(ctx, *doc.HeadRevisionID)
		if err != nil {
			return DocumentView{}, storeError("get head revision", err)
		}
		headView := revisionView(head)
		view.Head = &headView
	}
	return view, nil
}

type RevisionInput struct {
	Content  string `json:"content"`
	Comment  string `json:"comment"`
	Priority string `json:"priority"`
}

// CreateRevision appends a revision to a document. Editors enter the review
// pipeline; moderators and admins publish directly.
func (s *Service) CreateRevision(ctx context.Context, actor auth.Identity, documentID int64, input RevisionInput) (RevisionView, error) {
	if err := authorize(actor, rbac.ActionEdit); err != nil {
		return RevisionView{}, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return RevisionView{}, invalid("content", "content is required")
	}
	comment, err := optionalText("comment", input.Comment, maxCommentLength)
	if err != nil {
		return RevisionView{}, err
	}
	priority, err := parsePriority(input.Priority)
	if err != nil {
		return RevisionView{}, err
	}

	var created store.Revision
	err = s.run(ctx, "create revision", func(ctx context.Context, u *unit) error {
		if _, err := s.store.GetDocument(ctx, documentID); err != nil {
			return lookup("document", documentID, err)
		}
		rev := store.Revision{
			DocumentID: documentID,
			AuthorID:   actor.UserID,
			Content:    input.Content,
			Comment:    comment,
			Status:     workflow.RevisionPending,
		}
		if rbac.Privileged(actor.Role) {
			return s.fastPath(ctx, u, actor, rev, &created)
		}

		rev, err := s.store.InsertRevision(ctx, rev)
		if err != nil {
			return err
		}
		if _, err := s.store.InsertQueueItem(ctx, store.QueueItem{
			ContentType: workflow.ContentRevision,
			ContentID:   rev.ID,
			SubmittedBy: actor.UserID,
			Priority:    priority,
			Status:      workflow.QueuePending,
		}); err != nil {
			return err
		}
		if err := s.store.SetDocumentStatus(ctx, documentID, workflow.DocumentPendingReview); err != nil {
			return err
		}
		event := events.New(events.RevisionSubmitted, actor.UserID)
		event.DocumentID = documentID
		event.RevisionID = rev.ID
		u.emit(event)
		created = rev
		return nil
	})
	if err != nil {
		return RevisionView{}, err
	}
	return revisionView(created), nil
}

func (s *Service) fastPath(ctx context.Context, u *unit, actor auth.Identity, rev store.Revision, created *store.Revision) error {
	at := s.now()
	rev.Status = workflow.RevisionApproved
	rev.DecidedAt = &at
	rev, err := s.store.InsertRevision(ctx, rev)
	if err != nil {
		return err
	}
	if _, err := s.publishHead(ctx, u, rev, actor.UserID, "fast_path"); err != nil {
		return err
	}
	if _, err := s.store.InsertAction(ctx, store.ModerationAction{
		ContentType: workflow.ContentRevision,
		ContentID:   rev.ID,
		ModeratorID: actor.UserID,
		Action:      workflow.ActionFastPath,
	}); err != nil {
		return err
	}
	if err := s.settleDocument(ctx, rev.DocumentID); err != nil {
		return err
	}
	event := events.New(events.RevisionApproved, actor.UserID)
	event.DocumentID = rev.DocumentID
	event.RevisionID = rev.ID
	u.emit(event)
	*created = rev
	return nil
}

// AdvanceHead points a document at an approved revision. It is the manual
// form of the move consensus makes; the head never goes backwards.
func (s *Service) AdvanceHead(ctx context.Context, actor auth.Identity, documentID, revisionID int64) (HeadView, error) {
	if err := authorize(actor, rbac.ActionAdmin); err != nil {
		return HeadView{}, err
	}
	view := HeadView{DocumentID: documentID, HeadRevisionID: revisionID}
	err := s.run(ctx, "advance head", func(ctx context.Context, u *unit) error {
		doc, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return lookup("document", documentID, err)
		}
		rev, err := s.store.GetRevision(ctx, revisionID)
		if err != nil {
			return lookup("revision", revisionID, err)
		}
		if rev.DocumentID != documentID {
			return notFound("revision", fmt.Sprintf("%d in document %d", revisionID, documentID))
		}
		if !rev.IsApproved() {
			return conflict(CodeRevisionNotApproved, fmt.Sprintf("revision %d is %s", revisionID, rev.Status))
		}
		if doc.HeadRevisionID != nil && *doc.HeadRevisionID == revisionID {
			view.Changed = false
			return nil
		}
		outcome, err := s.publishHead(ctx, u, rev, actor.UserID, "admin")
		if err != nil {
			return err
		}
		if outcome != HeadMoved {
			return conflict(CodeHeadStale, fmt.Sprintf("document %d already points at a newer revision", documentID))
		}
		view.Changed = true
		return s.settleDocument(ctx, documentID)
	})
	if err != nil {
		return HeadView{}, err
	}
	return view, nil
}

func (s *Service) ListRevisions(ctx context.Context, actor auth.Identity, documentID int64, limit, offset int) ([]RevisionView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	limit, offset, err := pageLimit(limit, offset)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, lookup("document", documentID, err)
	}
	revisions, err := s.store.ListRevisions(ctx, documentID, limit, offset)
	if err != nil {
		return nil, storeError("list revisions", err)
	}
	return mapViews(revisions, revisionView), nil
}

func (s *Service) GetRevision(ctx context.Context, actor auth.Identity, revisionID int64) (RevisionView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return RevisionView{}, err
	}
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return RevisionView{}, lookup("revision", revisionID, err)
	}
	return revisionView(rev), nil
}

// GetDiff compares a revision with the latest earlier revision of the same
// document, or with empty text for the first one.
func (s *Service) GetDiff(ctx context.Context, actor auth.Identity, revisionID int64) (DiffView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return DiffView{}, err
	}
	rev, err := s.store.GetRevision(ctx, revisionID)
	if err != nil {
		return DiffView{}, lookup("revision", revisionID, err)
	}
	view := DiffView{RevisionID: rev.ID}
	previous := ""
	prev, err := s.store.PreviousRevision(ctx, rev.DocumentID, rev.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		view.IsFirstRevision = true
	case err != nil:
		return DiffView{}, storeError("get previous revision", err)
	default:
		previous = prev.Content
		view.PreviousRevisionID = &prev.ID
	}
	view.Result = diff.Compute(previous, rev.Content)
	return view, nil
}
