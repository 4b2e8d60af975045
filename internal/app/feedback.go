package app

import (
	"context"
	"fmt"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/events"
	"afropedia/api/internal/rbac"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

const maxCommentBody = 5000

type CommentInput struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"isInternal"`
	ParentID   *int64 `json:"parentId"`
}

// AddComment appends to a review thread. A reply must stay in its parent's
// review.
func (s *Service) AddComment(ctx context.Context, actor auth.Identity, reviewID int64, input CommentInput) (CommentView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return CommentView{}, err
	}
	content, err := requiredText("content", input.Content, maxCommentBody)
	if err != nil {
		return CommentView{}, err
	}
	if input.IsInternal && actor.Role == rbac.RoleUser {
		return CommentView{}, forbidden("internal comments are limited to editors and moderators")
	}

	if _, err := s.store.GetReview(ctx, reviewID); err != nil {
		return CommentView{}, lookup("review", reviewID, err)
	}
	if input.ParentID != nil {
		parent, err := s.store.GetComment(ctx, *input.ParentID)
		if err != nil {
			return CommentView{}, lookup("comment", *input.ParentID, err)
		}
		if parent.ReviewID != reviewID {
			return CommentView{}, invalid("parentId", fmt.Sprintf("comment %d belongs to another review", parent.ID))
		}
	}
	created, err := s.store.InsertComment(ctx, store.Comment{
		ReviewID:    reviewID,
		CommenterID: actor.UserID,
		Content:     content,
		IsInternal:  input.IsInternal,
		ParentID:    input.ParentID,
	})
	if err != nil {
		return CommentView{}, storeError("add comment", err)
	}
	return commentView(created), nil
}

// ResolveComment marks a comment resolved. Resolving twice returns the
// comment unchanged.
func (s *Service) ResolveComment(ctx context.Context, actor auth.Identity, commentID int64) (CommentView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return CommentView{}, err
	}
	current, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return CommentView{}, lookup("comment", commentID, err)
	}
	if current.IsResolved {
		return commentView(current), nil
	}
	if _, err := s.store.ResolveComment(ctx, commentID, s.now()); err != nil {
		return CommentView{}, storeError("resolve comment", err)
	}
	resolved, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return CommentView{}, storeError("get comment", err)
	}
	return commentView(resolved), nil
}

// ListComments returns a review thread oldest first. Readers with the user
// role do not see internal comments.
func (s *Service) ListComments(ctx context.Context, actor auth.Identity, reviewID int64) ([]CommentView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetReview(ctx, reviewID); err != nil {
		return nil, lookup("review", reviewID, err)
	}
	comments, err := s.store.ListComments(ctx, reviewID, actor.Role != rbac.RoleUser)
	if err != nil {
		return nil, storeError("list comments", err)
	}
	return mapViews(comments, commentView), nil
}

type FlagInput struct {
	ContentType string `json:"contentType"`
	ContentID   int64  `json:"contentId"`
	FlagType    string `json:"flagType"`
	Reason      string `json:"reason"`
}

func (s *Service) RaiseFlag(ctx context.Context, actor auth.Identity, input FlagInput) (FlagView, error) {
	if err := authorize(actor, rbac.ActionFlag); err != nil {
		return FlagView{}, err
	}
	contentType, err := workflow.ParseContentType(input.ContentType)
	if err != nil {
		return FlagView{}, validation(err)
	}
	flagType, err := workflow.ParseFlagType(input.FlagType)
	if err != nil {
		return FlagView{}, validation(err)
	}
	reason, err := requiredText("reason", input.Reason, maxReasonLength)
	if err != nil {
		return FlagView{}, err
	}

	var created store.Flag
	err = s.run(ctx, "raise flag", func(ctx context.Context, u *unit) error {
		event := events.New(events.FlagRaised, actor.UserID)
		switch contentType {
		case workflow.ContentRevision:
			rev, err := s.store.GetRevision(ctx, input.ContentID)
			if err != nil {
				return lookup("revision", input.ContentID, err)
			}
			event.DocumentID = rev.DocumentID
			event.RevisionID = rev.ID
		default:
			doc, err := s.store.GetDocument(ctx, input.ContentID)
			if err != nil {
				return lookup("document", input.ContentID, err)
			}
			event.DocumentID = doc.ID
		}

		flag, err := s.store.InsertFlag(ctx, store.Flag{
			ContentType: contentType,
			ContentID:   input.ContentID,
			FlaggedBy:   actor.UserID,
			FlagType:    flagType,
			Reason:      reason,
			Status:      workflow.FlagPending,
		})
		if err != nil {
			return err
		}
		if _, err := s.store.InsertAction(ctx, store.ModerationAction{
			ContentType: contentType,
			ContentID:   input.ContentID,
			ModeratorID: actor.UserID,
			Action:      workflow.ActionFlag,
			Reason:      reason,
		}); err != nil {
			return err
		}
		event.Payload = map[string]any{
			"flagId":      flag.ID,
			"flagType":    string(flagType),
			"contentType": string(contentType),
			"contentId":   input.ContentID,
			"reason":      reason,
		}
		u.emit(event)
		created = flag
		return nil
	})
	if err != nil {
		return FlagView{}, err
	}
	return flagView(created), nil
}

// ResolveFlag closes a flag. A resolved flag is returned as is.
func (s *Service) ResolveFlag(ctx context.Context, actor auth.Identity, flagID int64, note string) (FlagView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return FlagView{}, err
	}
	note, err := optionalText("note", note, maxReasonLength)
	if err != nil {
		return FlagView{}, err
	}

	var resolved store.Flag
	err = s.run(ctx, "resolve flag", func(ctx context.Context, u *unit) error {
		current, err := s.store.GetFlag(ctx, flagID)
		if err != nil {
			return lookup("flag", flagID, err)
		}
		if current.Status == workflow.FlagResolved {
			resolved = current
			return nil
		}
		ok, err := s.store.ResolveFlag(ctx, flagID, actor.UserID, note, s.now())
		if err != nil {
			return err
		}
		if !ok {
			resolved, err = s.store.GetFlag(ctx, flagID)
			return err
		}
		if _, err := s.store.InsertAction(ctx, store.ModerationAction{
			ContentType: current.ContentType,
			ContentID:   current.ContentID,
			ModeratorID: actor.UserID,
			Action:      workflow.ActionUnflag,
			Reason:      note,
		}); err != nil {
			return err
		}
		event := events.New(events.FlagResolved, actor.UserID)
		event.Payload = map[string]any{"flagId": flagID, "note": note}
		u.emit(event)
		resolved, err = s.store.GetFlag(ctx, flagID)
		return err
	})
	if err != nil {
		return FlagView{}, err
	}
	return flagView(resolved), nil
}

func (s *Service) ListFlags(ctx context.Context, actor auth.Identity, status string, limit, offset int) ([]FlagView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return nil, err
	}
	limit, offset, err := pageLimit(limit, offset)
	if err != nil {
		return nil, err
	}
	filter := store.FlagFilter{Limit: limit, Offset: offset}
	if status != "" {
		if filter.Status, err = workflow.ParseFlagStatus(status); err != nil {
			return nil, validation(err)
		}
	}
	flags, err := s.store.ListFlags(ctx, filter)
	if err != nil {
		return nil, storeError("list flags", err)
	}
	return mapViews(flags, flagView), nil
}
