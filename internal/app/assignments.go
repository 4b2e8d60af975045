package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/events"
	"afropedia/api/internal/rbac"
	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

const maxInstructionsLength = 2000

type AssignmentInput struct {
	RevisionID   int64      `json:"revisionId"`
	AssigneeID   string     `json:"assigneeId"`
	Priority     string     `json:"priority"`
	DueAt        *time.Time `json:"dueDate"`
	Instructions string     `json:"instructions"`
}

// AssignReviewer asks a user to review a revision. An assignment is an
// invitation; anyone may still review without one.
func (s *Service) AssignReviewer(ctx context.Context, actor auth.Identity, input AssignmentInput) (AssignmentView, error) {
	if err := authorize(actor, rbac.ActionModerate); err != nil {
		return AssignmentView{}, err
	}
	assignee := strings.TrimSpace(input.AssigneeID)
	if assignee == "" {
		return AssignmentView{}, invalid("assigneeId", "assigneeId is required")
	}
	priority, err := parsePriority(input.Priority)
	if err != nil {
		return AssignmentView{}, err
	}
	instructions, err := optionalText("instructions", input.Instructions, maxInstructionsLength)
	if err != nil {
		return AssignmentView{}, err
	}

	var created store.Assignment
	err = s.run(ctx, "assign reviewer", func(ctx context.Context, u *unit) error {
		rev, err := s.store.GetRevision(ctx, input.RevisionID)
		if err != nil {
			return lookup("revision", input.RevisionID, err)
		}
		if rev.Status.Terminal() {
			return conflict(CodeRevisionDecided, fmt.Sprintf("revision %d is already %s", rev.ID, rev.Status))
		}
		if rev.AuthorID == assignee {
			return invalid("assigneeId", "the author cannot review their own revision")
		}
		created, err = s.store.InsertAssignment(ctx, store.Assignment{
			RevisionID:   rev.ID,
			AssigneeID:   assignee,
			AssignedBy:   actor.UserID,
			Priority:     priority,
			DueAt:        input.DueAt,
			Instructions: instructions,
			Status:       workflow.AssignmentPending,
		})
		if err != nil {
			return err
		}
		event := events.New(events.AssignmentCreated, actor.UserID)
		event.DocumentID = rev.DocumentID
		event.RevisionID = rev.ID
		event.Payload = map[string]any{"assignmentId": created.ID, "assigneeId": assignee}
		u.emit(event)
		return nil
	})
	if err != nil {
		return AssignmentView{}, err
	}
	return assignmentView(created), nil
}

func (s *Service) AcceptAssignment(ctx context.Context, actor auth.Identity, assignmentID int64) (AssignmentView, error) {
	return s.respond(ctx, actor, assignmentID, workflow.AssignmentAccepted, "")
}

// DeclineAssignment withdraws the assignee. The revision stays open for
// review by anyone else.
func (s *Service) DeclineAssignment(ctx context.Context, actor auth.Identity, assignmentID int64, reason string) (AssignmentView, error) {
	reason, err := requiredText("reason", reason, maxReasonLength)
	if err != nil {
		return AssignmentView{}, err
	}
	return s.respond(ctx, actor, assignmentID, workflow.AssignmentDeclined, reason)
}

func (s *Service) respond(ctx context.Context, actor auth.Identity, assignmentID int64, to workflow.AssignmentStatus, reason string) (AssignmentView, error) {
	if err := authorize(actor, rbac.ActionReview); err != nil {
		return AssignmentView{}, err
	}
	var updated store.Assignment
	err := s.run(ctx, "respond to assignment", func(ctx context.Context, u *unit) error {
		current, err := s.store.GetAssignment(ctx, assignmentID)
		if err != nil {
			return lookup("assignment", assignmentID, err)
		}
		if current.AssigneeID != actor.UserID {
			return forbidden("only the assignee may respond to an assignment")
		}
		ok, err := s.store.TransitionAssignment(ctx, assignmentID, to, reason, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return conflict(CodeInvalidTransition, fmt.Sprintf("assignment %d is %s", assignmentID, current.Status))
		}
		updated, err = s.store.GetAssignment(ctx, assignmentID)
		return err
	})
	if err != nil {
		return AssignmentView{}, err
	}
	return assignmentView(updated), nil
}

// ListAssignments returns a user's assignments. Users see their own;
// moderators may look at anyone's.
func (s *Service) ListAssignments(ctx context.Context, actor auth.Identity, assigneeID, status string, limit int) ([]AssignmentView, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if assigneeID == "" {
		assigneeID = actor.UserID
	}
	if assigneeID != actor.UserID && !isModerator(actor) {
		return nil, forbidden("cannot list another user's assignments")
	}
	limit, _, err := pageLimit(limit, 0)
	if err != nil {
		return nil, err
	}
	filter := store.AssignmentFilter{AssigneeID: assigneeID, Limit: limit}
	if status != "" {
		if filter.Status, err = workflow.ParseAssignmentStatus(status); err != nil {
			return nil, validation(err)
		}
	}
	assignments, err := s.store.ListAssignments(ctx, filter)
	if err != nil {
		return nil, storeError("list assignments", err)
	}
	return mapViews(assignments, assignmentView), nil
}
