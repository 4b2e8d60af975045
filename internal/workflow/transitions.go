package workflow

import "slices"

var revisionTransitions = map[RevisionStatus][]RevisionStatus{
	RevisionPending:  {RevisionInReview, RevisionApproved, RevisionRejected, RevisionNeedsChanges},
	RevisionInReview: {RevisionApproved, RevisionRejected, RevisionNeedsChanges},
}

var queueTransitions = map[QueueStatus][]QueueStatus{
	QueuePending:  {QueueInReview, QueueApproved, QueueRejected},
	QueueInReview: {QueueApproved, QueueRejected},
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentPending:  {AssignmentAccepted, AssignmentDeclined, AssignmentCompleted},
	AssignmentAccepted: {AssignmentCompleted},
}

var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewPending:    {ReviewInProgress, ReviewApproved, ReviewRejected, ReviewNeedsChanges, ReviewConflict, ReviewEscalated},
	ReviewInProgress: {ReviewApproved, ReviewRejected, ReviewNeedsChanges, ReviewConflict, ReviewEscalated},
	ReviewConflict:   {ReviewApproved, ReviewRejected, ReviewNeedsChanges, ReviewEscalated},
	ReviewEscalated:  {ReviewApproved, ReviewRejected, ReviewNeedsChanges},
}

func (s RevisionStatus) CanTransition(to RevisionStatus) bool {
	return slices.Contains(revisionTransitions[s], to)
}

func (s QueueStatus) CanTransition(to QueueStatus) bool {
	return slices.Contains(queueTransitions[s], to)
}

func (s AssignmentStatus) CanTransition(to AssignmentStatus) bool {
	return slices.Contains(assignmentTransitions[s], to)
}

func (s ReviewStatus) CanTransition(to ReviewStatus) bool {
	return slices.Contains(reviewTransitions[s], to)
}

// RevisionSources lists every state that may move to the target.
func RevisionSources(to RevisionStatus) []RevisionStatus {
	return sources(revisionTransitions, to)
}

func ReviewSources(to ReviewStatus) []ReviewStatus {
	return sources(reviewTransitions, to)
}

func AssignmentSources(to AssignmentStatus) []AssignmentStatus {
	return sources(assignmentTransitions, to)
}

func QueueSources(to QueueStatus) []QueueStatus {
	return sources(queueTransitions, to)
}

func sources[T ~string](table map[T][]T, to T) []T {
	out := make([]T, 0)
	for from, targets := range table {
		if slices.Contains(targets, to) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}
