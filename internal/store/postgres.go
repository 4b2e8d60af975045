package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"afropedia/api/internal/workflow"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

const defaultLimit = 50

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func statusStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = string(value)
	}
	return out
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func nullInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

// Documents

const documentColumns = `id, title, status, head_revision_id, created_by, created_at, updated_at`

func scanDocument(row scanner) (Document, error) {
	var doc Document
	var status string
	var head sql.NullInt64
	if err := row.Scan(&doc.ID, &doc.Title, &status, &head, &doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	parsed, err := workflow.ParseDocumentStatus(status)
	if err != nil {
		return Document{}, fmt.Errorf("decode document %d: %w", doc.ID, err)
	}
	doc.Status = parsed
	doc.HeadRevisionID = nullInt64(head)
	return doc, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO documents (title, status, created_by)
		VALUES ($1, $2, $3)
		RETURNING `+documentColumns,
		doc.Title, string(doc.Status), doc.CreatedBy,
	)
	created, err := scanDocument(row)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, noRows(err)
	}
	return doc, nil
}

func (s *PostgresStore) SetDocumentStatus(ctx context.Context, id int64, status workflow.DocumentStatus) error {
	result, err := s.conn(ctx).ExecContext(ctx, `UPDATE documents SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceHead moves the head to revisionID when that revision is approved,
// belongs to the document, and is not older than the current head.
func (s *PostgresStore) AdvanceHead(ctx context.Context, documentID, revisionID int64) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE documents
		SET head_revision_id=$2, updated_at=NOW()
		WHERE id=$1
		  AND (head_revision_id IS NULL OR head_revision_id <= $2)
		  AND EXISTS (
			SELECT 1 FROM revisions r
			WHERE r.id=$2 AND r.document_id=$1 AND r.status='approved'
		  )
	`, documentID, revisionID)
	if err != nil {
		return false, fmt.Errorf("advance head: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

// Revisions

const revisionColumns = `id, document_id, author_id, content, comment, status, created_at, decided_at`

func scanRevision(row scanner) (Revision, error) {
	var rev Revision
	var status string
	var decided sql.NullTime
	if err := row.Scan(&rev.ID, &rev.DocumentID, &rev.AuthorID, &rev.Content, &rev.Comment, &status, &rev.CreatedAt, &decided); err != nil {
		return Revision{}, err
	}
	parsed, err := workflow.ParseRevisionStatus(status)
	if err != nil {
		return Revision{}, fmt.Errorf("decode revision %d: %w", rev.ID, err)
	}
	rev.Status = parsed
	rev.DecidedAt = nullTime(decided)
	return rev, nil
}

func (s *PostgresStore) InsertRevision(ctx context.Context, rev Revision) (Revision, error) {
	var decided any
	if rev.DecidedAt != nil {
		decided = *rev.DecidedAt
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO revisions (document_id, author_id, content, comment, status, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+revisionColumns,
		rev.DocumentID, rev.AuthorID, rev.Content, rev.Comment, string(rev.Status), decided,
	)
	created, err := scanRevision(row)
	if err != nil {
		return Revision{}, fmt.Errorf("insert revision: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetRevision(ctx context.Context, id int64) (Revision, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM revisions WHERE id=$1`, id)
	rev, err := scanRevision(row)
	if err != nil {
		return Revision{}, noRows(err)
	}
	return rev, nil
}

// LockRevision reads a revision and holds its row lock until the surrounding
// transaction ends.
func (s *PostgresStore) LockRevision(ctx context.Context, id int64) (Revision, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM revisions WHERE id=$1 FOR UPDATE`, id)
	rev, err := scanRevision(row)
	if err != nil {
		return Revision{}, noRows(err)
	}
	return rev, nil
}

func (s *PostgresStore) PreviousRevision(ctx context.Context, documentID, beforeID int64) (Revision, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revisions
		WHERE document_id=$1 AND id < $2
		ORDER BY id DESC
		LIMIT 1
	`, documentID, beforeID)
	rev, err := scanRevision(row)
	if err != nil {
		return Revision{}, noRows(err)
	}
	return rev, nil
}

func (s *PostgresStore) ListRevisions(ctx context.Context, documentID int64, limit, offset int) ([]Revision, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+revisionColumns+`
		FROM revisions
		WHERE document_id=$1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, documentID, limitOrDefault(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]Revision, 0)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, rev)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CountOpenRevisions(ctx context.Context, documentID int64) (int, error) {
	var count int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM revisions WHERE document_id=$1 AND status = ANY($2)
	`, documentID, statusStrings(workflow.OpenRevisionStatuses)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open revisions: %w", err)
	}
	return count, nil
}

// TransitionRevision is a compare-and-swap: it only updates a revision whose
// current status may legally move to the target.
func (s *PostgresStore) TransitionRevision(ctx context.Context, id int64, to workflow.RevisionStatus, at time.Time) (bool, error) {
	var decided any
	if to.Terminal() {
		decided = at
	}
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE revisions SET status=$2, decided_at=COALESCE($3, decided_at)
		WHERE id=$1 AND status = ANY($4)
	`, id, string(to), decided, statusStrings(workflow.RevisionSources(to)))
	if err != nil {
		return false, fmt.Errorf("transition revision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

// Moderation queue

const queueColumns = `id, content_type, content_id, submitted_by, priority, status, assigned_to, notes, created_at, updated_at, closed_at`

// priorityOrder sorts most pressing first.
const priorityOrder = `CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END`

func scanQueueItem(row scanner) (QueueItem, error) {
	var item QueueItem
	var contentType, priority, status string
	var assigned sql.NullString
	var closed sql.NullTime
	if err := row.Scan(&item.ID, &contentType, &item.ContentID, &item.SubmittedBy, &priority, &status, &assigned, &item.Notes, &item.CreatedAt, &item.UpdatedAt, &closed); err != nil {
		return QueueItem{}, err
	}
	var err error
	if item.ContentType, err = workflow.ParseContentType(contentType); err != nil {
		return QueueItem{}, fmt.Errorf("decode queue item %d: %w", item.ID, err)
	}
	if item.Priority, err = workflow.ParsePriority(priority); err != nil {
		return QueueItem{}, fmt.Errorf("decode queue item %d: %w", item.ID, err)
	}
	if item.Status, err = workflow.ParseQueueStatus(status); err != nil {
		return QueueItem{}, fmt.Errorf("decode queue item %d: %w", item.ID, err)
	}
	item.AssignedTo = nullString(assigned)
	item.ClosedAt = nullTime(closed)
	return item, nil
}

func (s *PostgresStore) InsertQueueItem(ctx context.Context, item QueueItem) (QueueItem, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO moderation_queue (content_type, content_id, submitted_by, priority, status, notes)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING `+queueColumns,
		string(item.ContentType), item.ContentID, item.SubmittedBy, string(item.Priority), item.Notes,
	)
	created, err := scanQueueItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			return QueueItem{}, ErrDuplicate
		}
		return QueueItem{}, fmt.Errorf("insert queue item: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetQueueItem(ctx context.Context, id int64) (QueueItem, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+queueColumns+` FROM moderation_queue WHERE id=$1`, id)
	item, err := scanQueueItem(row)
	if err != nil {
		return QueueItem{}, noRows(err)
	}
	return item, nil
}

func (s *PostgresStore) OpenQueueItem(ctx context.Context, contentType workflow.ContentType, contentID int64) (QueueItem, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+queueColumns+` FROM moderation_queue
		WHERE content_type=$1 AND content_id=$2 AND status = ANY($3)
	`, string(contentType), contentID, statusStrings(workflow.OpenQueueStatuses))
	item, err := scanQueueItem(row)
	if err != nil {
		return QueueItem{}, noRows(err)
	}
	return item, nil
}

func (s *PostgresStore) AssignQueueItem(ctx context.Context, id int64, assignee string, at time.Time) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE moderation_queue SET status='in_review', assigned_to=$2, updated_at=$3
		WHERE id=$1 AND status='pending'
	`, id, assignee, at)
	if err != nil {
		return false, fmt.Errorf("assign queue item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CloseQueueItem(ctx context.Context, id int64, verdict workflow.QueueStatus, at time.Time) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE moderation_queue SET status=$2, updated_at=$3, closed_at=$3
		WHERE id=$1 AND status = ANY($4)
	`, id, string(verdict), at, statusStrings(workflow.QueueSources(verdict)))
	if err != nil {
		return false, fmt.Errorf("close queue item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListQueue(ctx context.Context, filter QueueFilter) ([]QueueItem, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+queueColumns+` FROM moderation_queue
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR content_type = $2)
		ORDER BY `+priorityOrder+`, created_at ASC, id ASC
		LIMIT $3 OFFSET $4
	`, string(filter.Status), string(filter.ContentType), limitOrDefault(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	items := make([]QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Assignments

const assignmentColumns = `id, revision_id, assignee_id, assigned_by, priority, due_at, instructions, status, declined_reason, created_at, responded_at, completed_at`

func scanAssignment(row scanner) (Assignment, error) {
	var a Assignment
	var priority, status string
	var due, responded, completed sql.NullTime
	if err := row.Scan(&a.ID, &a.RevisionID, &a.AssigneeID, &a.AssignedBy, &priority, &due, &a.Instructions, &status, &a.DeclinedReason, &a.CreatedAt, &responded, &completed); err != nil {
		return Assignment{}, err
	}
	var err error
	if a.Priority, err = workflow.ParsePriority(priority); err != nil {
		return Assignment{}, fmt.Errorf("decode assignment %d: %w", a.ID, err)
	}
	if a.Status, err = workflow.ParseAssignmentStatus(status); err != nil {
		return Assignment{}, fmt.Errorf("decode assignment %d: %w", a.ID, err)
	}
	a.DueAt = nullTime(due)
	a.RespondedAt = nullTime(responded)
	a.CompletedAt = nullTime(completed)
	return a, nil
}

func (s *PostgresStore) InsertAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	var due any
	if a.DueAt != nil {
		due = *a.DueAt
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO review_assignments (revision_id, assignee_id, assigned_by, priority, due_at, instructions, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+assignmentColumns,
		a.RevisionID, a.AssigneeID, a.AssignedBy, string(a.Priority), due, a.Instructions,
	)
	created, err := scanAssignment(row)
	if err != nil {
		return Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id int64) (Assignment, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM review_assignments WHERE id=$1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		return Assignment{}, noRows(err)
	}
	return a, nil
}

func (s *PostgresStore) TransitionAssignment(ctx context.Context, id int64, to workflow.AssignmentStatus, reason string, at time.Time) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE review_assignments
		SET status=$2,
		    declined_reason=CASE WHEN $2='declined' THEN $3 ELSE declined_reason END,
		    responded_at=CASE WHEN $2 IN ('accepted', 'declined') THEN $4 ELSE responded_at END,
		    completed_at=CASE WHEN $2='completed' THEN $4 ELSE completed_at END
		WHERE id=$1 AND status = ANY($5)
	`, id, string(to), reason, at, statusStrings(workflow.AssignmentSources(to)))
	if err != nil {
		return false, fmt.Errorf("transition assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CompleteAssignments(ctx context.Context, revisionID int64, assignee string, at time.Time) (int, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE review_assignments SET status='completed', completed_at=$3
		WHERE revision_id=$1 AND assignee_id=$2 AND status = ANY($4)
	`, revisionID, assignee, at, statusStrings(workflow.AssignmentSources(workflow.AssignmentCompleted)))
	if err != nil {
		return 0, fmt.Errorf("complete assignments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+assignmentColumns+` FROM review_assignments
		WHERE ($1 = '' OR assignee_id = $1)
		  AND ($2 = 0 OR revision_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY `+priorityOrder+`, due_at ASC NULLS LAST, id ASC
		LIMIT $4
	`, filter.AssigneeID, filter.RevisionID, string(filter.Status), limitOrDefault(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	items := make([]Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// Peer reviews

const reviewColumns = `id, revision_id, reviewer_id, status, overall_score, criteria_scores,
	summary, strengths, weaknesses, suggestions, detailed_feedback, time_spent_minutes, confidence_level,
	is_anonymous, escalation_reason, created_at, started_at, completed_at`

func scanReview(row scanner) (Review, error) {
	var r Review
	var status string
	var overall sql.NullFloat64
	var criteria []byte
	var timeSpent, confidence sql.NullInt64
	var started, completed sql.NullTime
	err := row.Scan(
		&r.ID, &r.RevisionID, &r.ReviewerID, &status, &overall, &criteria,
		&r.Feedback.Summary, &r.Feedback.Strengths, &r.Feedback.Weaknesses, &r.Feedback.Suggestions, &r.Feedback.DetailedFeedback,
		&timeSpent, &confidence, &r.IsAnonymous, &r.EscalationReason, &r.CreatedAt, &started, &completed,
	)
	if err != nil {
		return Review{}, err
	}
	if r.Status, err = workflow.ParseReviewStatus(status); err != nil {
		return Review{}, fmt.Errorf("decode review %d: %w", r.ID, err)
	}
	if overall.Valid {
		score := overall.Float64
		r.OverallScore = &score
	}
	r.CriteriaScores = map[workflow.Criterion]int{}
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &r.CriteriaScores); err != nil {
			return Review{}, fmt.Errorf("decode review %d criteria: %w", r.ID, err)
		}
	}
	r.Feedback.TimeSpentMinutes = nullInt(timeSpent)
	r.Feedback.ConfidenceLevel = nullInt(confidence)
	r.StartedAt = nullTime(started)
	r.CompletedAt = nullTime(completed)
	return r, nil
}

func encodeCriteria(criteria map[workflow.Criterion]int) ([]byte, error) {
	if criteria == nil {
		criteria = map[workflow.Criterion]int{}
	}
	return json.Marshal(criteria)
}

func optionalInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func optionalFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func (s *PostgresStore) InsertReview(ctx context.Context, r Review) (Review, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO peer_reviews (revision_id, reviewer_id, status, is_anonymous)
		VALUES ($1, $2, 'pending', $3)
		RETURNING `+reviewColumns,
		r.RevisionID, r.ReviewerID, r.IsAnonymous,
	)
	created, err := scanReview(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Review{}, ErrDuplicate
		}
		return Review{}, fmt.Errorf("insert review: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetReview(ctx context.Context, id int64) (Review, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM peer_reviews WHERE id=$1`, id)
	r, err := scanReview(row)
	if err != nil {
		return Review{}, noRows(err)
	}
	return r, nil
}

func (s *PostgresStore) TransitionReview(ctx context.Context, id int64, to workflow.ReviewStatus, reason string, at time.Time) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE peer_reviews
		SET status=$2,
		    started_at=CASE WHEN $2='in_progress' THEN $4 ELSE started_at END,
		    escalation_reason=CASE WHEN $3 <> '' THEN $3 ELSE escalation_reason END
		WHERE id=$1 AND status = ANY($5)
	`, id, string(to), reason, at, statusStrings(workflow.ReviewSources(to)))
	if err != nil {
		return false, fmt.Errorf("transition review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CompleteReview(ctx context.Context, id int64, c ReviewCompletion) (bool, error) {
	criteria, err := encodeCriteria(c.CriteriaScores)
	if err != nil {
		return false, fmt.Errorf("encode criteria: %w", err)
	}
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE peer_reviews
		SET status=$2, overall_score=$3, criteria_scores=$4,
		    summary=$5, strengths=$6, weaknesses=$7, suggestions=$8, detailed_feedback=$9,
		    time_spent_minutes=$10, confidence_level=$11, completed_at=$12
		WHERE id=$1 AND status = ANY($13)
	`,
		id, string(c.Status), optionalFloat(c.OverallScore), criteria,
		c.Feedback.Summary, c.Feedback.Strengths, c.Feedback.Weaknesses, c.Feedback.Suggestions, c.Feedback.DetailedFeedback,
		optionalInt(c.Feedback.TimeSpentMinutes), optionalInt(c.Feedback.ConfidenceLevel), c.CompletedAt,
		statusStrings(workflow.OpenReviewStatuses),
	)
	if err != nil {
		return false, fmt.Errorf("complete review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListReviewsForRevision(ctx context.Context, revisionID int64) ([]Review, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM peer_reviews WHERE revision_id=$1 ORDER BY id ASC
	`, revisionID)
	if err != nil {
		return nil, fmt.Errorf("list reviews for revision: %w", err)
	}
	return collectReviews(rows)
}

func (s *PostgresStore) ListReviews(ctx context.Context, filter ReviewFilter) ([]Review, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM peer_reviews
		WHERE reviewer_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`, filter.ReviewerID, string(filter.Status), limitOrDefault(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return collectReviews(rows)
}

func collectReviews(rows *sql.Rows) ([]Review, error) {
	defer rows.Close()
	items := make([]Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// Comments

const commentColumns = `id, review_id, commenter_id, content, is_internal, is_resolved, parent_id, created_at, resolved_at`

func scanComment(row scanner) (Comment, error) {
	var c Comment
	var parent sql.NullInt64
	var resolved sql.NullTime
	if err := row.Scan(&c.ID, &c.ReviewID, &c.CommenterID, &c.Content, &c.IsInternal, &c.IsResolved, &parent, &c.CreatedAt, &resolved); err != nil {
		return Comment{}, err
	}
	c.ParentID = nullInt64(parent)
	c.ResolvedAt = nullTime(resolved)
	return c, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, c Comment) (Comment, error) {
	var parent any
	if c.ParentID != nil {
		parent = *c.ParentID
	}
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO review_comments (review_id, commenter_id, content, is_internal, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+commentColumns,
		c.ReviewID, c.CommenterID, c.Content, c.IsInternal, parent,
	)
	created, err := scanComment(row)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id int64) (Comment, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+commentColumns+` FROM review_comments WHERE id=$1`, id)
	c, err := scanComment(row)
	if err != nil {
		return Comment{}, noRows(err)
	}
	return c, nil
}

func (s *PostgresStore) ResolveComment(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE review_comments SET is_resolved=TRUE, resolved_at=$2 WHERE id=$1 AND NOT is_resolved
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("resolve comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, reviewID int64, includeInternal bool) ([]Comment, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+commentColumns+` FROM review_comments
		WHERE review_id=$1 AND ($2 OR NOT is_internal)
		ORDER BY id ASC
	`, reviewID, includeInternal)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Flags

const flagColumns = `id, content_type, content_id, flagged_by, flag_type, reason, status, resolved_by, resolution_note, created_at, resolved_at`

func scanFlag(row scanner) (Flag, error) {
	var f Flag
	var contentType, flagType, status string
	var resolved sql.NullTime
	if err := row.Scan(&f.ID, &contentType, &f.ContentID, &f.FlaggedBy, &flagType, &f.Reason, &status, &f.ResolvedBy, &f.ResolutionNote, &f.CreatedAt, &resolved); err != nil {
		return Flag{}, err
	}
	var err error
	if f.ContentType, err = workflow.ParseContentType(contentType); err != nil {
		return Flag{}, fmt.Errorf("decode flag %d: %w", f.ID, err)
	}
	if f.FlagType, err = workflow.ParseFlagType(flagType); err != nil {
		return Flag{}, fmt.Errorf("decode flag %d: %w", f.ID, err)
	}
	if f.Status, err = workflow.ParseFlagStatus(status); err != nil {
		return Flag{}, fmt.Errorf("decode flag %d: %w", f.ID, err)
	}
	f.ResolvedAt = nullTime(resolved)
	return f, nil
}

func (s *PostgresStore) InsertFlag(ctx context.Context, f Flag) (Flag, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO content_flags (content_type, content_id, flagged_by, flag_type, reason, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING `+flagColumns,
		string(f.ContentType), f.ContentID, f.FlaggedBy, string(f.FlagType), f.Reason,
	)
	created, err := scanFlag(row)
	if err != nil {
		return Flag{}, fmt.Errorf("insert flag: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetFlag(ctx context.Context, id int64) (Flag, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+flagColumns+` FROM content_flags WHERE id=$1`, id)
	f, err := scanFlag(row)
	if err != nil {
		return Flag{}, noRows(err)
	}
	return f, nil
}

func (s *PostgresStore) ResolveFlag(ctx context.Context, id int64, resolver, note string, at time.Time) (bool, error) {
	result, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE content_flags SET status='resolved', resolved_by=$2, resolution_note=$3, resolved_at=$4
		WHERE id=$1 AND status='pending'
	`, id, resolver, note, at)
	if err != nil {
		return false, fmt.Errorf("resolve flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListFlags(ctx context.Context, filter FlagFilter) ([]Flag, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+flagColumns+` FROM content_flags
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Status), limitOrDefault(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	items := make([]Flag, 0)
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// Moderation actions

const actionColumns = `id, content_type, content_id, moderator_id, action, reason, created_at`

func scanAction(row scanner) (ModerationAction, error) {
	var a ModerationAction
	var contentType, action string
	if err := row.Scan(&a.ID, &contentType, &a.ContentID, &a.ModeratorID, &action, &a.Reason, &a.CreatedAt); err != nil {
		return ModerationAction{}, err
	}
	var err error
	if a.ContentType, err = workflow.ParseContentType(contentType); err != nil {
		return ModerationAction{}, fmt.Errorf("decode moderation action %d: %w", a.ID, err)
	}
	if a.Action, err = workflow.ParseActionType(action); err != nil {
		return ModerationAction{}, fmt.Errorf("decode moderation action %d: %w", a.ID, err)
	}
	return a, nil
}

func (s *PostgresStore) InsertAction(ctx context.Context, a ModerationAction) (ModerationAction, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO moderation_actions (content_type, content_id, moderator_id, action, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+actionColumns,
		string(a.ContentType), a.ContentID, a.ModeratorID, string(a.Action), a.Reason,
	)
	created, err := scanAction(row)
	if err != nil {
		return ModerationAction{}, fmt.Errorf("insert moderation action: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListActions(ctx context.Context, filter ActionFilter) ([]ModerationAction, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+actionColumns+` FROM moderation_actions
		WHERE ($1 = '' OR content_type = $1)
		  AND ($2 = 0 OR content_id = $2)
		ORDER BY id DESC
		LIMIT $3
	`, string(filter.ContentType), filter.ContentID, limitOrDefault(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	defer rows.Close()

	items := make([]ModerationAction, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moderation action: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
