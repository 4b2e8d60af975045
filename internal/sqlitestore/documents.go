package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

func statusStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = string(value)
	}
	return out
}

func (s *Store) InsertDocument(ctx context.Context, doc store.Document) (store.Document, error) {
	now := time.Now().UTC()
	row := documentRow{
		Title:     doc.Title,
		Status:    doc.Status,
		CreatedBy: doc.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		return store.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (store.Document, error) {
	var row documentRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.Document{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) SetDocumentStatus(ctx context.Context, id int64, status workflow.DocumentStatus) error {
	result := s.dbFromContext(ctx).Model(&documentRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("update document status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdvanceHead(ctx context.Context, documentID, revisionID int64) (bool, error) {
	result := s.dbFromContext(ctx).Exec(`
		UPDATE documents
		SET head_revision_id = ?, updated_at = ?
		WHERE id = ?
		  AND (head_revision_id IS NULL OR head_revision_id <= ?)
		  AND EXISTS (
			SELECT 1 FROM revisions r
			WHERE r.id = ? AND r.document_id = ? AND r.status = 'approved'
		  )
	`, revisionID, time.Now().UTC(), documentID, revisionID, revisionID, documentID)
	if result.Error != nil {
		return false, fmt.Errorf("advance head: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) InsertRevision(ctx context.Context, rev store.Revision) (store.Revision, error) {
	row := revisionRow{
		DocumentID: rev.DocumentID,
		AuthorID:   rev.AuthorID,
		Content:    rev.Content,
		Comment:    rev.Comment,
		Status:     rev.Status,
		CreatedAt:  time.Now().UTC(),
		DecidedAt:  rev.DecidedAt,
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		return store.Revision{}, fmt.Errorf("insert revision: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetRevision(ctx context.Context, id int64) (store.Revision, error) {
	var row revisionRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.Revision{}, notFound(err)
	}
	return row.domain(), nil
}

// LockRevision is a plain read: the single connection already serializes
// transactions.
func (s *Store) LockRevision(ctx context.Context, id int64) (store.Revision, error) {
	return s.GetRevision(ctx, id)
}

func (s *Store) PreviousRevision(ctx context.Context, documentID, beforeID int64) (store.Revision, error) {
	var row revisionRow
	err := s.dbFromContext(ctx).
		Where("document_id = ? AND id < ?", documentID, beforeID).
		Order("id desc").
		Take(&row).Error
	if err != nil {
		return store.Revision{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) ListRevisions(ctx context.Context, documentID int64, limit, offset int) ([]store.Revision, error) {
	var rows []revisionRow
	err := s.dbFromContext(ctx).
		Where("document_id = ?", documentID).
		Order("id desc").
		Limit(limitOrDefault(limit)).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return mapRows[store.Revision](rows), nil
}

func (s *Store) CountOpenRevisions(ctx context.Context, documentID int64) (int, error) {
	var count int64
	err := s.dbFromContext(ctx).Model(&revisionRow{}).
		Where("document_id = ? AND status IN ?", documentID, statusStrings(workflow.OpenRevisionStatuses)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count open revisions: %w", err)
	}
	return int(count), nil
}

func (s *Store) TransitionRevision(ctx context.Context, id int64, to workflow.RevisionStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": string(to)}
	if to.Terminal() {
		updates["decided_at"] = at.UTC()
	}
	result := s.dbFromContext(ctx).Model(&revisionRow{}).
		Where("id = ? AND status IN ?", id, statusStrings(workflow.RevisionSources(to))).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("transition revision: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
