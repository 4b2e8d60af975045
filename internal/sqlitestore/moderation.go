package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"afropedia/api/internal/store"
	"afropedia/api/internal/workflow"
)

func (s *Store) InsertQueueItem(ctx context.Context, item store.QueueItem) (store.QueueItem, error) {
	now := time.Now().UTC()
	row := queueRow{
		ContentType: item.ContentType,
		ContentID:   item.ContentID,
		SubmittedBy: item.SubmittedBy,
		Priority:    item.Priority,
		Status:      workflow.QueuePending,
		Notes:       item.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.QueueItem{}, store.ErrDuplicate
		}
		return store.QueueItem{}, fmt.Errorf("insert queue item: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetQueueItem(ctx context.Context, id int64) (store.QueueItem, error) {
	var row queueRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.QueueItem{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) OpenQueueItem(ctx context.Context, contentType workflow.ContentType, contentID int64) (store.QueueItem, error) {
	var row queueRow
	err := s.dbFromContext(ctx).
		Where("content_type = ? AND content_id = ? AND status IN ?", string(contentType), contentID, statusStrings(workflow.OpenQueueStatuses)).
		Take(&row).Error
	if err != nil {
		return store.QueueItem{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) AssignQueueItem(ctx context.Context, id int64, assignee string, at time.Time) (bool, error) {
	result := s.dbFromContext(ctx).Model(&queueRow{}).
		Where("id = ? AND status = ?", id, string(workflow.QueuePending)).
		Updates(map[string]any{
			"status":      string(workflow.QueueInReview),
			"assigned_to": assignee,
			"updated_at":  at.UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("assign queue item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) CloseQueueItem(ctx context.Context, id int64, verdict workflow.QueueStatus, at time.Time) (bool, error) {
	result := s.dbFromContext(ctx).Model(&queueRow{}).
		Where("id = ? AND status IN ?", id, statusStrings(workflow.QueueSources(verdict))).
		Updates(map[string]any{
			"status":     string(verdict),
			"updated_at": at.UTC(),
			"closed_at":  at.UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("close queue item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) ListQueue(ctx context.Context, filter store.QueueFilter) ([]store.QueueItem, error) {
	query := s.dbFromContext(ctx).Model(&queueRow{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.ContentType != "" {
		query = query.Where("content_type = ?", string(filter.ContentType))
	}

	var rows []queueRow
	err := query.
		Order(priorityOrder + ", created_at asc, id asc").
		Limit(limitOrDefault(filter.Limit)).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return mapRows[store.QueueItem](rows), nil
}

func (s *Store) InsertFlag(ctx context.Context, flag store.Flag) (store.Flag, error) {
	row := flagRow{
		ContentType: flag.ContentType,
		ContentID:   flag.ContentID,
		FlaggedBy:   flag.FlaggedBy,
		FlagType:    flag.FlagType,
		Reason:      flag.Reason,
		Status:      workflow.FlagPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		return store.Flag{}, fmt.Errorf("insert flag: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) GetFlag(ctx context.Context, id int64) (store.Flag, error) {
	var row flagRow
	if err := s.dbFromContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return store.Flag{}, notFound(err)
	}
	return row.domain(), nil
}

func (s *Store) ResolveFlag(ctx context.Context, id int64, resolver, note string, at time.Time) (bool, error) {
	result := s.dbFromContext(ctx).Model(&flagRow{}).
		Where("id = ? AND status = ?", id, string(workflow.FlagPending)).
		Updates(map[string]any{
			"status":          string(workflow.FlagResolved),
			"resolved_by":     resolver,
			"resolution_note": note,
			"resolved_at":     at.UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("resolve flag: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) ListFlags(ctx context.Context, filter store.FlagFilter) ([]store.Flag, error) {
	query := s.dbFromContext(ctx).Model(&flagRow{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	var rows []flagRow
	if err := query.Order("id desc").Limit(limitOrDefault(filter.Limit)).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	return mapRows[store.Flag](rows), nil
}

func (s *Store) InsertAction(ctx context.Context, action store.ModerationAction) (store.ModerationAction, error) {
	row := actionRow{
		ContentType: action.ContentType,
		ContentID:   action.ContentID,
		ModeratorID: action.ModeratorID,
		Action:      action.Action,
		Reason:      action.Reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.dbFromContext(ctx).Create(&row).Error; err != nil {
		return store.ModerationAction{}, fmt.Errorf("insert moderation action: %w", err)
	}
	return row.domain(), nil
}

func (s *Store) ListActions(ctx context.Context, filter store.ActionFilter) ([]store.ModerationAction, error) {
	query := s.dbFromContext(ctx).Model(&actionRow{})
	if filter.ContentType != "" {
		query = query.Where("content_type = ?", string(filter.ContentType))
	}
	if filter.ContentID != 0 {
		query = query.Where("content_id = ?", filter.ContentID)
	}
	var rows []actionRow
	if err := query.Order("id desc").Limit(limitOrDefault(filter.Limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	return mapRows[store.ModerationAction](rows), nil
}
