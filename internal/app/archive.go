package app

import (
	"context"
	"errors"
	"strings"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/gitrepo"
	"afropedia/api/internal/rbac"
)

func (s *Service) archiveReady() error {
	if s.archive == nil {
		return domainError(KindExternal, "ARCHIVE_UNAVAILABLE", "published archive is not configured", nil)
	}
	return nil
}

// PublishedHistory lists the heads a document has published, newest first.
func (s *Service) PublishedHistory(ctx context.Context, actor auth.Identity, documentID int64, limit int) ([]gitrepo.CommitInfo, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if err := s.archiveReady(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, lookup("document", documentID, err)
	}
	limit, _, err := pageLimit(limit, 0)
	if err != nil {
		return nil, err
	}
	history, err := s.archive.History(documentID, limit)
	if errors.Is(err, gitrepo.ErrNoArchive) {
		return []gitrepo.CommitInfo{}, nil
	}
	if err != nil {
		return nil, &DomainError{Kind: KindExternal, Code: "ARCHIVE_ERROR", Message: "read published history", cause: err}
	}
	return history, nil
}

func (s *Service) PublishedContent(ctx context.Context, actor auth.Identity, documentID int64, hash string) (gitrepo.Content, error) {
	if err := authorize(actor, rbac.ActionRead); err != nil {
		return gitrepo.Content{}, err
	}
	if err := s.archiveReady(); err != nil {
		return gitrepo.Content{}, err
	}
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return gitrepo.Content{}, invalid("hash", "hash is required")
	}
	content, err := s.archive.ContentAt(documentID, hash)
	switch {
	case errors.Is(err, gitrepo.ErrNoArchive):
		return gitrepo.Content{}, notFound("published archive for document", documentID)
	case errors.Is(err, gitrepo.ErrUnknownCommit):
		return gitrepo.Content{}, notFound("published commit", hash)
	}
	if err != nil {
		return gitrepo.Content{}, &DomainError{Kind: KindExternal, Code: "ARCHIVE_ERROR", Message: "read published content", cause: err}
	}
	return content, nil
}
