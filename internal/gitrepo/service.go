// Package gitrepo mirrors published document heads into one git repository
// per document, giving an append-only archive of what readers saw.
package gitrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"afropedia/api/internal/events"
)

const contentFile = "content.json"

// ErrNoArchive is returned for documents that were never published.
var ErrNoArchive = errors.New("document has no published archive")

// ErrUnknownCommit is returned when a hash does not name a published commit.
var ErrUnknownCommit = errors.New("unknown commit")

// ErrStaleRevision is returned by Commit when the archive already holds a
// newer revision of the document.
var ErrStaleRevision = errors.New("archive holds a newer revision")

type Content struct {
	Title      string `json:"title"`
	RevisionID int64  `json:"revisionId"`
	Body       string `json:"body"`
}

type CommitInfo struct {
	Hash       string    `json:"hash"`
	Message    string    `json:"message"`
	Author     string    `json:"author"`
	RevisionID int64     `json:"revisionId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Mirror struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Mirror {
	return &Mirror{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

func (m *Mirror) Name() string { return "git" }

// Publish commits the new head content on main. Re-publishing identical
// content creates no commit, and a head older than the archived one is
// dropped.
func (m *Mirror) Publish(_ context.Context, event events.Event) error {
	if event.Type != events.HeadAdvanced {
		return nil
	}
	if event.DocumentID == 0 || event.RevisionID == 0 {
		return fmt.Errorf("event %s has no document or revision", event.ID)
	}
	title, _ := event.Payload["title"].(string)
	body, _ := event.Payload["content"].(string)
	author := event.ActorID
	if author == "" {
		author = "system"
	}
	_, err := m.Commit(event.DocumentID, Content{Title: title, RevisionID: event.RevisionID, Body: body}, author,
		fmt.Sprintf("Publish revision %d", event.RevisionID))
	if errors.Is(err, ErrStaleRevision) {
		return nil
	}
	return err
}

func (m *Mirror) Commit(documentID int64, content Content, author, message string) (CommitInfo, error) {
	lock := m.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := m.openOrInit(documentID)
	if err != nil {
		return CommitInfo{}, err
	}
	archived, err := archivedRevision(repo)
	if err != nil {
		return CommitInfo{}, err
	}
	if content.RevisionID < archived {
		return CommitInfo{}, fmt.Errorf("revision %d of document %d: %w (revision %d)", content.RevisionID, documentID, ErrStaleRevision, archived)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), contentFile), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@archive.afropedia.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		head, headErr := repo.Head()
		if headErr != nil {
			return CommitInfo{}, fmt.Errorf("resolve head: %w", headErr)
		}
		hash = head.Hash()
	} else if err != nil {
		return CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History lists published commits newest first.
func (m *Mirror) History(documentID int64, limit int) ([]CommitInfo, error) {
	lock := m.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(m.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoArchive
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (m *Mirror) ContentAt(documentID int64, hash string) (Content, error) {
	lock := m.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(m.repoPath(documentID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Content{}, ErrNoArchive
	}
	if err != nil {
		return Content{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return Content{}, fmt.Errorf("resolve hash %s: %w", hash, ErrUnknownCommit)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return Content{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readContentFromCommit(commitObj)
}

// archivedRevision reports the revision stored at HEAD, or 0 for an empty
// repository.
func archivedRevision(repo *git.Repository) (int64, error) {
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		return 0, fmt.Errorf("read head commit: %w", err)
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return 0, err
	}
	return content.RevisionID, nil
}

func (m *Mirror) openOrInit(documentID int64) (*git.Repository, error) {
	path := m.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (m *Mirror) repoPath(documentID int64) string {
	return filepath.Join(m.baseDir, "doc-"+strconv.FormatInt(documentID, 10))
}

func (m *Mirror) documentLock(documentID int64) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	lock, ok := m.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	m.locks[documentID] = lock
	return lock
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Content{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}
	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	info := CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
	if content, err := readContentFromCommit(commitObj); err == nil {
		info.RevisionID = content.RevisionID
	}
	return info
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
