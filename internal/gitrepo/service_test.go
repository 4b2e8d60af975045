package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"afropedia/api/internal/events"
)

func headEvent(documentID, revisionID int64, title, body string) events.Event {
	event := events.New(events.HeadAdvanced, "Ada Moderator")
	event.DocumentID = documentID
	event.RevisionID = revisionID
	event.Payload = map[string]any{"title": title, "content": body}
	return event
}

func TestMirrorLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	mirror := New(tempDir)
	ctx := context.Background()

	if err := mirror.Publish(ctx, headEvent(1, 10, "Mansa Musa", "Ruler of Mali.")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc-1", ".git")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	if err := mirror.Publish(ctx, headEvent(1, 12, "Mansa Musa", "Ruler of the Mali Empire.")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	history, err := mirror.History(1, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if history[0].RevisionID != 12 || history[1].RevisionID != 10 {
		t.Fatalf("history not newest first: %+v", history)
	}
	if !strings.HasPrefix(history[0].Message, "Publish revision 12") {
		t.Fatalf("unexpected message: %q", history[0].Message)
	}
	if history[0].Author != "Ada Moderator" {
		t.Fatalf("unexpected author: %q", history[0].Author)
	}

	old, err := mirror.ContentAt(1, history[1].Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if old.Body != "Ruler of Mali." || old.RevisionID != 10 {
		t.Fatalf("unexpected content: %+v", old)
	}
}

func TestMirrorRepublishIsIdempotent(t *testing.T) {
	mirror := New(t.TempDir())
	ctx := context.Background()
	event := headEvent(2, 5, "Lalibela", "Rock-hewn churches.")

	for i := 0; i < 3; i++ {
		if err := mirror.Publish(ctx, event); err != nil {
			t.Fatalf("Publish() #%d error = %v", i, err)
		}
	}
	history, err := mirror.History(2, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected a single commit, got %d", len(history))
	}
}

func TestMirrorIgnoresOtherEvents(t *testing.T) {
	mirror := New(t.TempDir())
	if err := mirror.Publish(context.Background(), events.New(events.FlagRaised, "u")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, err := mirror.History(1, 10); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}

func TestConcurrentPublishSameDocument(t *testing.T) {
	mirror := New(t.TempDir())
	ctx := context.Background()

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			body := fmt.Sprintf("body-%02d", idx)
			if err := mirror.Publish(ctx, headEvent(3, int64(idx+1), "Carthage", body)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Publish() concurrent error = %v", err)
		}
	}

	history, err := mirror.History(3, 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) == 0 || history[0].RevisionID != writers {
		t.Fatalf("expected newest revision %d at head, got %+v", writers, history)
	}
	for i := 1; i < len(history); i++ {
		if history[i].RevisionID >= history[i-1].RevisionID {
			t.Fatalf("archive went backwards: %+v", history)
		}
	}
}

func TestMirrorDropsStaleHead(t *testing.T) {
	mirror := New(t.TempDir())
	ctx := context.Background()

	if err := mirror.Publish(ctx, headEvent(4, 7, "Aksum", "Obelisks of Aksum.")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := mirror.Publish(ctx, headEvent(4, 5, "Aksum", "Older text.")); err != nil {
		t.Fatalf("Publish() stale head error = %v", err)
	}
	if _, err := mirror.Commit(4, Content{Title: "Aksum", RevisionID: 5, Body: "Older text."}, "system", "stale"); !errors.Is(err, ErrStaleRevision) {
		t.Fatalf("expected ErrStaleRevision, got %v", err)
	}

	history, err := mirror.History(4, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].RevisionID != 7 {
		t.Fatalf("expected only revision 7 archived, got %+v", history)
	}
}

// delayedSink holds back one revision's events before passing them on.
type delayedSink struct {
	events.Sink
	revision int64
	delay    time.Duration
}

func (d delayedSink) Publish(ctx context.Context, event events.Event) error {
	if event.RevisionID == d.revision {
		time.Sleep(d.delay)
	}
	return d.Sink.Publish(ctx, event)
}

func TestFanoutOutOfOrderHeadsKeepNewest(t *testing.T) {
	mirror := New(t.TempDir())
	fanout := events.NewFanout(nil, time.Second, delayedSink{Sink: mirror, revision: 5, delay: 100 * time.Millisecond})

	fanout.Publish(headEvent(9, 5, "Timbuktu", "Manuscripts."))
	fanout.Publish(headEvent(9, 7, "Timbuktu", "Manuscripts of Timbuktu."))
	fanout.Wait()

	history, err := mirror.History(9, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) == 0 || history[0].RevisionID != 7 {
		t.Fatalf("archive head regressed: %+v", history)
	}
	latest, err := mirror.ContentAt(9, history[0].Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if latest.Body != "Manuscripts of Timbuktu." {
		t.Fatalf("unexpected archived body: %q", latest.Body)
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Ada Moderator": "Ada.Moderator",
		"user_42":       "user.42",
		"!!!":           "user",
	}
	for input, want := range cases {
		if got := sanitizeEmail(input); got != want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", input, got, want)
		}
	}
}
