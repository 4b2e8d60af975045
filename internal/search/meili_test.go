package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"afropedia/api/internal/events"
)

type fakeMeili struct {
	mu        sync.Mutex
	documents [][]PublishedRecord
	healthy   bool
}

func (f *fakeMeili) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/health" {
			if !f.healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"message":"down","code":"unavailable","type":"system","link":""}`)
				return
			}
			_, _ = io.WriteString(w, `{"status":"available"}`)
			return
		}

		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/documents") {
			var docs []PublishedRecord
			if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
				t.Errorf("decode documents: %v", err)
			}
			f.documents = append(f.documents, docs)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"taskUid":1,"indexUid":"afropedia_published","status":"enqueued","type":"documentAdditionOrUpdate","enqueuedAt":"2024-01-01T00:00:00Z"}`)
	})
}

func (f *fakeMeili) batches() [][]PublishedRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documents
}

func TestIndexerIndexesHeadAdvances(t *testing.T) {
	fake := &fakeMeili{healthy: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	indexer := NewIndexer(server.URL, "master", nil)
	defer indexer.Close()
	if !indexer.Healthy() {
		t.Fatal("expected indexer to be healthy")
	}

	event := events.New(events.HeadAdvanced, "system")
	event.DocumentID = 3
	event.RevisionID = 11
	event.OccurredAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event.Payload = map[string]any{"title": "Benin Bronzes", "content": "Cast in the 13th century."}

	if err := indexer.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	batches := fake.batches()
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected one indexed record, got %v", batches)
	}
	got := batches[0][0]
	if got.ID != "3" || got.RevisionID != 11 || got.Title != "Benin Bronzes" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.PublishedAt != "2025-03-01T12:00:00Z" {
		t.Fatalf("unexpected publishedAt: %s", got.PublishedAt)
	}
}

func TestIndexerSkipsOlderHeads(t *testing.T) {
	fake := &fakeMeili{healthy: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	indexer := NewIndexer(server.URL, "", nil)
	defer indexer.Close()

	head := func(revisionID int64, content string) events.Event {
		event := events.New(events.HeadAdvanced, "system")
		event.DocumentID = 8
		event.RevisionID = revisionID
		event.Payload = map[string]any{"title": "Great Mosque of Djenne", "content": content}
		return event
	}

	fanout := events.NewFanout(nil, time.Second, delayedSink{Sink: indexer, revision: 5, delay: 100 * time.Millisecond})
	fanout.Publish(head(5, "Mud brick."))
	fanout.Publish(head(7, "The largest mud-brick building."))
	fanout.Wait()

	// a different document is unaffected by document 8's mark
	other := head(2, "Sankore.")
	other.DocumentID = 9
	if err := indexer.Publish(context.Background(), other); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	batches := fake.batches()
	if len(batches) != 2 {
		t.Fatalf("expected two indexed records, got %v", batches)
	}
	if got := batches[0][0]; got.DocumentID != 8 || got.RevisionID != 7 {
		t.Fatalf("expected revision 7 indexed for document 8, got %+v", got)
	}
	if got := batches[1][0]; got.DocumentID != 9 || got.RevisionID != 2 {
		t.Fatalf("unexpected record for document 9: %+v", got)
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

func TestIndexerIgnoresOtherEvents(t *testing.T) {
	fake := &fakeMeili{healthy: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	indexer := NewIndexer(server.URL, "", nil)
	defer indexer.Close()

	if err := indexer.Publish(context.Background(), events.New(events.ReviewCompleted, "r1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(fake.batches()) != 0 {
		t.Fatal("expected no documents indexed")
	}
}

func TestIndexerRejectsWhenUnhealthy(t *testing.T) {
	fake := &fakeMeili{healthy: false}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	indexer := NewIndexer(server.URL, "", nil)
	defer indexer.Close()

	event := events.New(events.HeadAdvanced, "system")
	event.DocumentID = 1
	event.RevisionID = 1
	if err := indexer.Publish(context.Background(), event); err == nil {
		t.Fatal("expected error from unhealthy indexer")
	}
}

func TestRecordFromEventRequiresIDs(t *testing.T) {
	if _, err := recordFromEvent(events.New(events.HeadAdvanced, "system")); err == nil {
		t.Fatal("expected error for event without ids")
	}
}
