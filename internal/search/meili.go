// Package search keeps a Meilisearch index of published document heads.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"afropedia/api/internal/events"
)

const idxPublished = "afropedia_published"

// PublishedRecord is the indexed view of a document head.
type PublishedRecord struct {
	ID          string `json:"id"`
	DocumentID  int64  `json:"documentId"`
	RevisionID  int64  `json:"revisionId"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishedAt string `json:"publishedAt"`
}

// Indexer is an event sink that upserts a record whenever a head advances.
// Heads older than the last one indexed for a document are skipped.
type Indexer struct {
	client  meili.ServiceManager
	log     *zap.Logger
	healthy atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	indexed map[int64]int64
}

// NewIndexer connects to Meilisearch and configures the index. An unreachable
// server is tolerated; the health loop reconfigures it on recovery.
func NewIndexer(url, apiKey string, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Indexer{
		client:  meili.New(url, meili.WithAPIKey(apiKey)),
		log:     log.Named("search"),
		done:    make(chan struct{}),
		indexed: make(map[int64]int64),
	}

	if _, err := m.client.Health(); err != nil {
		m.log.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Indexer) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxPublished,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Debug("create index (may already exist)", zap.String("index", idxPublished), zap.Error(err))
	}

	index := m.client.Index(idxPublished)
	filterable := []interface{}{"documentId", "revisionId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn("update filterable attributes", zap.String("index", idxPublished), zap.Error(err))
	}
	searchable := []string{"title", "content"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("update searchable attributes", zap.String("index", idxPublished), zap.Error(err))
	}
}

func (m *Indexer) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Indexer) Close() {
	close(m.done)
}

func (m *Indexer) Healthy() bool {
	return m.healthy.Load()
}

func (m *Indexer) Name() string { return "meilisearch" }

func (m *Indexer) Publish(_ context.Context, event events.Event) error {
	if event.Type != events.HeadAdvanced {
		return nil
	}
	if !m.healthy.Load() {
		return errors.New("meilisearch unhealthy")
	}
	record, err := recordFromEvent(event)
	if err != nil {
		return err
	}

	// Meilisearch applies enqueued tasks in order, so holding the lock until
	// the upsert is enqueued keeps the index on the newest head.
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.RevisionID < m.indexed[record.DocumentID] {
		m.log.Debug("skipping stale head",
			zap.Int64("document_id", record.DocumentID),
			zap.Int64("revision_id", record.RevisionID),
			zap.Int64("indexed_revision_id", m.indexed[record.DocumentID]))
		return nil
	}
	if _, err := m.client.Index(idxPublished).AddDocuments([]PublishedRecord{record}, nil); err != nil {
		return fmt.Errorf("index document %d: %w", record.DocumentID, err)
	}
	m.indexed[record.DocumentID] = record.RevisionID
	return nil
}

func recordFromEvent(event events.Event) (PublishedRecord, error) {
	if event.DocumentID == 0 || event.RevisionID == 0 {
		return PublishedRecord{}, fmt.Errorf("event %s has no document or revision", event.ID)
	}
	title, _ := event.Payload["title"].(string)
	content, _ := event.Payload["content"].(string)
	return PublishedRecord{
		ID:          strconv.FormatInt(event.DocumentID, 10),
		DocumentID:  event.DocumentID,
		RevisionID:  event.RevisionID,
		Title:       title,
		Content:     content,
		PublishedAt: event.OccurredAt.Format(time.RFC3339),
	}, nil
}
