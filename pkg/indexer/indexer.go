// Package indexer embeds fact content in the background and persists the
// vectors for semantic retrieval.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickyai/memex/pkg/embeddings"
	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/vector"
)

const (
	DefaultWorkers   = 2
	DefaultQueueSize = 256

	// jobTimeout bounds one embed-and-persist cycle so a stuck embedder
	// cannot wedge Close.
	jobTimeout = 30 * time.Second
)

// Job carries one fact through the queue.
type Job struct {
	Fact *memory.Fact
}

// Options configure the pool. Zero values fall back to defaults.
type Options struct {
	Workers   int
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// Stats are lifetime pool counters.
type Stats struct {
	Indexed int64 `json:"indexed"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Pool indexes facts with a bounded queue and a fixed set of workers.
// Enqueue never blocks; when the queue is full the fact is dropped and
// left for a later reindex sweep.
type Pool struct {
	store    storage.Driver
	vector   vector.Driver
	embedder embeddings.Embedder
	stream   eventstream.Publisher
	logger   *slog.Logger

	// mu serializes Enqueue against Close so nothing sends on a closed
	// queue.
	mu     sync.RWMutex
	closed bool
	queue  chan Job
	wg     sync.WaitGroup

	indexed atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewPool starts the workers. Store, vector driver, and embedder are
// required; the publisher is optional.
func NewPool(store storage.Driver, vectorDriver vector.Driver, embedder embeddings.Embedder, stream eventstream.Publisher, opts Options, logger *slog.Logger) *Pool {
	opts = opts.withDefaults()

	p := &Pool{
		store:    store,
		vector:   vectorDriver,
		embedder: embedder,
		stream:   stream,
		logger:   logger,
		queue:    make(chan Job, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue offers a fact for background indexing. Returns false when the
// queue is full or the pool is closed.
func (p *Pool) Enqueue(fact *memory.Fact) bool {
	if fact == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.queue <- Job{Fact: fact}:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("index queue full, dropping fact", "fact_id", fact.ID)
		return false
	}
}

// Reindex synchronously embeds every fact of the profile that has no
// stored embedding yet. Failures are logged and skipped. Returns how
// many facts were indexed.
func (p *Pool) Reindex(ctx context.Context, profileID string) (int, error) {
	facts, err := p.store.ListFacts(ctx, storage.FactQuery{
		ProfileID:        profileID,
		MissingEmbedding: true,
	})
	if err != nil {
		return 0, fmt.Errorf("listing unindexed facts: %w", err)
	}

	count := 0
	for _, fact := range facts {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if err := p.index(ctx, fact); err != nil {
			p.failed.Add(1)
			p.logger.Warn("reindexing fact failed", "fact_id", fact.ID, "error", err)
			continue
		}
		p.indexed.Add(1)
		count++
	}
	return count, nil
}

// Stats returns the lifetime counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Indexed: p.indexed.Load(),
		Failed:  p.failed.Load(),
		Dropped: p.dropped.Load(),
	}
}

// Close stops intake, drains the queue, and waits for the workers.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		if err := p.index(ctx, job.Fact); err != nil {
			p.failed.Add(1)
			p.logger.Warn("indexing fact failed", "fact_id", job.Fact.ID, "error", err)
		} else {
			p.indexed.Add(1)
		}
		cancel()
	}
}

func (p *Pool) index(ctx context.Context, fact *memory.Fact) error {
	embedding, err := p.embedder.Embed(ctx, fact.Content)
	if err != nil {
		return fmt.Errorf("embedding fact content: %w", err)
	}

	err = p.vector.Add(ctx, []vector.Document{{
		ID:        fact.ID,
		ProfileID: fact.ProfileID,
		Embedding: embedding,
	}})
	if err != nil {
		return fmt.Errorf("adding embedding: %w", err)
	}

	if _, err := p.store.PatchFact(ctx, fact.ID, storage.FactPatch{Embedding: embedding}); err != nil {
		return fmt.Errorf("persisting embedding: %w", err)
	}

	event := eventstream.NewFactEvent(eventstream.EventTypeFactIndexed, "index", fact.ProfileID, fact.ID)
	p.publish(ctx, event)

	p.logger.Debug("indexed fact", "fact_id", fact.ID, "dimensions", len(embedding))
	return nil
}

func (p *Pool) publish(ctx context.Context, event *eventstream.FactEvent) {
	if p.stream == nil {
		return
	}
	if err := p.stream.Publish(ctx, event); err != nil {
		p.logger.Warn("publishing fact event failed",
			"type", event.EventType, "fact_id", event.FactID, "error", err)
	}
}
