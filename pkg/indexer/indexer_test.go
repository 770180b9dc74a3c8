package indexer_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/indexer"
	"github.com/nickyai/memex/pkg/memory"
	testutils "github.com/nickyai/memex/pkg/utils/test"
)

var _ = Describe("Pool", func() {
	var (
		ctx      context.Context
		store    *testutils.MockFactStore
		vec      *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		stream   *testutils.MockPublisher
		logger   *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockFactStore()
		vec = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		stream = testutils.NewMockPublisher()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	seedFact := func(id, content string) *memory.Fact {
		fact := testutils.NewTestFact("nicky", content)
		fact.ID = id
		Expect(store.PutFact(ctx, fact)).To(Succeed())
		return fact
	}

	It("embeds and persists enqueued facts", func() {
		pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{Workers: 1}, logger)
		fact := seedFact("f1", "collects vinyl records")

		Expect(pool.Enqueue(fact)).To(BeTrue())
		Expect(pool.Close()).To(Succeed())

		stored, err := store.GetFact(ctx, "f1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Embedding).To(Equal([]float32{0.1, 0.2, 0.3}))

		Expect(vec.Added).To(HaveLen(1))
		Expect(vec.Added[0].ID).To(Equal("f1"))
		Expect(vec.Added[0].ProfileID).To(Equal("nicky"))

		events := stream.EventsOfType(eventstream.EventTypeFactIndexed)
		Expect(events).To(HaveLen(1))
		Expect(events[0].Op).To(Equal("index"))
		Expect(events[0].FactID).To(Equal("f1"))

		Expect(pool.Stats().Indexed).To(Equal(int64(1)))
	})

	It("rejects nil facts", func() {
		pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{}, logger)
		defer pool.Close()

		Expect(pool.Enqueue(nil)).To(BeFalse())
	})

	It("drains queued jobs before Close returns", func() {
		pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{Workers: 2}, logger)
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			Expect(pool.Enqueue(seedFact(id, "fact "+id))).To(BeTrue())
		}

		Expect(pool.Close()).To(Succeed())

		for _, id := range []string{"a", "b", "c", "d", "e"} {
			stored, err := store.GetFact(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Embedding).NotTo(BeEmpty())
		}
		Expect(pool.Stats().Indexed).To(Equal(int64(5)))
	})

	It("refuses facts after Close", func() {
		pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{}, logger)
		Expect(pool.Close()).To(Succeed())

		Expect(pool.Enqueue(seedFact("late", "too late"))).To(BeFalse())
		Expect(pool.Stats().Dropped).To(Equal(int64(1)))
	})

	It("drops facts when the queue is full", func() {
		gated := &gatedEmbedder{
			MockEmbedder: embedder,
			entered:      make(chan struct{}),
			proceed:      make(chan struct{}),
		}
		pool := indexer.NewPool(store, vec, gated, stream, indexer.Options{Workers: 1, QueueSize: 1}, logger)

		Expect(pool.Enqueue(seedFact("busy", "held by the worker"))).To(BeTrue())
		Eventually(gated.entered).Should(BeClosed())

		Expect(pool.Enqueue(seedFact("waiting", "sits in the queue"))).To(BeTrue())
		Expect(pool.Enqueue(seedFact("spilled", "no room left"))).To(BeFalse())
		Expect(pool.Stats().Dropped).To(Equal(int64(1)))

		close(gated.proceed)
		Expect(pool.Close()).To(Succeed())

		Expect(pool.Stats().Indexed).To(Equal(int64(2)))
		spilled, err := store.GetFact(ctx, "spilled")
		Expect(err).NotTo(HaveOccurred())
		Expect(spilled.Embedding).To(BeEmpty())
	})

	It("counts embedding failures without persisting anything", func() {
		embedder.Fail = true
		pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{Workers: 1}, logger)
		fact := seedFact("f1", "collects vinyl records")

		Expect(pool.Enqueue(fact)).To(BeTrue())
		Expect(pool.Close()).To(Succeed())

		Expect(pool.Stats().Failed).To(Equal(int64(1)))
		Expect(pool.Stats().Indexed).To(BeZero())
		Expect(vec.Added).To(BeEmpty())
		Expect(stream.Events).To(BeEmpty())

		stored, err := store.GetFact(ctx, "f1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Embedding).To(BeEmpty())
	})

	It("is safe to close twice", func() {
		pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{}, logger)
		Expect(pool.Close()).To(Succeed())
		Expect(pool.Close()).To(Succeed())
	})

	Describe("Reindex", func() {
		It("embeds only facts missing an embedding", func() {
			pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{}, logger)
			defer pool.Close()

			seedFact("bare-a", "first unindexed fact")
			seedFact("bare-b", "second unindexed fact")
			done := seedFact("done", "already indexed")
			done.Embedding = []float32{0.5, 0.5, 0.5}
			Expect(store.PutFact(ctx, done)).To(Succeed())

			count, err := pool.Reindex(ctx, "nicky")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			for _, id := range []string{"bare-a", "bare-b"} {
				stored, err := store.GetFact(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.Embedding).To(Equal([]float32{0.1, 0.2, 0.3}))
			}

			kept, err := store.GetFact(ctx, "done")
			Expect(err).NotTo(HaveOccurred())
			Expect(kept.Embedding).To(Equal([]float32{0.5, 0.5, 0.5}))
		})

		It("skips facts that fail to embed", func() {
			pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{}, logger)
			defer pool.Close()

			seedFact("good", "embeds fine")
			seedFact("bad", "refuses to embed")
			embedder.FailOn = "refuses to embed"

			count, err := pool.Reindex(ctx, "nicky")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
			Expect(pool.Stats().Failed).To(Equal(int64(1)))
		})

		It("surfaces listing failures", func() {
			pool := indexer.NewPool(store, vec, embedder, stream, indexer.Options{}, logger)
			defer pool.Close()

			store.FailList = true
			_, err := pool.Reindex(ctx, "nicky")
			Expect(err).To(MatchError(ContainSubstring("listing unindexed facts")))
		})
	})
})

// gatedEmbedder blocks its first call until released, to hold a worker
// busy mid-job.
type gatedEmbedder struct {
	*testutils.MockEmbedder

	once    sync.Once
	entered chan struct{}
	proceed chan struct{}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.proceed
	})
	return g.MockEmbedder.Embed(ctx, text)
}
