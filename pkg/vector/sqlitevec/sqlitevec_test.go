package sqlitevec_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/vector"
	"github.com/nickyai/memex/pkg/vector/sqlitevec"
)

var _ = Describe("SQLiteVecDriver", func() {
	var (
		driver *sqlitevec.SQLiteVecDriver
		ctx    context.Context
		logger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))

		var err error
		driver, err = sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 3,
		}, logger)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	Describe("NewSQLiteVecDriver", func() {
		It("rejects an empty database path", func() {
			_, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
				Dimensions: 3,
			}, logger)
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("rejects zero dimensions", func() {
			_, err := sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
				DBPath: ":memory:",
			}, logger)
			Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
		})
	})

	Describe("Add and Query", func() {
		It("returns the nearest documents first", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 0, 0}},
				{ID: "fact-b", ProfileID: "nicky", Embedding: []float32{0, 1, 0}},
				{ID: "fact-c", ProfileID: "nicky", Embedding: []float32{0.9, 0.1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := driver.Query(ctx, "nicky", []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("fact-a"))
			Expect(results[1].ID).To(Equal("fact-c"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})

		It("scopes results to the requested profile", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 0, 0}},
				{ID: "fact-x", ProfileID: "other", Embedding: []float32{1, 0, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := driver.Query(ctx, "nicky", []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("fact-a"))
			Expect(results[0].ProfileID).To(Equal("nicky"))
		})

		It("returns all profiles when no profile is given", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 0, 0}},
				{ID: "fact-x", ProfileID: "other", Embedding: []float32{0, 1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := driver.Query(ctx, "", []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("scores exact matches as 1.0", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{0.5, 0.5, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := driver.Query(ctx, "nicky", []float32{0.5, 0.5, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.0001))
		})

		It("updates an existing document in place", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 0, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			err = driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{0, 0, 1}},
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := driver.Query(ctx, "nicky", []float32{0, 0, 1}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("fact-a"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.0001))
		})

		It("accepts an empty batch", func() {
			Expect(driver.Add(ctx, nil)).To(Succeed())
		})
	})

	Describe("Get", func() {
		It("returns stored documents with embeddings", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 2, 3}},
				{ID: "fact-b", ProfileID: "nicky", Embedding: []float32{4, 5, 6}},
			})
			Expect(err).NotTo(HaveOccurred())

			docs, err := driver.Get(ctx, []string{"fact-a", "fact-b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))

			byID := map[string]vector.Document{}
			for _, doc := range docs {
				byID[doc.ID] = doc
			}
			Expect(byID["fact-a"].Embedding).To(Equal([]float32{1, 2, 3}))
			Expect(byID["fact-b"].ProfileID).To(Equal("nicky"))
		})

		It("skips unknown IDs", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 0, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			docs, err := driver.Get(ctx, []string{"fact-a", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("fact-a"))
		})

		It("returns nothing for an empty ID list", func() {
			docs, err := driver.Get(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		It("removes documents from the index", func() {
			err := driver.Add(ctx, []vector.Document{
				{ID: "fact-a", ProfileID: "nicky", Embedding: []float32{1, 0, 0}},
				{ID: "fact-b", ProfileID: "nicky", Embedding: []float32{0, 1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Delete(ctx, []string{"fact-a"})).To(Succeed())

			results, err := driver.Query(ctx, "nicky", []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("fact-b"))

			docs, err := driver.Get(ctx, []string{"fact-a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})

		It("tolerates unknown IDs", func() {
			Expect(driver.Delete(ctx, []string{"missing"})).To(Succeed())
		})
	})
})
