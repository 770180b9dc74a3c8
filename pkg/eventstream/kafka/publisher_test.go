package kafka_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/eventstream/kafka"
)

var _ = Describe("Publisher", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	Describe("NewPublisher", func() {
		It("requires at least one broker", func() {
			_, err := kafka.NewPublisher(kafka.Config{
				Topic: "memex.facts",
			}, logger)
			Expect(err).To(MatchError(ContainSubstring("broker")))
		})

		It("requires a topic", func() {
			_, err := kafka.NewPublisher(kafka.Config{
				Brokers: []string{"localhost:9092"},
			}, logger)
			Expect(err).To(MatchError(ContainSubstring("topic")))
		})

		It("creates a publisher without dialing", func() {
			p, err := kafka.NewPublisher(kafka.Config{
				Brokers: []string{"localhost:9092"},
				Topic:   "memex.facts",
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).NotTo(BeNil())
			Expect(p.Close()).To(Succeed())
		})
	})

	Describe("Publish", func() {
		It("rejects nil events before touching the wire", func() {
			p, err := kafka.NewPublisher(kafka.Config{
				Brokers: []string{"localhost:9092"},
				Topic:   "memex.facts",
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer p.Close()

			err = p.Publish(context.Background(), nil)
			Expect(err).To(MatchError(eventstream.ErrNilFactEvent))
		})
	})
})
