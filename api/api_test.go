package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/contradiction"
	memexlogger "github.com/nickyai/memex/pkg/logger"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/retrieval"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/storage/inmemory"
	"github.com/nickyai/memex/pkg/timeline"
)

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Driver
	)

	BeforeEach(func() {
		log := memexlogger.Nop()
		store = inmemory.NewDriver()
		server = NewServer(
			Config{ListenAddr: ":0", DefaultMode: "chat", DefaultHeat: 10},
			Deps{
				Store:   store,
				Ranker:  retrieval.NewRanker(store, nil, nil, retrieval.Options{}, log),
				Engine:  contradiction.NewEngine(store, nil, nil, log),
				Auditor: timeline.NewAuditor(store, nil, log),
			},
			log,
		)
	})

	do := func(method, path string, payload any) *http.Response {
		var req *http.Request
		var err error
		if payload != nil {
			body, merr := json.Marshal(payload)
			Expect(merr).NotTo(HaveOccurred())
			req, err = http.NewRequest(method, path, bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
		} else {
			req, err = http.NewRequest(method, path, nil)
			Expect(err).NotTo(HaveOccurred())
		}

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}

	createFact := func(req PutFactRequest) *memory.Fact {
		resp := do(http.MethodPost, "/v1/facts", req)
		Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		var fact memory.Fact
		decode(resp, &fact)
		return &fact
	}

	intPtr := func(n int) *int { return &n }

	Describe("ping", func() {
		It("responds ok", func() {
			resp := do(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body map[string]string
			decode(resp, &body)
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	Describe("creating facts", func() {
		It("applies fact defaults to a minimal request", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "loves synthwave"})

			Expect(fact.ID).NotTo(BeEmpty())
			Expect(fact.Lane).To(Equal(memory.LaneRumor))
			Expect(fact.Status).To(Equal(memory.StatusActive))
			Expect(fact.Importance).To(Equal(memory.DefaultImportance))
			Expect(fact.Confidence).To(Equal(memory.DefaultConfidence))
		})

		It("honors explicit lane, type, and scores", func() {
			fact := createFact(PutFactRequest{
				ProfileID:  "nicky",
				Content:    "grew up in Portland",
				Type:       "preference",
				Lane:       "canon",
				Importance: intPtr(90),
				Confidence: intPtr(80),
			})

			Expect(fact.Type).To(Equal(memory.TypePreference))
			Expect(fact.Lane).To(Equal(memory.LaneCanon))
			Expect(fact.Importance).To(Equal(90))
			Expect(fact.Confidence).To(Equal(80))
		})

		It("clamps out-of-range scores instead of rejecting them", func() {
			fact := createFact(PutFactRequest{
				ProfileID:  "nicky",
				Content:    "screamed about it",
				Importance: intPtr(500),
				Confidence: intPtr(-5),
			})

			Expect(fact.Importance).To(Equal(memory.MaxImportance))
			Expect(fact.Confidence).To(Equal(memory.MinConfidence))
		})

		It("rejects a missing profile id", func() {
			resp := do(http.MethodPost, "/v1/facts", PutFactRequest{Content: "orphan"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a missing content field", func() {
			resp := do(http.MethodPost, "/v1/facts", PutFactRequest{ProfileID: "nicky"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects an unknown lane", func() {
			resp := do(http.MethodPost, "/v1/facts", PutFactRequest{
				ProfileID: "nicky", Content: "x", Lane: "gossip",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(ContainSubstring("unknown lane"))
		})

		It("rejects an unknown fact type", func() {
			resp := do(http.MethodPost, "/v1/facts", PutFactRequest{
				ProfileID: "nicky", Content: "x", Type: "vibe",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("reading facts", func() {
		It("returns a stored fact by id", func() {
			created := createFact(PutFactRequest{ProfileID: "nicky", Content: "collects modular synths"})

			resp := do(http.MethodGet, "/v1/facts/"+created.ID, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var fact memory.Fact
			decode(resp, &fact)
			Expect(fact.ID).To(Equal(created.ID))
			Expect(fact.Content).To(Equal("collects modular synths"))
		})

		It("returns 404 for a missing fact", func() {
			resp := do(http.MethodGet, "/v1/facts/nope", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			var body ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(ContainSubstring("nope"))
		})

		It("lists facts filtered by lane", func() {
			createFact(PutFactRequest{ProfileID: "nicky", Content: "canon one", Lane: "canon"})
			createFact(PutFactRequest{ProfileID: "nicky", Content: "rumor one", Lane: "rumor"})
			createFact(PutFactRequest{ProfileID: "other", Content: "someone else"})

			resp := do(http.MethodGet, "/v1/facts?profile_id=nicky", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var listing struct {
				Count int           `json:"count"`
				Facts []memory.Fact `json:"facts"`
			}
			decode(resp, &listing)
			Expect(listing.Count).To(Equal(2))

			resp = do(http.MethodGet, "/v1/facts?profile_id=nicky&lane=canon", nil)
			decode(resp, &listing)
			Expect(listing.Count).To(Equal(1))
			Expect(listing.Facts[0].Content).To(Equal("canon one"))
		})

		It("requires a profile id to list", func() {
			resp := do(http.MethodGet, "/v1/facts", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("curation", func() {
		It("boosts confidence up the ladder", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "boost me"})

			resp := do(http.MethodPost, "/v1/facts/"+fact.ID+"/boost", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var boosted memory.Fact
			decode(resp, &boosted)
			Expect(boosted.Confidence).To(Equal(85))

			resp = do(http.MethodPost, "/v1/facts/"+fact.ID+"/boost", nil)
			decode(resp, &boosted)
			Expect(boosted.Confidence).To(Equal(90))
		})

		It("protects a fact and pins its confidence", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "ground truth"})

			resp := do(http.MethodPost, "/v1/facts/"+fact.ID+"/protect", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var protected memory.Fact
			decode(resp, &protected)
			Expect(protected.Protected).To(BeTrue())
			Expect(protected.Confidence).To(Equal(memory.MaxConfidence))
		})

		It("deprecates a fact", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "old news"})

			resp := do(http.MethodPost, "/v1/facts/"+fact.ID+"/deprecate", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var deprecated memory.Fact
			decode(resp, &deprecated)
			Expect(deprecated.Status).To(Equal(memory.StatusDeprecated))
		})

		It("refuses to deprecate a protected fact", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "untouchable"})
			do(http.MethodPost, "/v1/facts/"+fact.ID+"/protect", nil)

			resp := do(http.MethodPost, "/v1/facts/"+fact.ID+"/deprecate", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		})

		It("returns 404 when boosting a missing fact", func() {
			resp := do(http.MethodPost, "/v1/facts/nope/boost", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("recall", func() {
		BeforeEach(func() {
			createFact(PutFactRequest{
				ProfileID:  "nicky",
				Content:    "grew up in Portland",
				Lane:       "canon",
				Importance: intPtr(80),
				Confidence: intPtr(85),
				Keywords:   []string{"portland", "hometown"},
			})
			createFact(PutFactRequest{
				ProfileID:  "nicky",
				Content:    "allegedly snuck into a Portland warehouse rave",
				Lane:       "rumor",
				Importance: intPtr(70),
				Confidence: intPtr(70),
				Keywords:   []string{"portland", "rave"},
			})
		})

		It("requires a profile id", func() {
			resp := do(http.MethodGet, "/v1/recall?q=portland", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects an unknown mode", func() {
			resp := do(http.MethodGet, "/v1/recall?profile_id=nicky&mode=karaoke", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns canon facts and rejects rumors outside the theater zone", func() {
			resp := do(http.MethodGet, "/v1/recall?profile_id=nicky&q=portland", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result retrieval.Result
			decode(resp, &result)

			contents := make([]string, 0, len(result.Facts))
			for _, ranked := range result.Facts {
				contents = append(contents, ranked.Content)
			}
			Expect(contents).To(ContainElement("grew up in Portland"))
			Expect(contents).NotTo(ContainElement("allegedly snuck into a Portland warehouse rave"))
			Expect(result.Rejected).To(BeNumerically(">=", 1))
		})

		It("admits rumors when the room runs hot", func() {
			resp := do(http.MethodGet, "/v1/recall?profile_id=nicky&q=portland&heat=90", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result retrieval.Result
			decode(resp, &result)

			contents := make([]string, 0, len(result.Facts))
			for _, ranked := range result.Facts {
				contents = append(contents, ranked.Content)
			}
			Expect(contents).To(ContainElement("allegedly snuck into a Portland warehouse rave"))
		})

		It("caps rumor display confidence in a cool podcast", func() {
			resp := do(http.MethodGet, "/v1/recall?profile_id=nicky&q=portland&mode=podcast&heat=30", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result retrieval.Result
			decode(resp, &result)

			for _, ranked := range result.Facts {
				if ranked.Lane == memory.LaneRumor {
					Expect(ranked.DisplayConfidence).To(BeNumerically("<=", 40))
					Expect(ranked.Confidence).To(Equal(70))
				}
			}
		})
	})

	Describe("contradictions", func() {
		seedPair := func() (string, string) {
			a := createFact(PutFactRequest{
				ProfileID:    "nicky",
				Content:      "has a cat named Turing",
				Lane:         "canon",
				Confidence:   intPtr(80),
				CanonicalKey: "nicky.pet",
			})
			b := createFact(PutFactRequest{
				ProfileID:    "nicky",
				Content:      "has a dog named Ada",
				Lane:         "canon",
				Confidence:   intPtr(70),
				CanonicalKey: "nicky.pet",
			})
			return a.ID, b.ID
		}

		It("requires a profile id to scan", func() {
			resp := do(http.MethodPost, "/v1/contradictions/scan", ScanRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("groups facts sharing a canonical key", func() {
			seedPair()

			resp := do(http.MethodPost, "/v1/contradictions/scan", ScanRequest{ProfileID: "nicky"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result ScanResponse
			decode(resp, &result)
			Expect(result.Groups).To(HaveLen(1))
			Expect(result.Groups[0].CanonicalKey).To(Equal("nicky.pet"))
			Expect(result.Tagged).To(BeZero())
		})

		It("returns an empty group list rather than null", func() {
			resp := do(http.MethodPost, "/v1/contradictions/scan", ScanRequest{ProfileID: "ghost"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var raw map[string]json.RawMessage
			decode(resp, &raw)
			Expect(string(raw["groups"])).To(Equal("[]"))
		})

		It("tags and then dismisses a group", func() {
			aID, bID := seedPair()

			resp := do(http.MethodPost, "/v1/contradictions/scan", ScanRequest{ProfileID: "nicky", TagGroups: true})
			var result ScanResponse
			decode(resp, &result)
			Expect(result.Tagged).To(Equal(1))

			resp = do(http.MethodPost, "/v1/contradictions/dismiss", DismissRequest{
				ProfileID: "nicky",
				GroupID:   result.Groups[0].ID,
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var outcome struct {
				Dismissed int `json:"dismissed"`
			}
			decode(resp, &outcome)
			Expect(outcome.Dismissed).To(Equal(2))

			for _, id := range []string{aID, bID} {
				var fact memory.Fact
				decode(do(http.MethodGet, "/v1/facts/"+id, nil), &fact)
				Expect(fact.Confidence).To(Equal(1))
			}
		})

		It("resolves a pair in the winner's favor", func() {
			winnerID, loserID := seedPair()

			resp := do(http.MethodPost, "/v1/contradictions/resolve", ResolveRequest{
				WinnerID: winnerID,
				LoserID:  loserID,
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var resolution contradiction.Resolution
			decode(resp, &resolution)
			Expect(resolution.Loser.Status).To(Equal(memory.StatusDeprecated))
			Expect(resolution.WinnerBoosted).To(BeTrue())
			Expect(resolution.Winner.Confidence).To(Equal(85))
		})

		It("requires both ids to resolve", func() {
			resp := do(http.MethodPost, "/v1/contradictions/resolve", ResolveRequest{WinnerID: "a"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("requires a group id to dismiss", func() {
			resp := do(http.MethodPost, "/v1/contradictions/dismiss", DismissRequest{ProfileID: "nicky"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("events and timeline audit", func() {
		It("creates and lists events", func() {
			resp := do(http.MethodPost, "/v1/events", PutEventRequest{
				ProfileID:     "nicky",
				CanonicalName: "album launch",
				EventDate:     "2026-09-01",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var event memory.Event
			decode(resp, &event)
			Expect(event.ID).NotTo(BeEmpty())

			resp = do(http.MethodGet, "/v1/events?profile_id=nicky", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var listing struct {
				Count int `json:"count"`
			}
			decode(resp, &listing)
			Expect(listing.Count).To(Equal(1))
		})

		It("requires a canonical name", func() {
			resp := do(http.MethodPost, "/v1/events", PutEventRequest{ProfileID: "nicky"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("links a fact to an event", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "played the launch party"})

			var event memory.Event
			decode(do(http.MethodPost, "/v1/events", PutEventRequest{
				ProfileID:     "nicky",
				CanonicalName: "album launch",
			}), &event)

			resp := do(http.MethodPost, "/v1/events/"+event.ID+"/facts", LinkFactRequest{FactID: fact.ID})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("returns 404 when linking to a missing event", func() {
			fact := createFact(PutFactRequest{ProfileID: "nicky", Content: "unmoored"})

			resp := do(http.MethodPost, "/v1/events/nope/facts", LinkFactRequest{FactID: fact.ID})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		Context("auditing a stale future fact", func() {
			var factID string

			BeforeEach(func() {
				fact := createFact(PutFactRequest{
					ProfileID:  "nicky",
					Content:    "the album launch will happen soon",
					Lane:       "canon",
					Confidence: intPtr(60),
				})
				factID = fact.ID

				var event memory.Event
				decode(do(http.MethodPost, "/v1/events", PutEventRequest{
					ProfileID:     "nicky",
					CanonicalName: "album launch",
					EventDate:     "2024-01-15",
				}), &event)

				do(http.MethodPost, "/v1/events/"+event.ID+"/facts", LinkFactRequest{FactID: factID})
			})

			It("reports without mutating on a dry run", func() {
				resp := do(http.MethodPost, "/v1/timeline/audit", AuditRequest{ProfileID: "nicky", DryRun: true})
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var report timeline.Report
				decode(resp, &report)
				Expect(report.Flagged).To(HaveLen(1))
				Expect(report.Flagged[0].Conflict).To(Equal(timeline.ConflictStaleFuture))
				Expect(report.UpdatesApplied).To(BeZero())

				var fact memory.Fact
				decode(do(http.MethodGet, "/v1/facts/"+factID, nil), &fact)
				Expect(fact.Status).To(Equal(memory.StatusActive))
			})

			It("demotes the fact when applied", func() {
				resp := do(http.MethodPost, "/v1/timeline/audit", AuditRequest{ProfileID: "nicky"})
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var report timeline.Report
				decode(resp, &report)
				Expect(report.UpdatesApplied).To(Equal(1))

				var fact memory.Fact
				decode(do(http.MethodGet, "/v1/facts/"+factID, nil), &fact)
				Expect(fact.Status).To(Equal(memory.StatusAmbiguous))
				Expect(fact.Confidence).To(Equal(45))
				Expect(fact.TemporalContext).To(ContainSubstring("[timeline]"))
			})
		})

		It("requires a profile id to audit", func() {
			resp := do(http.MethodPost, "/v1/timeline/audit", AuditRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("stats", func() {
		It("counts facts and events by profile", func() {
			createFact(PutFactRequest{ProfileID: "nicky", Content: "one", Lane: "canon"})
			createFact(PutFactRequest{ProfileID: "nicky", Content: "two"})
			do(http.MethodPost, "/v1/events", PutEventRequest{ProfileID: "nicky", CanonicalName: "launch"})

			resp := do(http.MethodGet, "/v1/stats?profile_id=nicky", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var stats storage.Stats
			decode(resp, &stats)
			Expect(stats.Facts).To(Equal(2))
			Expect(stats.Events).To(Equal(1))
			Expect(stats.ByLane[memory.LaneCanon]).To(Equal(1))
		})

		It("requires a profile id", func() {
			resp := do(http.MethodGet, "/v1/stats", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})
