// Package inmemory implements the storage driver with plain maps. It backs
// tests and the zero-setup dev path; nothing survives a restart.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards all three maps.
	mu sync.RWMutex

	facts  map[string]*memory.Fact
	events map[string]*memory.Event

	// links maps event ID to the set of linked fact IDs.
	links map[string]map[string]struct{}
}

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		facts:  make(map[string]*memory.Fact),
		events: make(map[string]*memory.Event),
		links:  make(map[string]map[string]struct{}),
	}
}

func (d *Driver) PutFact(_ context.Context, fact *memory.Fact) error {
	if fact == nil {
		return errors.New("cannot store nil fact")
	}
	if fact.ID == "" {
		return errors.New("cannot store fact without an ID")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored := fact.Clone()
	stored.Normalize()
	d.facts[fact.ID] = stored
	return nil
}

func (d *Driver) GetFact(_ context.Context, id string) (*memory.Fact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fact, ok := d.facts[id]
	if !ok {
		return nil, storage.FactNotFound(id)
	}
	return fact.Clone(), nil
}

func (d *Driver) ListFacts(_ context.Context, q storage.FactQuery) ([]*memory.Fact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*memory.Fact, 0)
	for _, f := range d.facts {
		if q.Matches(f) {
			out = append(out, f.Clone())
		}
	}

	sortFacts(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (d *Driver) PatchFact(_ context.Context, id string, patch storage.FactPatch) (*memory.Fact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fact, ok := d.facts[id]
	if !ok {
		return nil, storage.FactNotFound(id)
	}

	updated := fact.Clone()
	if _, err := patch.Apply(updated); err != nil {
		return nil, err
	}

	d.facts[id] = updated
	return updated.Clone(), nil
}

// SearchFacts matches query terms against fact content and keywords by
// token containment, ranking by hit count.
func (d *Driver) SearchFacts(_ context.Context, profileID string, terms []string, limit int) ([]*memory.Fact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	type hit struct {
		fact  *memory.Fact
		count int
	}

	hits := make([]hit, 0)
	for _, f := range d.facts {
		if f.ProfileID != profileID {
			continue
		}

		content := strings.ToLower(f.Content)
		count := 0
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if strings.Contains(content, term) || f.HasKeyword(term) {
				count++
			}
		}
		if count > 0 {
			hits = append(hits, hit{fact: f.Clone(), count: count})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		if !hits[i].fact.LastSeenAt.Equal(hits[j].fact.LastSeenAt) {
			return hits[i].fact.LastSeenAt.After(hits[j].fact.LastSeenAt)
		}
		return hits[i].fact.ID < hits[j].fact.ID
	})

	out := make([]*memory.Fact, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.fact)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Driver) PutEvent(_ context.Context, event *memory.Event) error {
	if event == nil {
		return errors.New("cannot store nil event")
	}
	if event.ID == "" {
		return errors.New("cannot store event without an ID")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored := *event
	d.events[event.ID] = &stored
	return nil
}

func (d *Driver) GetEvent(_ context.Context, id string) (*memory.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	event, ok := d.events[id]
	if !ok {
		return nil, storage.EventNotFound(id)
	}
	out := *event
	return &out, nil
}

func (d *Driver) ListEvents(_ context.Context, profileID string) ([]*memory.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*memory.Event, 0)
	for _, e := range d.events {
		if profileID == "" || e.ProfileID == profileID {
			copied := *e
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *Driver) LinkFact(_ context.Context, eventID, factID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.events[eventID]; !ok {
		return storage.EventNotFound(eventID)
	}
	if _, ok := d.facts[factID]; !ok {
		return storage.FactNotFound(factID)
	}

	set, ok := d.links[eventID]
	if !ok {
		set = make(map[string]struct{})
		d.links[eventID] = set
	}
	set[factID] = struct{}{}
	return nil
}

func (d *Driver) FactsForEvent(_ context.Context, eventID string) ([]*memory.Fact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.events[eventID]; !ok {
		return nil, storage.EventNotFound(eventID)
	}

	out := make([]*memory.Fact, 0)
	for factID := range d.links[eventID] {
		if f, ok := d.facts[factID]; ok {
			out = append(out, f.Clone())
		}
	}
	sortFacts(out)
	return out, nil
}

func (d *Driver) EventsForFact(_ context.Context, factID string) ([]*memory.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.facts[factID]; !ok {
		return nil, storage.FactNotFound(factID)
	}

	out := make([]*memory.Event, 0)
	for eventID, set := range d.links {
		if _, ok := set[factID]; ok {
			if e, found := d.events[eventID]; found {
				copied := *e
				out = append(out, &copied)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *Driver) Stats(_ context.Context, profileID string) (storage.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := storage.Stats{
		ByLane:   make(map[memory.Lane]int),
		ByStatus: make(map[memory.Status]int),
		ByType:   make(map[memory.FactType]int),
	}

	for _, f := range d.facts {
		if profileID != "" && f.ProfileID != profileID {
			continue
		}
		stats.Facts++
		stats.ByLane[f.Lane]++
		stats.ByStatus[f.Status]++
		stats.ByType[f.Type]++
	}
	for _, e := range d.events {
		if profileID == "" || e.ProfileID == profileID {
			stats.Events++
		}
	}
	return stats, nil
}

func (d *Driver) Close() error {
	return nil
}

func sortFacts(facts []*memory.Fact) {
	sort.Slice(facts, func(i, j int) bool {
		if !facts[i].CreatedAt.Equal(facts[j].CreatedAt) {
			return facts[i].CreatedAt.Before(facts[j].CreatedAt)
		}
		return facts[i].ID < facts[j].ID
	})
}
