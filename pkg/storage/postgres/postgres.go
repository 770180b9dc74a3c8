// Package postgres implements the storage driver on PostgreSQL via pgx. The
// upstream persona system kept its memory_entries table in Postgres, so this
// driver keeps the same uppercase status convention and column vocabulary.
package postgres

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	importance INT NOT NULL,
	confidence INT NOT NULL,
	lane TEXT NOT NULL,
	status TEXT NOT NULL,
	is_protected BOOLEAN NOT NULL DEFAULT FALSE,
	canonical_key TEXT NOT NULL DEFAULT '',
	group_id TEXT NOT NULL DEFAULT '',
	support_count INT NOT NULL DEFAULT 0,
	keywords TEXT[] NOT NULL DEFAULT '{}',
	embedding BYTEA,
	temporal_context TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_profile ON facts (profile_id);
CREATE INDEX IF NOT EXISTS idx_facts_canonical_key ON facts (profile_id, canonical_key);
CREATE INDEX IF NOT EXISTS idx_facts_group ON facts (group_id);
CREATE INDEX IF NOT EXISTS idx_facts_content_tsv ON facts USING GIN (to_tsvector('english', content));

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	event_date TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_profile ON events (profile_id);

CREATE TABLE IF NOT EXISTS fact_events (
	event_id TEXT NOT NULL,
	fact_id TEXT NOT NULL,
	PRIMARY KEY (event_id, fact_id)
);
`

const factColumns = `id, profile_id, content, type, importance, confidence, lane, status,
	is_protected, canonical_key, group_id, support_count, keywords, embedding,
	temporal_context, source, first_seen_at, last_seen_at, created_at, updated_at`

// Store implements storage.Driver on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres with the given DSN and runs migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) PutFact(ctx context.Context, fact *memory.Fact) error {
	if fact == nil {
		return errors.New("cannot store nil fact")
	}
	if fact.ID == "" {
		return errors.New("cannot store fact without an ID")
	}

	stored := fact.Clone()
	stored.Normalize()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO facts (`+factColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			content = EXCLUDED.content,
			type = EXCLUDED.type,
			importance = EXCLUDED.importance,
			confidence = EXCLUDED.confidence,
			lane = EXCLUDED.lane,
			status = EXCLUDED.status,
			is_protected = EXCLUDED.is_protected,
			canonical_key = EXCLUDED.canonical_key,
			group_id = EXCLUDED.group_id,
			support_count = EXCLUDED.support_count,
			keywords = EXCLUDED.keywords,
			embedding = EXCLUDED.embedding,
			temporal_context = EXCLUDED.temporal_context,
			source = EXCLUDED.source,
			first_seen_at = EXCLUDED.first_seen_at,
			last_seen_at = EXCLUDED.last_seen_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, factArgs(stored)...)
	if err != nil {
		return fmt.Errorf("inserting fact %s: %w", stored.ID, err)
	}
	return nil
}

func (s *Store) GetFact(ctx context.Context, id string) (*memory.Fact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+factColumns+` FROM facts WHERE id = $1`, id)

	fact, err := scanFact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.FactNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading fact %s: %w", id, err)
	}
	return fact, nil
}

func (s *Store) ListFacts(ctx context.Context, q storage.FactQuery) ([]*memory.Fact, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.ProfileID != "" {
		where = append(where, "profile_id = "+arg(q.ProfileID))
	}
	if q.Lane != "" {
		where = append(where, "lane = "+arg(string(q.Lane)))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = statusToRow(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		where = append(where, "type = ANY("+arg(types)+")")
	}
	if q.CanonicalKey != "" {
		where = append(where, "canonical_key = "+arg(q.CanonicalKey))
	}
	if q.HasCanonicalKey {
		where = append(where, "canonical_key != ''")
	}
	if q.Keyword != "" {
		where = append(where, arg(q.Keyword)+" ILIKE ANY(keywords)")
	}
	if q.GroupID != "" {
		where = append(where, "group_id = "+arg(q.GroupID))
	}
	if q.MissingEmbedding {
		where = append(where, "(embedding IS NULL OR length(embedding) = 0)")
	}

	query := `SELECT ` + factColumns + ` FROM facts WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

func (s *Store) PatchFact(ctx context.Context, id string, patch storage.FactPatch) (*memory.Fact, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+factColumns+` FROM facts WHERE id = $1 FOR UPDATE`, id)
	fact, err := scanFact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.FactNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading fact %s: %w", id, err)
	}

	changed, err := patch.Apply(fact)
	if err != nil {
		return nil, err
	}
	if !changed {
		return fact, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE facts SET
			content = $1, type = $2, importance = $3, confidence = $4,
			lane = $5, status = $6, is_protected = $7, canonical_key = $8,
			group_id = $9, support_count = $10, keywords = $11,
			embedding = $12, temporal_context = $13, source = $14,
			last_seen_at = $15, updated_at = $16
		WHERE id = $17
	`,
		fact.Content, string(fact.Type), fact.Importance, fact.Confidence,
		string(fact.Lane), statusToRow(fact.Status), fact.Protected,
		fact.CanonicalKey, fact.GroupID, fact.SupportCount, fact.Keywords,
		serializeFloat32(fact.Embedding), fact.TemporalContext, fact.Source,
		fact.LastSeenAt, fact.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating fact %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return fact, nil
}

// SearchFacts uses Postgres full-text search over content, with keyword
// array overlap as a secondary signal.
func (s *Store) SearchFacts(ctx context.Context, profileID string, terms []string, limit int) ([]*memory.Fact, error) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	// websearch_to_tsquery understands the OR keyword, giving any-term
	// matching without hand-building tsquery syntax.
	tsQuery := strings.Join(cleaned, " OR ")

	rows, err := s.pool.Query(ctx, `
		SELECT `+factColumns+`
		FROM facts
		WHERE profile_id = $1
			AND (to_tsvector('english', content) @@ websearch_to_tsquery('english', $2)
				OR keywords && $3::text[])
		ORDER BY ts_rank(to_tsvector('english', content), websearch_to_tsquery('english', $2)) DESC,
			last_seen_at DESC, id
		LIMIT $4
	`, profileID, tsQuery, cleaned, limit)
	if err != nil {
		return nil, fmt.Errorf("searching facts: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

func (s *Store) PutEvent(ctx context.Context, event *memory.Event) error {
	if event == nil {
		return errors.New("cannot store nil event")
	}
	if event.ID == "" {
		return errors.New("cannot store event without an ID")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, profile_id, canonical_name, event_date, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			canonical_name = EXCLUDED.canonical_name,
			event_date = EXCLUDED.event_date,
			description = EXCLUDED.description
	`, event.ID, event.ProfileID, event.CanonicalName, event.EventDate,
		event.Description, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", event.ID, err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*memory.Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, profile_id, canonical_name, event_date, description, created_at
		FROM events WHERE id = $1
	`, id)

	var e memory.Event
	err := row.Scan(&e.ID, &e.ProfileID, &e.CanonicalName, &e.EventDate,
		&e.Description, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.EventNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", id, err)
	}
	return &e, nil
}

func (s *Store) ListEvents(ctx context.Context, profileID string) ([]*memory.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, canonical_name, event_date, description, created_at
		FROM events WHERE profile_id = $1 ORDER BY created_at, id
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (s *Store) LinkFact(ctx context.Context, eventID, factID string) error {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	if _, err := s.GetFact(ctx, factID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO fact_events (event_id, fact_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, eventID, factID)
	if err != nil {
		return fmt.Errorf("linking fact %s to event %s: %w", factID, eventID, err)
	}
	return nil
}

func (s *Store) FactsForEvent(ctx context.Context, eventID string) ([]*memory.Fact, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+qualifyFactColumns("f")+`
		FROM facts f
		INNER JOIN fact_events fe ON fe.fact_id = f.id
		WHERE fe.event_id = $1
		ORDER BY f.created_at, f.id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("loading facts for event %s: %w", eventID, err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

func (s *Store) EventsForFact(ctx context.Context, factID string) ([]*memory.Event, error) {
	if _, err := s.GetFact(ctx, factID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.profile_id, e.canonical_name, e.event_date, e.description, e.created_at
		FROM events e
		INNER JOIN fact_events fe ON fe.event_id = e.id
		WHERE fe.fact_id = $1
		ORDER BY e.created_at, e.id
	`, factID)
	if err != nil {
		return nil, fmt.Errorf("loading events for fact %s: %w", factID, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (s *Store) Stats(ctx context.Context, profileID string) (storage.Stats, error) {
	stats := storage.Stats{
		ByLane:   make(map[memory.Lane]int),
		ByStatus: make(map[memory.Status]int),
		ByType:   make(map[memory.FactType]int),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT lane, status, type, COUNT(*)
		FROM facts WHERE profile_id = $1
		GROUP BY lane, status, type
	`, profileID)
	if err != nil {
		return stats, fmt.Errorf("counting facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lane, status, factType string
		var count int
		if err := rows.Scan(&lane, &status, &factType, &count); err != nil {
			return stats, fmt.Errorf("scanning stats row: %w", err)
		}
		stats.Facts += count
		stats.ByLane[memory.Lane(lane)] += count
		stats.ByStatus[statusFromRow(status)] += count
		stats.ByType[memory.FactType(factType)] += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterating stats rows: %w", err)
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE profile_id = $1`, profileID,
	).Scan(&stats.Events); err != nil {
		return stats, fmt.Errorf("counting events: %w", err)
	}
	return stats, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func factArgs(f *memory.Fact) []any {
	return []any{
		f.ID, f.ProfileID, f.Content, string(f.Type), f.Importance,
		f.Confidence, string(f.Lane), statusToRow(f.Status), f.Protected,
		f.CanonicalKey, f.GroupID, f.SupportCount, f.Keywords,
		serializeFloat32(f.Embedding), f.TemporalContext, f.Source,
		f.FirstSeenAt, f.LastSeenAt, f.CreatedAt, f.UpdatedAt,
	}
}

func scanFact(row pgx.Row) (*memory.Fact, error) {
	var (
		f                     memory.Fact
		factType, lane, state string
		embedding             []byte
	)

	err := row.Scan(
		&f.ID, &f.ProfileID, &f.Content, &factType, &f.Importance,
		&f.Confidence, &lane, &state, &f.Protected, &f.CanonicalKey,
		&f.GroupID, &f.SupportCount, &f.Keywords, &embedding,
		&f.TemporalContext, &f.Source, &f.FirstSeenAt, &f.LastSeenAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Type = memory.FactType(factType)
	f.Lane = memory.Lane(lane)
	f.Status = statusFromRow(state)

	if len(embedding) > 0 {
		vec, err := deserializeFloat32(embedding)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for fact %s: %w", f.ID, err)
		}
		f.Embedding = vec
	}

	f.Normalize()
	return &f, nil
}

func collectFacts(rows pgx.Rows) ([]*memory.Fact, error) {
	var facts []*memory.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	return facts, nil
}

func collectEvents(rows pgx.Rows) ([]*memory.Event, error) {
	var events []*memory.Event
	for rows.Next() {
		var e memory.Event
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.CanonicalName,
			&e.EventDate, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func qualifyFactColumns(alias string) string {
	cols := strings.Split(factColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func statusToRow(s memory.Status) string {
	return strings.ToUpper(string(s))
}

func statusFromRow(s string) memory.Status {
	return memory.Status(strings.ToLower(s))
}

func serializeFloat32(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
