// Package sqlite implements the storage driver on SQLite via mattn/go-sqlite3.
// The libsql driver reuses this implementation through NewStoreFromDB, so the
// SQL here stays within the dialect both engines share.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	importance INTEGER NOT NULL,
	confidence INTEGER NOT NULL,
	lane TEXT NOT NULL,
	status TEXT NOT NULL,
	is_protected INTEGER NOT NULL DEFAULT 0,
	canonical_key TEXT NOT NULL DEFAULT '',
	group_id TEXT NOT NULL DEFAULT '',
	support_count INTEGER NOT NULL DEFAULT 0,
	keywords TEXT NOT NULL DEFAULT '[]',
	embedding BLOB,
	temporal_context TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	first_seen_at TEXT NOT NULL,
	last_seen_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_profile ON facts(profile_id);
CREATE INDEX IF NOT EXISTS idx_facts_canonical_key ON facts(profile_id, canonical_key);
CREATE INDEX IF NOT EXISTS idx_facts_group ON facts(group_id);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	profile_id TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	event_date TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_profile ON events(profile_id);

CREATE TABLE IF NOT EXISTS fact_events (
	event_id TEXT NOT NULL,
	fact_id TEXT NOT NULL,
	PRIMARY KEY (event_id, fact_id)
);
`

const factColumns = `id, profile_id, content, type, importance, confidence, lane, status,
	is_protected, canonical_key, group_id, support_count, keywords, embedding,
	temporal_context, source, first_seen_at, last_seen_at, created_at, updated_at`

// Store implements storage.Driver on a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database at path. Use ":memory:" for an
// in-memory database.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store, err := NewStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStoreFromDB wraps an already-open database handle speaking the SQLite
// dialect and runs migrations on it.
func NewStoreFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
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

	keywords, err := json.Marshal(stored.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}

	var embedding []byte
	if len(stored.Embedding) > 0 {
		embedding = serializeFloat32(stored.Embedding)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		stored.ID, stored.ProfileID, stored.Content, string(stored.Type),
		stored.Importance, stored.Confidence, string(stored.Lane),
		statusToRow(stored.Status), boolToRow(stored.Protected),
		stored.CanonicalKey, stored.GroupID, stored.SupportCount,
		string(keywords), embedding, stored.TemporalContext, stored.Source,
		timeToRow(stored.FirstSeenAt), timeToRow(stored.LastSeenAt),
		timeToRow(stored.CreatedAt), timeToRow(stored.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting fact %s: %w", stored.ID, err)
	}
	return nil
}

func (s *Store) GetFact(ctx context.Context, id string) (*memory.Fact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM facts WHERE id = ?`, id)

	fact, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.FactNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading fact %s: %w", id, err)
	}
	return fact, nil
}

func (s *Store) ListFacts(ctx context.Context, q storage.FactQuery) ([]*memory.Fact, error) {
	where := []string{"1=1"}
	args := []any{}

	if q.ProfileID != "" {
		where = append(where, "profile_id = ?")
		args = append(args, q.ProfileID)
	}
	if q.Lane != "" {
		where = append(where, "lane = ?")
		args = append(args, string(q.Lane))
	}
	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			placeholders[i] = "?"
			args = append(args, statusToRow(st))
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(q.Types) > 0 {
		placeholders := make([]string, len(q.Types))
		for i, t := range q.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if q.CanonicalKey != "" {
		where = append(where, "canonical_key = ?")
		args = append(args, q.CanonicalKey)
	}
	if q.HasCanonicalKey {
		where = append(where, "canonical_key != ''")
	}
	if q.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, q.GroupID)
	}
	if q.MissingEmbedding {
		where = append(where, "(embedding IS NULL OR length(embedding) = 0)")
	}

	query := `SELECT ` + factColumns + ` FROM facts WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	facts, err := collectFacts(rows)
	if err != nil {
		return nil, err
	}

	// The Keyword filter needs the decoded keyword set, so it is applied
	// after scanning rather than in SQL.
	if q.Keyword != "" {
		filtered := facts[:0]
		for _, f := range facts {
			if f.HasKeyword(q.Keyword) {
				filtered = append(filtered, f)
			}
		}
		facts = filtered
	}
	return facts, nil
}

func (s *Store) PatchFact(ctx context.Context, id string, patch storage.FactPatch) (*memory.Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	fact, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
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

	keywords, err := json.Marshal(fact.Keywords)
	if err != nil {
		return nil, fmt.Errorf("encoding keywords: %w", err)
	}
	var embedding []byte
	if len(fact.Embedding) > 0 {
		embedding = serializeFloat32(fact.Embedding)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE facts SET
			content = ?, type = ?, importance = ?, confidence = ?, lane = ?,
			status = ?, is_protected = ?, canonical_key = ?, group_id = ?,
			support_count = ?, keywords = ?, embedding = ?,
			temporal_context = ?, source = ?, last_seen_at = ?, updated_at = ?
		WHERE id = ?
	`,
		fact.Content, string(fact.Type), fact.Importance, fact.Confidence,
		string(fact.Lane), statusToRow(fact.Status), boolToRow(fact.Protected),
		fact.CanonicalKey, fact.GroupID, fact.SupportCount, string(keywords),
		embedding, fact.TemporalContext, fact.Source,
		timeToRow(fact.LastSeenAt), timeToRow(fact.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating fact %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return fact, nil
}

// SearchFacts matches terms against content and keywords with instr() hit
// counting. FTS5 is avoided on purpose: mattn/go-sqlite3 only compiles it in
// behind a build tag and remote libsql databases reuse this SQL.
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

	exprs := make([]string, len(cleaned))
	hitArgs := make([]any, 0, len(cleaned)*2)
	for i, t := range cleaned {
		exprs[i] = "(CASE WHEN instr(lower(content), ?) > 0 OR instr(lower(keywords), ?) > 0 THEN 1 ELSE 0 END)"
		hitArgs = append(hitArgs, t, t)
	}
	hitExpr := strings.Join(exprs, " + ")

	query := `SELECT ` + factColumns + `
		FROM facts
		WHERE profile_id = ? AND (` + hitExpr + `) > 0
		ORDER BY (` + hitExpr + `) DESC, last_seen_at DESC, id
		LIMIT ?`

	args := make([]any, 0, len(hitArgs)*2+2)
	args = append(args, profileID)
	args = append(args, hitArgs...)
	args = append(args, hitArgs...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO events (id, profile_id, canonical_name, event_date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, event.ProfileID, event.CanonicalName, event.EventDate,
		event.Description, timeToRow(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", event.ID, err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*memory.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, canonical_name, event_date, description, created_at
		FROM events WHERE id = ?
	`, id)

	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.EventNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading event %s: %w", id, err)
	}
	return event, nil
}

func (s *Store) ListEvents(ctx context.Context, profileID string) ([]*memory.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, canonical_name, event_date, description, created_at
		FROM events WHERE profile_id = ? ORDER BY created_at, id
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*memory.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func (s *Store) LinkFact(ctx context.Context, eventID, factID string) error {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	if _, err := s.GetFact(ctx, factID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fact_events (event_id, fact_id) VALUES (?, ?)`,
		eventID, factID)
	if err != nil {
		return fmt.Errorf("linking fact %s to event %s: %w", factID, eventID, err)
	}
	return nil
}

func (s *Store) FactsForEvent(ctx context.Context, eventID string) ([]*memory.Fact, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+qualifyFactColumns("f")+`
		FROM facts f
		INNER JOIN fact_events fe ON fe.fact_id = f.id
		WHERE fe.event_id = ?
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.profile_id, e.canonical_name, e.event_date, e.description, e.created_at
		FROM events e
		INNER JOIN fact_events fe ON fe.event_id = e.id
		WHERE fe.fact_id = ?
		ORDER BY e.created_at, e.id
	`, factID)
	if err != nil {
		return nil, fmt.Errorf("loading events for fact %s: %w", factID, err)
	}
	defer rows.Close()

	var events []*memory.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func (s *Store) Stats(ctx context.Context, profileID string) (storage.Stats, error) {
	stats := storage.Stats{
		ByLane:   make(map[memory.Lane]int),
		ByStatus: make(map[memory.Status]int),
		ByType:   make(map[memory.FactType]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lane, status, type, COUNT(*)
		FROM facts WHERE profile_id = ?
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

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE profile_id = ?`, profileID,
	).Scan(&stats.Events); err != nil {
		return stats, fmt.Errorf("counting events: %w", err)
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFact(sc scanner) (*memory.Fact, error) {
	var (
		f                     memory.Fact
		factType, lane, state string
		protected             int
		keywordsJSON          string
		embedding             []byte
		firstSeen, lastSeen   string
		createdAt, updatedAt  string
	)

	err := sc.Scan(
		&f.ID, &f.ProfileID, &f.Content, &factType, &f.Importance,
		&f.Confidence, &lane, &state, &protected, &f.CanonicalKey,
		&f.GroupID, &f.SupportCount, &keywordsJSON, &embedding,
		&f.TemporalContext, &f.Source, &firstSeen, &lastSeen,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Type = memory.FactType(factType)
	f.Lane = memory.Lane(lane)
	f.Status = statusFromRow(state)
	f.Protected = protected != 0

	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &f.Keywords); err != nil {
			return nil, fmt.Errorf("decoding keywords for fact %s: %w", f.ID, err)
		}
	}
	if len(embedding) > 0 {
		vec, err := deserializeFloat32(embedding)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for fact %s: %w", f.ID, err)
		}
		f.Embedding = vec
	}

	f.FirstSeenAt = timeFromRow(firstSeen)
	f.LastSeenAt = timeFromRow(lastSeen)
	f.CreatedAt = timeFromRow(createdAt)
	f.UpdatedAt = timeFromRow(updatedAt)

	f.Normalize()
	return &f, nil
}

func collectFacts(rows *sql.Rows) ([]*memory.Fact, error) {
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

func scanEvent(sc scanner) (*memory.Event, error) {
	var (
		e         memory.Event
		createdAt string
	)
	if err := sc.Scan(&e.ID, &e.ProfileID, &e.CanonicalName, &e.EventDate,
		&e.Description, &createdAt); err != nil {
		return nil, err
	}
	e.CreatedAt = timeFromRow(createdAt)
	return &e, nil
}

func qualifyFactColumns(alias string) string {
	cols := strings.Split(factColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// Status round-trips uppercase to stay column-compatible with the upstream
// memory_entries schema.
func statusToRow(s memory.Status) string {
	return strings.ToUpper(string(s))
}

func statusFromRow(s string) memory.Status {
	return memory.Status(strings.ToLower(s))
}

func boolToRow(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToRow(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timeFromRow(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func serializeFloat32(v []float32) []byte {
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
