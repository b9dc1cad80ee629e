package settings

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Shashin/internal/shashin/catalog"
)

// Session is the mutable settings state of one caller. A Session is not
// safe for concurrent use on its own; Store.With serializes access.
type Session struct {
	mu sync.Mutex

	id            string
	key           string
	entries       map[string]Entry
	prefix        int // 0 when prefix mode is off
	currentPrefix int // 0 outside a batch
	lastUsed      time.Time
	evicted       bool
}

func newSession(key string, now time.Time) *Session {
	return &Session{
		id:       uuid.New().String(),
		key:      key,
		entries:  make(map[string]Entry),
		lastUsed: now,
	}
}

// ID is the session identifier. It changes on every Reset.
func (s *Session) ID() string { return s.id }

// Key is the caller identity the session belongs to.
func (s *Session) Key() string { return s.key }

// Get returns the entry stored for a field.
func (s *Session) Get(field string) (Entry, bool) {
	e, ok := s.entries[field]
	return e, ok
}

// Set inserts or replaces the entry for a field.
func (s *Session) Set(field string, e Entry) {
	s.entries[field] = e
}

// Fields returns the names of fields with an entry, sorted.
func (s *Session) Fields() []string {
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len is the number of stored entries.
func (s *Session) Len() int { return len(s.entries) }

// Prefix returns the identifier prefix and whether prefix mode is on.
func (s *Session) Prefix() (int, bool) { return s.prefix, s.prefix != 0 }

// SetPrefix turns prefix mode on. It clears the transient current prefix
// and drops a literal identifier stored under identifierField, so the
// newest identifier instruction is the one that applies.
func (s *Session) SetPrefix(p int, identifierField string) {
	s.prefix = p
	s.currentPrefix = 0
	delete(s.entries, identifierField)
}

// ClearPrefix turns prefix mode off.
func (s *Session) ClearPrefix() {
	s.prefix = 0
	s.currentPrefix = 0
}

// CurrentPrefix returns the prefix of the batch item being generated.
func (s *Session) CurrentPrefix() (int, bool) { return s.currentPrefix, s.currentPrefix != 0 }

// SetCurrentPrefix records the prefix for the batch item being generated.
func (s *Session) SetCurrentPrefix(p int) { s.currentPrefix = p }

// ClearCurrentPrefix ends a batch.
func (s *Session) ClearCurrentPrefix() { s.currentPrefix = 0 }

// Reset discards every entry and the prefix, and issues a new session ID.
func (s *Session) Reset() {
	s.entries = make(map[string]Entry)
	s.prefix = 0
	s.currentPrefix = 0
	s.id = uuid.New().String()
}

// ZeroAll replaces every entry with the field's zero value. A literal
// identifier already stored is kept; otherwise the identifier becomes 0.
// Prefix mode is turned off.
func (s *Session) ZeroAll(cat *catalog.Catalog, today time.Time) {
	idField := cat.Identifier().Name
	literal, hasLiteral := s.entries[idField]

	entries := make(map[string]Entry, len(cat.Fields()))
	for _, f := range cat.Fields() {
		entries[f.Name] = ZeroEntry(f, today)
	}
	if hasLiteral {
		entries[idField] = literal
	}
	s.entries = entries
	s.prefix = 0
	s.currentPrefix = 0
}

// LastUsed is when the session was last accessed through the store.
func (s *Session) LastUsed() time.Time { return s.lastUsed }
