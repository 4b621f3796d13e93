// Package sets owns the question set collection and keeps it persisted.
//
// Every mutating call rewrites the whole collection to the backend. A failed
// write is logged and otherwise ignored: the in-memory collection stays the
// source of truth for the rest of the session.
package sets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/google/uuid"
)

// DefaultKey is the storage key the collection is persisted under.
const DefaultKey = "blooket_question_sets"

var (
	ErrSetNotFound = errors.New("question set not found")
	ErrLastSet     = errors.New("you must have at least one set")
	ErrEmptyName   = errors.New("set name cannot be empty")
)

// Backend is durable key/value storage.
type Backend interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Store holds the collection in memory and writes it through to a Backend.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	backend Backend
	key     string
	log     *slog.Logger
	now     func() time.Time
	newID   func() string

	coll domain.Collection
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how new set ids are made.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a store over backend. Call Load before using it.
func New(backend Backend, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		backend: backend,
		key:     key,
		log:     slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted collection. Missing, empty or unreadable data
// yields a fresh collection holding one default set, which is persisted.
// Data that cannot be parsed is copied to the backup key first.
// The first set becomes active. Load never fails.
func (s *Store) Load() domain.Collection {
	loaded, err := s.read()
	if err != nil {
		s.log.Error("Error loading question sets, starting fresh", "key", s.key, "error", err)
	}
	if len(loaded) > 0 {
		for i := range loaded {
			if loaded[i].Questions == nil {
				loaded[i].Questions = []domain.Question{}
			}
		}
		s.coll = domain.Collection{Sets: loaded, ActiveID: loaded[0].ID}
		s.log.Info("Loaded question sets", "sets", len(loaded))
		return s.Collection()
	}

	set := s.newSet(domain.DefaultSetName)
	s.coll = domain.Collection{Sets: []domain.QuestionSet{set}, ActiveID: set.ID}
	s.Save()
	return s.Collection()
}

// BackupKey is where unparseable data under key is preserved.
func BackupKey(key string) string {
	return key + ".corrupt"
}

func (s *Store) read() ([]domain.QuestionSet, error) {
	raw, ok, err := s.backend.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var loaded []domain.QuestionSet
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		if putErr := s.backend.Put(BackupKey(s.key), raw); putErr != nil {
			s.log.Error("Error backing up unreadable question sets", "key", BackupKey(s.key), "error", putErr)
		}
		return nil, fmt.Errorf("parse %s: %w", s.key, err)
	}
	return loaded, nil
}

// Save writes the whole collection. Failures are logged and swallowed.
func (s *Store) Save() {
	if len(s.coll.Sets) == 0 {
		return
	}
	data, err := json.Marshal(s.coll.Sets)
	if err != nil {
		s.log.Error("Error encoding question sets", "error", err)
		return
	}
	if err := s.backend.Put(s.key, string(data)); err != nil {
		s.log.Error("Error saving question sets", "key", s.key, "error", err)
	}
}

// Collection returns a deep copy of the current collection.
func (s *Store) Collection() domain.Collection {
	return domain.Collection{Sets: s.Sets(), ActiveID: s.coll.ActiveID}
}

// Sets returns a deep copy of every set in order.
func (s *Store) Sets() []domain.QuestionSet {
	out := make([]domain.QuestionSet, len(s.coll.Sets))
	for i, set := range s.coll.Sets {
		out[i] = set.Clone()
	}
	return out
}

// ActiveID returns the id of the active set.
func (s *Store) ActiveID() string {
	return s.coll.ActiveID
}

// Active returns a copy of the active set, or false if there is none.
func (s *Store) Active() (domain.QuestionSet, bool) {
	set := s.coll.Active()
	if set == nil {
		return domain.QuestionSet{}, false
	}
	return set.Clone(), true
}

// Lookup finds a set by id, falling back to the first set with that name.
func (s *Store) Lookup(idOrName string) (domain.QuestionSet, bool) {
	if i := s.coll.Find(idOrName); i >= 0 {
		return s.coll.Sets[i].Clone(), true
	}
	for _, set := range s.coll.Sets {
		if set.Name == idOrName {
			return set.Clone(), true
		}
	}
	return domain.QuestionSet{}, false
}

// SetActive switches the active set.
func (s *Store) SetActive(id string) error {
	if s.coll.Find(id) < 0 {
		return fmt.Errorf("activate %s: %w", id, ErrSetNotFound)
	}
	s.coll.ActiveID = id
	return nil
}

// CreateSet appends an empty set named name and makes it active.
func (s *Store) CreateSet(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	set := s.newSet(name)
	s.coll.Sets = append(s.coll.Sets, set)
	s.coll.ActiveID = set.ID
	s.log.Info("Created question set", "id", set.ID, "name", name)
	s.Save()
	return set.ID, nil
}

// RenameSet renames a set in place. Names need not be unique.
func (s *Store) RenameSet(id, name string) error {
	i := s.coll.Find(id)
	if i < 0 {
		return fmt.Errorf("rename %s: %w", id, ErrSetNotFound)
	}
	s.coll.Sets[i].Name = name
	s.Save()
	return nil
}

// DeleteSet removes a set. The last remaining set cannot be deleted.
// If the active set is removed the first remaining set becomes active.
func (s *Store) DeleteSet(id string) error {
	i := s.coll.Find(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrSetNotFound)
	}
	if len(s.coll.Sets) <= 1 {
		s.log.Warn("Refusing to delete the last question set", "id", id)
		return ErrLastSet
	}

	s.coll.Sets = append(s.coll.Sets[:i:i], s.coll.Sets[i+1:]...)
	if s.coll.ActiveID == id {
		s.coll.ActiveID = s.coll.Sets[0].ID
	}
	s.log.Info("Deleted question set", "id", id)
	s.Save()
	return nil
}

// UpsertQuestion replaces the question at index, or appends q when index
// is not a valid position.
func (s *Store) UpsertQuestion(setID string, index int, q domain.Question) error {
	i := s.coll.Find(setID)
	if i < 0 {
		return fmt.Errorf("save question in %s: %w", setID, ErrSetNotFound)
	}
	set := &s.coll.Sets[i]
	q.Correct = append([]int(nil), q.Correct...)
	if index >= 0 && index < len(set.Questions) {
		set.Questions[index] = q
	} else {
		set.Questions = append(set.Questions, q)
	}
	s.Save()
	return nil
}

// DeleteQuestion removes the question at index. Out of range is a no-op.
func (s *Store) DeleteQuestion(setID string, index int) error {
	i := s.coll.Find(setID)
	if i < 0 {
		return fmt.Errorf("delete question in %s: %w", setID, ErrSetNotFound)
	}
	set := &s.coll.Sets[i]
	if index < 0 || index >= len(set.Questions) {
		return nil
	}
	set.Questions = append(set.Questions[:index:index], set.Questions[index+1:]...)
	s.Save()
	return nil
}

func (s *Store) newSet(name string) domain.QuestionSet {
	return domain.QuestionSet{
		ID:        s.newID(),
		Name:      name,
		Questions: []domain.Question{},
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
}
