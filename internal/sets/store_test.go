package sets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/conorfennell/quizgen/internal/storage"
)

type memBackend struct {
	data    map[string]string
	readErr error
	putErr  error
	puts    int
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (m *memBackend) Get(key string) (string, bool, error) {
	if m.readErr != nil {
		return "", false, m.readErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Put(key, value string) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = value
	return nil
}

var fixedTime = time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)

func newTestStore(b Backend, logBuf *bytes.Buffer) *Store {
	n := 0
	opts := []Option{
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("set-%d", n)
		}),
	}
	if logBuf != nil {
		opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(logBuf, nil))))
	} else {
		opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	}
	return New(b, DefaultKey, opts...)
}

func question(text string) domain.Question {
	return domain.Question{Text: text, Choice1: "a", Choice2: "b", Correct: []int{1}, TimeLimit: 20}
}

func TestLoadFallsBackToDefaultSet(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(b *memBackend)
	}{
		{"missing", func(b *memBackend) {}},
		{"empty string", func(b *memBackend) { b.data[DefaultKey] = "" }},
		{"empty array", func(b *memBackend) { b.data[DefaultKey] = "[]" }},
		{"corrupt", func(b *memBackend) { b.data[DefaultKey] = "{not json" }},
		{"wrong shape", func(b *memBackend) { b.data[DefaultKey] = `{"id":"x"}` }},
		{"read error", func(b *memBackend) { b.readErr = errors.New("disk gone") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newMemBackend()
			tc.setup(b)
			s := newTestStore(b, nil)

			c := s.Load()
			if len(c.Sets) != 1 {
				t.Fatalf("Expected 1 default set, got %d", len(c.Sets))
			}
			set := c.Sets[0]
			if set.Name != domain.DefaultSetName {
				t.Errorf("Expected name %q, got %q", domain.DefaultSetName, set.Name)
			}
			if c.ActiveID != set.ID {
				t.Errorf("Expected default set to be active")
			}
			if !set.CreatedAt.Equal(fixedTime) {
				t.Errorf("Expected createdAt %v, got %v", fixedTime, set.CreatedAt)
			}
		})
	}
}

func TestLoadExistingActivatesFirstSet(t *testing.T) {
	b := newMemBackend()
	b.data[DefaultKey] = `[{"id":"a","name":"First","questions":null,"createdAt":"2024-01-01T00:00:00.000Z"},` +
		`{"id":"b","name":"Second","questions":[],"createdAt":"2024-01-02T00:00:00.000Z"}]`
	s := newTestStore(b, nil)

	c := s.Load()
	if len(c.Sets) != 2 {
		t.Fatalf("Expected 2 sets, got %d", len(c.Sets))
	}
	if c.ActiveID != "a" {
		t.Errorf("Expected first set active, got %q", c.ActiveID)
	}
	if c.Sets[0].Questions == nil {
		t.Error("Expected null questions to load as an empty list")
	}
	if b.puts != 0 {
		t.Errorf("Expected Load of existing data not to write, got %d writes", b.puts)
	}
}

func TestLoadKeepsLooselyTypedSets(t *testing.T) {
	b := newMemBackend()
	b.data[DefaultKey] = `[{"id":1700000000000,"name":"Mine","createdAt":"yesterday","questions":[` +
		`{"q":"Cap?","a1":"Paris","a2":"London","a3":"","a4":"","correct":"1","timeLimit":"30"},` +
		`{"q":"Big","a1":"a","a2":"b","a3":"","a4":"","correct":[1],"timeLimit":"999"},` +
		`{"q":"Odd","a1":"a","a2":"b","a3":"","a4":"","correct":[1],"timeLimit":true}]}]`
	s := newTestStore(b, nil)

	c := s.Load()
	if len(c.Sets) != 1 || c.Sets[0].Name != "Mine" {
		t.Fatalf("Expected the stored set to survive, got %+v", c.Sets)
	}
	set := c.Sets[0]
	if set.ID != "1700000000000" || c.ActiveID != set.ID {
		t.Errorf("Expected numeric id read as a string, got %q", set.ID)
	}
	if !set.CreatedAt.IsZero() {
		t.Errorf("Expected unreadable createdAt to be zero, got %v", set.CreatedAt)
	}

	var limits []int
	for _, q := range set.Questions {
		limits = append(limits, q.TimeLimit)
	}
	if !reflect.DeepEqual(limits, []int{30, 60, 0}) {
		t.Errorf("Expected time limits [30 60 0], got %v", limits)
	}
	if !reflect.DeepEqual(set.Questions[0].Correct, []int{1}) {
		t.Errorf("Expected correct [1], got %v", set.Questions[0].Correct)
	}
	if b.puts != 0 {
		t.Errorf("Expected stored data left untouched, got %d writes", b.puts)
	}
}

func TestLoadBacksUpUnreadableData(t *testing.T) {
	b := newMemBackend()
	b.data[DefaultKey] = `[{"id":"a","name":5}]`
	s := newTestStore(b, nil)

	c := s.Load()
	if len(c.Sets) != 1 || c.Sets[0].Name != domain.DefaultSetName {
		t.Fatalf("Expected a fresh default set, got %+v", c.Sets)
	}
	if got := b.data[BackupKey(DefaultKey)]; got != `[{"id":"a","name":5}]` {
		t.Errorf("Expected original data in backup key, got %q", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	s.Load()

	qs := []domain.Question{
		{Text: "Cap?", Choice1: "Paris", Choice2: "London", Correct: []int{1}, TimeLimit: 20},
		{Text: "Multi", Choice1: "a", Choice2: "b", Choice3: "c", Choice4: "d", Correct: []int{1, 3, 4}, TimeLimit: 7},
	}
	for _, q := range qs {
		if err := s.UpsertQuestion(s.ActiveID(), -1, q); err != nil {
			t.Fatalf("UpsertQuestion returned an unexpected error: %v", err)
		}
	}

	reloaded := newTestStore(b, nil).Load()
	if len(reloaded.Sets) != 1 {
		t.Fatalf("Expected 1 set after reload, got %d", len(reloaded.Sets))
	}
	if !reflect.DeepEqual(reloaded.Sets[0].Questions, qs) {
		t.Errorf("Questions did not round trip:\nexpected %+v\ngot      %+v", qs, reloaded.Sets[0].Questions)
	}
}

func TestPersistedLayout(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	s.Load()
	if err := s.UpsertQuestion(s.ActiveID(), -1, question("Q1")); err != nil {
		t.Fatalf("UpsertQuestion returned an unexpected error: %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(b.data[DefaultKey]), &raw); err != nil {
		t.Fatalf("Persisted data is not a JSON array: %v", err)
	}
	for _, key := range []string{"id", "name", "questions", "createdAt"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("Expected persisted set to have key %q", key)
		}
	}
	if raw[0]["createdAt"] != "2024-03-01T10:20:30Z" {
		t.Errorf("Unexpected createdAt encoding: %v", raw[0]["createdAt"])
	}
	q := raw[0]["questions"].([]any)[0].(map[string]any)
	for _, key := range []string{"q", "a1", "a2", "a3", "a4", "correct", "timeLimit"} {
		if _, ok := q[key]; !ok {
			t.Errorf("Expected persisted question to have key %q", key)
		}
	}
}

func TestSaveFailureIsLoggedAndSwallowed(t *testing.T) {
	b := newMemBackend()
	var logs bytes.Buffer
	s := newTestStore(b, &logs)
	s.Load()

	b.putErr = errors.New("quota exceeded")
	if err := s.UpsertQuestion(s.ActiveID(), -1, question("kept in memory")); err != nil {
		t.Fatalf("UpsertQuestion should not surface storage errors, got %v", err)
	}

	active, _ := s.Active()
	if len(active.Questions) != 1 {
		t.Errorf("Expected in-memory state to keep the question, got %d", len(active.Questions))
	}
	if !strings.Contains(logs.String(), "quota exceeded") {
		t.Errorf("Expected storage failure to be logged, logs: %s", logs.String())
	}
}

func TestCreateSet(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	s.Load()

	id, err := s.CreateSet("  Science  ")
	if err != nil {
		t.Fatalf("CreateSet returned an unexpected error: %v", err)
	}
	if s.ActiveID() != id {
		t.Errorf("Expected new set to become active")
	}
	sets := s.Sets()
	if len(sets) != 2 || sets[1].Name != "Science" || sets[1].ID != id {
		t.Errorf("Expected new set appended with trimmed name, got %+v", sets)
	}

	if _, err := s.CreateSet("   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
}

func TestCreateSetUsesUniqueIDs(t *testing.T) {
	s := New(newMemBackend(), "", WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	s.Load()

	seen := map[string]bool{s.ActiveID(): true}
	for i := 0; i < 5; i++ {
		id, err := s.CreateSet("same name")
		if err != nil {
			t.Fatalf("CreateSet returned an unexpected error: %v", err)
		}
		if seen[id] {
			t.Fatalf("Duplicate set id %q", id)
		}
		seen[id] = true
	}
}

func TestRenameSet(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	s.Load()
	id, _ := s.CreateSet("Old")

	if err := s.RenameSet(id, "Question Set 1"); err != nil {
		t.Fatalf("RenameSet returned an unexpected error: %v", err)
	}
	if set, _ := s.Lookup(id); set.Name != "Question Set 1" {
		t.Errorf("Expected rename to allow duplicate names, got %q", set.Name)
	}
	if err := s.RenameSet("missing", "x"); !errors.Is(err, ErrSetNotFound) {
		t.Errorf("Expected ErrSetNotFound, got %v", err)
	}
	if !strings.Contains(b.data[DefaultKey], `"name":"Question Set 1"`) {
		t.Error("Expected rename to be persisted")
	}
}

func TestDeleteOnlySetIsRejected(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(b, nil)
	before := s.Load()
	writes := b.puts

	err := s.DeleteSet(before.ActiveID)
	if !errors.Is(err, ErrLastSet) {
		t.Fatalf("Expected ErrLastSet, got %v", err)
	}
	if after := s.Collection(); !reflect.DeepEqual(before, after) {
		t.Errorf("Expected collection unchanged, before %+v after %+v", before, after)
	}
	if b.puts != writes {
		t.Errorf("Expected no persistence write on rejection")
	}
}

func TestDeleteActiveSetActivatesFirst(t *testing.T) {
	s := newTestStore(newMemBackend(), nil)
	first := s.Load().ActiveID
	second, _ := s.CreateSet("Second")
	third, _ := s.CreateSet("Third")

	if err := s.DeleteSet(third); err != nil {
		t.Fatalf("DeleteSet returned an unexpected error: %v", err)
	}
	if s.ActiveID() != first {
		t.Errorf("Expected first set to become active, got %q", s.ActiveID())
	}

	if err := s.SetActive(second); err != nil {
		t.Fatalf("SetActive returned an unexpected error: %v", err)
	}
	if err := s.DeleteSet(first); err != nil {
		t.Fatalf("DeleteSet returned an unexpected error: %v", err)
	}
	if s.ActiveID() != second {
		t.Errorf("Expected active set to stay %q, got %q", second, s.ActiveID())
	}
	if err := s.DeleteSet(first); !errors.Is(err, ErrSetNotFound) {
		t.Errorf("Expected ErrSetNotFound for deleted set, got %v", err)
	}
}

func TestUpsertQuestionReplacesInPlace(t *testing.T) {
	s := newTestStore(newMemBackend(), nil)
	id := s.Load().ActiveID
	for _, text := range []string{"one", "two", "three"} {
		if err := s.UpsertQuestion(id, -1, question(text)); err != nil {
			t.Fatalf("UpsertQuestion returned an unexpected error: %v", err)
		}
	}

	if err := s.UpsertQuestion(id, 1, question("TWO")); err != nil {
		t.Fatalf("UpsertQuestion returned an unexpected error: %v", err)
	}

	set, _ := s.Active()
	var texts []string
	for _, q := range set.Questions {
		texts = append(texts, q.Text)
	}
	if expected := []string{"one", "TWO", "three"}; !reflect.DeepEqual(texts, expected) {
		t.Errorf("Expected %v, got %v", expected, texts)
	}

	if err := s.UpsertQuestion(id, 99, question("four")); err != nil {
		t.Fatalf("UpsertQuestion returned an unexpected error: %v", err)
	}
	set, _ = s.Active()
	if len(set.Questions) != 4 || set.Questions[3].Text != "four" {
		t.Errorf("Expected out of range index to append, got %+v", set.Questions)
	}

	if err := s.UpsertQuestion("missing", 0, question("x")); !errors.Is(err, ErrSetNotFound) {
		t.Errorf("Expected ErrSetNotFound, got %v", err)
	}
}

func TestDeleteQuestion(t *testing.T) {
	s := newTestStore(newMemBackend(), nil)
	id := s.Load().ActiveID
	for _, text := range []string{"one", "two", "three"} {
		s.UpsertQuestion(id, -1, question(text))
	}

	if err := s.DeleteQuestion(id, 0); err != nil {
		t.Fatalf("DeleteQuestion returned an unexpected error: %v", err)
	}
	if err := s.DeleteQuestion(id, 5); err != nil {
		t.Fatalf("DeleteQuestion out of range returned an error: %v", err)
	}

	set, _ := s.Active()
	if len(set.Questions) != 2 || set.Questions[0].Text != "two" || set.Questions[1].Text != "three" {
		t.Errorf("Unexpected questions after delete: %+v", set.Questions)
	}
}

func TestReturnedSetsAreCopies(t *testing.T) {
	s := newTestStore(newMemBackend(), nil)
	id := s.Load().ActiveID
	s.UpsertQuestion(id, -1, question("original"))

	set, _ := s.Active()
	set.Questions[0].Text = "mutated"
	set.Questions[0].Correct[0] = 4

	again, _ := s.Active()
	if again.Questions[0].Text != "original" || again.Questions[0].Correct[0] != 1 {
		t.Errorf("Store state was mutated through a returned copy: %+v", again.Questions[0])
	}
}

func TestStoreOverSQLite(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "sets.db"))
	if err != nil {
		t.Fatalf("storage.Open returned an unexpected error: %v", err)
	}
	defer db.Close()

	s := newTestStore(db, nil)
	id := s.Load().ActiveID
	if err := s.UpsertQuestion(id, -1, question("persisted")); err != nil {
		t.Fatalf("UpsertQuestion returned an unexpected error: %v", err)
	}

	c := newTestStore(db, nil).Load()
	if len(c.Sets) != 1 || len(c.Sets[0].Questions) != 1 || c.Sets[0].Questions[0].Text != "persisted" {
		t.Errorf("Expected question to survive reload through sqlite, got %+v", c.Sets)
	}
}
