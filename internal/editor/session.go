// Package editor holds the transient state of the question being authored.
// Nothing here is persisted; saving goes through the sets store.
package editor

import (
	"strings"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/conorfennell/quizgen/internal/reconcile"
	"github.com/conorfennell/quizgen/internal/sets"
)

// NewQuestion is the editing index used when no stored question is being edited.
const NewQuestion = -1

// Session is the in-progress question plus the live similarity matches.
type Session struct {
	Text         string            `json:"question"`
	Choices      [4]string         `json:"choices"`
	Toggles      reconcile.Toggles `json:"correctToggles"`
	TimeLimit    int               `json:"timeLimit"`
	EditingIndex int               `json:"editingIndex"`
	Matches      []domain.Question `json:"similar"`
}

// NewSession returns a session with every field at its default.
func NewSession() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// Reset clears all fields and leaves edit mode.
func (s *Session) Reset() {
	s.Text = ""
	s.Choices = [4]string{}
	s.Toggles = reconcile.DefaultToggles()
	s.TimeLimit = domain.DefaultTimeLimit
	s.EditingIndex = NewQuestion
	s.Matches = nil
}

// SetText updates the question text and recomputes similar questions
// against existing.
func (s *Session) SetText(text string, existing []domain.Question) {
	s.Text = text
	s.Refresh(existing)
}

// SetChoice sets choice i (0-based). Out of range is ignored.
func (s *Session) SetChoice(i int, text string) {
	if i >= 0 && i < len(s.Choices) {
		s.Choices[i] = text
	}
}

// SetTimeLimit stores a clamped time limit.
func (s *Session) SetTimeLimit(n int) {
	s.TimeLimit = domain.ClampTimeLimit(n)
}

// Toggle flips the correctness of choice i (0-based); choice 1 stays correct.
func (s *Session) Toggle(i int) {
	s.Toggles.Toggle(i)
}

// Editing reports whether a stored question is being overwritten.
func (s *Session) Editing() bool {
	return s.EditingIndex >= 0
}

// CanSave reports whether the required fields are filled in.
func (s *Session) CanSave() bool {
	return strings.TrimSpace(s.Text) != "" &&
		strings.TrimSpace(s.Choices[0]) != "" &&
		strings.TrimSpace(s.Choices[1]) != ""
}

// Record builds the question that Save would store.
func (s *Session) Record() domain.Question {
	var choices [4]string
	for i, c := range s.Choices {
		choices[i] = strings.TrimSpace(c)
	}
	return domain.Question{
		Text:      strings.TrimSpace(s.Text),
		Choice1:   choices[0],
		Choice2:   choices[1],
		Choice3:   choices[2],
		Choice4:   choices[3],
		Correct:   reconcile.Correct(s.Toggles, choices),
		TimeLimit: domain.ClampTimeLimit(s.TimeLimit),
	}
}

// Save stores the question into the active set of store and resets the
// session. It reports false, without error, when validation refuses the save.
func (s *Session) Save(store *sets.Store) (bool, error) {
	if !s.CanSave() {
		return false, nil
	}
	q := s.Record()
	if err := domain.Validate(q); err != nil {
		return false, nil
	}
	if err := store.UpsertQuestion(store.ActiveID(), s.EditingIndex, q); err != nil {
		return false, err
	}
	s.Reset()
	return true, nil
}

// Edit loads question index of the active set into the session.
// It reports false when there is no such question.
func (s *Session) Edit(store *sets.Store, index int) bool {
	set, ok := store.Active()
	if !ok || index < 0 || index >= len(set.Questions) {
		return false
	}
	q := set.Questions[index]
	s.Text = q.Text
	s.Choices = q.Choices()
	s.TimeLimit = q.TimeLimit
	if s.TimeLimit == 0 {
		s.TimeLimit = domain.DefaultTimeLimit
	}
	s.Toggles = reconcile.TogglesFrom(q.Correct)
	s.EditingIndex = index
	s.Matches = Similar(q.Text, set.Questions)
	return true
}

// Cancel abandons the current edit.
func (s *Session) Cancel() {
	s.Reset()
}

// DeleteQuestion removes question index from the active set. If that
// question was being edited the session is reset; if an earlier question
// goes, the editing index follows its question down. Matches are
// recomputed against what remains.
func (s *Session) DeleteQuestion(store *sets.Store, index int) error {
	set, ok := store.Active()
	if !ok {
		return sets.ErrSetNotFound
	}
	if index < 0 || index >= len(set.Questions) {
		return nil
	}
	if err := store.DeleteQuestion(set.ID, index); err != nil {
		return err
	}
	switch {
	case s.EditingIndex == index:
		s.Reset()
	case index < s.EditingIndex:
		s.EditingIndex--
	}
	if set, ok := store.Active(); ok {
		s.Refresh(set.Questions)
	}
	return nil
}

// Refresh recomputes the similar questions for the current text against
// existing. Call it whenever the active set or its questions change.
func (s *Session) Refresh(existing []domain.Question) {
	s.Matches = Similar(s.Text, existing)
}

// Similar returns the questions whose text contains query, ignoring case.
// An empty query matches nothing.
func Similar(query string, questions []domain.Question) []domain.Question {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var matches []domain.Question
	for _, q := range questions {
		if strings.Contains(strings.ToLower(q.Text), query) {
			matches = append(matches, q)
		}
	}
	return matches
}
