package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeLimit is used when no usable time limit was given.
	DefaultTimeLimit = 20
	MinTimeLimit     = 1
	MaxTimeLimit     = 60

	// DefaultSetName names the set created for an empty collection.
	DefaultSetName = "Question Set 1"
)

// Question is a single quiz question with up to four answer choices.
// The JSON keys match the persisted layout and must not change.
type Question struct {
	Text      string `json:"q" validate:"required"`
	Choice1   string `json:"a1" validate:"required"`
	Choice2   string `json:"a2" validate:"required"`
	Choice3   string `json:"a3"`
	Choice4   string `json:"a4"`
	Correct   []int  `json:"correct" validate:"required,min=1,dive,min=1,max=4"`
	TimeLimit int    `json:"timeLimit" validate:"min=1,max=60"`
}

// Choices returns the four choice texts in position order.
func (q Question) Choices() [4]string {
	return [4]string{q.Choice1, q.Choice2, q.Choice3, q.Choice4}
}

// QuestionSet is a named, ordered list of questions; the unit of export.
type QuestionSet struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Collection holds every question set plus the one currently being edited.
type Collection struct {
	Sets     []QuestionSet
	ActiveID string
}

// Find returns the position of the set with the given id, or -1.
func (c *Collection) Find(id string) int {
	for i := range c.Sets {
		if c.Sets[i].ID == id {
			return i
		}
	}
	return -1
}

// Active returns the active set, or nil when the collection is empty.
func (c *Collection) Active() *QuestionSet {
	if i := c.Find(c.ActiveID); i >= 0 {
		return &c.Sets[i]
	}
	return nil
}

// ClampTimeLimit forces n into [MinTimeLimit, MaxTimeLimit].
// Zero is treated as "not given" and maps to DefaultTimeLimit.
func ClampTimeLimit(n int) int {
	if n == 0 {
		return DefaultTimeLimit
	}
	if n < MinTimeLimit {
		return MinTimeLimit
	}
	if n > MaxTimeLimit {
		return MaxTimeLimit
	}
	return n
}

// ParseTimeLimit reads a user-typed time limit. Anything that is not a
// number yields DefaultTimeLimit.
func ParseTimeLimit(s string) int {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) {
			return DefaultTimeLimit
		}
		if f > MaxTimeLimit {
			return MaxTimeLimit
		}
		if f < MinTimeLimit && f != 0 {
			return MinTimeLimit
		}
		n = int(f)
	}
	return ClampTimeLimit(n)
}

// NormalizeCorrect returns the correct-answer indices deduplicated, limited
// to 1..4 and sorted. An empty result falls back to [1].
func NormalizeCorrect(correct []int) []int {
	seen := make(map[int]bool, len(correct))
	out := make([]int, 0, len(correct))
	for _, n := range correct {
		if n < 1 || n > 4 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return []int{1}
	}
	sort.Ints(out)
	return out
}

// Clone returns a deep copy of the set.
func (s QuestionSet) Clone() QuestionSet {
	qs := make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Correct = append([]int(nil), q.Correct...)
		qs[i] = q
	}
	s.Questions = qs
	return s
}
