// Package reconcile turns the per-choice correctness toggles shown in the
// editor into the canonical list of correct answer indices.
package reconcile

import (
	"sort"
	"strings"
)

// Toggles holds one correctness flag per choice position (0-based).
// Position 0 is the correct-answer slot and is always true.
type Toggles [4]bool

// DefaultToggles marks only the first choice as correct.
func DefaultToggles() Toggles {
	return Toggles{true, false, false, false}
}

// Toggle flips the flag at position i and re-asserts position 0.
// Out of range positions only re-assert position 0.
func (t *Toggles) Toggle(i int) {
	if i >= 0 && i < len(t) {
		t[i] = !t[i]
	}
	t[0] = true
}

// TogglesFrom rebuilds toggles from stored 1-based correct indices.
func TogglesFrom(correct []int) Toggles {
	t := DefaultToggles()
	for _, n := range correct {
		if n >= 2 && n <= 4 {
			t[n-1] = true
		}
	}
	return t
}

// Correct computes the ascending, duplicate-free correct indices in 1..4.
// Index 1 is included whenever choice 1 has text; indices 2 to 4 need both
// the toggle and non-empty choice text.
func Correct(t Toggles, choices [4]string) []int {
	var res []int
	if strings.TrimSpace(choices[0]) != "" {
		res = append(res, 1)
	}
	for i := 1; i < 4; i++ {
		if t[i] && strings.TrimSpace(choices[i]) != "" {
			res = append(res, i+1)
		}
	}

	seen := make(map[int]bool, len(res))
	out := res[:0]
	for _, n := range res {
		if n < 1 || n > 4 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
