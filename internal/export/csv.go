// Package export renders a question set in the Blooket import template.
package export

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/conorfennell/quizgen/internal/domain"
)

// ErrEmptySet is returned when a set has no questions to export.
var ErrEmptySet = errors.New("question set has no questions")

// Header is the fixed template header. It is two CSV records spread over
// seven physical lines because several labels contain quoted newlines.
const Header = "\"Blooket\n" +
	"Import Template\",,,,,,,\n" +
	"Question #,Question Text,Answer 1,Answer 2,\"Answer 3\n" +
	"(Optional)\",\"Answer 4\n" +
	"(Optional)\",\"Time Limit (sec)\n" +
	"(Max: 300 seconds)\",\"Correct Answer(s)\n" +
	"(Only include Answer #)\"\n"

// QuoteField always quotes s and doubles any embedded double quotes.
func QuoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CorrectField formats the correct-answer column: a bare number for one
// answer, a quoted comma-joined list for several. Indices are normalized
// first, so duplicates and values outside 1..4 are dropped and an empty
// list falls back to 1.
func CorrectField(correct []int) string {
	nums := domain.NormalizeCorrect(correct)
	if len(nums) == 1 {
		return strconv.Itoa(nums[0])
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return `"` + strings.Join(parts, ",") + `"`
}

// Row renders question q as data row number n (1-based).
func Row(n int, q domain.Question) string {
	timeLimit := q.TimeLimit
	if timeLimit == 0 {
		timeLimit = domain.DefaultTimeLimit
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(n))
	for _, field := range []string{q.Text, q.Choice1, q.Choice2, q.Choice3, q.Choice4} {
		b.WriteByte(',')
		b.WriteString(QuoteField(field))
	}
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(timeLimit))
	b.WriteByte(',')
	b.WriteString(CorrectField(q.Correct))
	b.WriteByte('\n')
	return b.String()
}

// WriteCSV writes the header and one row per question to w.
// Nothing is written for an empty set.
func WriteCSV(w io.Writer, set domain.QuestionSet) error {
	if len(set.Questions) == 0 {
		return ErrEmptySet
	}
	if _, err := io.WriteString(w, Header); err != nil {
		return err
	}
	for i, q := range set.Questions {
		if _, err := io.WriteString(w, Row(i+1, q)); err != nil {
			return err
		}
	}
	return nil
}

// CSV renders set in memory. ok is false for an empty set.
func CSV(set domain.QuestionSet) (data []byte, ok bool) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, set); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// Filename derives the download name from the set name, defaulting to
// "questions" when the name is empty.
func Filename(name, ext string) string {
	if name == "" {
		name = "questions"
	}
	return name + "." + ext
}
