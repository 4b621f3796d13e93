package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/conorfennell/quizgen/internal/reconcile"
)

const (
	questionPrefix  = "Q:"
	correctPrefix   = "A:"
	incorrectPrefix = "X:"
	timePrefix      = "T:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingChoices
)

// Draft is a parsed question before it is reconciled into a record.
type Draft struct {
	Text      string
	Choices   []string
	Toggles   reconcile.Toggles
	TimeLimit string
	Line      int
}

// Question converts the draft into a record. Choices beyond the fourth
// are dropped and the first choice is always correct.
func (d Draft) Question() domain.Question {
	var choices [4]string
	for i := 0; i < len(d.Choices) && i < 4; i++ {
		choices[i] = strings.TrimSpace(d.Choices[i])
	}
	timeLimit := domain.DefaultTimeLimit
	if d.TimeLimit != "" {
		timeLimit = domain.ParseTimeLimit(d.TimeLimit)
	}
	return domain.Question{
		Text:      strings.TrimSpace(d.Text),
		Choice1:   choices[0],
		Choice2:   choices[1],
		Choice3:   choices[2],
		Choice4:   choices[3],
		Correct:   reconcile.Correct(d.Toggles, choices),
		TimeLimit: timeLimit,
	}
}

// ParseFile reads a file from the given path and extracts all questions.
func ParseFile(path string) ([]Draft, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads questions written as
//
//	Q: question text (may continue on following lines)
//	A: a correct choice
//	X: an incorrect choice
//	T: 30
//
// Blocks end at the next Q: line or at a "---" separator.
func Parse(r io.Reader) ([]Draft, error) {
	scanner := bufio.NewScanner(r)
	var drafts []Draft
	var current Draft
	var questionLines []string
	currentState := seeking
	lineNo := 0

	finishDraft := func() {
		if len(questionLines) > 0 {
			current.Text = strings.Join(questionLines, "\n")
			questionLines = nil
		}
		if strings.TrimSpace(current.Text) != "" {
			drafts = append(drafts, current)
		}
		current = Draft{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if line == "---" {
			finishDraft()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking { // A new question always starts a new draft
				finishDraft()
			}
			currentState = readingQuestion
			current.Line = lineNo
			questionLines = append(questionLines, content(line, questionPrefix))
		case strings.HasPrefix(line, correctPrefix), strings.HasPrefix(line, incorrectPrefix):
			if currentState == seeking {
				continue
			}
			currentState = readingChoices
			if len(current.Choices) >= 4 {
				return nil, fmt.Errorf("line %d: a question has at most 4 choices", lineNo)
			}
			if strings.HasPrefix(line, correctPrefix) {
				current.Toggles[len(current.Choices)] = true
				current.Choices = append(current.Choices, content(line, correctPrefix))
			} else {
				current.Choices = append(current.Choices, content(line, incorrectPrefix))
			}
		case strings.HasPrefix(line, timePrefix):
			if currentState != seeking {
				currentState = readingChoices
				current.TimeLimit = content(line, timePrefix)
			}
		case currentState == readingQuestion && strings.TrimSpace(line) != "":
			questionLines = append(questionLines, line)
		}
	}

	finishDraft() // Finish the very last question in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return drafts, nil
}

func content(line, prefix string) string {
	c := line[len(prefix):]
	if strings.HasPrefix(c, " ") {
		c = c[1:]
	}
	return c
}
