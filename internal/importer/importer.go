// Package importer bulk-loads questions from text files into a set.
package importer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/conorfennell/quizgen/internal/domain"
	"github.com/conorfennell/quizgen/internal/fingerprint"
	"github.com/conorfennell/quizgen/internal/parser"
	"github.com/conorfennell/quizgen/internal/sets"
)

// Report summarizes one import run.
type Report struct {
	Parsed     int
	Added      int
	Duplicates int
	Errors     []error
}

// Import reads every .md and .txt file under path (a file or a directory)
// and appends the questions to set setID. Questions already present in the
// set, compared by fingerprint, are skipped. Invalid questions are reported
// and skipped; they do not stop the import.
func Import(store *sets.Store, setID, path string) (Report, error) {
	var report Report

	set, ok := store.Lookup(setID)
	if !ok || set.ID != setID {
		return report, fmt.Errorf("import into %s: %w", setID, sets.ErrSetNotFound)
	}

	known := make(map[string]bool, len(set.Questions))
	for _, q := range set.Questions {
		known[fingerprint.Hash(q)] = true
	}

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isQuestionFile(d.Name()) {
			return nil
		}

		drafts, parseErr := parser.ParseFile(p)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", p, parseErr))
			return nil
		}
		for _, draft := range drafts {
			report.Parsed++
			q := draft.Question()
			if err := domain.Validate(q); err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("%s:%d: %w", p, draft.Line, err))
				continue
			}

			hash := fingerprint.Hash(q)
			if known[hash] {
				slog.Debug("Duplicate question, skipping", "file", p, "line", draft.Line)
				report.Duplicates++
				continue
			}
			known[hash] = true

			if err := store.UpsertQuestion(setID, -1, q); err != nil {
				return err
			}
			report.Added++
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking %s: %w", path, walkErr)
	}

	slog.Info("import complete",
		"path", path,
		"parsed", report.Parsed,
		"added", report.Added,
		"duplicates", report.Duplicates,
		"errors", len(report.Errors),
	)
	return report, nil
}

func isQuestionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".txt"
}
