// Package fingerprint identifies questions independent of case and spacing.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/quizgen/internal/domain"
)

// Normalize concatenates the question's text and choices after cleaning
// each part. It trims whitespace, lowercases, and normalizes line endings
// for each field before joining them.
func Normalize(q domain.Question) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := []string{normalizePart(q.Text)}
	for _, c := range q.Choices() {
		parts = append(parts, normalizePart(c))
	}
	// Newline separated so "ab"+"c" and "a"+"bc" stay distinct.
	return strings.Join(parts, "\n")
}

// Hash returns the SHA-256 of the normalized question as a hex string.
// Correct answers and time limit are not part of the hash.
func Hash(q domain.Question) string {
	hashBytes := sha256.Sum256([]byte(Normalize(q)))
	return fmt.Sprintf("%x", hashBytes)
}
