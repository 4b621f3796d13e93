package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// UnmarshalJSON accepts the stored question layout. Hand-edited or older
// data may hold the correct answer as a single number or numeric strings,
// and the time limit as a string, so those fields are read leniently.
// A time limit that cannot be read decodes as 0, which exports as the default.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var raw struct {
		plain
		Correct   json.RawMessage `json:"correct"`
		TimeLimit json.RawMessage `json:"timeLimit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Question(raw.plain)
	q.Correct = decodeIndices(raw.Correct)
	q.TimeLimit = decodeTimeLimit(raw.TimeLimit)
	return nil
}

// UnmarshalJSON accepts the stored set layout. The id may be a number and
// createdAt may be any RFC 3339 string or epoch milliseconds; an unreadable
// createdAt decodes as the zero time instead of failing the whole set.
func (s *QuestionSet) UnmarshalJSON(data []byte) error {
	type plain QuestionSet
	var raw struct {
		plain
		ID        json.RawMessage `json:"id"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = QuestionSet(raw.plain)
	s.ID = decodeID(raw.ID)
	s.CreatedAt = decodeTime(raw.CreatedAt)
	return nil
}

func decodeTimeLimit(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			return 0
		}
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return ParseTimeLimit(s)
	}
	return 0
}

func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeTime(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t
			}
		}
		return time.Time{}
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 && ms < math.MaxInt64/2 {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Time{}
}

func decodeIndices(raw json.RawMessage) []int {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		if n, ok := decodeIndex(raw); ok {
			return []int{n}
		}
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		if n, ok := decodeIndex(item); ok {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeIndex(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), f != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil && n != 0
	}
	return 0, false
}
