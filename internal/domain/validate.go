package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidQuestion wraps every validation failure reported by Validate.
var ErrInvalidQuestion = errors.New("invalid question")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Trimmed returns a copy of q with surrounding whitespace removed from
// the question text and every choice.
func (q Question) Trimmed() Question {
	q.Text = strings.TrimSpace(q.Text)
	q.Choice1 = strings.TrimSpace(q.Choice1)
	q.Choice2 = strings.TrimSpace(q.Choice2)
	q.Choice3 = strings.TrimSpace(q.Choice3)
	q.Choice4 = strings.TrimSpace(q.Choice4)
	return q
}

// Validate checks field presence on the trimmed question: text, choice 1
// and choice 2 must be non-empty, the time limit must be in range and the
// correct indices must name choices 1 to 4.
func Validate(q Question) error {
	err := validate.Struct(q.Trimmed())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrInvalidQuestion, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
}
