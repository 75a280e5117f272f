package assessment

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedAnswer = errors.New("malformed answer token")
	ErrUnknownQuestion = errors.New("unknown question id")
	ErrUnknownAction   = errors.New("unknown navigation action")
)

// AnswerError describes one submitted entry that was not merged
type AnswerError struct {
	QuestionID string `json:"question_id"`
	Token      string `json:"token"`
	Err        error  `json:"-"`
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("question %s: %v: %q", e.QuestionID, e.Err, e.Token)
}

func (e *AnswerError) Unwrap() error {
	return e.Err
}

// Reason returns the short reason used in API payloads
func (e *AnswerError) Reason() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
