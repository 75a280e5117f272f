package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCatalog      = errors.New("catalog has no questions")
	ErrDuplicateQuestion = errors.New("duplicate question id")
	ErrBlankQuestionID   = errors.New("question id is blank")
	ErrInvalidDocument   = errors.New("catalog document is invalid")
)

// ConfigurationError reports a catalog that cannot be used. It is fatal at
// startup.
type ConfigurationError struct {
	Catalog    string
	Section    int
	QuestionID string
	Err        error
}

func (e *ConfigurationError) Error() string {
	msg := "catalog"
	if e.Catalog != "" {
		msg = fmt.Sprintf("catalog %q", e.Catalog)
	}
	switch {
	case e.QuestionID != "":
		return fmt.Sprintf("%s: section %d: %v: %s", msg, e.Section, e.Err, e.QuestionID)
	case errors.Is(e.Err, ErrBlankQuestionID):
		return fmt.Sprintf("%s: section %d: %v", msg, e.Section, e.Err)
	default:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
