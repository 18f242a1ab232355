package services

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// Checks a single answer against its question's type and validation rules.
type ResponseValidator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func NewResponseValidator() *ResponseValidator {
	return &ResponseValidator{programs: map[string]*vm.Program{}}
}

// Validate returns a Validation fault for a bad answer and an Internal fault for a
// rule that cannot be evaluated. Clearing an answer (nil value) is always valid.
func (v *ResponseValidator) Validate(q models.Question, value models.ResponseValue) error {
	switch val := value.(type) {
	case nil:
		return nil
	case models.FileRef:
		if !q.Type.AcceptsFile() {
			return fault.NewValidationError(fmt.Sprintf("question %s does not accept files", q.ID), nil)
		}
		return nil
	case models.TextValue:
		if q.Type.AcceptsFile() {
			return fault.NewValidationError(fmt.Sprintf("question %s expects a file", q.ID), nil)
		}
		return v.validateText(q, string(val))
	default:
		return fault.NewValidationError("unsupported response value", nil)
	}
}

func (v *ResponseValidator) validateText(q models.Question, text string) error {
	switch q.Type {
	case models.QuestionDropdown, models.QuestionMultipleChoice:
		if len(q.Options) > 0 && !slices.Contains(q.Options, text) {
			return fault.NewValidationError(fmt.Sprintf("%q is not an option of question %s", text, q.ID), nil)
		}
	case models.QuestionEmail:
		if _, err := mail.ParseAddress(text); err != nil {
			return fault.NewValidationError(fmt.Sprintf("question %s expects an email address", q.ID), err)
		}
	case models.QuestionDate:
		if _, err := time.Parse(time.DateOnly, text); err != nil {
			return fault.NewValidationError(fmt.Sprintf("question %s expects a date as YYYY-MM-DD", q.ID), err)
		}
	}

	env := map[string]any{
		"value":  text,
		"length": utf8.RuneCountInString(text),
	}

	for _, rule := range q.ValidationRules {
		ok, err := v.evaluate(rule.Expression, env)
		if err != nil {
			return fault.NewInternalError(fmt.Sprintf("validation rule of question %s could not be evaluated", q.ID), err)
		}
		if !ok {
			msg := rule.Message
			if msg == "" {
				msg = fmt.Sprintf("answer to question %s is not valid", q.ID)
			}
			return fault.NewValidationError(msg, nil)
		}
	}

	return nil
}

func (v *ResponseValidator) evaluate(expression string, env map[string]any) (bool, error) {
	program, err := v.compile(expression, env)
	if err != nil {
		return false, err
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)
	if !ok {
		return false, errors.New("expression did not return a boolean")
	}

	return result, nil
}

func (v *ResponseValidator) compile(expression string, env map[string]any) (*vm.Program, error) {
	v.mu.RLock()
	program, ok := v.programs[expression]
	v.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.programs[expression] = program
	v.mu.Unlock()
	return program, nil
}
