package evaluation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"pitch-recorder/dto"
)

// Evaluation is the validated shape of a webhook result.
type Evaluation struct {
	Input      string         `mapstructure:"input" validate:"required" json:"input"`
	Output     string         `mapstructure:"output" validate:"required" json:"output"`
	Extra      map[string]any `mapstructure:",remain" json:"extra,omitempty"`
	Transcript string         `mapstructure:"-" json:"transcript"`
}

type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid evaluation result: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// Parse decodes and validates a webhook result. input and output must be
// non-empty strings.
func Parse(result dto.WebhookResult) (*Evaluation, error) {
	if result == nil {
		return nil, &ValidationError{Err: errors.New("result must be an object")}
	}

	var ev Evaluation
	if err := mapstructure.Decode(map[string]any(result), &ev); err != nil {
		return nil, &ValidationError{Err: err}
	}
	ev.Input = strings.TrimSpace(ev.Input)
	ev.Output = strings.TrimSpace(ev.Output)
	if err := validate.Struct(&ev); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			missing := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				missing = append(missing, strings.ToLower(fe.Field()))
			}
			return nil, &ValidationError{Err: fmt.Errorf("missing or empty fields: %s", strings.Join(missing, ", "))}
		}
		return nil, &ValidationError{Err: err}
	}

	ev.Transcript = ParseSrtToText(ev.Input)
	if ev.Transcript == "" {
		ev.Transcript = ev.Input
	}
	return &ev, nil
}
