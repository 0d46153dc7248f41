package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// TicketDraft is the create-ticket form.
type TicketDraft struct {
	Title          string   `json:"title" validate:"notblank"`
	Description    string   `json:"description" validate:"notblank"`
	Priority       Priority `json:"priority" validate:"oneof=low medium high critical"`
	EstimatedHours float64  `json:"estimated_hours" validate:"gte=1"`
}

func NewTicketDraft() TicketDraft {
	return TicketDraft{Priority: PriorityMedium, EstimatedHours: 8}
}

// CompletionForm carries the metrics submitted when a ticket is completed.
type CompletionForm struct {
	CompletionTime float64 `json:"completion_time" validate:"gt=0"`
	Revisions      int     `json:"revisions" validate:"gte=0"`
	SentimentScore float64 `json:"sentiment_score" validate:"gte=0,lte=1"`
}

func NewCompletionForm() CompletionForm {
	return CompletionForm{CompletionTime: 10, Revisions: 0, SentimentScore: 0.8}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		}); err != nil {
			panic("failed to register notblank validation: " + err.Error())
		}
		validate = v
	})
	return validate
}

// ValidateForm checks struct tags and reports the first violation as a *ValidationError.
func ValidateForm(form any) error {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return "is invalid"
	}
}
