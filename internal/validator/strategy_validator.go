package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yourorg/strategy-catalog/internal/model"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()

	// Report json field names so errors match what clients send
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ValidateName validates a strategy name after trimming
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &model.ValidationError{Field: "name", Message: "name must not be empty"}
	}
	return nil
}

// ValidateDraft validates a strategy before it is sent to the remote store
func ValidateDraft(draft *model.StrategyDraft) error {
	if err := ValidateName(draft.Name); err != nil {
		return err
	}

	for i := range draft.Blocks {
		if draft.Blocks[i].Kind == "" {
			draft.Blocks[i].Kind = model.InferBlockKind(draft.Blocks[i].ID)
		}
	}

	if err := validate.Struct(draft); err != nil {
		return toValidationError(err)
	}

	return nil
}

// ValidateStruct validates any struct carrying validate tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return toValidationError(err)
	}
	return nil
}

// toValidationError reports the first failing field
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &model.ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return &model.ValidationError{
		Field:   field,
		Message: describe(fe),
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
