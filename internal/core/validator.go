package core

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"raincheck/internal/types"
)

// gameDateLayout is the request date format.
const gameDateLayout = "2006-01-02"

// ValidationError describes one failed rule using the JSON field name.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects every failure of one struct.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsValid reports whether no rule failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// fieldCodes assigns request-field specific codes; feature columns are
// resolved through types.IsFeatureColumn.
var fieldCodes = map[string]types.ErrorCode{
	"game_date":    types.ErrCodeValidationInvalidDate,
	"game_hour":    types.ErrCodeValidationInvalidGameHour,
	"hours_before": types.ErrCodeValidationInvalidWindow,
	"hours_after":  types.ErrCodeValidationInvalidWindow,
}

// Validator wraps go-playground/validator with the raincheck tags:
//
//	game_date  string in YYYY-MM-DD form naming a real calendar day
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator that reports JSON field names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("game_date", validateGameDate); err != nil {
		panic(fmt.Sprintf("registering game_date validation: %v", err))
	}

	return &Validator{validate: v, logger: logger}
}

func validateGameDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true // "required" decides
	}
	_, err := time.Parse(gameDateLayout, s)
	return err == nil
}

// ValidateStruct returns nil or an *types.AppError whose code is that of the
// first failure and whose details list every failure under
// "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings returns all failures without short-circuiting.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		if v.logger != nil {
			v.logger.Error("validator misuse", "error", err, "type", fmt.Sprintf("%T", s))
		}
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeValidationInvalidValue),
			Message: "request could not be validated",
		}}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    string(codeFor(fe)),
			Message: messageFor(fe),
		})
	}
	return ValidationResult{Errors: out}
}

func codeFor(fe validator.FieldError) types.ErrorCode {
	if fe.Tag() == "required" {
		return types.ErrCodeValidationMissingField
	}
	if code, ok := fieldCodes[fe.Field()]; ok {
		return code
	}
	if types.IsFeatureColumn(fe.Field()) {
		return types.ErrCodeValidationInvalidFeatures
	}
	return types.ErrCodeValidationInvalidValue
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "game_date":
		return fmt.Sprintf("%s must be a valid date in YYYY-MM-DD format", fe.Field())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag())
	}
}
