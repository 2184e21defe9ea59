package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"stockbrief/internal/billing"
	"stockbrief/internal/types"
)

// tickerPattern is the accepted form of a normalized ticker symbol: upper-case
// letters, dots and dashes (BRK.B, RDS-A), at most 10 characters.
var tickerPattern = regexp.MustCompile(`^[A-Z.\-]{1,10}$`)

// NormalizeSymbol trims and upper-cases a user-supplied ticker.
func NormalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidTicker reports whether symbol, already normalized, is acceptable.
func ValidTicker(symbol string) bool {
	return tickerPattern.MatchString(symbol)
}

// ValidationError is one failed field rule.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the domain tags:
//
//	ticker    - a normalized ticker symbol (see ValidTicker)
//	plan_tier - a known plan name (free, plus, pro), case-insensitive
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return ValidTicker(fl.Field().String())
	})
	_ = v.RegisterValidation("plan_tier", func(fl validator.FieldLevel) bool {
		_, ok := billing.ParsePlan(fl.Field().String())
		return ok
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates s against its `validate` tags. Failures are
// returned as a *types.AppError whose code matches the first failed rule and
// whose details carry every failure under "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if v.logger != nil {
			v.logger.Error("validator misuse", slog.String("error", err.Error()))
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	errs := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   fe.Field(),
			Code:    string(codeForTag(fe.Tag())),
			Message: messageFor(fe),
		})
	}

	return types.NewAppErrorWithDetails(
		types.ErrorCode(errs[0].Code),
		errs[0].Message,
		err,
		map[string]any{"validation_errors": errs},
	)
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required":
		return types.ErrCodeValidationMissingField
	case "ticker":
		return types.ErrCodeValidationInvalidSymbol
	case "plan_tier":
		return types.ErrCodeValidationInvalidPlan
	default:
		return types.ErrCodeValidationInvalidField
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "ticker":
		return fmt.Sprintf("%s must be a ticker symbol of 1-10 letters, dots or dashes", fe.Field())
	case "plan_tier":
		return fmt.Sprintf("%s must be one of free, plus, pro", fe.Field())
	default:
		return fmt.Sprintf("%s failed the %s rule", fe.Field(), fe.Tag())
	}
}
