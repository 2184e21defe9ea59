package core

import (
	"errors"
	"testing"

	"stockbrief/internal/types"
)

type testTickerStruct struct {
	Symbol string `json:"symbol" validate:"required,ticker"`
}

type testPlanStruct struct {
	Plan string `json:"plan" validate:"required,plan_tier"`
}

func TestNormalizeSymbol(t *testing.T) {
	tests := map[string]string{
		" aapl ":  "AAPL",
		"brk.b":   "BRK.B",
		"\trds-a": "RDS-A",
		"":        "",
	}
	for in, want := range tests {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidTicker(t *testing.T) {
	valid := []string{"A", "AAPL", "BRK.B", "RDS-A", "ABCDEFGHIJ"}
	invalid := []string{"", "aapl", "AAPL1", "ABCDEFGHIJK", "AA PL", "AAPL;DROP", "../ETC"}

	for _, s := range valid {
		if !ValidTicker(s) {
			t.Errorf("ValidTicker(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if ValidTicker(s) {
			t.Errorf("ValidTicker(%q) = true, want false", s)
		}
	}
}

func TestValidateStruct_Ticker(t *testing.T) {
	v := NewValidator(testLogger())

	if err := v.ValidateStruct(testTickerStruct{Symbol: "MSFT"}); err != nil {
		t.Errorf("expected MSFT to pass, got %v", err)
	}

	err := v.ValidateStruct(testTickerStruct{Symbol: "MSFT123"})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeValidationInvalidSymbol {
		t.Errorf("code = %q", appErr.Code)
	}
	errs, ok := appErr.Details["validation_errors"].([]ValidationError)
	if !ok || len(errs) != 1 || errs[0].Field != "symbol" {
		t.Errorf("validation_errors = %#v", appErr.Details["validation_errors"])
	}
}

func TestValidateStruct_MissingField(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(testTickerStruct{})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("code = %q", appErr.Code)
	}
	if appErr.HTTPStatus() != 400 {
		t.Errorf("status = %d", appErr.HTTPStatus())
	}
}

func TestValidateStruct_PlanTier(t *testing.T) {
	v := NewValidator(testLogger())

	for _, plan := range []string{"free", "Plus", " PRO "} {
		if err := v.ValidateStruct(testPlanStruct{Plan: plan}); err != nil {
			t.Errorf("plan %q: unexpected error %v", plan, err)
		}
	}

	err := v.ValidateStruct(testPlanStruct{Plan: "enterprise"})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationInvalidPlan {
		t.Errorf("expected invalid plan error, got %v", err)
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct("not a struct")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("expected internal error, got %v", err)
	}
}
