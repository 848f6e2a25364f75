package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmacia/internal/core/apperror"
)

func TestValidateMarkup(t *testing.T) {
	cfg := testGlobal()

	tests := []struct {
		markup string
		code   string
	}{
		{"0", apperror.CodeZeroNotAllowed},
		{"12", apperror.CodeAboveMaximum},
		{"0.5", apperror.CodeBelowMinimum},
		{"10.01", apperror.CodeAboveMaximum},
		{"1.0", ""},
		{"10", ""},
		{"2.5", ""},
	}

	for _, tt := range tests {
		t.Run(tt.markup, func(t *testing.T) {
			err := ValidateMarkup(dec(tt.markup), cfg)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, apperror.Code(err))
		})
	}
}

func TestValidateMarkup_Details(t *testing.T) {
	err := ValidateMarkup(dec("12"), testGlobal())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "markup", appErr.Details["field"])
	assert.Equal(t, "10", appErr.Details["max"])
	assert.Equal(t, "12", appErr.Details["value"])
	assert.Equal(t, 422, appErr.HTTPStatus)
}

func TestValidateMarkup_MissingConfig(t *testing.T) {
	assert.Equal(t, apperror.CodeConfigNotFound, apperror.Code(ValidateMarkup(dec("2"), nil)))
}

func TestValidateMarkup_ZeroAllowed(t *testing.T) {
	cfg := &GlobalPricingConfig{DefaultMarkup: dec("2"), MinMarkup: dec("0"), MaxMarkup: dec("5"), AllowZeroMarkup: true}
	assert.NoError(t, ValidateMarkup(dec("0"), cfg))

	// allowing zero does not bypass a positive minimum
	cfg.MinMarkup = dec("1")
	assert.Equal(t, apperror.CodeBelowMinimum, apperror.Code(ValidateMarkup(dec("0"), cfg)))
}

func TestValidateMarkup_BoundsEquivalence(t *testing.T) {
	configs := []*GlobalPricingConfig{
		testGlobal(),
		{DefaultMarkup: dec("2"), MinMarkup: dec("0"), MaxMarkup: dec("3"), AllowZeroMarkup: true},
		{DefaultMarkup: dec("2"), MinMarkup: dec("0"), MaxMarkup: dec("3")},
		{DefaultMarkup: dec("1.5"), MinMarkup: dec("1.5"), MaxMarkup: dec("1.5")},
	}

	for i, cfg := range configs {
		for m := dec("0"); m.LessThanOrEqual(dec("12")); m = m.Add(dec("0.25")) {
			want := m.GreaterThanOrEqual(cfg.MinMarkup) &&
				m.LessThanOrEqual(cfg.MaxMarkup) &&
				(!m.IsZero() || cfg.AllowZeroMarkup)
			err := ValidateMarkup(m, cfg)
			assert.Equal(t, want, err == nil, "config %d markup %s: %v", i, m, err)
		}
	}
}

func TestViolationKind(t *testing.T) {
	assert.Equal(t, apperror.CodeBelowMinimum, ViolationKind(ValidateMarkup(dec("0.1"), testGlobal())))
	assert.Equal(t, apperror.CodeInvalidInput, ViolationKind(apperror.NewInvalidInput("bad")))
	assert.Equal(t, apperror.CodePersistence, ViolationKind(errors.New("disk full")))
	assert.Equal(t, apperror.CodePersistence, ViolationKind(apperror.NewNotFound("product", "x")))
	assert.Equal(t, apperror.CodePersistence, ViolationKind(apperror.NewConcurrentModification("product", "x")))
}

func TestGlobalPricingConfig_Validate(t *testing.T) {
	assert.NoError(t, testGlobal().Validate())

	bad := &GlobalPricingConfig{DefaultMarkup: dec("0"), MinMarkup: dec("-1"), MaxMarkup: dec("-2")}
	err := bad.Validate()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Len(t, appErr.Details["violations"], 3)
}

func TestCategoryMarkup_Validate(t *testing.T) {
	assert.NoError(t, (&CategoryMarkup{CategoryName: "alopaticos", DefaultMarkup: dec("2")}).Validate())

	err := (&CategoryMarkup{DefaultMarkup: dec("0")}).Validate()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Len(t, appErr.Details["violations"], 2)
}
