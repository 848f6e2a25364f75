package pricing

import (
	"farmacia/internal/core/apperror"
	"farmacia/internal/core/types"
)

// ValidateMarkup checks markup against the bounds of cfg.
// The first failing check wins: missing config, zero, minimum, maximum.
func ValidateMarkup(markup types.Markup, cfg *GlobalPricingConfig) error {
	if cfg == nil {
		return apperror.NewConfigNotFound()
	}

	if markup.IsZero() && !cfg.AllowZeroMarkup {
		return apperror.NewMarkupViolation(apperror.CodeZeroNotAllowed, "Zero markup is not allowed").
			WithDetail("value", markup.String())
	}

	if markup.LessThan(cfg.MinMarkup) {
		return apperror.NewMarkupViolation(apperror.CodeBelowMinimum, "Markup is below the configured minimum").
			WithDetail("value", markup.String()).
			WithDetail("min", cfg.MinMarkup.String())
	}

	if markup.GreaterThan(cfg.MaxMarkup) {
		return apperror.NewMarkupViolation(apperror.CodeAboveMaximum, "Markup is above the configured maximum").
			WithDetail("value", markup.String()).
			WithDetail("max", cfg.MaxMarkup.String())
	}

	return nil
}

// ViolationKind maps err to the kind reported for a failed batch item.
// Policy and arithmetic codes pass through; anything else is a persistence failure.
func ViolationKind(err error) string {
	switch code := apperror.Code(err); code {
	case apperror.CodeInvalidInput,
		apperror.CodeConfigNotFound,
		apperror.CodeZeroNotAllowed,
		apperror.CodeBelowMinimum,
		apperror.CodeAboveMaximum,
		apperror.CodeCancelled:
		return code
	default:
		return apperror.CodePersistence
	}
}
