package safety

import (
	"fmt"
	"math"
	"strings"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Validator provides defensive validation for snapshot fields before they
// reach the risk calculations. Malformed upstream data (NaN prices, negative
// balances) is caught here rather than surfacing as nonsense decisions.
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePrice validates a price value from a market or signal snapshot
func (v *Validator) ValidatePrice(price float64, symbol string) ValidationResult {
	if math.IsNaN(price) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid price for %s: price is NaN", symbol),
			Code:    "INVALID_PRICE_NAN",
		}
	}

	if math.IsInf(price, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid price for %s: price is infinite", symbol),
			Code:    "INVALID_PRICE_INF",
		}
	}

	if price <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid price %.8f for %s: price must be positive", price, symbol),
			Code:    "INVALID_PRICE_NEGATIVE",
		}
	}

	// Bounds that catch obvious upstream data errors
	if price > 1e10 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious price %.8f for %s: exceeds reasonable bounds", price, symbol),
			Code:    "PRICE_OUT_OF_BOUNDS",
		}
	}

	if price < 1e-8 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious price %.8f for %s: below reasonable bounds", price, symbol),
			Code:    "PRICE_TOO_SMALL",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateQuantity validates a position or order quantity
func (v *Validator) ValidateQuantity(quantity float64, symbol string) ValidationResult {
	if math.IsNaN(quantity) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity for %s: quantity is NaN", symbol),
			Code:    "INVALID_QUANTITY_NAN",
		}
	}

	if math.IsInf(quantity, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity for %s: quantity is infinite", symbol),
			Code:    "INVALID_QUANTITY_INF",
		}
	}

	if quantity <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity %.8f for %s: quantity must be positive", quantity, symbol),
			Code:    "INVALID_QUANTITY_NEGATIVE",
		}
	}

	if quantity > 1e12 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious quantity %.8f for %s: exceeds reasonable bounds", quantity, symbol),
			Code:    "QUANTITY_OUT_OF_BOUNDS",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateEquity validates an account equity or balance value
func (v *Validator) ValidateEquity(equity float64) ValidationResult {
	if math.IsNaN(equity) {
		return ValidationResult{
			Valid:   false,
			Message: "equity is NaN",
			Code:    "EQUITY_NAN",
		}
	}

	if math.IsInf(equity, 0) {
		return ValidationResult{
			Valid:   false,
			Message: "equity is infinite",
			Code:    "EQUITY_INF",
		}
	}

	if equity < 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("equity %.8f cannot be negative", equity),
			Code:    "EQUITY_NEGATIVE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateFraction validates a value expected to lie within [min, max],
// typically a percentage expressed as a fraction.
func (v *Validator) ValidateFraction(value, min, max float64, context string) ValidationResult {
	if math.IsNaN(value) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s is NaN", context),
			Code:    "FRACTION_NAN",
		}
	}

	if value < min {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s %.4f below minimum %.4f", context, value, min),
			Code:    "FRACTION_BELOW_MIN",
		}
	}

	if value > max {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s %.4f above maximum %.4f", context, value, max),
			Code:    "FRACTION_ABOVE_MAX",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateSymbol validates a trading symbol format
func (v *Validator) ValidateSymbol(symbol string) ValidationResult {
	if symbol == "" {
		return ValidationResult{
			Valid:   false,
			Message: "symbol cannot be empty",
			Code:    "SYMBOL_EMPTY",
		}
	}

	symbol = strings.TrimSpace(symbol)
	if len(symbol) < 3 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("symbol '%s' too short: minimum 3 characters required", symbol),
			Code:    "SYMBOL_TOO_SHORT",
		}
	}

	if len(symbol) > 20 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("symbol '%s' too long: maximum 20 characters allowed", symbol),
			Code:    "SYMBOL_TOO_LONG",
		}
	}

	for _, char := range symbol {
		if !((char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("symbol '%s' contains invalid characters: only alphanumeric allowed", symbol),
				Code:    "SYMBOL_INVALID_CHARS",
			}
		}
	}

	return ValidationResult{Valid: true}
}

// SafeDivision performs division with zero and NaN checks
func (v *Validator) SafeDivision(dividend, divisor float64) (float64, error) {
	if divisor == 0 {
		return 0, fmt.Errorf("division by zero: %.8f / %.8f", dividend, divisor)
	}

	if math.IsNaN(dividend) || math.IsNaN(divisor) {
		return 0, fmt.Errorf("division with NaN: %.8f / %.8f", dividend, divisor)
	}

	if math.IsInf(dividend, 0) || math.IsInf(divisor, 0) {
		return 0, fmt.Errorf("division with infinity: %.8f / %.8f", dividend, divisor)
	}

	result := dividend / divisor

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("division resulted in invalid value: %.8f / %.8f = %.8f",
			dividend, divisor, result)
	}

	return result, nil
}
