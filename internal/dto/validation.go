package dto

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/servio/pkg/errorbank"
)

// MaxItemQuantity caps a single order line.
const MaxItemQuantity = 50

// Validatable is implemented by every request payload.
type Validatable interface {
	Validate() error
}

// Check runs req.Validate and converts failures into a ValidationFailed error
// whose details map field names to messages.
func Check(req Validatable) error {
	err := req.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		flatten("", fieldErrs, details)
		return errorbank.ValidationFailed("validation failed", errorbank.WithDetails(details))
	}

	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.ValidationFailed(err.Error())
}

func flatten(prefix string, errs validation.Errors, out map[string]any) {
	for field, err := range errs {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(key, nested, out)
			continue
		}
		out[key] = err.Error()
	}
}

var positiveDecimal = validation.By(func(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if !d.IsPositive() {
		return errors.New("must be greater than zero")
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return errors.New("must have at most two decimal places")
	}
	return nil
})

func stringIn(values ...string) validation.Rule {
	in := make([]any, len(values))
	for i, v := range values {
		in[i] = v
	}
	return validation.In(in...)
}
