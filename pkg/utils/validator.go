package utils

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sefazor/bnpl-checkout/internal/models"
)

// SupportedCurrencies are the ISO 4217 codes the checkout providers accept.
var SupportedCurrencies = map[string]bool{
	"AED": true,
	"SAR": true,
	"KWD": true,
	"BHD": true,
	"QAR": true,
	"EGP": true,
	"USD": true,
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Amounts are validated as numbers so gt/gte/lte work on decimals.
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterValidation("supported_currency", validateCurrency)
	v.RegisterStructValidation(validateAmountPrecision, models.PaymentRequest{})

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

func validateCurrency(fl validator.FieldLevel) bool {
	return SupportedCurrencies[fl.Field().String()]
}

// validateAmountPrecision rejects amounts finer than the currency's minor unit,
// which providers would otherwise round away.
func validateAmountPrecision(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.PaymentRequest)
	if !models.FitsCurrency(req.Amount, req.Currency) {
		sl.ReportError(req.Amount, "Amount", "amount", "currency_precision", req.Currency)
	}
	for i, item := range req.Items {
		if !models.FitsCurrency(item.UnitPrice, req.Currency) {
			sl.ReportError(item.UnitPrice, fmt.Sprintf("Items[%d].UnitPrice", i), "unit_price", "currency_precision", req.Currency)
		}
	}
}
