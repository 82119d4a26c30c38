package models

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"studentmarket/app/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages match what API clients send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		_, ok := ParsePrice(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}

	v.RegisterStructValidation(listingPriceMatchesType, Listing{})
	return v
}

// listingPriceMatchesType enforces that price is present exactly for selling listings.
func listingPriceMatchesType(sl validator.StructLevel) {
	l := sl.Current().Interface().(Listing)
	switch {
	case l.Type == Selling && l.Price == nil:
		sl.ReportError(l.Price, "price", "Price", "required_if", "selling")
	case l.Type == Looking && l.Price != nil:
		sl.ReportError(l.Price, "price", "Price", "excluded_if", "looking")
	}
}

// ParsePrice parses a non-negative, finite price string.
func ParsePrice(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// toAppError turns the first validator failure into an apperror.
func toAppError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}

	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required", "required_if":
		msg = fmt.Sprintf("%s is required", field)
	case "excluded_if":
		msg = fmt.Sprintf("%s must be empty for %s listings", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s allows at most %s entries", field, fe.Param())
	case "price":
		msg = fmt.Sprintf("%s must be a non-negative number", field)
	case "datauri":
		msg = fmt.Sprintf("%s must be an inline data URI", fe.Namespace())
	default:
		msg = fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
	return apperror.ValidationFailed(field, msg)
}
