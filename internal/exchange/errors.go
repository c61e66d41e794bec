package exchange

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

var (
	// ErrExchangeRateService matches every failure to obtain a rate from the
	// upstream service, including a missing target currency.
	ErrExchangeRateService = errors.New("exchange rate service error")
	// ErrInvalidCurrency is returned when a currency code is empty.
	ErrInvalidCurrency = errors.New("currency code is required")
)

// ServiceError reports an unreachable upstream, a non-success status or an
// empty response body. Status is zero for transport failures.
type ServiceError struct {
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the transport cause, if any.
func (e *ServiceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrExchangeRateService) match.
func (e *ServiceError) Is(target error) bool { return target == ErrExchangeRateService }

// CurrencyNotFoundError is returned when the upstream rate table for the base
// currency has no entry for the requested target.
type CurrencyNotFoundError struct {
	Currency string
}

func (e *CurrencyNotFoundError) Error() string {
	return "target currency not found in exchange rates: " + e.Currency
}

// Is lets errors.Is(err, ErrExchangeRateService) match.
func (e *CurrencyNotFoundError) Is(target error) bool { return target == ErrExchangeRateService }

func statusError(status int, statusText string) *ServiceError {
	return &ServiceError{
		Status:  status,
		Message: "failed to retrieve exchange rates from the API. Status: " + statusText,
	}
}

func invalidRateError(target string, rate decimal.Decimal) *ServiceError {
	return &ServiceError{Message: "invalid exchange rate for " + target + ": " + rate.String()}
}

// transportError drops the request URL from err since it embeds the API key.
func transportError(err error) *ServiceError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return &ServiceError{Message: "error occurred while fetching exchange rates", Err: err}
}
