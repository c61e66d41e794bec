package discount

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-discount/internal/common"
	"github.com/noah-isme/backend-discount/internal/exchange"
)

// Handler exposes the bill calculation endpoint.
type Handler struct {
	Calc *Calculator
}

var validate = newValidator()

type itemRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
}

type userRequest struct {
	UserType string `json:"userType" validate:"required,usertype"`
	Tenure   int    `json:"tenure" validate:"gte=0"`
}

type calculateRequest struct {
	Items            []itemRequest   `json:"items" validate:"dive"`
	TotalAmount      decimal.Decimal `json:"totalAmount" validate:"gte=0"`
	OriginalCurrency string          `json:"originalCurrency" validate:"required"`
	TargetCurrency   string          `json:"targetCurrency" validate:"required"`
	User             *userRequest    `json:"user" validate:"required"`
}

type calculateResponse struct {
	PayableAmount json.Number        `json:"payableAmount"`
	Currency      string             `json:"currency"`
	Breakdown     *breakdownResponse `json:"breakdown,omitempty"`
}

type breakdownResponse struct {
	NonGroceryTotal    json.Number `json:"nonGroceryTotal"`
	TierDiscount       json.Number `json:"tierDiscount"`
	AdditionalDiscount json.Number `json:"additionalDiscount"`
	DiscountedAmount   json.Number `json:"discountedAmount"`
	ExchangeRate       json.Number `json:"exchangeRate"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Calculate handles POST /api/discount/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Calc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "calculator not configured", nil)
		return
	}
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		common.WriteError(w, validationError(err))
		return
	}

	withBreakdown, _ := strconv.ParseBool(r.URL.Query().Get("breakdown"))
	result, breakdown, err := h.Calc.CalculateWithBreakdown(r.Context(), req.toBill())
	if err != nil {
		writeCalculationError(w, r, err)
		return
	}

	resp := calculateResponse{
		PayableAmount: number(result.PayableAmount),
		Currency:      result.Currency,
	}
	if withBreakdown {
		resp.Breakdown = &breakdownResponse{
			NonGroceryTotal:    number(breakdown.NonGroceryTotal),
			TierDiscount:       number(breakdown.TierDiscount),
			AdditionalDiscount: number(breakdown.AdditionalDiscount),
			DiscountedAmount:   number(breakdown.Discounted),
			ExchangeRate:       number(breakdown.Rate),
		}
	}
	common.JSON(w, http.StatusOK, resp)
}

func (req calculateRequest) toBill() Bill {
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{Name: it.Name, Category: it.Category, Price: it.Price})
	}
	return Bill{
		Items:            items,
		TotalAmount:      req.TotalAmount,
		OriginalCurrency: req.OriginalCurrency,
		TargetCurrency:   req.TargetCurrency,
		User:             User{Type: UserType(req.User.UserType), Tenure: req.User.Tenure},
	}
}

func writeCalculationError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())
	var notFound *exchange.CurrencyNotFoundError
	var unknownType *UnknownUserTypeError
	switch {
	case errors.Is(err, exchange.ErrInvalidCurrency):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.As(err, &unknownType):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.As(err, &notFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "CURRENCY_NOT_FOUND", err.Error(), map[string]string{"currency": notFound.Currency})
	case errors.Is(err, exchange.ErrExchangeRateService):
		logger.Warn().Err(err).Msg("exchange_rate_unavailable")
		msg := err.Error()
		var svcErr *exchange.ServiceError
		if errors.As(err, &svcErr) {
			msg = svcErr.Message
		}
		common.JSONError(w, http.StatusBadGateway, "EXCHANGE_RATE_UNAVAILABLE", msg, nil)
	default:
		logger.Error().Err(err).Msg("bill_calculation_failed")
		common.WriteError(w, err)
	}
}

func validationError(err error) *common.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.BadRequest("VALIDATION_ERROR", "invalid request", nil)
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fieldPath(fe.Namespace()), Rule: fe.Tag()})
	}
	return common.BadRequest("VALIDATION_ERROR", "request validation failed", details)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	if err := v.RegisterValidation("usertype", func(fl validator.FieldLevel) bool {
		return UserType(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
