package discount

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-discount/internal/obs"
	"github.com/noah-isme/backend-discount/internal/pricing"
)

// RateProvider resolves the multiplier converting base into target.
type RateProvider interface {
	GetRate(ctx context.Context, base, target string) (decimal.Decimal, error)
}

// Calculator computes payable amounts for bills.
type Calculator struct {
	rates  RateProvider
	logger *zerolog.Logger
}

var calculatorNopLogger = zerolog.Nop()

// NewCalculator constructs a Calculator. logger may be nil.
func NewCalculator(rates RateProvider, logger *zerolog.Logger) (*Calculator, error) {
	if rates == nil {
		return nil, errors.New("discount: rate provider is required")
	}
	if logger == nil {
		logger = &calculatorNopLogger
	}
	return &Calculator{rates: rates, logger: logger}, nil
}

// Calculate returns the discounted bill total converted to the target currency.
// Errors from the rate provider are returned unchanged.
func (c *Calculator) Calculate(ctx context.Context, bill Bill) (BillResult, error) {
	result, _, err := c.CalculateWithBreakdown(ctx, bill)
	return result, err
}

// CalculateWithBreakdown behaves like Calculate and also returns the intermediate values.
func (c *Calculator) CalculateWithBreakdown(ctx context.Context, bill Bill) (BillResult, Breakdown, error) {
	ctx, span := otel.Tracer("discount").Start(ctx, "discount.Calculate")
	defer span.End()
	userType := string(bill.User.Type)
	span.SetAttributes(
		attribute.String("user.type", userType),
		attribute.String("currency.original", bill.OriginalCurrency),
		attribute.String("currency.target", bill.TargetCurrency),
	)

	fail := func(err error) (BillResult, Breakdown, error) {
		obs.ObserveCalculation(userType, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "calculation failed")
		return BillResult{}, Breakdown{}, err
	}

	tierRate, err := TierRate(bill.User)
	if err != nil {
		return fail(err)
	}
	rate, err := c.rates.GetRate(ctx, bill.OriginalCurrency, bill.TargetCurrency)
	if err != nil {
		return fail(err)
	}

	summary := pricing.Compute(pricingItems(bill.Items), bill.TotalAmount, tierRate, rate)
	breakdown := Breakdown{
		NonGroceryTotal:    summary.NonGroceryTotal,
		TierDiscount:       summary.TierDiscount,
		AdditionalDiscount: summary.AdditionalDiscount,
		Discounted:         summary.Discounted,
		Rate:               summary.Rate,
	}

	c.loggerFor(ctx).Debug().
		Str("user_type", userType).
		Str("non_grocery_total", summary.NonGroceryTotal.String()).
		Str("tier_discount", summary.TierDiscount.String()).
		Str("additional_discount", summary.AdditionalDiscount.String()).
		Str("discounted", summary.Discounted.String()).
		Str("rate", rate.String()).
		Str("payable", summary.Payable.String()).
		Msg("bill_calculated")
	obs.ObserveCalculation(userType, "ok")

	return BillResult{PayableAmount: summary.Payable, Currency: bill.TargetCurrency}, breakdown, nil
}

func pricingItems(items []Item) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{Category: it.Category, Price: it.Price})
	}
	return out
}

func (c *Calculator) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return c.logger
}
