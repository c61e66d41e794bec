package discount

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-discount/internal/exchange"
)

type stubRates struct {
	rate  decimal.Decimal
	err   error
	calls atomic.Int32
	base  string
	tgt   string
}

func (s *stubRates) GetRate(_ context.Context, base, target string) (decimal.Decimal, error) {
	s.calls.Add(1)
	s.base, s.tgt = base, target
	if s.err != nil {
		return decimal.Decimal{}, s.err
	}
	return s.rate, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCalc(t *testing.T, rates RateProvider) *Calculator {
	t.Helper()
	c, err := NewCalculator(rates, nil)
	require.NoError(t, err)
	return c
}

func TestCalculateScenarios(t *testing.T) {
	cases := []struct {
		name    string
		bill    Bill
		payable string
	}{
		{
			name: "employee mixed basket",
			bill: Bill{
				Items: []Item{
					{Name: "Laptop", Category: "electronics", Price: dec("100.0")},
					{Name: "Apples", Category: "groceries", Price: dec("50.0")},
				},
				TotalAmount: dec("150.0"),
				User:        User{Type: UserTypeEmployee},
			},
			payable: "105.8",
		},
		{
			name: "groceries only",
			bill: Bill{
				Items: []Item{
					{Name: "Bread", Category: "groceries", Price: dec("25.0")},
					{Name: "Milk", Category: "Groceries", Price: dec("35.0")},
				},
				TotalAmount: dec("60.0"),
				User:        User{Type: UserTypeEmployee},
			},
			payable: "55.2",
		},
		{
			name: "affiliate",
			bill: Bill{
				Items:       []Item{{Name: "Laptop", Category: "electronics", Price: dec("200.0")}},
				TotalAmount: dec("200.0"),
				User:        User{Type: UserTypeAffiliate},
			},
			payable: "156.4",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rates := &stubRates{rate: dec("0.92")}
			tc.bill.OriginalCurrency = "USD"
			tc.bill.TargetCurrency = "EUR"

			res, err := newCalc(t, rates).Calculate(context.Background(), tc.bill)
			require.NoError(t, err)
			require.True(t, res.PayableAmount.Equal(dec(tc.payable)), "got %s want %s", res.PayableAmount, tc.payable)
			require.Equal(t, "EUR", res.Currency)
			require.Equal(t, "USD", rates.base)
			require.Equal(t, "EUR", rates.tgt)
		})
	}
}

func TestTierRates(t *testing.T) {
	items := []Item{{Category: "electronics", Price: dec("80")}}
	cases := []struct {
		user User
		tier string
	}{
		{User{Type: UserTypeEmployee}, "24"},
		{User{Type: UserTypeAffiliate}, "8"},
		{User{Type: UserTypeCustomer, Tenure: 3}, "4"},
		{User{Type: UserTypeCustomer, Tenure: 2}, "0"},
		{User{Type: UserTypeCustomer, Tenure: 0}, "0"},
	}
	for _, tc := range cases {
		_, bd, err := newCalc(t, &stubRates{rate: decimal.NewFromInt(1)}).CalculateWithBreakdown(context.Background(), Bill{
			Items:            items,
			TotalAmount:      dec("80"),
			OriginalCurrency: "USD",
			TargetCurrency:   "USD",
			User:             tc.user,
		})
		require.NoError(t, err)
		require.True(t, bd.TierDiscount.Equal(dec(tc.tier)), "%+v: got %s", tc.user, bd.TierDiscount)
		require.True(t, bd.AdditionalDiscount.IsZero())
	}
}

func TestGroceryOnlyBillHasNoTierDiscount(t *testing.T) {
	for _, ut := range UserTypes() {
		_, bd, err := newCalc(t, &stubRates{rate: dec("1")}).CalculateWithBreakdown(context.Background(), Bill{
			Items:            []Item{{Category: "GROCERIES", Price: dec("500")}},
			TotalAmount:      dec("500"),
			OriginalCurrency: "USD",
			TargetCurrency:   "USD",
			User:             User{Type: ut, Tenure: 10},
		})
		require.NoError(t, err)
		require.True(t, bd.TierDiscount.IsZero(), ut)
		require.True(t, bd.AdditionalDiscount.Equal(dec("25")), ut)
	}
}

func TestAdditionalDiscountUsesFullTotal(t *testing.T) {
	// Items are ignored; 250 of groceries still earns the per-hundred rebate.
	_, bd, err := newCalc(t, &stubRates{rate: dec("1")}).CalculateWithBreakdown(context.Background(), Bill{
		Items:            []Item{{Category: "groceries", Price: dec("1")}},
		TotalAmount:      dec("250"),
		OriginalCurrency: "USD",
		TargetCurrency:   "USD",
		User:             User{Type: UserTypeCustomer},
	})
	require.NoError(t, err)
	require.True(t, bd.AdditionalDiscount.Equal(dec("10")))
	require.True(t, bd.Discounted.Equal(dec("240")))
}

func TestPayableIsNotClamped(t *testing.T) {
	res, bd, err := newCalc(t, &stubRates{rate: dec("0.5")}).CalculateWithBreakdown(context.Background(), Bill{
		Items:            []Item{{Category: "electronics", Price: dec("1000")}},
		TotalAmount:      dec("100"),
		OriginalCurrency: "USD",
		TargetCurrency:   "GBP",
		User:             User{Type: UserTypeEmployee},
	})
	require.NoError(t, err)
	require.True(t, bd.Discounted.Equal(dec("-205")))
	require.True(t, res.PayableAmount.Equal(dec("-102.5")))
	require.True(t, bd.Rate.Equal(dec("0.5")))
}

func TestCalculatePropagatesProviderErrorUnchanged(t *testing.T) {
	cases := []error{
		&exchange.CurrencyNotFoundError{Currency: "XYZ"},
		&exchange.ServiceError{Status: 503, Message: "failed to retrieve exchange rates from the API. Status: 503 Service Unavailable"},
		errors.New("boom"),
	}
	for _, want := range cases {
		_, err := newCalc(t, &stubRates{err: want}).Calculate(context.Background(), Bill{
			TotalAmount:      dec("10"),
			OriginalCurrency: "USD",
			TargetCurrency:   "XYZ",
			User:             User{Type: UserTypeCustomer},
		})
		require.Same(t, want, err)
	}
}

func TestCalculateRejectsUnknownUserType(t *testing.T) {
	rates := &stubRates{rate: dec("1")}
	_, err := newCalc(t, rates).Calculate(context.Background(), Bill{
		TotalAmount:      dec("10"),
		OriginalCurrency: "USD",
		TargetCurrency:   "USD",
		User:             User{Type: "PARTNER"},
	})
	var unknown *UnknownUserTypeError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, UserType("PARTNER"), unknown.Type)
	require.Zero(t, rates.calls.Load())
}

func TestNewCalculatorRequiresProvider(t *testing.T) {
	_, err := NewCalculator(nil, nil)
	require.Error(t, err)
}

func TestUserTypeValid(t *testing.T) {
	for _, ut := range UserTypes() {
		require.True(t, ut.Valid(), ut)
	}
	require.False(t, UserType("PARTNER").Valid())
	require.False(t, UserType("employee").Valid())
}
