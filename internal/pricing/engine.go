package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GroceriesCategory is exempt from the percentage discount.
const GroceriesCategory = "groceries"

var (
	hundred          = decimal.NewFromInt(100)
	perHundredRebate = decimal.NewFromInt(5)
)

// Item describes a line item used for discount calculation.
type Item struct {
	Category string
	Price    decimal.Decimal
}

// Summary aggregates computed discount components. All amounts are in the
// bill's original currency except Payable.
type Summary struct {
	NonGroceryTotal    decimal.Decimal
	TierDiscount       decimal.Decimal
	AdditionalDiscount decimal.Decimal
	Discounted         decimal.Decimal
	Rate               decimal.Decimal
	Payable            decimal.Decimal
}

// IsGrocery reports whether category names the groceries category, ignoring case.
func IsGrocery(category string) bool {
	return strings.EqualFold(category, GroceriesCategory)
}

// NonGroceryTotal sums the price of every item outside the groceries category.
func NonGroceryTotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if IsGrocery(it.Category) {
			continue
		}
		sum = sum.Add(it.Price)
	}
	return sum
}

// AdditionalDiscount grants 5 for every full 100 of total.
func AdditionalDiscount(total decimal.Decimal) decimal.Decimal {
	q, _ := total.QuoRem(hundred, 0)
	return q.Mul(perHundredRebate)
}

// Compute applies tierRate to the non-grocery items, subtracts the per-hundred
// rebate computed on total and converts the result with rate. The discounted
// amount is not clamped and nothing is rounded.
func Compute(items []Item, total, tierRate, rate decimal.Decimal) Summary {
	nonGrocery := NonGroceryTotal(items)
	tier := nonGrocery.Mul(tierRate)
	additional := AdditionalDiscount(total)
	discounted := total.Sub(tier).Sub(additional)
	return Summary{
		NonGroceryTotal:    nonGrocery,
		TierDiscount:       tier,
		AdditionalDiscount: additional,
		Discounted:         discounted,
		Rate:               rate,
		Payable:            discounted.Mul(rate),
	}
}
