package discount

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UserType classifies the customer for tier discounts.
type UserType string

const (
	UserTypeEmployee  UserType = "EMPLOYEE"
	UserTypeAffiliate UserType = "AFFILIATE"
	UserTypeCustomer  UserType = "CUSTOMER"
)

// Item is a single bill line.
type Item struct {
	Name     string
	Category string
	Price    decimal.Decimal
}

// User is the profile the tier discount is derived from. Tenure is in years.
type User struct {
	Type   UserType
	Tenure int
}

// Bill is the input to a calculation. TotalAmount is taken as given and is
// never recomputed from Items.
type Bill struct {
	Items            []Item
	TotalAmount      decimal.Decimal
	OriginalCurrency string
	TargetCurrency   string
	User             User
}

// BillResult is the payable amount in the target currency.
type BillResult struct {
	PayableAmount decimal.Decimal
	Currency      string
}

// Breakdown exposes the intermediate values of a calculation.
type Breakdown struct {
	NonGroceryTotal    decimal.Decimal
	TierDiscount       decimal.Decimal
	AdditionalDiscount decimal.Decimal
	Discounted         decimal.Decimal
	Rate               decimal.Decimal
}

// UnknownUserTypeError is returned for a user type outside the closed set.
type UnknownUserTypeError struct {
	Type UserType
}

func (e *UnknownUserTypeError) Error() string {
	return fmt.Sprintf("unknown user type %q", string(e.Type))
}
