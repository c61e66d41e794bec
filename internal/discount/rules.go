package discount

import "github.com/shopspring/decimal"

// loyalCustomerYears is the tenure a customer must exceed to earn a discount.
const loyalCustomerYears = 2

type tierRule func(User) decimal.Decimal

func flatRate(rate decimal.Decimal) tierRule {
	return func(User) decimal.Decimal { return rate }
}

var tierRules = map[UserType]tierRule{
	UserTypeEmployee:  flatRate(decimal.RequireFromString("0.30")),
	UserTypeAffiliate: flatRate(decimal.RequireFromString("0.10")),
	UserTypeCustomer: func(u User) decimal.Decimal {
		if u.Tenure > loyalCustomerYears {
			return decimal.RequireFromString("0.05")
		}
		return decimal.Zero
	},
}

// UserTypes lists the supported user types.
func UserTypes() []UserType {
	return []UserType{UserTypeEmployee, UserTypeAffiliate, UserTypeCustomer}
}

// Valid reports whether t belongs to the supported set.
func (t UserType) Valid() bool {
	_, ok := tierRules[t]
	return ok
}

// TierRate returns the fraction of the non-grocery total granted to u.
func TierRate(u User) (decimal.Decimal, error) {
	rule, ok := tierRules[u.Type]
	if !ok {
		return decimal.Decimal{}, &UnknownUserTypeError{Type: u.Type}
	}
	return rule(u), nil
}
