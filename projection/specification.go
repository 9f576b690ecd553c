package projection

import (
	"errors"

	"github.com/shortlink-org/bank-saga/specification"
)

var (
	errOtherManager = errors.New("account belongs to another manager")
	errNotInCredit  = errors.New("balance is not positive")
	errOverdrawn    = errors.New("balance is negative")
)

// ManagedBy matches the accounts of managerID.
func ManagedBy(managerID string) specification.Func[AccountView] {
	return func(view *AccountView) error {
		if view.ManagerID != managerID {
			return errOtherManager
		}

		return nil
	}
}

// InCredit matches accounts with a positive balance.
func InCredit() specification.Func[AccountView] {
	return func(view *AccountView) error {
		if !view.Balance.IsPositive() {
			return errNotInCredit
		}

		return nil
	}
}

// Overdrawn matches accounts with a negative balance.
func Overdrawn() specification.Specification[AccountView] {
	notNegative := specification.Func[AccountView](func(view *AccountView) error {
		if view.Balance.IsNegative() {
			return errOverdrawn
		}

		return nil
	})

	return specification.NewNotSpecification[AccountView](notNegative)
}
