package enroll

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutParams is what the payment collaborator needs to build a hosted
// checkout session. Metadata (formation + student IDs) is carried through
// opaquely and handed back on the success callback.
type CheckoutParams struct {
	FormationID    string
	FormationTitle string
	StudentID      string
	Price          decimal.Decimal // major units
	SuccessURL     string
	CancelURL      string
}

// MinorUnits converts the major-unit decimal price to the payment
// provider's integer minor-unit representation (e.g. cents).
func (p CheckoutParams) MinorUnits() int64 {
	return p.Price.Mul(decimal.NewFromInt(100)).IntPart()
}

// PaymentService creates hosted checkout sessions; the provider redirects
// the student and later invokes the success/cancel callbacks.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (redirectURL string, err error)
}
