// Package paymentsvc provides the enroll.PaymentService implementations:
// Stripe hosted checkout for deployed environments and an in-memory dummy
// for development and tests.
package paymentsvc

import (
	"context"

	"github.com/pkg/errors"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enroll"
)

type stripeService struct {
	currency string
}

var _ enroll.PaymentService = (*stripeService)(nil)

func NewStripeService(conf *core.Config) enroll.PaymentService {
	stripe.Key = conf.StripeSecretKey
	return &stripeService{currency: string(stripe.CurrencyEUR)}
}

func (svc *stripeService) CreateCheckoutSession(_ context.Context, params enroll.CheckoutParams) (string, error) {
	sessParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{
			string(stripe.PaymentMethodTypeCard),
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(svc.currency),
				UnitAmount: stripe.Int64(params.MinorUnits()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(params.FormationTitle),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sessParams.AddMetadata("formation_id", params.FormationID)
	sessParams.AddMetadata("student_id", params.StudentID)

	sess, err := session.New(sessParams)
	if err != nil {
		return "", errors.Wrap(err, "creating stripe checkout session")
	}
	return sess.URL, nil
}
