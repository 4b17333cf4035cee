package paymentsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/academia/core/enroll"
)

// DummyService fakes a hosted checkout: it records the parameters and hands
// back the success URL directly. Tests and local development use it.
type DummyService struct {
	mu       sync.Mutex
	Sessions []enroll.CheckoutParams
	// Err, when set, is returned by CreateCheckoutSession.
	Err error
}

var _ enroll.PaymentService = (*DummyService)(nil)

func NewDummyService() *DummyService {
	return &DummyService{}
}

func (svc *DummyService) CreateCheckoutSession(_ context.Context, params enroll.CheckoutParams) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.Err != nil {
		return "", svc.Err
	}
	svc.Sessions = append(svc.Sessions, params)
	return fmt.Sprintf("https://checkout.example.com/pay/%s?session=%d", params.FormationID, len(svc.Sessions)), nil
}
