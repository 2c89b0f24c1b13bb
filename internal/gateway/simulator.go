package gateway

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Simulator is an in-process Gateway. Confirm fails with ErrDeclined at
// FailureRate and every call waits Latency, returning early if ctx ends.
type Simulator struct {
	FailureRate float64
	Latency     time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator creates a Simulator. A nil src seeds from the clock.
func NewSimulator(failureRate float64, latency time.Duration, src rand.Source) *Simulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Simulator{
		FailureRate: failureRate,
		Latency:     latency,
		rnd:         rand.New(src),
	}
}

func (s *Simulator) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error) {
	if err := s.wait(ctx, s.Latency*3/5); err != nil {
		return Intent{}, err
	}
	id := "pi_" + s.randomID()
	return Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + s.randomID(),
		Amount:       MinorUnits(amount),
		Currency:     currency,
		Status:       "requires_payment_method",
		Metadata:     metadata,
	}, nil
}

func (s *Simulator) Confirm(ctx context.Context, intentID string, details MethodDetails) (Confirmation, error) {
	if err := s.wait(ctx, s.Latency); err != nil {
		return Confirmation{}, err
	}
	if s.float() < s.FailureRate {
		return Confirmation{}, ErrDeclined
	}

	c := Confirmation{
		IntentID:   intentID,
		ChargeID:   "ch_" + s.randomID(),
		Status:     "succeeded",
		ReceiptURL: "https://payments.example/receipts/mock_" + s.randomID(),
	}
	if details.Card != nil {
		c.CardBrand = CardBrand(details.Card.Number)
		c.CardLast4 = Last4(details.Card.Number)
	}
	return c, nil
}

func (s *Simulator) Refund(ctx context.Context, intentID string, amount decimal.Decimal) (RefundConfirmation, error) {
	if err := s.wait(ctx, s.Latency*4/5); err != nil {
		return RefundConfirmation{}, err
	}
	return RefundConfirmation{
		ID:       "re_" + s.randomID(),
		IntentID: intentID,
		Amount:   MinorUnits(amount),
		Status:   "succeeded",
	}, nil
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Simulator) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *Simulator) randomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatInt(s.rnd.Int63(), 36) + strconv.FormatInt(s.rnd.Int63(), 36)
}
