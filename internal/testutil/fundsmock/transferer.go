package fundsmock

import (
	"context"
	"sync"

	"receivables-engine/internal/domain/funds"

	"github.com/shopspring/decimal"
)

var _ funds.Transferer = (*Transferer)(nil)

type Call struct {
	To     string
	Amount decimal.Decimal
}

// Transferer records every transfer. TransferFn, when set, decides the
// outcome and may call back into the engine.
type Transferer struct {
	TransferFn func(ctx context.Context, to string, amount decimal.Decimal) error

	mu    sync.Mutex
	calls []Call
}

func (m *Transferer) Transfer(ctx context.Context, to string, amount decimal.Decimal) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{To: to, Amount: amount})
	m.mu.Unlock()
	if m.TransferFn != nil {
		return m.TransferFn(ctx, to, amount)
	}
	return nil
}

func (m *Transferer) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Total sums what was sent to account, including failed attempts.
func (m *Transferer) Total(account string) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range m.Calls() {
		if c.To == account {
			sum = sum.Add(c.Amount)
		}
	}
	return sum
}
