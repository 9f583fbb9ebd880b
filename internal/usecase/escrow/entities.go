package escrow

import (
	"time"

	domain "receivables-engine/internal/domain/escrow"

	"github.com/shopspring/decimal"
)

type BalanceDTO struct {
	ReceivableID    uint64          `json:"receivable_id"`
	Depositor       string          `json:"depositor"`
	Amount          decimal.Decimal `json:"amount"`
	DepositedAmount decimal.Decimal `json:"deposited_amount"`
	ReleasedAmount  decimal.Decimal `json:"released_amount"`
	LockTimestamp   time.Time       `json:"lock_timestamp"`
	UnlocksAt       time.Time       `json:"unlocks_at"`
	IsLocked        bool            `json:"is_locked"`
}

func toDTO(b *domain.Balance, lockPeriod time.Duration) *BalanceDTO {
	return &BalanceDTO{
		ReceivableID:    b.ReceivableID,
		Depositor:       b.Depositor,
		Amount:          b.Amount,
		DepositedAmount: b.DepositedAmount,
		ReleasedAmount:  b.ReleasedAmount,
		LockTimestamp:   b.LockTimestamp,
		UnlocksAt:       b.Unlocks(lockPeriod),
		IsLocked:        b.IsLocked,
	}
}
