package mysql

import (
	"context"
	"errors"
	"fmt"

	"receivables-engine/internal/domain/funds"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletLedger is the built-in funds rail: an outbound transfer credits the
// recipient's wallet balance in its own transaction.
type WalletLedger struct{ db *gorm.DB }

var _ funds.Transferer = (*WalletLedger)(nil)

func NewWalletLedger(db *gorm.DB) *WalletLedger { return &WalletLedger{db: db} }

func (w *WalletLedger) Transfer(ctx context.Context, to string, amount decimal.Decimal) error {
	if to == "" || !amount.IsPositive() {
		return fmt.Errorf("%w: invalid transfer to %q of %s", funds.ErrTransferFailed, to, amount)
	}
	row := funds.Balance{Account: to, Balance: amount}
	err := addBalance(w.db.WithContext(ctx), &row, []string{"account"}, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", funds.ErrTransferFailed, err)
	}
	return nil
}

func (w *WalletLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var b funds.Balance
	res := w.db.WithContext(ctx).Where("account = ?", account).First(&b)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	return b.Balance, res.Error
}
