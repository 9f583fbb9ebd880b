package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// WalletReader exposes the balances paid out over the funds rail.
type WalletReader interface {
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
}

type WalletHandler struct{ wallets WalletReader }

func NewWalletHandler(w WalletReader) *WalletHandler { return &WalletHandler{wallets: w} }

func (h *WalletHandler) Get(c echo.Context) error {
	account, ok, err := pathAccount(c, "account")
	if !ok {
		return err
	}
	bal, err := h.wallets.Balance(c.Request().Context(), account)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"account": account, "balance": bal})
}
