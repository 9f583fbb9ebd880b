package http

import (
	"errors"
	"net/http"

	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/escrow"
	"receivables-engine/internal/domain/funds"
	"receivables-engine/internal/domain/lock"
	"receivables-engine/internal/domain/market"
	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/settlement"
	"receivables-engine/internal/pricing"

	"github.com/labstack/echo/v4"
)

// statusOf maps domain errors to HTTP codes. Order matters: wrapped errors
// match the first entry they satisfy.
var statusOf = []struct {
	err  error
	code int
}{
	// transfer
	{funds.ErrTransferFailed, http.StatusBadGateway},
	// resource
	{lock.ErrBusy, http.StatusLocked},
	{access.ErrPaused, http.StatusServiceUnavailable},
	{settlement.ErrEscrowNotReady, http.StatusConflict},
	// authorization
	{access.ErrUnauthorized, http.StatusForbidden},
	{receivable.ErrNotHolder, http.StatusForbidden},
	{receivable.ErrNotApproved, http.StatusForbidden},
	{market.ErrNotOwner, http.StatusForbidden},
	{market.ErrNotSeller, http.StatusForbidden},
	{market.ErrSelfPurchase, http.StatusForbidden},
	{escrow.ErrNotIssuer, http.StatusForbidden},
	// not found
	{receivable.ErrNotFound, http.StatusNotFound},
	{market.ErrNotFound, http.StatusNotFound},
	{escrow.ErrNotFound, http.StatusNotFound},
	{settlement.ErrNotFound, http.StatusNotFound},
	// validation
	{receivable.ErrInvalidInput, http.StatusBadRequest},
	{pricing.ErrInvalidInput, http.StatusBadRequest},
	{market.ErrInvalidMarket, http.StatusBadRequest},
	{market.ErrInvalidPrice, http.StatusBadRequest},
	{market.ErrInsufficientPayment, http.StatusBadRequest},
	{market.ErrInvalidRecipient, http.StatusBadRequest},
	{escrow.ErrAmountMismatch, http.StatusBadRequest},
	{escrow.ErrInvalidAmount, http.StatusBadRequest},
	{escrow.ErrInvalidRecipient, http.StatusBadRequest},
	{settlement.ErrInvalidAmount, http.StatusBadRequest},
	// state
	{receivable.ErrInvalidTransition, http.StatusConflict},
	{receivable.ErrAlreadyPaid, http.StatusConflict},
	{market.ErrNotTradable, http.StatusConflict},
	{market.ErrListingInactive, http.StatusConflict},
	{market.ErrListingExpired, http.StatusConflict},
	{market.ErrNoProceeds, http.StatusConflict},
	{escrow.ErrAlreadyDeposited, http.StatusConflict},
	{escrow.ErrNotLocked, http.StatusConflict},
	{escrow.ErrInsufficientEscrow, http.StatusConflict},
	{escrow.ErrLockActive, http.StatusConflict},
	{settlement.ErrAlreadyPaid, http.StatusConflict},
	{settlement.ErrNotMatured, http.StatusConflict},
	{settlement.ErrGracePeriodExpired, http.StatusConflict},
	{settlement.ErrGracePeriodActive, http.StatusConflict},
	{settlement.ErrInsufficientCollateral, http.StatusConflict},
	{settlement.ErrInsufficientRemainingCollateral, http.StatusConflict},
}

func StatusFor(err error) int {
	for _, s := range statusOf {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return http.StatusInternalServerError
}

// fail writes err as an ErrorResponse. Internal errors are not echoed back.
func fail(c echo.Context, err error) error {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		c.Logger().Errorf("unhandled error on %s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	return c.JSON(code, ErrorResponse{Error: msg})
}
