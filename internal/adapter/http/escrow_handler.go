package http

import (
	"net/http"

	"receivables-engine/internal/usecase/escrow"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type EscrowHandler struct{ uc *escrow.Usecase }

func NewEscrowHandler(uc *escrow.Usecase) *EscrowHandler { return &EscrowHandler{uc: uc} }

type depositReq struct {
	Payment decimal.Decimal `json:"payment" validate:"intamount"`
}

func (h *EscrowHandler) Deposit(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req depositReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Deposit(c.Request().Context(), caller(c), id, req.Payment)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

type releaseReq struct {
	Recipient string          `json:"recipient" validate:"required,hex32"`
	Amount    decimal.Decimal `json:"amount"    validate:"intamount"`
}

func (h *EscrowHandler) Release(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req releaseReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	released, err := h.uc.Release(c.Request().Context(), caller(c), id, req.Recipient, req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "released": released})
}

func (h *EscrowHandler) Get(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := h.uc.GetBalance(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
