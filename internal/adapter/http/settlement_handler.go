package http

import (
	"net/http"

	"receivables-engine/internal/usecase/settlement"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type SettlementHandler struct{ uc *settlement.Usecase }

func NewSettlementHandler(uc *settlement.Usecase) *SettlementHandler {
	return &SettlementHandler{uc: uc}
}

func (h *SettlementHandler) Payout(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := h.uc.ProcessPayout(c.Request().Context(), caller(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *SettlementHandler) DeclareDefault(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	if err := h.uc.DeclareDefault(c.Request().Context(), caller(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "status": "DEFAULTED"})
}

func (h *SettlementHandler) GetPayout(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := h.uc.GetPayout(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type collateralReq struct {
	Amount decimal.Decimal `json:"amount" validate:"intamount"`
}

func (h *SettlementHandler) DepositCollateral(c echo.Context) error {
	var req collateralReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.DepositCollateral(c.Request().Context(), caller(c), req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *SettlementHandler) WithdrawCollateral(c echo.Context) error {
	var req collateralReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.WithdrawCollateral(c.Request().Context(), caller(c), req.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *SettlementHandler) Collateral(c echo.Context) error {
	issuer, ok, err := pathAccount(c, "issuer")
	if !ok {
		return err
	}
	dto, err := h.uc.Collateral(c.Request().Context(), issuer)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
