package http

import (
	"net/http"

	domain "receivables-engine/internal/domain/market"
	"receivables-engine/internal/usecase/market"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// MarketHandler serves both markets; the :market path param picks one.
type MarketHandler struct {
	markets map[domain.Market]*market.Usecase
}

func NewMarketHandler(ucs ...*market.Usecase) *MarketHandler {
	h := &MarketHandler{markets: make(map[domain.Market]*market.Usecase, len(ucs))}
	for _, uc := range ucs {
		h.markets[uc.Market()] = uc
	}
	return h
}

func (h *MarketHandler) market(c echo.Context) (*market.Usecase, bool, error) {
	uc, ok := h.markets[domain.Market(c.Param("market"))]
	if !ok {
		return nil, false, c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown market"})
	}
	return uc, true, nil
}

type listReq struct {
	ReceivableID uint64          `json:"receivable_id" validate:"required"`
	Price        decimal.Decimal `json:"price"         validate:"intamount"`
}

func (h *MarketHandler) List(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	var req listReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := uc.List(c.Request().Context(), caller(c), req.ReceivableID, req.Price)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *MarketHandler) GetListing(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := uc.GetListing(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type buyReq struct {
	Payment decimal.Decimal `json:"payment" validate:"intamount"`
}

func (h *MarketHandler) Buy(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req buyReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := uc.Buy(c.Request().Context(), caller(c), id, req.Payment)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *MarketHandler) Cancel(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	if err := uc.Cancel(c.Request().Context(), caller(c), id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MarketHandler) WithdrawProceeds(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	dto, err := uc.WithdrawProceeds(c.Request().Context(), caller(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type protocolWithdrawReq struct {
	To string `json:"to" validate:"required,hex32"`
}

func (h *MarketHandler) WithdrawProtocolFees(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	var req protocolWithdrawReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := uc.WithdrawProtocolFees(c.Request().Context(), caller(c), req.To)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *MarketHandler) Proceeds(c echo.Context) error {
	uc, ok, err := h.market(c)
	if !ok {
		return err
	}
	account, ok, err := pathAccount(c, "account")
	if !ok {
		return err
	}
	dto, err := uc.Proceeds(c.Request().Context(), account)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
