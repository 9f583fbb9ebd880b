package http

import (
	"net/http"
	"time"

	domain "receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/usecase/receivable"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ReceivableHandler struct{ uc *receivable.Usecase }

func NewReceivableHandler(uc *receivable.Usecase) *ReceivableHandler {
	return &ReceivableHandler{uc: uc}
}

type createReceivableReq struct {
	FaceValue     decimal.Decimal `json:"face_value"             validate:"intamount"`
	VestingPeriod int64           `json:"vesting_period_seconds" validate:"gt=0"`
	RiskTier      uint8           `json:"risk_tier"              validate:"tier"`
}

func (h *ReceivableHandler) Create(c echo.Context) error {
	var req createReceivableReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Create(c.Request().Context(), caller(c), receivable.CreateInput{
		FaceValue:     req.FaceValue,
		VestingPeriod: time.Duration(req.VestingPeriod) * time.Second,
		RiskTier:      req.RiskTier,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *ReceivableHandler) Get(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// List filters by ?holder= or ?issuer=.
func (h *ReceivableHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	holder, issuer := c.QueryParam("holder"), c.QueryParam("issuer")
	var (
		out []receivable.ReceivableDTO
		err error
	)
	switch {
	case reHex32.MatchString(holder):
		out, err = h.uc.ListByHolder(ctx, holder)
	case reHex32.MatchString(issuer):
		out, err = h.uc.ListByIssuer(ctx, issuer)
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "holder or issuer query param required"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReceivableHandler) Quote(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	dto, err := h.uc.Quote(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ReceivableHandler) Matured(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	matured, err := h.uc.IsMatured(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "matured": matured})
}

type setStatusReq struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE MATURED DEFAULTED"`
}

func (h *ReceivableHandler) SetStatus(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req setStatusReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()
	if err := h.uc.SetStatus(ctx, caller(c), id, domain.Status(req.Status)); err != nil {
		return fail(c, err)
	}
	dto, err := h.uc.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type transferReq struct {
	From string `json:"from" validate:"required,hex32"`
	To   string `json:"to"   validate:"required,hex32"`
}

func (h *ReceivableHandler) Transfer(c echo.Context) error {
	id, ok, err := pathID(c)
	if !ok {
		return err
	}
	var req transferReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()
	if err := h.uc.TransferHolder(ctx, caller(c), id, req.From, req.To); err != nil {
		return fail(c, err)
	}
	dto, err := h.uc.Get(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type approvalReq struct {
	Approved *bool `json:"approved" validate:"required"`
}

func (h *ReceivableHandler) SetApproval(c echo.Context) error {
	operator := c.Param("operator")
	if operator == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing operator path param"})
	}
	var req approvalReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	who := caller(c)
	if err := h.uc.SetOperatorApproval(c.Request().Context(), who, operator, *req.Approved); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"holder":   who.Account,
		"operator": operator,
		"approved": *req.Approved,
	})
}
