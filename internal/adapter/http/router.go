package http

import "github.com/labstack/echo/v4"

type Handlers struct {
	Health      *Handler
	Receivables *ReceivableHandler
	Markets     *MarketHandler
	Escrow      *EscrowHandler
	Settlement  *SettlementHandler
	Wallets     *WalletHandler
}

// Register mounts the API. /health stays public; everything else runs
// behind mw (auth first, then idempotency).
func (h Handlers) Register(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)

	g := e.Group("", mw...)

	g.POST("/receivables", h.Receivables.Create)
	g.GET("/receivables", h.Receivables.List)
	g.GET("/receivables/:id", h.Receivables.Get)
	g.GET("/receivables/:id/quote", h.Receivables.Quote)
	g.GET("/receivables/:id/matured", h.Receivables.Matured)
	g.PUT("/receivables/:id/status", h.Receivables.SetStatus)
	g.POST("/receivables/:id/transfer", h.Receivables.Transfer)
	g.PUT("/approvals/:operator", h.Receivables.SetApproval)

	g.POST("/markets/:market/listings", h.Markets.List)
	g.GET("/markets/:market/listings/:id", h.Markets.GetListing)
	g.POST("/markets/:market/listings/:id/buy", h.Markets.Buy)
	g.DELETE("/markets/:market/listings/:id", h.Markets.Cancel)
	g.POST("/markets/:market/proceeds/withdraw", h.Markets.WithdrawProceeds)
	g.GET("/markets/:market/proceeds/:account", h.Markets.Proceeds)
	g.POST("/markets/:market/protocol/withdraw", h.Markets.WithdrawProtocolFees)

	g.POST("/escrow/:id/deposit", h.Escrow.Deposit)
	g.POST("/escrow/:id/release", h.Escrow.Release)
	g.GET("/escrow/:id", h.Escrow.Get)

	g.POST("/settlements/:id/payout", h.Settlement.Payout)
	g.POST("/settlements/:id/default", h.Settlement.DeclareDefault)
	g.GET("/settlements/:id", h.Settlement.GetPayout)
	g.POST("/collateral/deposit", h.Settlement.DepositCollateral)
	g.POST("/collateral/withdraw", h.Settlement.WithdrawCollateral)
	g.GET("/collateral/:issuer", h.Settlement.Collateral)

	g.GET("/wallets/:account", h.Wallets.Get)
}
