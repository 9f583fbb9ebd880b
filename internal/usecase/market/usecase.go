package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/audit"
	"receivables-engine/internal/domain/funds"
	"receivables-engine/internal/domain/lock"
	domain "receivables-engine/internal/domain/market"
	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/uow"
	"receivables-engine/internal/infrastructure/metrics"
	"receivables-engine/internal/pricing"
	receivableUC "receivables-engine/internal/usecase/receivable"
	"receivables-engine/pkg/clock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Registry is the slice of the receivable usecase a market drives.
type Registry interface {
	TransferHolder(ctx context.Context, caller access.Caller, id uint64, from, to string) error
	Quote(ctx context.Context, id uint64) (*receivableUC.QuoteDTO, error)
}

// Config distinguishes the two markets. The primary market runs with a zero
// listing window and no fee.
type Config struct {
	ListingDuration time.Duration
	ProtocolFeeBP   uint32
}

type Usecase struct {
	market   domain.Market
	uow      uow.UnitOfWork
	registry Registry
	locker   lock.Locker
	rail     funds.Transferer
	cfg      Config
	operator access.Caller

	clock   clock.Clock
	sw      access.Switch
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option        { return func(u *Usecase) { u.clock = c } }
func WithSwitch(s access.Switch) Option     { return func(u *Usecase) { u.sw = s } }
func WithLogger(l *slog.Logger) Option      { return func(u *Usecase) { u.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func NewUsecase(m domain.Market, tx uow.UnitOfWork, reg Registry, locker lock.Locker, rail funds.Transferer, cfg Config, opts ...Option) (*Usecase, error) {
	if !m.Valid() {
		return nil, domain.ErrInvalidMarket
	}
	if m == domain.MarketPrimary && (cfg.ListingDuration != 0 || cfg.ProtocolFeeBP != 0) {
		return nil, fmt.Errorf("%w: primary market takes no listing window or fee", domain.ErrInvalidMarket)
	}
	if cfg.ProtocolFeeBP > uint32(pricing.BasisPoints) {
		return nil, fmt.Errorf("%w: protocol fee %d bp", domain.ErrInvalidMarket, cfg.ProtocolFeeBP)
	}
	u := &Usecase{
		market:   m,
		uow:      tx,
		registry: reg,
		locker:   locker,
		rail:     rail,
		cfg:      cfg,
		operator: access.Caller{Account: m.Operator()},
		clock:    clock.Real{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.log = u.log.With("market", string(m))
	return u, nil
}

func (u *Usecase) Market() domain.Market { return u.market }

func (u *Usecase) listingKey(id uint64) string {
	return fmt.Sprintf("market:%s:%d", u.market, id)
}

func (u *Usecase) proceedsKey(account string) string {
	return fmt.Sprintf("proceeds:%s:%s", u.market, account)
}

// List creates or replaces the caller's listing for receivable id.
func (u *Usecase) List(ctx context.Context, caller access.Caller, id uint64, price decimal.Decimal) (*ListingDTO, error) {
	if err := access.EnsureActive(ctx, u.sw); err != nil {
		return nil, err
	}
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	if !funds.ValidAmount(price) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPrice, price)
	}
	release, err := u.locker.Acquire(ctx, u.listingKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	now := u.clock.Now()
	var l *domain.Listing
	err = u.uow.WithinReceivableTx(ctx, id, func(ctx context.Context, r uow.Repos, rec *receivable.Receivable) error {
		if !rec.Tradable(now) {
			return domain.ErrNotTradable
		}
		if price.GreaterThan(rec.FaceValue) {
			return fmt.Errorf("%w: %s above face value %s", domain.ErrInvalidPrice, price, rec.FaceValue)
		}
		if rec.Holder != caller.Account {
			return domain.ErrNotOwner
		}
		if u.market == domain.MarketPrimary && rec.Issuer != caller.Account {
			return domain.ErrNotOwner
		}
		ok, err := r.Receivables.IsApproved(ctx, rec.Holder, u.operator.Account)
		if err != nil {
			return err
		}
		if !ok {
			return receivable.ErrNotApproved
		}
		l = &domain.Listing{
			Market:       u.market,
			ReceivableID: id,
			Seller:       caller.Account,
			Price:        price,
			Active:       true,
			ListedAt:     now,
		}
		if err := r.Listings.Upsert(ctx, l); err != nil {
			return err
		}
		ev := audit.New(audit.ListingCreated, id, caller.Account, price, now).
			With("market", string(u.market))
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return nil, mapNotFound(err, receivable.ErrNotFound)
	}
	if u.metrics != nil {
		u.metrics.ListingsCreated.WithLabelValues(string(u.market)).Inc()
	}
	u.log.InfoContext(ctx, "listing created", "id", id, "seller", caller.Account, "price", price.String())
	return u.toDTO(l), nil
}

// Buy settles the active listing for id against payment. The listing is
// deactivated before ownership moves and proceeds are credited; nothing is
// pushed to the seller.
func (u *Usecase) Buy(ctx context.Context, caller access.Caller, id uint64, payment decimal.Decimal) (*TradeDTO, error) {
	if err := access.EnsureActive(ctx, u.sw); err != nil {
		return nil, err
	}
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	if !funds.ValidAmount(payment) {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrInsufficientPayment, payment)
	}
	release, err := u.locker.Acquire(ctx, u.listingKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	now := u.clock.Now()
	var trade *TradeDTO
	err = u.uow.WithinReceivableTx(ctx, id, func(ctx context.Context, r uow.Repos, rec *receivable.Receivable) error {
		l, err := r.Listings.GetForUpdate(ctx, u.market, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrListingInactive
		}
		if err != nil {
			return err
		}
		switch {
		case !l.Active:
			return domain.ErrListingInactive
		case l.Expired(now, u.cfg.ListingDuration):
			return domain.ErrListingExpired
		case rec.Holder != l.Seller:
			// holder changed since listing
			return domain.ErrListingInactive
		case caller.Account == l.Seller:
			return domain.ErrSelfPurchase
		case !rec.Tradable(now):
			return domain.ErrNotTradable
		case payment.LessThan(l.Price):
			return domain.ErrInsufficientPayment
		}

		l.Active = false
		if err := r.Listings.Save(ctx, l); err != nil {
			return err
		}
		if err := u.registry.TransferHolder(ctx, u.operator, id, l.Seller, caller.Account); err != nil {
			return err
		}

		fee := pricing.ApplyBP(l.Price, u.cfg.ProtocolFeeBP)
		sellerCut := l.Price.Sub(fee)
		refund := payment.Sub(l.Price)
		if err := r.Proceeds.Credit(ctx, u.market, l.Seller, sellerCut); err != nil {
			return err
		}
		if fee.IsPositive() {
			if err := r.Proceeds.Credit(ctx, u.market, domain.ProtocolAccount, fee); err != nil {
				return err
			}
		}
		if refund.IsPositive() {
			if err := r.Proceeds.Credit(ctx, u.market, caller.Account, refund); err != nil {
				return err
			}
		}
		ev := audit.New(audit.ListingSold, id, caller.Account, l.Price, now).
			With("market", string(u.market)).
			With("seller", l.Seller).
			With("fee", fee.String()).
			With("refund", refund.String())
		if err := r.Events.Append(ctx, ev); err != nil {
			return err
		}
		trade = &TradeDTO{
			Market:         string(u.market),
			ReceivableID:   id,
			Seller:         l.Seller,
			Buyer:          caller.Account,
			Price:          l.Price,
			Fee:            fee,
			SellerProceeds: sellerCut,
			Refund:         refund,
		}
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, receivable.ErrNotFound)
	}
	if u.metrics != nil {
		u.metrics.Trades.WithLabelValues(string(u.market)).Inc()
	}
	u.log.InfoContext(ctx, "listing sold", "id", id, "seller", trade.Seller, "buyer", trade.Buyer,
		"price", trade.Price.String(), "fee", trade.Fee.String())
	return trade, nil
}

// Cancel deactivates the caller's active listing.
func (u *Usecase) Cancel(ctx context.Context, caller access.Caller, id uint64) error {
	release, err := u.locker.Acquire(ctx, u.listingKey(id))
	if err != nil {
		return err
	}
	defer release()

	now := u.clock.Now()
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		l, err := r.Listings.GetForUpdate(ctx, u.market, id)
		if err != nil {
			return err
		}
		if l.Seller != caller.Account {
			return domain.ErrNotSeller
		}
		if !l.Active {
			return domain.ErrListingInactive
		}
		l.Active = false
		if err := r.Listings.Save(ctx, l); err != nil {
			return err
		}
		ev := audit.New(audit.ListingCancelled, id, caller.Account, l.Price, now).
			With("market", string(u.market))
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return mapNotFound(err, domain.ErrNotFound)
	}
	u.log.InfoContext(ctx, "listing cancelled", "id", id, "seller", caller.Account)
	return nil
}

// WithdrawProceeds pays the caller's whole proceeds balance out to the caller.
func (u *Usecase) WithdrawProceeds(ctx context.Context, caller access.Caller) (*WithdrawalDTO, error) {
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	return u.withdraw(ctx, caller, caller.Account, caller.Account)
}

// WithdrawProtocolFees pays the accumulated protocol fees to an admin-chosen
// recipient.
func (u *Usecase) WithdrawProtocolFees(ctx context.Context, caller access.Caller, to string) (*WithdrawalDTO, error) {
	if err := caller.Require(ctx, access.RoleAdmin); err != nil {
		return nil, err
	}
	if to == "" || to == domain.ProtocolAccount {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRecipient, to)
	}
	return u.withdraw(ctx, caller, domain.ProtocolAccount, to)
}

// withdraw zeroes the balance and commits before the transfer runs. The
// proceeds lock stays held across the transfer, so a re-entrant withdrawal
// fails with lock.ErrBusy.
func (u *Usecase) withdraw(ctx context.Context, caller access.Caller, account, to string) (*WithdrawalDTO, error) {
	release, err := u.locker.Acquire(ctx, u.proceedsKey(account))
	if err != nil {
		return nil, err
	}
	defer release()

	now := u.clock.Now()
	var amount decimal.Decimal
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		p, err := r.Proceeds.GetForUpdate(ctx, u.market, account)
		if err != nil {
			return err
		}
		if !p.Balance.IsPositive() {
			return domain.ErrNoProceeds
		}
		amount = p.Balance
		p.Balance = decimal.Zero
		if err := r.Proceeds.Save(ctx, p); err != nil {
			return err
		}
		ev := audit.New(audit.ProceedsWithdraw, 0, caller.Account, amount, now).
			With("market", string(u.market)).
			With("account", account).
			With("to", to)
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	if err := u.rail.Transfer(ctx, to, amount); err != nil {
		u.log.ErrorContext(ctx, "proceeds transfer failed", "account", account, "amount", amount.String(), "err", err)
		if rerr := u.restoreProceeds(ctx, caller, account, amount); rerr != nil {
			return nil, errors.Join(transferFailed(err), rerr)
		}
		return nil, transferFailed(err)
	}
	u.log.InfoContext(ctx, "proceeds withdrawn", "account", account, "to", to, "amount", amount.String())
	return &WithdrawalDTO{Market: string(u.market), Account: account, To: to, Amount: amount}, nil
}

func (u *Usecase) restoreProceeds(ctx context.Context, caller access.Caller, account string, amount decimal.Decimal) error {
	now := u.clock.Now()
	return u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		if err := r.Proceeds.Credit(ctx, u.market, account, amount); err != nil {
			return err
		}
		ev := audit.New(audit.ProceedsRestored, 0, caller.Account, amount, now).
			With("market", string(u.market)).
			With("account", account)
		return r.Events.Append(ctx, ev)
	})
}

func (u *Usecase) GetListing(ctx context.Context, id uint64) (*ListingDTO, error) {
	l, err := u.uow.Repos(ctx).Listings.Get(ctx, u.market, id)
	if err != nil {
		return nil, mapNotFound(err, domain.ErrNotFound)
	}
	return u.toDTO(l), nil
}

func (u *Usecase) Proceeds(ctx context.Context, account string) (*ProceedsDTO, error) {
	p, err := u.uow.Repos(ctx).Proceeds.Get(ctx, u.market, account)
	if err != nil {
		return nil, err
	}
	return &ProceedsDTO{Market: string(u.market), Account: account, Balance: p.Balance}, nil
}

// Quote is the pricing engine's reference value for id. Listing prices are
// not bound to it.
func (u *Usecase) Quote(ctx context.Context, id uint64) (*receivableUC.QuoteDTO, error) {
	return u.registry.Quote(ctx, id)
}

func (u *Usecase) toDTO(l *domain.Listing) *ListingDTO {
	dto := &ListingDTO{
		Market:       string(l.Market),
		ReceivableID: l.ReceivableID,
		Seller:       l.Seller,
		Price:        l.Price,
		Active:       l.Active,
		ListedAt:     l.ListedAt,
	}
	if u.cfg.ListingDuration > 0 {
		exp := l.ListedAt.Add(u.cfg.ListingDuration)
		dto.ExpiresAt = &exp
	}
	return dto
}

func mapNotFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func transferFailed(err error) error {
	if errors.Is(err, funds.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", funds.ErrTransferFailed, err)
}
