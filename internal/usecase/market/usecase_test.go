package market_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/funds"
	"receivables-engine/internal/domain/lock"
	domain "receivables-engine/internal/domain/market"
	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/testutil/enginetest"
	marketUC "receivables-engine/internal/usecase/market"
	receivableUC "receivables-engine/internal/usecase/receivable"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = enginetest.Day

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// primarySale mints a receivable and sells it on the primary market to Alice.
func primarySale(t *testing.T, e *enginetest.Engine) uint64 {
	t.Helper()
	ctx := context.Background()
	id := e.Mint(t, 1000, 180*day, 0)
	_, err := e.Primary.List(ctx, e.Caller(enginetest.Issuer), id, d(950))
	require.NoError(t, err)
	_, err = e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(950))
	require.NoError(t, err)
	return id
}

func TestNewUsecase_RejectsBadConfig(t *testing.T) {
	_, err := marketUC.NewUsecase("tertiary", nil, nil, nil, nil, marketUC.Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidMarket)
	_, err = marketUC.NewUsecase(domain.MarketPrimary, nil, nil, nil, nil, marketUC.Config{ProtocolFeeBP: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidMarket)
	_, err = marketUC.NewUsecase(domain.MarketSecondary, nil, nil, nil, nil, marketUC.Config{ProtocolFeeBP: 10_001})
	assert.ErrorIs(t, err, domain.ErrInvalidMarket)
}

func TestPrimary_ListAndBuy(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := e.Mint(t, 1000, 180*day, 0)

	l, err := e.Primary.List(ctx, e.Caller(enginetest.Issuer), id, d(950))
	require.NoError(t, err)
	assert.True(t, l.Active)
	assert.Nil(t, l.ExpiresAt, "primary listings never expire")

	trade, err := e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(1000))
	require.NoError(t, err)
	assert.True(t, trade.Fee.IsZero())
	assert.True(t, trade.SellerProceeds.Equal(d(950)))
	assert.True(t, trade.Refund.Equal(d(50)))

	rec, err := e.Receivables.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enginetest.Alice, rec.Holder)
	assert.Equal(t, enginetest.Issuer, rec.Issuer)

	seller, _ := e.Primary.Proceeds(ctx, enginetest.Issuer)
	buyer, _ := e.Primary.Proceeds(ctx, enginetest.Alice)
	assert.True(t, seller.Balance.Equal(d(950)))
	assert.True(t, buyer.Balance.Equal(d(50)), "overpayment is refunded through proceeds")

	got, err := e.Primary.GetListing(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = e.Primary.Buy(ctx, e.Caller(enginetest.Bob), id, d(1000))
	assert.ErrorIs(t, err, domain.ErrListingInactive, "second buy must fail")
}

func TestPrimary_OnlyIssuerHolderMayList(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := primarySale(t, e)
	e.Approve(t, enginetest.Alice)

	_, err := e.Primary.List(ctx, e.Caller(enginetest.Alice), id, d(960))
	assert.ErrorIs(t, err, domain.ErrNotOwner, "holder who is not the issuer")
	_, err = e.Primary.List(ctx, e.Caller(enginetest.Issuer), id, d(960))
	assert.ErrorIs(t, err, domain.ErrNotOwner, "issuer who no longer holds")
}

func TestList_Validation(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	issuer := e.Caller(enginetest.Issuer)

	unapproved, err := e.Receivables.Create(ctx, issuer, receivableInput(1000))
	require.NoError(t, err)
	_, err = e.Primary.List(ctx, issuer, unapproved.ID, d(900))
	assert.ErrorIs(t, err, receivable.ErrNotApproved)

	id := e.Mint(t, 1000, 180*day, 0)
	for _, price := range []decimal.Decimal{d(0), d(-1), d(1001), decimal.RequireFromString("99.5")} {
		_, err := e.Primary.List(ctx, issuer, id, price)
		assert.ErrorIs(t, err, domain.ErrInvalidPrice, "price %s", price)
	}
	_, err = e.Primary.List(ctx, issuer, 999, d(10))
	assert.ErrorIs(t, err, receivable.ErrNotFound)
	_, err = e.Primary.List(ctx, e.Caller(enginetest.Bob), id, d(10))
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	e.Clock.Advance(180 * day)
	_, err = e.Primary.List(ctx, issuer, id, d(1000))
	assert.ErrorIs(t, err, domain.ErrNotTradable, "matured receivables are not listed")
}

func receivableInput(face int64) receivableUC.CreateInput {
	return receivableUC.CreateInput{FaceValue: d(face), VestingPeriod: 180 * day}
}

func TestList_ReplacesExistingListing(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	issuer := e.Caller(enginetest.Issuer)
	id := e.Mint(t, 1000, 180*day, 0)

	_, err := e.Primary.List(ctx, issuer, id, d(950))
	require.NoError(t, err)
	_, err = e.Primary.List(ctx, issuer, id, d(970))
	require.NoError(t, err)

	_, err = e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(960))
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment, "only the replacement price applies")
	trade, err := e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(970))
	require.NoError(t, err)
	assert.True(t, trade.Price.Equal(d(970)))
}

func TestSecondary_FeeAndExpiry(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := primarySale(t, e)
	e.Approve(t, enginetest.Alice)
	alice := e.Caller(enginetest.Alice)

	l, err := e.Secondary.List(ctx, alice, id, d(960))
	require.NoError(t, err)
	require.NotNil(t, l.ExpiresAt)
	assert.True(t, l.ExpiresAt.Equal(enginetest.Start.Add(enginetest.ListingDuration)))

	_, err = e.Secondary.Buy(ctx, alice, id, d(960))
	assert.ErrorIs(t, err, domain.ErrSelfPurchase)

	trade, err := e.Secondary.Buy(ctx, e.Caller(enginetest.Bob), id, d(960))
	require.NoError(t, err)
	// 2.5% of 960
	assert.True(t, trade.Fee.Equal(d(24)))
	assert.True(t, trade.SellerProceeds.Equal(d(936)))

	p, _ := e.Secondary.Proceeds(ctx, domain.ProtocolAccount)
	assert.True(t, p.Balance.Equal(d(24)))
	p, _ = e.Secondary.Proceeds(ctx, enginetest.Alice)
	assert.True(t, p.Balance.Equal(d(936)))

	// the expired listing is refused but left untouched
	e.Approve(t, enginetest.Bob)
	_, err = e.Secondary.List(ctx, e.Caller(enginetest.Bob), id, d(990))
	require.NoError(t, err)
	e.Clock.Advance(enginetest.ListingDuration + time.Second)
	_, err = e.Secondary.Buy(ctx, alice, id, d(990))
	assert.ErrorIs(t, err, domain.ErrListingExpired)
	got, err := e.Secondary.GetListing(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestSecondary_WindowBoundary(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := primarySale(t, e)
	e.Approve(t, enginetest.Alice)

	_, err := e.Secondary.List(ctx, e.Caller(enginetest.Alice), id, d(960))
	require.NoError(t, err)
	e.Clock.Advance(enginetest.ListingDuration)
	_, err = e.Secondary.Buy(ctx, e.Caller(enginetest.Bob), id, d(960))
	assert.NoError(t, err, "a listing is valid up to and including its last second")
}

func TestBuy_StaleListing(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := primarySale(t, e)
	e.Approve(t, enginetest.Alice)
	alice := e.Caller(enginetest.Alice)

	_, err := e.Secondary.List(ctx, alice, id, d(960))
	require.NoError(t, err)
	// the holder moves the receivable away from under the listing
	require.NoError(t, e.Receivables.TransferHolder(ctx, alice, id, enginetest.Alice, enginetest.Bob))

	_, err = e.Secondary.Buy(ctx, e.Caller(enginetest.Issuer), id, d(960))
	assert.ErrorIs(t, err, domain.ErrListingInactive)
	rec, _ := e.Receivables.Get(ctx, id)
	assert.Equal(t, enginetest.Bob, rec.Holder)
}

func TestBuy_RevokedApprovalRollsBack(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	issuer := e.Caller(enginetest.Issuer)
	id := e.Mint(t, 1000, 180*day, 0)

	_, err := e.Primary.List(ctx, issuer, id, d(950))
	require.NoError(t, err)
	require.NoError(t, e.Receivables.SetOperatorApproval(ctx, issuer, domain.MarketPrimary.Operator(), false))

	_, err = e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(950))
	assert.ErrorIs(t, err, receivable.ErrNotApproved)

	l, _ := e.Primary.GetListing(ctx, id)
	assert.True(t, l.Active, "failed buy leaves the listing active")
	p, _ := e.Primary.Proceeds(ctx, enginetest.Issuer)
	assert.True(t, p.Balance.IsZero(), "failed buy credits nothing")
}

func TestCancel(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	issuer := e.Caller(enginetest.Issuer)
	id := e.Mint(t, 1000, 180*day, 0)

	assert.ErrorIs(t, e.Primary.Cancel(ctx, issuer, id), domain.ErrNotFound)
	_, err := e.Primary.List(ctx, issuer, id, d(950))
	require.NoError(t, err)

	assert.ErrorIs(t, e.Primary.Cancel(ctx, e.Caller(enginetest.Alice), id), domain.ErrNotSeller)
	require.NoError(t, e.Primary.Cancel(ctx, issuer, id))
	assert.ErrorIs(t, e.Primary.Cancel(ctx, issuer, id), domain.ErrListingInactive)

	_, err = e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(950))
	assert.ErrorIs(t, err, domain.ErrListingInactive)
}

func TestPaused(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := e.Mint(t, 1000, 180*day, 0)
	e.Switch.Set(true)

	_, err := e.Primary.List(ctx, e.Caller(enginetest.Issuer), id, d(950))
	assert.ErrorIs(t, err, access.ErrPaused)

	e.Switch.Set(false)
	_, err = e.Primary.List(ctx, e.Caller(enginetest.Issuer), id, d(950))
	require.NoError(t, err)
	e.Switch.Set(true)
	_, err = e.Primary.Buy(ctx, e.Caller(enginetest.Alice), id, d(950))
	assert.ErrorIs(t, err, access.ErrPaused)
}

func TestWithdrawProceeds(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	primarySale(t, e)
	issuer := e.Caller(enginetest.Issuer)

	w, err := e.Primary.WithdrawProceeds(ctx, issuer)
	require.NoError(t, err)
	assert.True(t, w.Amount.Equal(d(950)))
	assert.True(t, e.WalletBalance(t, enginetest.Issuer).Equal(d(950)))

	_, err = e.Primary.WithdrawProceeds(ctx, issuer)
	assert.ErrorIs(t, err, domain.ErrNoProceeds)
}

func TestWithdrawProceeds_ReentrantCallIsRejected(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	primarySale(t, e)
	issuer := e.Caller(enginetest.Issuer)

	var reentryErr error
	var seen decimal.Decimal
	e.Rail.TransferFn = func(ctx context.Context, to string, amount decimal.Decimal) error {
		// the receiver calls straight back in before the transfer returns
		p, _ := e.Primary.Proceeds(ctx, enginetest.Issuer)
		seen = p.Balance
		_, reentryErr = e.Primary.WithdrawProceeds(ctx, issuer)
		return e.Wallet.Transfer(ctx, to, amount)
	}

	_, err := e.Primary.WithdrawProceeds(ctx, issuer)
	require.NoError(t, err)
	assert.ErrorIs(t, reentryErr, lock.ErrBusy)
	assert.True(t, seen.IsZero(), "balance is zeroed before the transfer")
	assert.Len(t, e.Rail.Calls(), 1)
	assert.True(t, e.WalletBalance(t, enginetest.Issuer).Equal(d(950)))
}

func TestWithdrawProceeds_TransferFailureRestoresBalance(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	primarySale(t, e)
	e.Rail.TransferFn = func(context.Context, string, decimal.Decimal) error { return errors.New("bank offline") }

	_, err := e.Primary.WithdrawProceeds(ctx, e.Caller(enginetest.Issuer))
	assert.ErrorIs(t, err, funds.ErrTransferFailed)
	p, _ := e.Primary.Proceeds(ctx, enginetest.Issuer)
	assert.True(t, p.Balance.Equal(d(950)))
	assert.True(t, e.WalletBalance(t, enginetest.Issuer).IsZero())
}

func TestWithdrawProtocolFees(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := primarySale(t, e)
	e.Approve(t, enginetest.Alice)
	_, err := e.Secondary.List(ctx, e.Caller(enginetest.Alice), id, d(960))
	require.NoError(t, err)
	_, err = e.Secondary.Buy(ctx, e.Caller(enginetest.Bob), id, d(960))
	require.NoError(t, err)

	_, err = e.Secondary.WithdrawProtocolFees(ctx, e.Caller(enginetest.Alice), enginetest.Alice)
	assert.ErrorIs(t, err, access.ErrUnauthorized)
	_, err = e.Secondary.WithdrawProtocolFees(ctx, e.Caller(enginetest.AdminAcc), "")
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	w, err := e.Secondary.WithdrawProtocolFees(ctx, e.Caller(enginetest.AdminAcc), enginetest.AdminAcc)
	require.NoError(t, err)
	assert.True(t, w.Amount.Equal(d(24)))
	assert.True(t, e.WalletBalance(t, enginetest.AdminAcc).Equal(d(24)))
}

func TestQuote_IsReferenceOnly(t *testing.T) {
	e := enginetest.New(t)
	ctx := context.Background()
	id := e.Mint(t, 1000, 90*day, 1)

	q, err := e.Secondary.Quote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(982), q.Price.IntPart())

	// listing above the quote is allowed as long as it stays within face value
	_, err = e.Primary.List(ctx, e.Caller(enginetest.Issuer), id, d(1000))
	assert.NoError(t, err)
}
