// Package pricing converts a receivable's face value into a present value
// using continuous-compounding time decay.
//
// e^(−x) is approximated by the 4-term alternating series
//
//	1 − x + x²/2 − x³/6 + x⁴/24
//
// evaluated in 1e18 fixed point with truncating integer division at every
// step. The truncation is only accurate for small x, so callers keep vesting
// periods at or below two years and annual rates at or below 25%. Outputs are
// reproducible bit-for-bit against other implementations of the same series.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput  = errors.New("invalid pricing input")
	ErrInvalidConfig = errors.New("invalid pricing configuration")
)

const (
	SecondsPerYear    int64  = 365 * 24 * 60 * 60
	BasisPoints       int64  = 10_000
	MaxRiskPremiumBP  uint32 = 2_000
	MaxRateBP         uint32 = 2_500
	DefaultBaseRateBP uint32 = 500

	Tiers = 3
)

var (
	scale = decimal.New(1, 18)
	bps   = decimal.NewFromInt(BasisPoints)
	year  = decimal.NewFromInt(SecondsPerYear)
)

// Engine holds the read-only rate table: a base rate plus one premium per
// risk tier, all in basis points.
type Engine struct {
	baseRateBP uint32
	premiumBP  [Tiers]uint32
}

func NewEngine(baseRateBP uint32, premiumBP [Tiers]uint32) (*Engine, error) {
	for tier, p := range premiumBP {
		if p > MaxRiskPremiumBP {
			return nil, fmt.Errorf("%w: premium for tier %d is %d bp, max %d", ErrInvalidConfig, tier, p, MaxRiskPremiumBP)
		}
		if baseRateBP+p > MaxRateBP {
			return nil, fmt.Errorf("%w: rate for tier %d is %d bp, max %d", ErrInvalidConfig, tier, baseRateBP+p, MaxRateBP)
		}
	}
	return &Engine{baseRateBP: baseRateBP, premiumBP: premiumBP}, nil
}

// RateBP is the effective annual rate for tier.
func (e *Engine) RateBP(tier uint8) (uint32, error) {
	if int(tier) >= Tiers {
		return 0, fmt.Errorf("%w: risk tier %d", ErrInvalidInput, tier)
	}
	return e.baseRateBP + e.premiumBP[tier], nil
}

// Price returns the present value of faceValue due in timeRemaining. A zero
// remaining time returns faceValue unchanged. The result never exceeds
// faceValue.
func (e *Engine) Price(faceValue decimal.Decimal, timeRemaining time.Duration, tier uint8) (decimal.Decimal, error) {
	if !faceValue.IsPositive() || !faceValue.IsInteger() {
		return decimal.Zero, fmt.Errorf("%w: face value %s", ErrInvalidInput, faceValue)
	}
	rate, err := e.RateBP(tier)
	if err != nil {
		return decimal.Zero, err
	}
	if timeRemaining < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative time remaining", ErrInvalidInput)
	}
	seconds := int64(timeRemaining / time.Second)
	if seconds == 0 {
		return faceValue, nil
	}
	return Discount(faceValue, rate, seconds), nil
}

// Decay returns the fixed-point (1e18) discount factor for rateBP over the
// given number of seconds.
func Decay(rateBP uint32, seconds int64) decimal.Decimal {
	timeFraction := mulDiv(decimal.NewFromInt(seconds), scale, year)
	x := mulDiv(decimal.NewFromInt(int64(rateBP)), timeFraction, bps)

	x2 := mulDiv(x, x, scale)
	x3 := mulDiv(x2, x, scale)
	x4 := mulDiv(x3, x, scale)

	return scale.
		Sub(x).
		Add(quo(x2, 2)).
		Sub(quo(x3, 6)).
		Add(quo(x4, 24))
}

// Discount applies Decay to faceValue, clamped to [0, faceValue].
func Discount(faceValue decimal.Decimal, rateBP uint32, seconds int64) decimal.Decimal {
	pv := mulDiv(faceValue, Decay(rateBP, seconds), scale)
	switch {
	case pv.IsNegative():
		return decimal.Zero
	case pv.GreaterThan(faceValue):
		return faceValue
	}
	return pv
}

// mulDiv computes floor(a·b / c) for non-negative operands.
func mulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

func quo(a decimal.Decimal, n int64) decimal.Decimal {
	q, _ := a.QuoRem(decimal.NewFromInt(n), 0)
	return q
}

// ApplyBP returns floor(amount·bp / 10000). Fees and collateral slices use
// it so every component rounds the same way.
func ApplyBP(amount decimal.Decimal, bp uint32) decimal.Decimal {
	return mulDiv(amount, decimal.NewFromInt(int64(bp)), bps)
}
