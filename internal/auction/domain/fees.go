package domain

import (
	"github.com/shopspring/decimal"
)

// Proceeds is how a final bid is split between seller and platform.
type Proceeds struct {
	SellerCredit decimal.Decimal
	PlatformFee  decimal.Decimal
}

// SplitProceeds rounds the fee and the seller share to cents independently. When the two roundings
// disagree by a cent, the platform fee absorbs the difference so both parts always sum to final.
func SplitProceeds(final, rate decimal.Decimal) Proceeds {
	final = final.Round(2)
	fee := final.Mul(rate).Round(2)
	seller := final.Mul(decimal.NewFromInt(1).Sub(rate)).Round(2)
	if diff := final.Sub(fee.Add(seller)); !diff.IsZero() {
		fee = fee.Add(diff)
	}
	return Proceeds{SellerCredit: seller, PlatformFee: fee}
}

// FeeSchedule maps auction categories to platform fee rates.
type FeeSchedule map[string]decimal.Decimal

func (s FeeSchedule) RateFor(category string) (decimal.Decimal, error) {
	rate, ok := s[category]
	if !ok {
		return decimal.Zero, ErrUnknownCategory
	}
	return rate, nil
}
