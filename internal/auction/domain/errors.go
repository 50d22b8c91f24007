package domain

import "errors"

// bid rejections
var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotOpen    = errors.New("auction is not open for bidding")
	ErrAuctionNotStarted = errors.New("auction has not started yet")
	ErrAuctionEnded      = errors.New("auction has already ended")
	ErrSelfBidding       = errors.New("sellers cannot bid on their own auction")
	ErrBidTooLow         = errors.New("bid amount is below the minimum next bid")
	ErrInsufficientFunds = errors.New("insufficient available funds for this bid")
	ErrWalletMissing     = errors.New("bidder has no wallet")
	ErrInvalidAmount     = errors.New("bid amount must be positive with at most two decimals")
)

var (
	ErrInvalidAuction       = errors.New("invalid auction details")
	ErrUnknownCategory      = errors.New("unknown auction category")
	ErrInvalidTransition    = errors.New("invalid auction status transition")
	ErrAuctionNotEditable   = errors.New("auction can no longer be edited")
	ErrNotAuctionSeller     = errors.New("only the seller can change this auction")
	ErrAuctionNotSettleable = errors.New("auction is not in a settleable state")
	ErrResultExists         = errors.New("auction result already exists")
	ErrResultNotFound       = errors.New("auction result not found")
)

var bidRejections = []error{
	ErrAuctionNotFound,
	ErrAuctionNotOpen,
	ErrAuctionNotStarted,
	ErrAuctionEnded,
	ErrSelfBidding,
	ErrBidTooLow,
	ErrInsufficientFunds,
	ErrWalletMissing,
	ErrInvalidAmount,
}

// BidRejection returns the bid rejection kind wrapped in err, if any. Its message is the
// human readable reason shown to the bidder.
func BidRejection(err error) (error, bool) {
	for _, kind := range bidRejections {
		if errors.Is(err, kind) {
			return kind, true
		}
	}
	return nil, false
}
