package notify

import (
	"context"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionSettled describes a finished settlement. Affected lists every user whose wallet view changed
// or whose hold was released.
type AuctionSettled struct {
	AuctionID    uuid.UUID           `json:"auction_id"`
	SellerID     uuid.UUID           `json:"seller_id"`
	WinnerID     *uuid.UUID          `json:"winner_id,omitempty"`
	FinalBid     decimal.NullDecimal `json:"final_bid"`
	Status       string              `json:"status"`
	SellerCredit decimal.Decimal     `json:"seller_credit"`
	PlatformFee  decimal.Decimal     `json:"platform_fee"`
	Affected     []uuid.UUID         `json:"-"`
	SettledAt    time.Time           `json:"settled_at"`
}

// Notifier receives fire-and-forget settlement side effects.
type Notifier interface {
	AuctionSettled(ctx context.Context, ev AuctionSettled) error
}

type fanout []Notifier

// Fanout calls every notifier, logging each failure and returning them combined.
func Fanout(notifiers ...Notifier) Notifier {
	return fanout(notifiers)
}

func (f fanout) AuctionSettled(ctx context.Context, ev AuctionSettled) error {
	var errs error
	for _, n := range f {
		if err := n.AuctionSettled(ctx, ev); err != nil {
			log.Error("Settlement notification failed",
				zap.String("auctionID", ev.AuctionID.String()),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
