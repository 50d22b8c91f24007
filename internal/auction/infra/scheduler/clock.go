package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Finalizer settles one auction. Implemented by the FinalizeAuctionUseCase.
type Finalizer interface {
	Execute(ctx context.Context, auctionID uuid.UUID) (*domain.AuctionResult, error)
}

// AuctionLister is the read side of the auction store the clock needs.
type AuctionLister interface {
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Auction, error)
	ListEndedUnsettled(ctx context.Context, from, to time.Time) ([]*domain.Auction, error)
}

// Locker keeps concurrent replicas from sweeping at the same time.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type Config struct {
	SweepInterval time.Duration
	SweepLookback time.Duration
}

type armed struct {
	timer clock.Timer
	gen   uint64
}

// AuctionClock owns one armed timer per auction. Timers live only in memory; Recover re-arms them
// after a restart and the periodic sweep catches any deadline a timer missed.
type AuctionClock struct {
	clock     clock.Clock
	finalizer Finalizer
	auctions  AuctionLister
	locker    Locker
	cfg       Config

	mu     sync.Mutex
	timers map[uuid.UUID]armed
	gen    uint64

	// runMu orders runs.Add against Stop; fire cannot use mu for it.
	runMu   sync.Mutex
	stopped bool
	runs    sync.WaitGroup
	stopCh  chan struct{}
	once    sync.Once
}

func NewAuctionClock(clk clock.Clock, finalizer Finalizer, auctions AuctionLister, cfg Config) *AuctionClock {
	return &AuctionClock{
		clock:     clk,
		finalizer: finalizer,
		auctions:  auctions,
		cfg:       cfg,
		timers:    make(map[uuid.UUID]armed),
		stopCh:    make(chan struct{}),
	}
}

// WithLocker makes SweepOnce skip when another replica holds the lock.
func (c *AuctionClock) WithLocker(l Locker) *AuctionClock {
	c.locker = l
	return c
}

// Schedule arms finalization of auctionID at endTime, replacing any timer already armed for it.
// A deadline in the past fires right away. Scheduling after Stop is a no-op.
func (c *AuctionClock) Schedule(auctionID uuid.UUID, endTime time.Time) {
	if c.isStopped() {
		log.Warn("Auction deadline ignored, clock stopped", zap.String("auctionID", auctionID.String()))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.timers[auctionID]; ok {
		prev.timer.Stop()
	}
	c.gen++
	gen := c.gen
	delay := endTime.Sub(c.clock.Now())
	timer := c.clock.AfterFunc(delay, func() { c.fire(auctionID, gen) })
	c.timers[auctionID] = armed{timer: timer, gen: gen}

	log.Info("Auction deadline armed",
		zap.String("auctionID", auctionID.String()),
		zap.Time("endTime", endTime),
		zap.Duration("in", delay),
	)
}

// Cancel disarms the timer of auctionID. Cancelling an auction with no timer is a no-op.
func (c *AuctionClock) Cancel(auctionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.timers[auctionID]
	if !ok {
		return
	}
	prev.timer.Stop()
	delete(c.timers, auctionID)
	log.Info("Auction deadline disarmed", zap.String("auctionID", auctionID.String()))
}

// Armed reports whether a timer is waiting for auctionID.
func (c *AuctionClock) Armed(auctionID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[auctionID]
	return ok
}

// fire may run on the goroutine that called Schedule (a fake clock fires past deadlines inline),
// so it must not take c.mu before handing off.
func (c *AuctionClock) fire(auctionID uuid.UUID, gen uint64) {
	c.runMu.Lock()
	if c.stopped {
		c.runMu.Unlock()
		return
	}
	c.runs.Add(1)
	c.runMu.Unlock()

	go func() {
		defer c.runs.Done()

		c.mu.Lock()
		current, ok := c.timers[auctionID]
		if !ok || current.gen != gen {
			c.mu.Unlock()
			return
		}
		delete(c.timers, auctionID)
		c.mu.Unlock()

		c.finalize(context.Background(), auctionID, "timer")
	}()
}

// finalize never lets a settlement failure escape; the sweep retries whatever stays unsettled.
func (c *AuctionClock) finalize(ctx context.Context, auctionID uuid.UUID, trigger string) {
	fields := []zap.Field{zap.String("auctionID", auctionID.String()), zap.String("trigger", trigger)}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Finalize panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	result, err := c.finalizer.Execute(ctx, auctionID)
	switch {
	case errors.Is(err, domain.ErrAuctionNotSettleable), errors.Is(err, domain.ErrAuctionNotFound):
		log.Warn("Scheduled finalize skipped", append(fields, zap.Error(err))...)
	case err != nil:
		log.Error("Scheduled finalize failed", append(fields, zap.Error(err))...)
	default:
		log.Info("Scheduled finalize done", append(fields, zap.String("outcome", string(result.Status)))...)
	}
}

// Recover arms a timer for every approved auction. Deadlines already passed fire immediately.
func (c *AuctionClock) Recover(ctx context.Context) (int, error) {
	auctions, err := c.auctions.ListByStatus(ctx, domain.StatusApproved)
	if err != nil {
		return 0, err
	}
	for _, a := range auctions {
		c.Schedule(a.ID, a.EndTime)
	}
	log.Info("Auction deadlines recovered", zap.Int("count", len(auctions)))
	return len(auctions), nil
}

// SweepOnce finalizes every approved auction whose deadline passed within the lookback window.
// It returns how many auctions it tried.
func (c *AuctionClock) SweepOnce(ctx context.Context) int {
	if c.locker != nil {
		ok, err := c.locker.TryLock(ctx)
		if err != nil {
			log.Error("Sweep lock failed", zap.Error(err))
			return 0
		}
		if !ok {
			log.Debug("Sweep skipped, another replica holds the lock")
			return 0
		}
		defer func() {
			if err := c.locker.Unlock(ctx); err != nil {
				log.Warn("Sweep unlock failed", zap.Error(err))
			}
		}()
	}

	now := c.clock.Now()
	due, err := c.auctions.ListEndedUnsettled(ctx, now.Add(-c.cfg.SweepLookback), now)
	if err != nil {
		log.Error("Sweep failed to list ended auctions", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	log.Info("Sweep found unsettled auctions", zap.Int("count", len(due)))
	for _, a := range due {
		c.finalize(ctx, a.ID, "sweep")
	}
	return len(due)
}

// Start runs the sweep on its interval until ctx is done or Stop is called.
func (c *AuctionClock) Start(ctx context.Context) {
	log.Info("Auction sweep started", zap.Duration("interval", c.cfg.SweepInterval))

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Auction sweep stopped by context")
			return
		case <-c.stopCh:
			log.Info("Auction sweep stopped")
			return
		case <-ticker.C:
			c.SweepOnce(ctx)
		}
	}
}

// Stop ends the sweep loop, disarms every timer and waits for running finalizations.
func (c *AuctionClock) Stop() {
	c.once.Do(func() { close(c.stopCh) })

	c.runMu.Lock()
	c.stopped = true
	c.runMu.Unlock()

	c.mu.Lock()
	for id, a := range c.timers {
		a.timer.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	c.runs.Wait()
}

func (c *AuctionClock) isStopped() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.stopped
}

// Wait blocks until every finalization started by a timer has returned.
func (c *AuctionClock) Wait() {
	c.runs.Wait()
}
