package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristianortiz/escrowEngine/internal/auction/application"
	"github.com/cristianortiz/escrowEngine/internal/auction/domain"
	auctionhttp "github.com/cristianortiz/escrowEngine/internal/auction/infra/http"
	"github.com/cristianortiz/escrowEngine/internal/auction/infra/livestate"
	auctionmemory "github.com/cristianortiz/escrowEngine/internal/auction/infra/repository/memory"
	auctionpg "github.com/cristianortiz/escrowEngine/internal/auction/infra/repository/postgres"
	"github.com/cristianortiz/escrowEngine/internal/auction/infra/scheduler"
	auctionws "github.com/cristianortiz/escrowEngine/internal/auction/infra/websocket"
	"github.com/cristianortiz/escrowEngine/internal/shared/clock"
	"github.com/cristianortiz/escrowEngine/internal/shared/config"
	"github.com/cristianortiz/escrowEngine/internal/shared/db"
	"github.com/cristianortiz/escrowEngine/internal/shared/db/migrations"
	"github.com/cristianortiz/escrowEngine/internal/shared/httpserver"
	"github.com/cristianortiz/escrowEngine/internal/shared/lock"
	"github.com/cristianortiz/escrowEngine/internal/shared/logger"
	"github.com/cristianortiz/escrowEngine/internal/shared/notify"
	"github.com/cristianortiz/escrowEngine/internal/shared/websocket"
	walletapp "github.com/cristianortiz/escrowEngine/internal/wallet/application"
	walletdomain "github.com/cristianortiz/escrowEngine/internal/wallet/domain"
	wallethttp "github.com/cristianortiz/escrowEngine/internal/wallet/infra/http"
	walletmemory "github.com/cristianortiz/escrowEngine/internal/wallet/infra/repository/memory"
	walletpg "github.com/cristianortiz/escrowEngine/internal/wallet/infra/repository/postgres"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	liveStateTTL    = 48 * time.Hour
)

// stores groups the Ledger Store repositories of the selected driver.
type stores struct {
	auctions     domain.AuctionRepository
	bids         domain.BidRepository
	results      domain.ResultRepository
	wallets      walletdomain.WalletRepository
	holds        walletdomain.HoldRepository
	transactions walletdomain.TransactionRepository
	txManager    db.TxManager
	close        func()
}

func main() {
	logger := logger.GetLogger()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("EscrowEngine stopped with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	logger.Info("Starting EscrowEngine server...")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rates, err := cfg.Auction.ParsedFeeRates()
	if err != nil {
		return err
	}
	platformAccount, err := uuid.Parse(cfg.Auction.PlatformAccountID)
	if err != nil {
		return fmt.Errorf("invalid platform account id: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var mirror domain.LiveStateMirror
	switch {
	case cfg.Auction.LiveStateBackend == "redis" && redisClient != nil:
		mirror = livestate.NewRedisMirror(redisClient, cfg.Auction.RecentBidWindow, liveStateTTL)
	case cfg.Auction.LiveStateBackend == "redis":
		return fmt.Errorf("live state backend redis requires redis.enabled")
	default:
		mirror = livestate.NewMemoryMirror(cfg.Auction.RecentBidWindow)
	}
	logger.Info("Live state mirror ready", zap.String("backend", cfg.Auction.LiveStateBackend))

	hub := websocket.NewHub()
	broadcaster := auctionws.NewBroadcaster(hub)

	notifiers := []notify.Notifier{broadcaster}
	if redisClient != nil {
		notifiers = append(notifiers, notify.NewRedisCacheInvalidator(redisClient))
	}
	if cfg.Kafka.Enabled {
		producer, err := notify.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		publisher := notify.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		logger.Info("Kafka publisher ready", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	clk := clock.NewSystem()
	fees := domain.FeeSchedule(rates)

	escrow := walletapp.NewEscrowService(st.wallets, st.holds, st.transactions, st.txManager, clk)
	if _, err := escrow.OpenWallet(ctx, platformAccount); err != nil {
		return fmt.Errorf("open platform wallet: %w", err)
	}

	finalizeUC := application.NewFinalizeAuctionUseCase(
		st.auctions, st.bids, st.results, escrow, mirror, notify.Fanout(notifiers...), st.txManager, clk,
		application.SettlementConfig{Fees: fees, PlatformAccount: platformAccount},
	)

	auctionClock := scheduler.NewAuctionClock(clk, finalizeUC, st.auctions, scheduler.Config{
		SweepInterval: cfg.Auction.SweepInterval,
		SweepLookback: cfg.Auction.SweepLookback,
	})
	if redisClient != nil {
		hostname, _ := os.Hostname()
		owner := fmt.Sprintf("%s-%s", hostname, uuid.NewString())
		auctionClock.WithLocker(lock.NewRedisLock(redisClient, "auction:sweep:lock", owner, cfg.Auction.SweepInterval))
	}

	auctionService := application.NewAuctionService(
		application.NewPlaceBidUseCase(st.auctions, st.bids, escrow, mirror, broadcaster, st.txManager, clk),
		application.NewGetLiveStateUseCase(st.auctions, st.bids, mirror, cfg.Auction.RecentBidWindow),
		finalizeUC,
		application.NewGetResultUseCase(st.results),
		application.NewManageAuctionUseCase(st.auctions, escrow, mirror, auctionClock, fees, st.txManager, clk),
	)

	// re-arm timers lost with the previous process, then catch anything they missed
	if _, err := auctionClock.Recover(ctx); err != nil {
		return fmt.Errorf("recover auction deadlines: %w", err)
	}
	auctionClock.SweepOnce(ctx)
	go auctionClock.Start(ctx)

	wsHandler := auctionws.NewAuctionWSHandler(auctionService, hub)
	go hub.Run(ctx)
	go wsHandler.ListenForMessages(ctx)

	server := httpserver.NewServer(
		wsHandler,
		auctionhttp.NewAuctionHandler(auctionService),
		wallethttp.NewWalletHandler(escrow),
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	auctionClock.Stop()
	finalizeUC.Wait()

	logger.Info("EscrowEngine stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("Using in-memory storage, state is lost on restart")
		return &stores{
			auctions:     auctionmemory.NewAuctionRepository(),
			bids:         auctionmemory.NewBidRepository(),
			results:      auctionmemory.NewResultRepository(),
			wallets:      walletmemory.NewWalletRepository(),
			holds:        walletmemory.NewHoldRepository(),
			transactions: walletmemory.NewTransactionRepository(),
			txManager:    db.NewLocalTxManager(),
			close:        func() {},
		}, nil

	case "postgres":
		logger.Info("Running database migrations...")
		if err := migrations.RunMigrations(cfg.DB.DSN()); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		pool, err := db.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		logger.Info("Database connected", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))
		return &stores{
			auctions:     auctionpg.NewAuctionRepository(pool),
			bids:         auctionpg.NewBidRepository(pool),
			results:      auctionpg.NewResultRepository(pool),
			wallets:      walletpg.NewWalletRepository(pool),
			holds:        walletpg.NewHoldRepository(pool),
			transactions: walletpg.NewTransactionRepository(pool),
			txManager:    db.NewPgTxManager(pool),
			close:        pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
