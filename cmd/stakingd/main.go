package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"LovelyStaking/internal/api"
	"LovelyStaking/internal/config"
	"LovelyStaking/internal/logging"
	"LovelyStaking/internal/model"
	"LovelyStaking/internal/notifier"
	"LovelyStaking/internal/recorder"
	"LovelyStaking/internal/scheduler"
	"LovelyStaking/internal/staking"
	"LovelyStaking/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("LovelyStaking starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config validation", zap.Error(err))
	}
	contract, _ := cfg.ContractAddress()
	owner, _ := cfg.OwnerAddress()
	poolCap, _ := cfg.PoolCap()
	lowFund, _ := cfg.FundLowThreshold()

	for _, p := range []string{cfg.Staking.StateFile, cfg.Database.SQLitePath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			logger.Fatal("create data dir", zap.String("path", p), zap.Error(err))
		}
	}

	// Init token ledger
	ledger := seedLedger(cfg, contract, logger)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger.Named("recorder"))
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	format := notifier.Formatter{Decimals: cfg.Token.Decimals}
	var (
		tn    *notifier.TelegramNotifier
		sinks = []staking.EventSink{recorder.Sink{Recorder: rec}}
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger.Named("telegram"))
		alerter := notifier.NewDeferredAlerter(tn, format, logger.Named("alerts"))
		sinks = append(sinks, alerter)
		go alerter.Run(ctx)
	} else {
		logger.Info("telegram not configured, notifications disabled")
	}

	// Init staking ledger
	svc, err := staking.New(ledger, staking.Options{
		Token:            cfg.TokenAddress(),
		Contract:         contract,
		Owner:            owner,
		MaxDaysToClose:   cfg.Staking.MaxDaysToClose,
		MaxTokensPerPool: poolCap,
		PoolDurations:    cfg.Staking.PoolDurations,
		PoolAPYs:         cfg.Staking.PoolAPYs,
		StateFile:        cfg.Staking.StateFile,
		Logger:           logger.Named("staking"),
		Sinks:            sinks,
	})
	if err != nil {
		logger.Fatal("init staking ledger", zap.Error(err))
	}

	// Init scheduler
	var sn scheduler.Notifier
	if tn != nil {
		sn = tn
	}
	sched := scheduler.NewScheduler(ctx, svc, sn, rec, format, lowFund, logger.Named("scheduler"))
	if err := sched.RegisterAll(cfg.Schedule.ReportCron, cfg.Schedule.FundCheckCron); err != nil {
		logger.Fatal("register cron tasks", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	// Start HTTP API
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewController(svc, rec, logger.Named("api")).NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()
	logger.Info("http api listening", zap.String("addr", cfg.HTTP.Addr))

	// Optional: report immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, sending report now")
		go sched.RunReportNow()
	}

	logger.Info("LovelyStaking is running. Press Ctrl+C to stop.", zap.Stringer("ledger", svc))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	logger.Info("LovelyStaking stopped")
}

// seedLedger builds the in-process token ledger and credits the dev balances.
// Seeded accounts approve the contract for everything they hold.
func seedLedger(cfg *config.Config, contract common.Address, logger *zap.Logger) *token.MemoryLedger {
	ledger := token.NewMemoryLedger()
	for addr, amount := range cfg.Dev.Balances {
		account, _ := model.ParseAddress(addr)
		value, _ := model.ParseTokens(amount, cfg.Token.Decimals)
		ledger.Mint(account, value)

		var unlimited uint256.Int
		unlimited.SetAllOne()
		ledger.Approve(account, contract, unlimited)
		logger.Debug("seeded balance", zap.String("account", account.Hex()), zap.String("amount", value.Dec()))
	}
	logger.Info("in-memory token ledger ready", zap.Int("seeded_accounts", len(cfg.Dev.Balances)))
	return ledger
}
