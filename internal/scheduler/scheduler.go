package scheduler

import (
	"context"
	"fmt"
	"sync"

	"LovelyStaking/internal/model"
	"LovelyStaking/internal/notifier"
	"LovelyStaking/internal/recorder"

	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Ledger is the read side of the staking ledger the reports are built from.
type Ledger interface {
	Summary() model.Summary
}

// Notifier delivers report messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Ledger   Ledger
	Notifier Notifier
	Recorder recorder.Recorder
	Format   notifier.Formatter
	LowFund  uint256.Int
	Ctx      context.Context

	log *zap.Logger

	mu         sync.Mutex
	lowAlerted bool
}

// NewScheduler creates a new Scheduler. A nil notifier disables messages;
// reports are still recorded.
func NewScheduler(ctx context.Context, ledger Ledger, tn Notifier, rec recorder.Recorder,
	format notifier.Formatter, lowFund uint256.Int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Ledger:   ledger,
		Notifier: tn,
		Recorder: rec,
		Format:   format,
		LowFund:  lowFund,
		Ctx:      ctx,
		log:      logger,
	}
}

// RegisterAll registers the report and fund-check tasks.
func (s *Scheduler) RegisterAll(reportCron, fundCheckCron string) error {
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	if _, err := s.Cron.AddFunc(fundCheckCron, s.fundCheck); err != nil {
		return fmt.Errorf("register fund check: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunReportNow executes the report task immediately.
func (s *Scheduler) RunReportNow() {
	s.reportTask()
}

func (s *Scheduler) reportTask() {
	s.log.Info("running report task")
	sum := s.Ledger.Summary()

	if err := s.Recorder.RecordSnapshot(&sum); err != nil {
		s.log.Error("record snapshot", zap.Error(err))
	}
	s.trySend(s.Format.FormatPoolReport(&sum))
}

// fundCheck alerts once when the fund drops below the threshold and re-arms
// after it recovers.
func (s *Scheduler) fundCheck() {
	sum := s.Ledger.Summary()
	low := sum.RewardFund.Lt(&s.LowFund)

	s.mu.Lock()
	alert := low && !s.lowAlerted
	s.lowAlerted = low
	s.mu.Unlock()

	if alert {
		s.log.Warn("reward fund below threshold",
			zap.String("fund", sum.RewardFund.Dec()),
			zap.String("threshold", s.LowFund.Dec()))
		s.trySend(s.Format.FormatLowFund(sum.RewardFund, s.LowFund))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/fund":
		sum := s.Ledger.Summary()
		return s.Format.FormatFundStatus(&sum)
	case "/pools":
		sum := s.Ledger.Summary()
		return s.Format.FormatPoolReport(&sum)
	case "/events":
		events, err := s.Recorder.RecentEvents(10)
		if err != nil {
			s.log.Error("load recent events", zap.Error(err))
			return "❌ could not load events"
		}
		return s.Format.FormatEvents(events)
	case "/report":
		s.reportTask()
		return ""
	default:
		return "Commands:\n• /fund\n• /pools\n• /events\n• /report"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error("send notification", zap.Error(err))
	}
}
