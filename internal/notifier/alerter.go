package notifier

import (
	"context"
	"time"

	"LovelyStaking/internal/model"

	"go.uber.org/zap"
)

// DeferredAlerter is an event sink that sends an alert whenever a settlement
// is deferred for lack of funds. Messages are queued and delivered by Run.
type DeferredAlerter struct {
	sender  Sender
	format  Formatter
	queue   chan string
	retries int
	backoff time.Duration
	log     *zap.Logger
}

func NewDeferredAlerter(sender Sender, format Formatter, logger *zap.Logger) *DeferredAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeferredAlerter{
		sender:  sender,
		format:  format,
		queue:   make(chan string, 64),
		retries: 3,
		backoff: time.Second,
		log:     logger,
	}
}

func (a *DeferredAlerter) HandleEvent(evt *model.Event) error {
	if evt.Kind != model.EventRewardsDeferred {
		return nil
	}
	select {
	case a.queue <- a.format.FormatDeferredAlert(evt):
	default:
		a.log.Warn("alert queue full, dropping deferred-rewards alert",
			zap.String("account", evt.Account.Hex()))
	}
	return nil
}

// Run delivers queued alerts until ctx is cancelled.
func (a *DeferredAlerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.queue:
			if err := sendWithRetry(ctx, a.sender, msg, a.retries, a.backoff, a.log); err != nil {
				a.log.Error("deferred-rewards alert failed", zap.Error(err))
			}
		}
	}
}
