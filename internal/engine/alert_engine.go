package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptofolio/internal/model"
	"cryptofolio/internal/repository"
	"cryptofolio/pkg/logger"
	"cryptofolio/pkg/telegram"
	"cryptofolio/pkg/utils"
)

// PriceFeed is the slice of market data the alert engine needs. Alerts
// carry no exchange account, so a single public feed serves all of them.
type PriceFeed interface {
	Change24h(ctx context.Context, symbol string) (float64, error)
}

// AlertEngine evaluates every active price alert against the 24-hour
// percent change and dispatches one notification per firing. Alerts are
// one-shot: the engine disarms them after the dispatch attempt and never
// re-arms them itself.
type AlertEngine struct {
	log      *logger.Logger
	alerts   repository.AlertRepository
	settings repository.UserSettingRepository
	notifier telegram.Notifier
	feed     PriceFeed
}

func NewAlertEngine(
	log *logger.Logger,
	alerts repository.AlertRepository,
	settings repository.UserSettingRepository,
	notifier telegram.Notifier,
	feed PriceFeed,
) *AlertEngine {
	return &AlertEngine{
		log:      log,
		alerts:   alerts,
		settings: settings,
		notifier: notifier,
		feed:     feed,
	}
}

func (e *AlertEngine) Run(ctx context.Context) error {
	alerts, err := e.alerts.Get(ctx, repository.GetAlertsParam{IsActive: utils.ToPointer(true)})
	if err != nil {
		return fmt.Errorf("failed to load active alerts: %w", err)
	}
	if len(alerts) == 0 {
		e.log.DebugContext(ctx, "No active alerts")
		return nil
	}

	for _, alert := range alerts {
		if !utils.ShouldContinue(ctx, e.log) {
			return nil
		}
		if err := e.process(ctx, alert); err != nil {
			return err
		}
	}
	return nil
}

func (e *AlertEngine) process(ctx context.Context, alert model.Alert) error {
	change, err := e.feed.Change24h(ctx, alert.Symbol)
	if err != nil {
		e.log.WarnContext(ctx, "Market data unavailable, skipping alert this tick",
			logger.IntField("alert_id", int(alert.ID)),
			logger.StringField("symbol", alert.Symbol),
			logger.ErrorField(err),
		)
		return nil
	}

	action := EvaluateAlert(alert, change)
	if action == AlertActionNone {
		return nil
	}

	e.log.InfoContext(ctx, "Alert condition reached",
		logger.IntField("alert_id", int(alert.ID)),
		logger.StringField("symbol", alert.Symbol),
		logger.StringField("action", action.String()),
		logger.Float64Field("change_pct", change),
	)

	if err := e.dispatch(ctx, alert, action, change); err != nil {
		return err
	}

	// The alert disarms after the attempt, delivered or not. A user with
	// a broken channel should not be paged every two minutes forever.
	if err := e.alerts.Disarm(ctx, alert.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to disarm alert %d: %w", alert.ID, err)
	}
	return nil
}

// dispatch resolves the user's delivery credentials and posts the
// message. Only repository errors propagate; delivery problems are the
// user's configuration to fix and must not stall the tick.
func (e *AlertEngine) dispatch(ctx context.Context, alert model.Alert, action AlertAction, change float64) error {
	setting, err := e.settings.GetByUserID(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("failed to load settings for user %d: %w", alert.UserID, err)
	}

	creds := telegram.Credentials{}
	if setting != nil {
		creds = telegram.Credentials{
			BotToken: setting.TelegramBotToken,
			ChatID:   setting.TelegramChatID,
		}
	}

	err = e.notifier.Send(ctx, creds, alertMessage(alert, action, change))
	switch {
	case errors.Is(err, telegram.ErrNotConfigured):
		e.log.WarnContext(ctx, "Telegram not configured, alert not delivered",
			logger.IntField("alert_id", int(alert.ID)),
			logger.IntField("user_id", int(alert.UserID)),
		)
	case err != nil:
		e.log.ErrorContext(ctx, "Failed to deliver alert notification",
			logger.IntField("alert_id", int(alert.ID)),
			logger.ErrorField(err),
		)
	default:
		e.log.InfoContext(ctx, "Alert notification delivered",
			logger.IntField("alert_id", int(alert.ID)),
		)
	}
	return nil
}

func alertMessage(alert model.Alert, action AlertAction, change float64) string {
	if action == AlertActionRise {
		return fmt.Sprintf("🚀 *Price rise alert!*\n\n*Symbol:* %s\n*24h change:* %s\n*Reference price:* %s",
			alert.Symbol, utils.FormatPercentage(change), utils.FormatPrice(alert.ReferencePrice))
	}
	return fmt.Sprintf("🔻 *Price fall alert!*\n\n*Symbol:* %s\n*24h change:* %s\n*Reference price:* %s",
		alert.Symbol, utils.FormatPercentage(change), utils.FormatPrice(alert.ReferencePrice))
}
