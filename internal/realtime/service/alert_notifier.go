package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ashare-sentinel/internal/condition"
	"ashare-sentinel/internal/entity"
	"ashare-sentinel/internal/realtime/dto"
	"ashare-sentinel/internal/repository"
	"ashare-sentinel/pkg/logger"
	"ashare-sentinel/pkg/telegram"

	"golang.org/x/time/rate"
)

// AlertNotifier persists alert records and pushes Telegram notifications.
// The push is rate-limited so a notification burst cannot trip the bot
// API; persistence happens first so a push failure never loses the record.
type AlertNotifier struct {
	logger    *logger.Logger
	alertRepo repository.AlertRecordRepository
	notifier  telegram.Notifier
	limiter   *rate.Limiter
}

// NewAlertNotifier creates an AlertNotifier.
func NewAlertNotifier(log *logger.Logger, alertRepo repository.AlertRecordRepository, notifier telegram.Notifier, perSecond float64) *AlertNotifier {
	return &AlertNotifier{
		logger:    log,
		alertRepo: alertRepo,
		notifier:  notifier,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Deliver implements AlertSink.
func (n *AlertNotifier) Deliver(ctx context.Context, event dto.AlertEvent) error {
	vectorJSON, err := json.Marshal(event.Vector)
	if err != nil {
		return fmt.Errorf("failed to marshal condition vector: %w", err)
	}

	record := &entity.AlertRecord{
		Symbol:          event.Symbol,
		TradeDate:       event.TradeDate,
		TriggeredAt:     event.TriggeredAt,
		Price:           event.Price,
		ConditionVector: vectorJSON,
	}
	if err := n.alertRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to persist alert record: %w", err)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	message := telegram.FormatStockAlertForTelegram(
		event.Symbol, event.Name, event.Price, event.TriggeredAt,
		event.Vector.SatisfiedCount(), condition.NumConditions)
	if err := n.notifier.SendMessage(message); err != nil {
		// the record is already durable; the push transport retries on
		// its side
		n.logger.Error("Failed to push alert notification",
			logger.StringField("symbol", event.Symbol), logger.ErrorField(err))
	}

	n.logger.Info("Alert delivered",
		logger.StringField("symbol", event.Symbol),
		logger.StringField("triggered_at", event.TriggeredAt.Format("15:04:05")))
	return nil
}
