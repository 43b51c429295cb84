package consumer

import (
	"context"
	"encoding/json"
	"time"

	"ashare-sentinel/internal/realtime/config"
	"ashare-sentinel/internal/realtime/dto"
	"ashare-sentinel/pkg/common"
	"ashare-sentinel/pkg/logger"
	"ashare-sentinel/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// QuoteStreamConsumer reads live quotes from the market-data Redis stream
// and exposes them as a channel. It implements service.QuoteFeed.
type QuoteStreamConsumer struct {
	cfg         *config.Config
	redisClient *redis.Client
	logger      *logger.Logger
}

// NewQuoteStreamConsumer creates a new QuoteStreamConsumer.
func NewQuoteStreamConsumer(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) *QuoteStreamConsumer {
	return &QuoteStreamConsumer{
		cfg:         cfg,
		redisClient: redisClient,
		logger:      log,
	}
}

// Subscribe starts the consume loop and returns the tick channel. The
// channel closes when the context is cancelled.
func (c *QuoteStreamConsumer) Subscribe(ctx context.Context) (<-chan dto.Quote, error) {
	if err := c.redisClient.XGroupCreateMkStream(ctx, common.RedisStreamMarketQuote, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return nil, err
		}
	}

	ticks := make(chan dto.Quote, c.cfg.Realtime.TickBuffer)
	utils.GoSafe(func() {
		defer close(ticks)
		c.logger.Info("Quote stream consumer started", logger.StringField("stream", common.RedisStreamMarketQuote))
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Quote stream consumer stopping")
				return
			default:
			}

			streams, err := c.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    common.RedisStreamGroup,
				Consumer: common.RedisStreamConsumer,
				Streams:  []string{common.RedisStreamMarketQuote, ">"},
				Count:    256,
				Block:    2 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err != redis.Nil {
					c.logger.Error("Failed to read quote stream", logger.ErrorField(err))
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					c.handleMessage(ctx, message, ticks)
				}
			}
		}
	})
	return ticks, nil
}

func (c *QuoteStreamConsumer) handleMessage(ctx context.Context, message redis.XMessage, ticks chan<- dto.Quote) {
	defer c.redisClient.XAck(ctx, common.RedisStreamMarketQuote, common.RedisStreamGroup, message.ID)

	payload, ok := message.Values["payload"].(string)
	if !ok {
		c.logger.Warn("Quote message missing payload", logger.StringField("id", message.ID))
		return
	}
	var quote dto.Quote
	if err := json.Unmarshal([]byte(payload), &quote); err != nil {
		c.logger.Warn("Failed to unmarshal quote", logger.StringField("id", message.ID), logger.ErrorField(err))
		return
	}
	select {
	case ticks <- quote:
	case <-ctx.Done():
	}
}
