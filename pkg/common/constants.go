package common

const (
	RedisStreamMarketQuote = "market.quote.tick"

	RedisStreamGroup    = "sentinel-group"
	RedisStreamConsumer = "sentinel-consumer"
)
