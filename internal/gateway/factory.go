package gateway

import (
	"fmt"
	"net/url"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/gateway/marketdata"
	"tradewatch/internal/market"
)

const retryBackoff = 500 * time.Millisecond

// NewSourceFromConfig builds the market data client described by cfg.
func NewSourceFromConfig(cfg config.MarketConfig) (market.Source, error) {
	u, err := url.Parse(cfg.DataServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("unsupported market data url: %q", cfg.DataServiceURL)
	}
	return marketdata.New(cfg.DataServiceURL,
		marketdata.WithTimeouts(
			time.Duration(cfg.PriceTimeoutSeconds)*time.Second,
			time.Duration(cfg.TrendlineTimeoutSeconds)*time.Second,
		),
		marketdata.WithRetries(cfg.MaxRetries, retryBackoff),
	), nil
}
