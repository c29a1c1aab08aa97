package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradewatch/internal/logger"
	"tradewatch/internal/market"
)

const (
	DefaultBaseURL  = "http://localhost:8000"
	defaultBarsBack = 200
)

// Client talks to the data service that serves bars and trendlines.
type Client struct {
	baseURL      string
	httpc        *http.Client
	priceTimeout time.Duration
	lineTimeout  time.Duration
	maxRetries   int
	backoff      time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpc = c
		}
	}
}

func WithTimeouts(price, trendlines time.Duration) Option {
	return func(cl *Client) {
		if price > 0 {
			cl.priceTimeout = price
		}
		if trendlines > 0 {
			cl.lineTimeout = trendlines
		}
	}
}

func WithRetries(max int, backoff time.Duration) Option {
	return func(cl *Client) {
		if max >= 0 {
			cl.maxRetries = max
		}
		if backoff >= 0 {
			cl.backoff = backoff
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      baseURL,
		httpc:        &http.Client{},
		priceTimeout: 10 * time.Second,
		lineTimeout:  5 * time.Second,
		maxRetries:   3,
		backoff:      100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ market.Source = (*Client)(nil)

// LatestPrice returns the close of the most recent one-minute bar. An empty bar list
// yields 0 and no error.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("timeframe", "1")
	q.Set("bars_back", "1")
	endpoint := fmt.Sprintf("%s/bars/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	ctx, cancel := context.WithTimeout(ctx, c.priceTimeout)
	defer cancel()
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("bars response is not valid json")
	}
	bars := gjson.ParseBytes(body)
	if !bars.IsArray() {
		return 0, fmt.Errorf("bars response is not an array")
	}
	items := bars.Array()
	if len(items) == 0 {
		return 0, nil
	}
	closeVal := items[len(items)-1].Get("close")
	if !closeVal.Exists() {
		return 0, fmt.Errorf("last bar has no close")
	}
	price := closeVal.Float()
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("last bar close %s is not a finite number", closeVal.Raw)
	}
	return price, nil
}

type trendlineRequest struct {
	Ticker     string `json:"ticker"`
	BarsBack   int    `json:"bars_back"`
	Timeframes []int  `json:"timeframes"`
	OnlyFinal  bool   `json:"only_final"`
}

// Trendlines returns the price relations per timeframe label.
func (c *Client) Trendlines(ctx context.Context, symbol string, timeframeMinutes int) (market.Trendlines, error) {
	payload, err := json.Marshal(trendlineRequest{
		Ticker:     symbol,
		BarsBack:   defaultBarsBack,
		Timeframes: []int{timeframeMinutes},
		OnlyFinal:  false,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.lineTimeout)
	defer cancel()
	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/trendlines", payload)
	if err != nil {
		return nil, err
	}
	return parseTrendlines(body)
}

func parseTrendlines(body []byte) (market.Trendlines, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("trendline response is not valid json")
	}
	frames := gjson.GetBytes(body, "timeframes")
	if !frames.IsObject() {
		return market.Trendlines{}, nil
	}
	out := market.Trendlines{}
	frames.ForEach(func(label, frame gjson.Result) bool {
		tf := market.TrendlineFrame{Label: label.String()}
		frame.Get("price_relations").ForEach(func(_, rel gjson.Result) bool {
			tf.PriceRelations = append(tf.PriceRelations, market.PriceRelation{
				Type:      rel.Get("type").String(),
				Proximity: strings.ToLower(rel.Get("proximity").String()),
				Distance:  rel.Get("distance").Float(),
			})
			return true
		})
		out[tf.Label] = tf
		return true
	})
	return out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s %s: status %d", method, endpoint, resp.StatusCode)
			logger.Debugf("marketdata: %v (attempt %d/%d)", lastErr, attempt+1, c.maxRetries+1)
			continue
		}
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("%s %s: status %d", method, endpoint, resp.StatusCode)
		}
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", endpoint, readErr)
		}
		return data, nil
	}
	return nil, lastErr
}
