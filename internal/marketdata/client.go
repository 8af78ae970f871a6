package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"confluence-engine/internal/series"
)

// Fetcher is the candle-supplying collaborator: the engine only
// requires ordered, validated candle series from it
type Fetcher interface {
	Fetch(ctx context.Context, symbol, timeframe string, limit int) (*series.CandleSeries, error)
}

// Client fetches klines from the Binance REST API and converts them
// into validated candle series. It does not retry, cache or rate
// limit; callers own those policies.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST market data client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Fetch retrieves up to limit closed candles for the symbol/timeframe.
// Contract violations in the exchange payload (broken OHLC ordering,
// non-monotonic timestamps) are rejected here at the input boundary.
func (c *Client) Fetch(ctx context.Context, symbol, timeframe string, limit int) (*series.CandleSeries, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building klines request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading klines response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines API error: %s", string(body))
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("parsing klines: %w", err)
	}

	candles := make([]series.Candle, 0, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 6 {
			return nil, fmt.Errorf("kline %d: truncated row", i)
		}
		openTime, ok := raw[0].(float64)
		if !ok {
			return nil, fmt.Errorf("kline %d: bad open time", i)
		}
		candle := series.Candle{OpenTime: int64(openTime)}
		fields := []struct {
			name string
			dst  *float64
			raw  interface{}
		}{
			{"open", &candle.Open, raw[1]},
			{"high", &candle.High, raw[2]},
			{"low", &candle.Low, raw[3]},
			{"close", &candle.Close, raw[4]},
			{"volume", &candle.Volume, raw[5]},
		}
		for _, f := range fields {
			v, err := parseFloat(f.raw)
			if err != nil {
				return nil, fmt.Errorf("kline %d: bad %s: %w", i, f.name, err)
			}
			*f.dst = v
		}
		candles = append(candles, candle)
	}

	s, err := series.NewCandleSeries(symbol, timeframe, candles)
	if err != nil {
		return nil, fmt.Errorf("rejecting %s klines: %w", symbol, err)
	}
	return s, nil
}

// parseFloat handles Binance's string-encoded numeric fields. A value
// that is neither a numeric string nor a number is a payload defect and
// must fail the fetch rather than coerce to zero.
func parseFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric field %q: %w", val, err)
		}
		return f, nil
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("unexpected field type %T", v)
	}
}
