package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	TestnetBaseURL = "https://testnet.binance.vision"

	// MaxKlinesPerRequest is the largest page /api/v3/klines serves.
	MaxKlinesPerRequest = 1000
)

// Client is a throttled client for the public spot market-data endpoints.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient builds a client for baseURL allowing rps requests per second.
// A non-positive rps disables throttling.
func NewClient(baseURL string, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	http := resty.New()
	http.SetBaseURL(baseURL)
	http.SetTimeout(10 * time.Second)
	http.SetRetryCount(2)
	http.SetRetryWaitTime(500 * time.Millisecond)
	http.SetHeader("Accept", "application/json")

	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{http: http, limiter: rate.NewLimiter(limit, burst)}
}

// ServerTime fetches the exchange clock.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.get(ctx, "/api/v3/time", nil, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime).UTC(), nil
}

// Klines fetches at most limit klines opening in [start, end].
// Zero times leave the bound to the exchange.
func (c *Client) Klines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]Kline, error) {
	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if !start.IsZero() {
		params["startTime"] = strconv.FormatInt(start.UnixMilli(), 10)
	}
	if !end.IsZero() {
		params["endTime"] = strconv.FormatInt(end.UnixMilli(), 10)
	}

	var raw [][]any
	if err := c.get(ctx, "/api/v3/klines", params, &raw); err != nil {
		return nil, err
	}

	klines := make([]Kline, 0, len(raw))
	for i, item := range raw {
		k, err := parseKline(item)
		if err != nil {
			return nil, fmt.Errorf("binance kline %s[%d]: %w", symbol, i, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// KlinesRange pages through every kline opening in [start, end].
func (c *Client) KlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]Kline, error) {
	var out []Kline
	cursor := start
	for !cursor.After(end) {
		page, err := c.Klines(ctx, symbol, interval, cursor, end, MaxKlinesPerRequest)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		next := page[len(page)-1].OpenTime.Add(time.Millisecond)
		if len(page) < MaxKlinesPerRequest || !next.After(cursor) {
			break
		}
		cursor = next
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("binance %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("binance %s status %d: %s", path, resp.StatusCode(), resp.String())
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("binance %s decode: %w", path, err)
	}
	return nil
}

// Binance returns 12 positional fields per kline; prices are strings.
func parseKline(item []any) (Kline, error) {
	if len(item) < 9 {
		return Kline{}, fmt.Errorf("expected at least 9 fields, got %d", len(item))
	}
	var (
		k   Kline
		err error
	)
	openMs, err := toInt64(item[0])
	if err != nil {
		return k, err
	}
	closeMs, err := toInt64(item[6])
	if err != nil {
		return k, err
	}
	k.OpenTime = time.UnixMilli(openMs).UTC()
	k.CloseTime = time.UnixMilli(closeMs).UTC()

	fields := []*decimal.Decimal{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
	for i, dst := range fields {
		if *dst, err = toDecimal(item[i+1]); err != nil {
			return k, err
		}
	}
	if k.QuoteVolume, err = toDecimal(item[7]); err != nil {
		return k, err
	}
	if k.NumberOfTrades, err = toInt64(item[8]); err != nil {
		return k, err
	}
	return k, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case json.Number:
		return decimal.NewFromString(t.String())
	default:
		return decimal.Zero, fmt.Errorf("unexpected numeric field %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected integer field %T", v)
	}
}
