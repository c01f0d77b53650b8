package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-trader/internal/errors"
	"stock-trader/internal/models"
)

// HTTPConfig holds configuration for the REST venue client.
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// HTTPClient implements Client against the venue's REST API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
	log       zerolog.Logger
}

// NewHTTPClient creates a new REST venue client.
func NewHTTPClient(cfg HTTPConfig, log zerolog.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		client:    &http.Client{Timeout: timeout},
		log:       log.With().Str("client", "venue").Logger(),
	}
}

// barPayload mirrors the venue's bar JSON.
type barPayload struct {
	Date   string  `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
}

type barsResponse struct {
	Bars []barPayload `json:"bars"`
}

type assetPayload struct {
	Symbol   string `json:"symbol"`
	Tradable bool   `json:"tradable"`
}

// GetDailyBars fetches daily OHLCV bars for [start, end].
func (c *HTTPClient) GetDailyBars(ctx context.Context, symbol models.Symbol, start, end time.Time) ([]models.DailyBar, error) {
	endpoint := fmt.Sprintf("/v2/stocks/%s/bars", url.PathEscape(symbol.String()))
	query := url.Values{
		"timeframe": {"1Day"},
		"start":     {models.Day(start).Format("2006-01-02")},
		"end":       {models.Day(end).Format("2006-01-02")},
	}

	var payload barsResponse
	if err := c.get(ctx, endpoint, query, &payload); err != nil {
		return nil, err
	}

	bars := make([]models.DailyBar, 0, len(payload.Bars))
	for _, b := range payload.Bars {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			return nil, apperrors.Wrapf(err, "parsing bar date for %s", symbol)
		}
		bars = append(bars, models.DailyBar{
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return bars, nil
}

// GetTradableSymbols fetches the active, tradable asset universe.
func (c *HTTPClient) GetTradableSymbols(ctx context.Context) ([]models.Symbol, error) {
	var assets []assetPayload
	query := url.Values{"status": {"active"}}
	if err := c.get(ctx, "/v2/assets", query, &assets); err != nil {
		return nil, err
	}

	symbols := make([]models.Symbol, 0, len(assets))
	for _, a := range assets {
		if a.Tradable {
			symbols = append(symbols, models.Symbol(a.Symbol))
		}
	}
	return symbols, nil
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	LimitPrice  string `json:"limit_price,omitempty"`
	TimeInForce string `json:"time_in_force"`
	ClientID    string `json:"client_order_id"`
}

type orderResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// PlaceOrder submits a trading action as a live order.
func (c *HTTPClient) PlaceOrder(ctx context.Context, action models.TradingAction) (*OrderResult, error) {
	side := "buy"
	if action.OrderType.IsSell() {
		side = "sell"
	}
	orderType := "market"
	req := orderRequest{
		Symbol:      action.Symbol.String(),
		Qty:         strconv.FormatFloat(action.Quantity, 'f', -1, 64),
		Side:        side,
		Type:        orderType,
		TimeInForce: "day",
		ClientID:    action.ID,
	}
	if action.OrderType.IsLimit() {
		req.Type = "limit"
		req.LimitPrice = strconv.FormatFloat(action.LimitPrice, 'f', -1, 64)
	}

	var payload orderResponse
	if err := c.post(ctx, "/v2/orders", req, &payload); err != nil {
		return nil, err
	}

	c.log.Info().
		Str("order_id", payload.ID).
		Str("symbol", action.Symbol.String()).
		Str("side", side).
		Str("status", payload.Status).
		Msg("order placed")

	return &OrderResult{
		OrderID:  payload.ID,
		Status:   payload.Status,
		PlacedAt: payload.CreatedAt,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	return c.do(req, endpoint, out)
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *HTTPClient) do(req *http.Request, endpoint string, out interface{}) error {
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewVenueError(0, endpoint, "request failed", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("venue call")

	if resp.StatusCode == http.StatusTooManyRequests {
		return apperrors.NewVenueError(resp.StatusCode, endpoint, "throttled", apperrors.ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewVenueError(resp.StatusCode, endpoint, string(msg), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewVenueError(resp.StatusCode, endpoint, "decoding response", err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
