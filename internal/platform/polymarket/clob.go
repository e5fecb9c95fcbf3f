package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/flashscan/internal/crypto"
	"github.com/alanyoungcy/flashscan/internal/domain"
)

// ClobExecutor implements domain.TradeExecutor against the Polymarket CLOB
// REST API. Requests carry HMAC-signed credential headers.
type ClobExecutor struct {
	baseURL    string
	auth       crypto.HMACAuth
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClobExecutor creates a live executor for the given CLOB host and API
// credentials.
func NewClobExecutor(baseURL, apiKey, apiSecret, passphrase string, logger *slog.Logger) *ClobExecutor {
	return &ClobExecutor{
		baseURL: baseURL,
		auth: crypto.HMACAuth{
			Key:        apiKey,
			Secret:     apiSecret,
			Passphrase: passphrase,
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With(slog.String("component", "clob_executor")),
	}
}

// orderPayload is the CLOB order request body (market order by notional).
type orderPayload struct {
	TokenID   string `json:"token_id"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	Price     string `json:"price"`
	OrderType string `json:"order_type"`
}

// Execute submits a fill-or-kill market order bounded by the request's
// slippage allowance. Exchange-side rejection comes back as an unsuccessful
// TradeResult, not an error; errors are reserved for transport failures.
func (c *ClobExecutor) Execute(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error) {
	limitPrice := req.Price * (1 + req.MaxSlippage/100)
	if req.Side == domain.OrderSideSell {
		limitPrice = req.Price * (1 - req.MaxSlippage/100)
	}

	payload := orderPayload{
		TokenID:   req.TokenID,
		Side:      string(req.Side),
		Amount:    strconv.FormatFloat(req.SizeUSD, 'f', 2, 64),
		Price:     strconv.FormatFloat(limitPrice, 'f', 4, 64),
		OrderType: "FOK",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("polymarket/clob: marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("polymarket/clob: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.Headers(http.MethodPost, "/order", string(body)) {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("polymarket/clob: submit order: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("polymarket/clob: read response: %w", err)
	}

	var apiRes apiOrderResult
	if err := json.Unmarshal(respBody, &apiRes); err != nil {
		return domain.TradeResult{}, fmt.Errorf("polymarket/clob: decode response (status %d): %w", resp.StatusCode, err)
	}

	if !apiRes.Success {
		c.logger.Warn("order rejected",
			slog.String("token", req.TokenID),
			slog.String("status", apiRes.Status),
			slog.String("message", apiRes.ErrorMsg),
		)
		return domain.TradeResult{
			Success: false,
			OrderID: apiRes.OrderID,
			Message: apiRes.ErrorMsg,
		}, nil
	}

	filled := parsePrice(apiRes.TakingPrice)
	if filled == 0 {
		filled = limitPrice
	}
	shares := 0.0
	if filled > 0 {
		shares = req.SizeUSD / filled
	}

	return domain.TradeResult{
		Success:     true,
		OrderID:     apiRes.OrderID,
		FilledPrice: filled,
		Shares:      shares,
	}, nil
}

// Compile-time interface check.
var _ domain.TradeExecutor = (*ClobExecutor)(nil)
