package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GammaClient is the REST client for the Polymarket Gamma API, used as the
// polling fallback when the real-time socket is degraded and for metadata
// enrichment.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetActiveMarkets returns a page of active, open markets.
func (g *GammaClient) GetActiveMarkets(ctx context.Context, limit, offset int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	return markets, nil
}

// GetMarket returns a single market by condition ID.
func (g *GammaClient) GetMarket(ctx context.Context, conditionID string) (APIMarket, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", conditionID, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	if len(markets) == 0 {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: market %s: not found", conditionID)
	}
	return markets[0], nil
}

func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
	}

	return io.ReadAll(resp.Body)
}

// MarketSink receives refreshed market metadata from the poller.
type MarketSink func(APIMarket)

// Poller is the REST polling fallback. It pages through active markets on a
// fixed interval, fanning requests out in small fixed-size batches with a
// short inter-batch delay so third-party rate limits are respected.
type Poller struct {
	gamma      *GammaClient
	interval   time.Duration
	batchSize  int
	batchDelay time.Duration
	sink       MarketSink
	logger     *slog.Logger
}

// NewPoller creates a Poller that pushes refreshed markets into sink.
func NewPoller(gamma *GammaClient, interval time.Duration, batchSize int, batchDelay time.Duration, sink MarketSink, logger *slog.Logger) *Poller {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Poller{
		gamma:      gamma,
		interval:   interval,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		sink:       sink,
		logger:     logger.With(slog.String("component", "gamma_poller")),
	}
}

// Run polls until ctx is cancelled. A failed poll cycle is logged and the
// loop continues; polling errors never propagate.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("gamma poller started", slog.Duration("interval", p.interval))
	defer p.logger.Info("gamma poller stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("poll cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// pollOnce pages through active markets batch by batch.
func (p *Poller) pollOnce(ctx context.Context) error {
	offset := 0
	for {
		markets, err := p.gamma.GetActiveMarkets(ctx, p.batchSize, offset)
		if err != nil {
			return err
		}
		for i := range markets {
			p.sink(markets[i])
		}
		if len(markets) < p.batchSize {
			return nil
		}
		offset += p.batchSize

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.batchDelay):
		}
	}
}
