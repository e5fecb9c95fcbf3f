package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
	"github.com/alanyoungcy/flashscan/internal/platform/polymarket"
)

// tickBuffer bounds the trade-tick queue between the feed read loop and the
// flash pipeline. The read loop never blocks on it; overflow ticks drop.
const tickBuffer = 1024

// tick is one observed trade, decoupled from the feed's wire shape.
type tick struct {
	tokenID string
	price   float64
	volume  float64
	ts      time.Time
}

// attachHandlers registers the feed handlers for the active mode and returns
// the tick queue feeding the flash pipeline.
func (a *App) attachHandlers(ctx context.Context, deps *Dependencies, arb, flashOn bool) chan tick {
	ticks := make(chan tick, tickBuffer)

	deps.WS.OnEvent(polymarket.EventNewMarket, func(ev polymarket.MarketEvent) {
		deps.ArbEngine.HandleNewMarket(ev.Market, ev.Question, ev.Slug, ev.Icon, ev.AssetsIDs, ev.Outcomes)
	})
	deps.WS.OnEvent(polymarket.EventMarketResolved, func(ev polymarket.MarketEvent) {
		deps.ArbEngine.HandleResolved(ev.Market)
	})

	if arb {
		deps.WS.OnEvent(polymarket.EventBestBidAsk, func(ev polymarket.MarketEvent) {
			deps.ArbEngine.HandleQuote(ev.Market, ev.AssetID, ev.BestAskPrice())
		})
	}

	if flashOn || deps.PriceCache != nil {
		deps.WS.OnEvent(polymarket.EventLastTradePrice, func(ev polymarket.MarketEvent) {
			t := tick{
				tokenID: ev.AssetID,
				price:   ev.TradePrice(),
				volume:  ev.TradeSize(),
				ts:      time.Now().UTC(),
			}
			select {
			case ticks <- t:
			case <-ctx.Done():
			default:
				a.logger.Warn("tick queue full, dropping",
					slog.String("token", t.tokenID),
				)
			}
		})
	}

	return ticks
}

// tickLoop drains the trade-tick queue, feeding the flash pipeline and the
// external price cache.
func (a *App) tickLoop(ctx context.Context, deps *Dependencies, ticks <-chan tick, flashOn bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticks:
			if t.price <= 0 {
				continue
			}
			if flashOn {
				deps.Flash.HandleTick(ctx, t.tokenID, t.price, t.volume, t.ts)
			}
			if deps.PriceCache != nil {
				cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				if err := deps.PriceCache.SetPrice(cacheCtx, t.tokenID, t.price, t.ts); err != nil {
					a.logger.Warn("price cache write failed",
						slog.String("token", t.tokenID),
						slog.String("error", err.Error()),
					)
				}
				cancel()
			}
		}
	}
}

// consumeOpportunities persists, caches, and fans out every detected
// arbitrage opportunity. Backend failures are logged; detection never stalls
// on persistence.
func (a *App) consumeOpportunities(ctx context.Context, deps *Dependencies) error {
	ch, cancel := deps.Bus.Subscribe(domain.EventOpportunity)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			opp, isOpp := ev.Payload.(*domain.ArbitrageOpportunity)
			if !isOpp {
				continue
			}

			if deps.OpportunityStore != nil {
				if err := deps.OpportunityStore.Create(ctx, *opp); err != nil {
					a.logger.Warn("opportunity persist failed",
						slog.String("market", opp.MarketID),
						slog.String("error", err.Error()),
					)
				}
			}
			if deps.OpportunityCache != nil {
				if err := deps.OpportunityCache.Set(ctx, *opp); err != nil {
					a.logger.Warn("opportunity cache failed",
						slog.String("market", opp.MarketID),
						slog.String("error", err.Error()),
					)
				}
			}
			a.publishSignal(ctx, deps, "opportunities", opp)
		}
	}
}

// fanOutFlashEvents mirrors flash pipeline events onto the external signal
// bus for out-of-process consumers. It is a no-op without Redis.
func (a *App) fanOutFlashEvents(ctx context.Context, deps *Dependencies) error {
	if deps.SignalBus == nil {
		return nil
	}

	channels := map[domain.EventKind]string{
		domain.EventFlashMoveDetected: "flash.detected",
		domain.EventFlashMoveExecuted: "flash.executed",
		domain.EventPositionClosed:    "positions.closed",
	}

	merged := make(chan domain.Event, 64)
	for kind := range channels {
		ch, cancel := deps.Bus.Subscribe(kind)
		defer cancel()
		go func() {
			for ev := range ch {
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-merged:
			a.publishSignal(ctx, deps, channels[ev.Kind], ev.Payload)
		}
	}
}

// publishSignal serialises a payload and pushes it to the external signal
// bus, logging failures.
func (a *App) publishSignal(ctx context.Context, deps *Dependencies, channel string, payload any) {
	if deps.SignalBus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("signal marshal failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := deps.SignalBus.Publish(pubCtx, channel, data); err != nil {
		a.logger.Warn("signal publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

// cleanupLoop prunes expired detector windows, risk histories, and dead
// opportunities on a fixed cadence.
func (a *App) cleanupLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deps.ArbEngine.Detector().Cleanup()
			if deps.Flash != nil {
				deps.Flash.Cleanup()
			}
		}
	}
}
