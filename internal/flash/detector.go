// Package flash implements the flash-move pipeline: detection of abrupt
// single-asset price dislocations, risk scoring, execution orchestration,
// and position bookkeeping.
package flash

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// windowRetention is how long an asset's sample window survives without new
// ticks before Cleanup discards it.
const windowRetention = 10 * time.Minute

// sample is one price/volume observation.
type sample struct {
	price  float64
	volume float64
	ts     time.Time
}

// DetectorConfig holds the detection thresholds. These are deliberately
// configuration, not constants: the right values differ per market regime.
type DetectorConfig struct {
	// WindowSize is the number of samples retained per asset.
	WindowSize int
	// VelocityThreshold is the minimum |velocity| that fires an event.
	VelocityThreshold float64
	// Cooldown suppresses re-firing per asset while a dislocation is
	// still in progress.
	Cooldown time.Duration
}

// Detector maintains a short rolling price/volume history per asset and
// raises a FlashMoveEvent when velocity crosses the configured threshold.
type Detector struct {
	cfg    DetectorConfig
	logger *slog.Logger

	mu       sync.Mutex
	windows  map[string][]sample
	lastFire map[string]time.Time

	now func() time.Time
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig, logger *slog.Logger) *Detector {
	if cfg.WindowSize < 3 {
		cfg.WindowSize = 3
	}
	return &Detector{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "flash_detector")),
		windows:  make(map[string][]sample),
		lastFire: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Observe records one tick and returns a FlashMoveEvent when the asset just
// crossed the velocity threshold, or nil. Pass volume 0 for quote ticks that
// carry no volume; missing volume is treated as neutral, not as zero spike.
func (d *Detector) Observe(tokenID string, price, volume float64, ts time.Time) *domain.FlashMoveEvent {
	if tokenID == "" || price <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	window := append(d.windows[tokenID], sample{price: price, volume: volume, ts: ts})
	if len(window) > d.cfg.WindowSize {
		window = window[len(window)-d.cfg.WindowSize:]
	}
	d.windows[tokenID] = window

	if len(window) < 3 {
		return nil
	}

	first := window[0]
	last := window[len(window)-1]
	if first.price <= 0 {
		return nil
	}

	velocity := (last.price - first.price) / first.price
	if math.Abs(velocity) < d.cfg.VelocityThreshold {
		return nil
	}

	// Debounce: the same dislocation must not re-fire while in progress.
	if fired, ok := d.lastFire[tokenID]; ok && ts.Sub(fired) < d.cfg.Cooldown {
		return nil
	}
	d.lastFire[tokenID] = ts

	momentum := directionalPersistence(window, velocity)
	spike := volumeSpike(window)
	confidence := confidenceScore(len(window), d.cfg.WindowSize, velocity, d.cfg.VelocityThreshold, momentum)

	ev := &domain.FlashMoveEvent{
		TokenID:     tokenID,
		OldPrice:    first.price,
		NewPrice:    last.price,
		Velocity:    velocity,
		Momentum:    momentum,
		VolumeSpike: spike,
		Confidence:  confidence,
		Strategy:    provisionalStrategy(confidence),
		DetectedAt:  ts,
	}

	d.logger.Info("flash move detected",
		slog.String("token", tokenID),
		slog.Float64("velocity", velocity),
		slog.Float64("momentum", momentum),
		slog.Float64("volume_spike", spike),
		slog.Float64("confidence", confidence),
	)
	return ev
}

// Cleanup discards sample windows and debounce marks for assets that have
// gone quiet.
func (d *Detector) Cleanup() {
	cutoff := d.now().Add(-windowRetention)

	d.mu.Lock()
	defer d.mu.Unlock()

	for token, window := range d.windows {
		if len(window) == 0 || window[len(window)-1].ts.Before(cutoff) {
			delete(d.windows, token)
			delete(d.lastFire, token)
		}
	}
}

// directionalPersistence is the signed fraction of successive moves that
// agree with the overall direction: 1.0 means every step moved the same way
// as the window-wide change.
func directionalPersistence(window []sample, velocity float64) float64 {
	steps := len(window) - 1
	if steps == 0 {
		return 0
	}

	dir := 1.0
	if velocity < 0 {
		dir = -1.0
	}

	agree := 0
	for i := 1; i < len(window); i++ {
		delta := window[i].price - window[i-1].price
		if delta*dir > 0 {
			agree++
		}
	}
	return dir * float64(agree) / float64(steps)
}

// volumeSpike is the current volume over the trailing average. Missing
// volume data (quote-only feeds) yields the neutral ratio 1.0.
func volumeSpike(window []sample) float64 {
	current := window[len(window)-1].volume
	if current <= 0 {
		return 1.0
	}

	var sum float64
	var n int
	for _, s := range window[:len(window)-1] {
		if s.volume > 0 {
			sum += s.volume
			n++
		}
	}
	if n == 0 || sum <= 0 {
		return 1.0
	}
	return current / (sum / float64(n))
}

// confidenceScore scales with sample count and signal clarity: a fuller
// window, a velocity well past the threshold, and consistent momentum all
// push confidence toward 1.
func confidenceScore(samples, windowSize int, velocity, threshold, momentum float64) float64 {
	fill := float64(samples) / float64(windowSize)
	if fill > 1 {
		fill = 1
	}

	clarity := math.Abs(velocity) / (2 * threshold)
	if clarity > 1 {
		clarity = 1
	}

	conf := 0.3*fill + 0.5*clarity + 0.2*math.Abs(momentum)
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// provisionalStrategy is the detector's pre-risk recommendation; the risk
// manager has the final say.
func provisionalStrategy(confidence float64) domain.ExecutionStrategy {
	switch {
	case confidence > 0.8:
		return domain.StrategyAggressive
	case confidence < 0.5:
		return domain.StrategyConservative
	default:
		return domain.StrategyAdaptive
	}
}
