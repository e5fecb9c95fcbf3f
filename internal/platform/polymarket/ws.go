package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/flashscan/internal/domain"
)

// writeWait is the time allowed to write a message to the peer.
const writeWait = 10 * time.Second

// ConnState is the connection manager's lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateClosing      ConnState = "closing"
	StateErrored      ConnState = "errored"
)

// EventHandler receives parsed market events for one event type.
type EventHandler func(MarketEvent)

// WSConfig configures the connection manager.
type WSConfig struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	MaxReconnects     int
	Logger            *slog.Logger
}

// WSClient owns the single real-time socket to the market-data endpoint. It
// establishes the connection, subscribes to the aggregate market channel,
// keeps the socket alive with periodic PING frames, routes parsed events to
// registered handlers, and reconnects with exponential backoff on failure.
type WSClient struct {
	cfg WSConfig

	mu       sync.Mutex
	conn     *websocket.Conn
	state    ConnState
	attempts int
	scanning bool
	lastErr  error

	// assetSubs is replayed after every (re)connect; assetSeen keeps the
	// replay set free of duplicates.
	assetSubs []string
	assetSeen map[string]struct{}

	nextID atomic.Int64

	handlerMu sync.RWMutex
	handlers  map[string][]EventHandler

	done   chan struct{}
	logger *slog.Logger
}

// ConnStatus is a point-in-time view of the connection for status reporting.
type ConnStatus struct {
	State    ConnState
	Attempts int
	LastErr  string
}

// NewWSClient creates a connection manager for the given configuration.
func NewWSClient(cfg WSConfig) *WSClient {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 10
	}
	return &WSClient{
		cfg:       cfg,
		state:     StateDisconnected,
		assetSeen: make(map[string]struct{}),
		handlers:  make(map[string][]EventHandler),
		done:      make(chan struct{}),
		logger:    cfg.Logger.With(slog.String("component", "ws_client")),
	}
}

// OnEvent registers a handler for one event type (e.g. EventNewMarket).
// Handlers run on the read-loop goroutine and must not block.
func (w *WSClient) OnEvent(eventType string, h EventHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers[eventType] = append(w.handlers[eventType], h)
}

// Run keeps the socket alive until ctx is cancelled, Stop is called, or the
// reconnect budget is exhausted. Exhaustion is fatal for the connection: it
// returns domain.ErrMaxReconnects and requires operator intervention.
func (w *WSClient) Run(ctx context.Context) error {
	w.mu.Lock()
	w.scanning = true
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		case <-w.done:
			return nil
		default:
		}

		err := w.connectAndServe(ctx)
		if ctx.Err() != nil || !w.isScanning() {
			w.shutdown()
			return nil
		}

		w.mu.Lock()
		w.attempts++
		attempt := w.attempts
		w.lastErr = err
		w.mu.Unlock()

		if attempt > w.cfg.MaxReconnects {
			w.mu.Lock()
			w.state = StateErrored
			w.scanning = false
			w.mu.Unlock()
			w.logger.Error("reconnect attempts exhausted, giving up",
				slog.Int("attempts", attempt-1),
				slog.String("last_error", errString(err)),
			)
			return fmt.Errorf("polymarket/ws: %w", domain.ErrMaxReconnects)
		}

		delay := ReconnectDelay(attempt, w.cfg.ReconnectBase, w.cfg.ReconnectMax)
		w.logger.Warn("connection lost, scheduling reconnect",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", errString(err)),
		)

		select {
		case <-ctx.Done():
			w.shutdown()
			return nil
		case <-w.done:
			return nil
		case <-time.After(delay):
		}
	}
}

// ReconnectDelay computes the backoff delay for the given attempt number
// (1-based): base·2^attempt, capped at max.
func ReconnectDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30 // avoid shift overflow; cap applies anyway
	}
	d := base << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	return d
}

// SubscribeAssets requests per-asset orderbook quote updates. Subscriptions
// are remembered and replayed after a reconnect; when the socket is down the
// request is queued without error.
func (w *WSClient) SubscribeAssets(assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	fresh := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if _, ok := w.assetSeen[id]; ok {
			continue
		}
		w.assetSeen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}

	w.assetSubs = append(w.assetSubs, fresh...)
	if w.conn == nil || w.state != StateConnected {
		return nil
	}
	return w.sendCommand(wsCommand{
		Type:    "subscribe",
		Channel: "orderbook",
		ID:      w.nextID.Add(1),
		Payload: wsPayload{AssetIDs: fresh},
	})
}

// Status reports the current connection state and reconnect attempt count.
func (w *WSClient) Status() ConnStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ConnStatus{
		State:    w.state,
		Attempts: w.attempts,
		LastErr:  errString(w.lastErr),
	}
}

// Stop terminates the scanning loop and closes the socket. Timers are
// cancelled deterministically; Run returns shortly after.
func (w *WSClient) Stop() {
	w.mu.Lock()
	if w.state == StateClosing {
		w.mu.Unlock()
		return
	}
	w.scanning = false
	w.state = StateClosing
	conn := w.conn
	w.mu.Unlock()

	close(w.done)
	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = conn.Close()
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// connectAndServe dials, subscribes, and serves the read loop until the
// connection drops. It returns the error that ended the session.
func (w *WSClient) connectAndServe(ctx context.Context) error {
	w.mu.Lock()
	w.state = StateConnecting
	w.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		w.mu.Lock()
		w.state = StateDisconnected
		w.mu.Unlock()
		return fmt.Errorf("dial: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.state = StateConnected
	w.attempts = 0 // successful connect resets the backoff counter
	w.lastErr = nil

	// Subscribe to the aggregate market channel, then replay per-asset
	// orderbook subscriptions from before the drop.
	if err := w.sendCommand(wsCommand{
		Type:    "subscribe",
		Channel: "markets",
		ID:      w.nextID.Add(1),
	}); err != nil {
		w.teardownLocked()
		w.mu.Unlock()
		return fmt.Errorf("subscribe markets: %w", err)
	}
	if len(w.assetSubs) > 0 {
		if err := w.sendCommand(wsCommand{
			Type:    "subscribe",
			Channel: "orderbook",
			ID:      w.nextID.Add(1),
			Payload: wsPayload{AssetIDs: w.assetSubs},
		}); err != nil {
			w.teardownLocked()
			w.mu.Unlock()
			return fmt.Errorf("restore asset subscriptions: %w", err)
		}
	}
	w.mu.Unlock()

	w.logger.Info("connected", slog.String("url", w.cfg.URL))

	heartbeatStop := make(chan struct{})
	go w.heartbeat(conn, heartbeatStop)

	err = w.readLoop(conn)

	close(heartbeatStop)
	w.mu.Lock()
	w.teardownLocked()
	w.mu.Unlock()
	return err
}

// sendCommand marshals and writes a command. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd wsCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// heartbeat sends a liveness PING text frame on a fixed interval while the
// socket is open. A failed write closes the connection so the read loop
// observes the drop.
func (w *WSClient) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				w.logger.Warn("heartbeat write failed", slog.String("error", err.Error()))
				_ = conn.Close()
				return
			}
		}
	}
}

// readLoop reads frames until the connection errors. A bare "PONG" payload
// is the heartbeat reply and is discarded; everything else is parsed as JSON
// and dispatched. Malformed frames are logged and dropped without
// terminating the connection.
func (w *WSClient) readLoop(conn *websocket.Conn) error {
	for {
		select {
		case <-w.done:
			return domain.ErrWSDisconnect
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if string(raw) == "PONG" {
			continue
		}

		events, err := parseFrame(raw)
		if err != nil {
			w.logger.Warn("malformed frame dropped", slog.String("error", err.Error()))
			continue
		}
		for i := range events {
			w.dispatch(events[i])
		}
	}
}

func (w *WSClient) dispatch(ev MarketEvent) {
	w.handlerMu.RLock()
	handlers := w.handlers[ev.EventType]
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// shutdown stops scanning and tears down the socket.
func (w *WSClient) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scanning = false
	w.teardownLocked()
}

// teardownLocked closes the socket and marks the state. Caller holds w.mu.
func (w *WSClient) teardownLocked() {
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	if w.state != StateClosing && w.state != StateErrored {
		w.state = StateDisconnected
	}
}

func (w *WSClient) isScanning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scanning
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
