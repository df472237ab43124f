package zerodha

import (
	"context"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"
)

// Ticker turns Kite websocket ticks and order updates into schedule
// signals. Signals are coalesced into a single pending slot: the consumer
// runs one cycle per wake-up however many ticks arrived in between.
type Ticker struct {
	apiKey      string
	accessToken string
	instruments []uint32

	ticker  *kiteticker.Ticker
	signals chan struct{}
}

var _ interfaces.TickTrigger = (*Ticker)(nil)

func NewTicker(apiKey, accessToken string, instruments []uint32) *Ticker {
	return &Ticker{
		apiKey:      apiKey,
		accessToken: accessToken,
		instruments: instruments,
		signals:     make(chan struct{}, 1),
	}
}

func (t *Ticker) Ticks() <-chan struct{} {
	return t.signals
}

// Start connects the websocket in the background. Subscription happens on
// every (re)connect.
func (t *Ticker) Start(ctx context.Context) error {
	t.ticker = kiteticker.New(t.apiKey, t.accessToken)

	t.ticker.OnConnect(t.onConnect)
	t.ticker.OnError(t.onError)
	t.ticker.OnClose(t.onClose)
	t.ticker.OnReconnect(t.onReconnect)
	t.ticker.OnNoReconnect(t.onNoReconnect)
	t.ticker.OnTick(t.onTick)
	t.ticker.OnOrderUpdate(t.onOrderUpdate)

	go func() {
		logger.Info(ctx, "Starting Zerodha WebSocket ticker", "instruments", len(t.instruments))
		t.ticker.Serve()
	}()
	return nil
}

func (t *Ticker) Stop(ctx context.Context) {
	if t.ticker != nil {
		logger.Info(ctx, "Stopping Zerodha WebSocket ticker")
		t.ticker.Stop()
	}
}

// signal requests a cycle without ever blocking the websocket goroutine.
func (t *Ticker) signal() {
	select {
	case t.signals <- struct{}{}:
	default:
	}
}

func (t *Ticker) onConnect() {
	logger.Info(context.Background(), "WebSocket connected")
	if len(t.instruments) == 0 {
		return
	}
	if err := t.ticker.Subscribe(t.instruments); err != nil {
		logger.ErrorWithErr(context.Background(), "Failed to subscribe instruments", err)
		return
	}
	// LTP is enough, the tick content itself is never used
	if err := t.ticker.SetMode(kiteticker.ModeLTP, t.instruments); err != nil {
		logger.ErrorWithErr(context.Background(), "Failed to set ticker mode", err)
	}
}

func (t *Ticker) onError(err error) {
	logger.ErrorWithErr(context.Background(), "WebSocket error", err)
}

func (t *Ticker) onClose(code int, reason string) {
	logger.Warn(context.Background(), "WebSocket closed", "code", code, "reason", reason)
}

func (t *Ticker) onReconnect(attempt int, delay time.Duration) {
	logger.Info(context.Background(), "WebSocket reconnecting", "attempt", attempt, "delay", delay)
}

func (t *Ticker) onNoReconnect(attempt int) {
	logger.Warn(context.Background(), "WebSocket reconnection failed - giving up", "attempts", attempt)
}

func (t *Ticker) onTick(tick models.Tick) {
	t.signal()
}

func (t *Ticker) onOrderUpdate(order kiteconnect.Order) {
	logger.Debug(context.Background(), "Order update received",
		"order_id", order.OrderID,
		"status", order.Status,
		"symbol", order.TradingSymbol,
	)
	t.signal()
}
