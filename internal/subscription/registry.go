package subscription

import (
	"context"
	"errors"
	"sync"

	"trade-gateway/internal/logger"
	"trade-gateway/internal/pool"
)

// ChannelTrades is the realtime feed channel this registry subscribes on.
const ChannelTrades = "trades"

// Record tracks one live subscription. ChannelID stays empty until the
// gateway acknowledges the subscribe.
type Record struct {
	Symbol    string
	SlotIndex int
	ChannelID string
}

// Registry maps symbols to their pool slot and gateway channel id. It is
// the single writer of its own map; confirmations are correlated by symbol.
type Registry struct {
	pool *pool.Pool

	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

func NewRegistry(p *pool.Pool) *Registry {
	return &Registry{
		pool:    p,
		records: make(map[string]*Record),
	}
}

// Subscribe requests a slot and sends the subscribe command. Already
// subscribed symbols are a no-op. Send failures are logged and absorbed;
// the record is still tracked so a later rebuild replays the symbol.
func (r *Registry) Subscribe(symbol string) {
	ctx := context.Background()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[symbol]; ok {
		logger.Info(ctx, "Symbol already subscribed", "symbol", symbol)
		return
	}

	index, sock, err := r.pool.Assign()
	if err != nil {
		if errors.Is(err, pool.ErrCapacity) {
			logger.Error(ctx, "Subscription capacity exceeded, request ignored", "symbol", symbol)
		} else {
			logger.ErrorWithErr(ctx, "No slot available for subscription", err, "symbol", symbol)
		}
		return
	}

	if err := sock.Subscribe(ChannelTrades, symbol); err != nil {
		logger.ErrorWithErr(ctx, "Subscribe command failed", err, "symbol", symbol, "slot", index)
	}

	r.records[symbol] = &Record{Symbol: symbol, SlotIndex: index}
	r.order = append(r.order, symbol)

	logger.Debug(ctx, "Subscription requested", "symbol", symbol, "slot", index)
}

// Unsubscribe sends the unsubscribe command using the stored channel id.
// The record is removed only when the gateway confirms, via OnUnsubscribed,
// so a racing re-subscribe cannot slip in before the ack.
func (r *Registry) Unsubscribe(symbol string) {
	ctx := context.Background()

	r.mu.Lock()
	rec, ok := r.records[symbol]
	r.mu.Unlock()
	if !ok {
		logger.Warn(ctx, "Symbol not in subscription list", "symbol", symbol)
		return
	}

	sock, ok := r.pool.SocketFor(rec.SlotIndex)
	if !ok {
		logger.Warn(ctx, "Slot no longer open for unsubscribe", "symbol", symbol, "slot", rec.SlotIndex)
		return
	}

	if err := sock.Unsubscribe(rec.ChannelID); err != nil {
		logger.ErrorWithErr(ctx, "Unsubscribe command failed", err, "symbol", symbol, "channel_id", rec.ChannelID)
	}
}

// OnAck records the channel id once the gateway confirms a subscribe.
func (r *Registry) OnAck(symbol, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[symbol]
	if !ok {
		logger.Warn(context.Background(), "Ack for unknown subscription", "symbol", symbol, "channel_id", channelID)
		return
	}
	rec.ChannelID = channelID
}

// OnUnsubscribed removes the record and releases its slot reservation.
// Returns false when the symbol was not tracked.
func (r *Registry) OnUnsubscribed(symbol string) bool {
	r.mu.Lock()
	rec, ok := r.records[symbol]
	if ok {
		delete(r.records, symbol)
		for i, s := range r.order {
			if s == symbol {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.pool.Release(rec.SlotIndex)
	return true
}

// Has reports whether a symbol is currently tracked.
func (r *Registry) Has(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[symbol]
	return ok
}

// ChannelID returns the acknowledged channel id for a symbol.
func (r *Registry) ChannelID(symbol string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[symbol]
	if !ok {
		return "", false
	}
	return rec.ChannelID, rec.ChannelID != ""
}

// Symbols returns the tracked symbols in subscription order.
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of tracked symbols.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Clear drops all records. Used before a full pool rebuild, where the
// registry is rebuilt by replay and must never be partially stale.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[string]*Record)
	r.order = nil
}
