package manager

import (
	"bytes"
	"context"
	"encoding/json"

	"trade-gateway/internal/logger"
	"trade-gateway/internal/types"
)

// handleRawMessage runs on whatever goroutine the socket driver delivers
// frames on. Registry and dedup bookkeeping happen here synchronously;
// data ticks are queued for the dispatch worker.
func (m *Manager) handleRawMessage(raw []byte) {
	if m.terminated.Load() {
		return
	}

	// Heartbeat frames carry no payload worth parsing.
	if bytes.Contains(raw, []byte("pong")) {
		return
	}

	ctx := context.Background()

	var msg types.FeedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Error(ctx, "Malformed feed message dropped", "error", err, "raw", string(raw))
		return
	}

	switch msg.Event {
	case types.EventSubscribed:
		if msg.Data.Symbol == "" || msg.Data.ID == "" {
			logger.Error(ctx, "Subscribed event missing symbol or channel id", "raw", string(raw))
			return
		}
		m.registry.OnAck(msg.Data.Symbol, msg.Data.ID)
		m.gate.Track(msg.Data.Symbol)
		logger.Debug(ctx, "Subscription acknowledged", "symbol", msg.Data.Symbol, "channel_id", msg.Data.ID)

	case types.EventUnsubscribed:
		if m.registry.OnUnsubscribed(msg.Data.Symbol) {
			m.gate.Forget(msg.Data.Symbol)
			logger.Debug(ctx, "Unsubscribe confirmed", "symbol", msg.Data.Symbol)
		}

	case types.EventData:
		if msg.Data.Symbol == "" {
			logger.Error(ctx, "Data event missing symbol", "raw", string(raw))
			return
		}
		m.enqueue(msg)

	default:
		logger.Debug(ctx, "Unhandled feed event", "event", msg.Event)
	}
}

// enqueue hands a data message to the dispatch worker. The queue is
// bounded; when it is full the tick is dropped and logged rather than
// blocking the socket read path.
func (m *Manager) enqueue(msg types.FeedMessage) {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()

	if m.queueClosed {
		return
	}

	select {
	case m.queue <- msg:
	default:
		logger.Warn(context.Background(), "Dispatch queue full, dropping tick",
			"symbol", msg.Data.Symbol, "time", msg.Data.Time)
	}
}

// runDispatcher is the single worker consuming the tick queue. Dedup
// decisions are serialized per symbol here; ordering across symbols is
// not guaranteed.
func (m *Manager) runDispatcher() {
	defer close(m.workerDone)

	for msg := range m.queue {
		m.dispatch(msg)
	}
}

func (m *Manager) dispatch(msg types.FeedMessage) {
	if !m.gate.Admit(msg.Data.Symbol, msg.Data.Time) {
		return
	}

	m.handlerMu.RLock()
	fn := m.msgHandler
	m.handlerMu.RUnlock()

	if fn != nil {
		fn(msg.Data)
	}
}
