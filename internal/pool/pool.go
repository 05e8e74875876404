package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trade-gateway/internal/interfaces"
	"trade-gateway/internal/logger"
)

var (
	// ErrCapacity is returned when every slot is at its subscription cap.
	ErrCapacity = errors.New("no subscription capacity left in pool")
	// ErrPoolUnavailable is returned when a pool build exhausted its retries.
	ErrPoolUnavailable = errors.New("market data pool unavailable")
	// ErrClosed is returned when a slot is requested from a closed pool.
	ErrClosed = errors.New("pool is closed")
)

// SocketFactory opens one new market-data socket, not yet connected.
type SocketFactory func() (interfaces.MarketSocket, error)

// Handlers are wired into every socket before it connects.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func(code int, message string)
	OnError      func(err error)
	OnMessage    func(raw []byte)
}

type Config struct {
	Size             int
	SlotCapacity     int
	OpenRetry        int
	OpenStagger      time.Duration
	OpenBackoffBase  time.Duration
	ResubscribeDelay time.Duration
}

// slot is one open market-data socket and its live subscription count.
type slot struct {
	index  int
	subs   int
	socket interfaces.MarketSocket
}

// Pool owns the market-data sockets. It balances new subscriptions across
// slots and replays subscriptions after a rebuild.
type Pool struct {
	cfg      Config
	factory  SocketFactory
	handlers Handlers

	mu    sync.Mutex
	slots []*slot
	open  bool
}

func New(cfg Config, factory SocketFactory, handlers Handlers) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.Size > 5 {
		cfg.Size = 5
	}
	return &Pool{cfg: cfg, factory: factory, handlers: handlers}
}

// Open builds the pool of sockets. A failure of any slot retries the whole
// build with exponential backoff; exhausting the retries surfaces
// ErrPoolUnavailable.
func (p *Pool) Open(ctx context.Context) error {
	var lastErr error
	backoff := p.cfg.OpenBackoffBase

	for attempt := 0; attempt <= p.cfg.OpenRetry; attempt++ {
		if attempt > 0 {
			logger.Warn(ctx, "Pool build failed, retrying",
				"attempt", attempt, "max_retry", p.cfg.OpenRetry, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := p.openOnce(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrPoolUnavailable, lastErr)
}

func (p *Pool) openOnce(ctx context.Context) error {
	// Drop any partially built sockets from a previous attempt.
	p.CloseAll()

	built := make([]*slot, 0, p.cfg.Size)

	for i := 0; i < p.cfg.Size; i++ {
		logger.Debug(ctx, "Opening market data socket", "slot", i)

		sock, err := p.factory()
		if err == nil {
			p.wireHandlers(sock)
			err = sock.Connect(ctx)
		}
		if err != nil {
			for _, s := range built {
				_ = s.socket.Disconnect()
			}
			return fmt.Errorf("slot %d: %w", i, err)
		}

		built = append(built, &slot{index: i, socket: sock})

		// Stagger connects so the gateway does not throttle us.
		if i < p.cfg.Size-1 {
			time.Sleep(p.cfg.OpenStagger)
		}
	}

	p.mu.Lock()
	p.slots = built
	p.open = true
	p.mu.Unlock()

	logger.Info(ctx, "Market data pool open", "slots", len(built))
	return nil
}

func (p *Pool) wireHandlers(sock interfaces.MarketSocket) {
	if p.handlers.OnConnect != nil {
		sock.OnConnect(p.handlers.OnConnect)
	}
	if p.handlers.OnDisconnect != nil {
		sock.OnDisconnect(p.handlers.OnDisconnect)
	}
	if p.handlers.OnError != nil {
		sock.OnError(p.handlers.OnError)
	}
	if p.handlers.OnMessage != nil {
		sock.OnMessage(p.handlers.OnMessage)
	}
}

// Assign picks the slot with the minimum subscription count, ties broken by
// lowest index, and reserves one subscription on it.
func (p *Pool) Assign() (int, interfaces.MarketSocket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open || len(p.slots) == 0 {
		return 0, nil, ErrClosed
	}

	min := p.slots[0]
	for _, s := range p.slots[1:] {
		if s.subs < min.subs {
			min = s
		}
	}

	if min.subs >= p.cfg.SlotCapacity {
		return 0, nil, ErrCapacity
	}

	min.subs++
	return min.index, min.socket, nil
}

// Release returns one subscription reservation to a slot. Called when the
// gateway confirms an unsubscribe.
func (p *Pool) Release(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.slots) {
		return
	}
	if p.slots[index].subs > 0 {
		p.slots[index].subs--
	}
}

// SocketFor returns the socket backing a slot index.
func (p *Pool) SocketFor(index int) (interfaces.MarketSocket, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open || index < 0 || index >= len(p.slots) {
		return nil, false
	}
	return p.slots[index].socket, true
}

// Counts reports the live subscription count per slot.
func (p *Pool) Counts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make([]int, len(p.slots))
	for i, s := range p.slots {
		counts[i] = s.subs
	}
	return counts
}

// IsOpen reports whether the pool currently holds connected slots.
func (p *Pool) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// CloseAll disconnects every slot and clears pool state. Safe to call when
// the pool is already closed.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	slots := p.slots
	p.slots = nil
	p.open = false
	p.mu.Unlock()

	for _, s := range slots {
		if err := s.socket.Disconnect(); err != nil {
			logger.Debug(context.Background(), "Socket disconnect failed", "slot", s.index, "error", err)
		}
	}
}

// Rebuild closes all slots, reopens the pool, then replays the preserved
// symbols through resubscribe, spaced by a small delay.
func (p *Pool) Rebuild(ctx context.Context, preserve []string, resubscribe func(symbol string)) error {
	logger.Recovery(ctx, "pool_rebuild", "preserved_symbols", len(preserve))

	p.CloseAll()

	if err := p.Open(ctx); err != nil {
		return err
	}

	for _, symbol := range preserve {
		resubscribe(symbol)
		time.Sleep(p.cfg.ResubscribeDelay)
	}

	return nil
}
