// Package feed implements the realtime market-data socket over WebSocket,
// speaking the gateway's JSON event protocol.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trade-gateway/internal/interfaces"
)

var ErrNotConnected = errors.New("feed socket is not connected")

type Config struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// command is one outbound subscribe/unsubscribe frame. ID correlates the
// request with the gateway's ack frame in server logs.
type command struct {
	Event string      `json:"event"`
	Data  commandData `json:"data"`
	ID    string      `json:"id"`
}

type commandData struct {
	Channel   string `json:"channel,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	ChannelID string `json:"id,omitempty"`
}

// Socket is one realtime feed connection. Handlers must be installed
// before Connect; they are invoked from the read goroutine.
type Socket struct {
	cfg Config

	onConnect    func()
	onDisconnect func(code int, message string)
	onError      func(err error)
	onMessage    func(raw []byte)

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closing   bool
}

var _ interfaces.MarketSocket = (*Socket)(nil)

func NewSocket(cfg Config) *Socket {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Socket{cfg: cfg}
}

func (s *Socket) OnConnect(fn func())                        { s.onConnect = fn }
func (s *Socket) OnDisconnect(fn func(code int, msg string)) { s.onDisconnect = fn }
func (s *Socket) OnError(fn func(err error))                 { s.onError = fn }
func (s *Socket) OnMessage(fn func(raw []byte))              { s.onMessage = fn }

func (s *Socket) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}

	url := s.cfg.URL
	if s.cfg.Token != "" {
		url = fmt.Sprintf("%s?token=%s", s.cfg.URL, s.cfg.Token)
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.closing = false
	s.mu.Unlock()

	go s.readLoop(conn)

	if s.onConnect != nil {
		s.onConnect()
	}

	return nil
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			deliberate := s.closing
			s.connected = false
			s.mu.Unlock()

			if deliberate {
				return
			}
			_ = conn.Close()

			code := websocket.CloseAbnormalClosure
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code = closeErr.Code
			}

			if s.onDisconnect != nil {
				s.onDisconnect(code, err.Error())
			}
			return
		}

		if s.onMessage != nil {
			s.onMessage(data)
		}
	}
}

// Disconnect closes the connection without firing the disconnect handler.
// Safe to call when already disconnected.
func (s *Socket) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	wasConnected := s.connected
	s.closing = true
	s.connected = false
	s.conn = nil
	s.mu.Unlock()

	if conn == nil || !wasConnected {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	return conn.Close()
}

func (s *Socket) Subscribe(channel, symbol string) error {
	return s.send(command{
		Event: "subscribe",
		Data:  commandData{Channel: channel, Symbol: symbol},
		ID:    uuid.NewString(),
	})
}

func (s *Socket) Unsubscribe(channelID string) error {
	return s.send(command{
		Event: "unsubscribe",
		Data:  commandData{ChannelID: channelID},
		ID:    uuid.NewString(),
	})
}

func (s *Socket) send(cmd command) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// IsConnected reports the current connection state.
func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
