package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

// WebsocketTransportConfig tunes the websocket connection to a node.
type WebsocketTransportConfig struct {
	HandshakeTimeout time.Duration `env:"BTS_WS_HANDSHAKE_TIMEOUT" env-default:"5s"`
	// PingInterval is how often websocket control pings are written.
	PingInterval time.Duration `env:"BTS_WS_PING_INTERVAL" env-default:"10s"`
	// PongWait is how long the connection may stay silent before it is
	// considered dead. Every pong or data frame extends the deadline.
	PongWait     time.Duration `env:"BTS_WS_PONG_WAIT" env-default:"30s"`
	WriteTimeout time.Duration `env:"BTS_WS_WRITE_TIMEOUT" env-default:"10s"`
	// ReadLimit caps a single inbound frame; full account dumps are large.
	ReadLimit     int64 `env:"BTS_WS_READ_LIMIT" env-default:"16777216"`
	EventChanSize int   `env:"BTS_WS_EVENT_BUFFER" env-default:"128"`
}

// DefaultWebsocketTransportConfig mirrors the env defaults.
var DefaultWebsocketTransportConfig = WebsocketTransportConfig{
	HandshakeTimeout: 5 * time.Second,
	PingInterval:     10 * time.Second,
	PongWait:         30 * time.Second,
	WriteTimeout:     10 * time.Second,
	ReadLimit:        16 << 20,
	EventChanSize:    128,
}

// dialCtx holds the resources of one live connection.
type dialCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	events chan TransportEvent
	lg     log.Logger
}

// WebsocketTransport implements Transport over gorilla/websocket.
type WebsocketTransport struct {
	cfg     WebsocketTransportConfig
	dialCtx *dialCtx
	mu      sync.RWMutex // protects dialCtx
	writeMu sync.Mutex   // serializes frame writes
}

var _ Transport = (*WebsocketTransport)(nil)

func NewWebsocketTransport(cfg WebsocketTransportConfig) *WebsocketTransport {
	return &WebsocketTransport{cfg: cfg}
}

// Dial connects to url and starts the read, ping and close watchers. The
// connection lives until Close is called, ctx is cancelled, or the node goes
// away; its end is reported as EventDisconnected.
func (t *WebsocketTransport) Dial(parentCtx context.Context, url string) error {
	if t.IsConnected() {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  t.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(parentCtx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ErrConnection, ErrDialingWebsocket, err)
	}

	if t.cfg.ReadLimit > 0 {
		conn.SetReadLimit(t.cfg.ReadLimit)
	}
	t.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		t.extendReadDeadline(conn)
		return nil
	})

	childCtx, cancel := context.WithCancel(parentCtx)
	dc := &dialCtx{
		ctx:    childCtx,
		cancel: cancel,
		conn:   conn,
		events: make(chan TransportEvent, max(t.cfg.EventChanSize, 1)),
		lg:     log.FromContext(parentCtx).WithName("ws-transport").WithKV("url", url),
	}
	dc.events <- TransportEvent{Kind: EventConnected}

	wg := sync.WaitGroup{}
	wg.Add(3)

	var closureErr error
	var closureErrMu sync.Mutex
	handleClosure := func(err error) {
		closureErrMu.Lock()
		defer closureErrMu.Unlock()

		if err != nil && closureErr == nil {
			closureErr = err
		}
		cancel()
		wg.Done()
	}

	t.mu.Lock()
	t.dialCtx = dc
	t.mu.Unlock()

	go t.closeOnContextDone(dc, handleClosure)
	go t.readMessages(dc, handleClosure)
	go t.pingPeriodically(dc, handleClosure)

	go func() {
		wg.Wait()

		closureErrMu.Lock()
		reason := closureErr
		closureErrMu.Unlock()

		dc.events <- TransportEvent{Kind: EventDisconnected, Err: reason}
		close(dc.events)
	}()

	return nil
}

func (t *WebsocketTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.dialCtx != nil && t.dialCtx.ctx.Err() == nil
}

// Send writes data as a single text frame. The write deadline is the earlier
// of ctx's deadline and WriteTimeout.
func (t *WebsocketTransport) Send(ctx context.Context, data []byte) error {
	t.mu.RLock()
	dc := t.dialCtx
	t.mu.RUnlock()
	if dc == nil || dc.ctx.Err() != nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := dc.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}
	if err := dc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}
	return nil
}

// Close cancels the live connection. It is safe to call when not connected.
func (t *WebsocketTransport) Close() error {
	t.mu.RLock()
	dc := t.dialCtx
	t.mu.RUnlock()

	if dc != nil {
		dc.cancel()
	}
	return nil
}

// Events returns the event stream of the most recent Dial, or nil before the
// first one.
func (t *WebsocketTransport) Events() <-chan TransportEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.dialCtx == nil {
		return nil
	}
	return t.dialCtx.events
}

func (t *WebsocketTransport) extendReadDeadline(conn *websocket.Conn) {
	if t.cfg.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	}
}

func (t *WebsocketTransport) closeOnContextDone(dc *dialCtx, handleClosure func(err error)) {
	<-dc.ctx.Done()

	t.writeMu.Lock()
	_ = dc.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := dc.conn.Close()
	t.writeMu.Unlock()

	if err != nil {
		dc.lg.Warn("error closing websocket", "error", err)
	}
	handleClosure(nil)
}

// readMessages forwards every frame in arrival order. It blocks rather than
// drops when the consumer is slow.
func (t *WebsocketTransport) readMessages(dc *dialCtx, handleClosure func(err error)) {
	for {
		_, data, err := dc.conn.ReadMessage()
		if dc.ctx.Err() != nil {
			handleClosure(nil)
			dc.lg.Debug("read loop exiting, connection closed locally")
			return
		}

		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				err = fmt.Errorf("%w: %w", ErrConnectionTimeout, err)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
			default:
				err = fmt.Errorf("%w: %w", ErrReadingMessage, err)
			}
			t.emitError(dc, err)
			handleClosure(err)
			dc.lg.Warn("websocket read failed", "error", err)
			return
		}

		t.extendReadDeadline(dc.conn)
		select {
		case dc.events <- TransportEvent{Kind: EventMessage, Data: data}:
		case <-dc.ctx.Done():
			handleClosure(nil)
			return
		}
	}
}

func (t *WebsocketTransport) pingPeriodically(dc *dialCtx, handleClosure func(err error)) {
	if t.cfg.PingInterval <= 0 {
		<-dc.ctx.Done()
		handleClosure(nil)
		return
	}

	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-dc.ctx.Done():
			handleClosure(nil)
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := dc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout))
			t.writeMu.Unlock()

			if err != nil {
				err = fmt.Errorf("%w: %w", ErrSendingPing, err)
				t.emitError(dc, err)
				handleClosure(err)
				dc.lg.Warn("websocket ping failed", "error", err)
				return
			}
		}
	}
}

// emitError reports a transport error without blocking the failing loop.
func (t *WebsocketTransport) emitError(dc *dialCtx, err error) {
	select {
	case dc.events <- TransportEvent{Kind: EventError, Err: err}:
	default:
	}
}
