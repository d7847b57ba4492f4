// Package channel owns the single push-channel websocket of a daemon: it
// keeps it connected, dispatches incoming frames by type and writes commands.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/talentpipe/inboxsync/internal/bus"
	"github.com/talentpipe/inboxsync/internal/frame"
)

// ErrNotConnected is returned by Send while the socket is down. Commands are
// never queued.
var ErrNotConnected = errors.New("push channel not connected")

// Handler processes one frame. Handlers run on the read goroutine, one at a
// time, in arrival order.
type Handler func(frame.Frame)

// State is the payload of channel.connected and channel.disconnected events.
type State struct {
	Connected bool
	Err       string
}

const (
	writeTimeout = 10 * time.Second
	readLimit    = 4 << 20
)

// Options configure a Conn.
type Options struct {
	URL    string
	Header http.Header
	// Reconnect backoff bounds. Zero values use 500ms and 30s.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// StableAfter resets the backoff once a connection has lasted this long.
	StableAfter  time.Duration
	PingInterval time.Duration
	// PongWait is how long the socket may stay silent (no frame, no pong)
	// before it is treated as dead. Zero uses twice PingInterval.
	PongWait time.Duration
	Dialer       *websocket.Dialer
	Bus          *bus.Bus
	Logger       *zap.Logger
}

// Conn is the push-channel connection. Create it with New, register handlers
// and hooks, then call Start once.
type Conn struct {
	opts   Options
	logger *zap.Logger
	bus    *bus.Bus

	mu        sync.RWMutex
	handlers  map[string]Handler
	onConnect []func(context.Context)
	ws        *websocket.Conn
	clientID  string
	cancel    context.CancelFunc
	closed    bool

	writeMu   sync.Mutex
	connected atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an unstarted connection.
func New(opts Options) *Conn {
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.StableAfter <= 0 {
		opts.StableAfter = time.Minute
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = 2 * opts.PingInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{
		opts:     opts,
		logger:   logger.With(zap.String("component", "channel")),
		bus:      opts.Bus,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// Handle registers the handler for a frame type, replacing any previous one.
func (c *Conn) Handle(typ string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[typ] = h
}

// OnConnect registers a hook run after every successful (re)connection, on
// its own goroutine. The context is cancelled when the Conn closes.
func (c *Conn) OnConnect(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connected reports whether the socket is up.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// ClientID returns the id announced by the last connection_established frame.
func (c *Conn) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// Start dials in the background and keeps reconnecting until Close.
func (c *Conn) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	go c.run(ctx)
}

// Send writes one command. It fails fast with ErrNotConnected while down.
func (c *Conn) Send(cmd frame.Command) error {
	data, err := frame.Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws == nil || !c.connected.Load() {
		return ErrNotConnected
	}

	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		// Unblocks the read loop, which reports the disconnect.
		_ = ws.Close()
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	c.logger.Debug("command sent", zap.String("type", cmd.Type))
	return nil
}

// Close stops reconnecting and closes the socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		cancel, ws := c.cancel, c.ws
		c.mu.Unlock()
		if cancel == nil {
			close(c.done)
			return
		}
		cancel()
		if ws != nil {
			c.writeMu.Lock()
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = ws.Close()
		}
	})
	<-c.done
	return nil
}

func (c *Conn) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	b := c.newBackOff()

	for {
		ws, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := b.NextBackOff()
			c.logger.Warn("push channel dial failed", zap.Error(err), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		start := time.Now()
		c.attach(ctx, ws)
		err = c.readLoop(ctx, ws)
		c.detach(ws, err)

		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > c.opts.StableAfter {
			b.Reset()
		}
		wait := b.NextBackOff()
		c.logger.Info("push channel reconnecting", zap.Duration("retry_in", wait))
		if !sleep(ctx, wait) {
			return
		}
	}
}

func (c *Conn) attach(ctx context.Context, ws *websocket.Conn) {
	ws.SetReadLimit(readLimit)
	c.mu.Lock()
	c.ws = ws
	hooks := append([]func(context.Context){}, c.onConnect...)
	c.mu.Unlock()
	c.connected.Store(true)

	c.logger.Info("push channel connected", zap.String("url", c.opts.URL))
	c.bus.Emit(bus.ChannelConnected, State{Connected: true})

	for _, hook := range hooks {
		go hook(ctx)
	}
}

func (c *Conn) detach(ws *websocket.Conn, cause error) {
	c.connected.Store(false)
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()
	_ = ws.Close()

	state := State{}
	if cause != nil {
		state.Err = cause.Error()
	}
	c.logger.Warn("push channel disconnected", zap.Error(cause))
	c.bus.Emit(bus.ChannelDisconnected, state)
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	// Any frame or pong proves the peer is alive; silence past PongWait
	// fails the read and triggers a reconnect.
	extend := func() error { return ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)) }
	if err := extend(); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error { return extend() })

	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.keepAlive(ws, pingDone)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := extend(); err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Conn) keepAlive(ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				_ = ws.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// dispatch decodes one raw frame and runs its handler. Malformed frames,
// unknown types and panicking handlers never stop the read loop.
func (c *Conn) dispatch(raw []byte) {
	f, err := frame.Decode(raw)
	if err != nil {
		c.logger.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}

	c.mu.Lock()
	if f.Type == frame.TypeConnectionEstablished {
		var p frame.ConnectionEstablished
		if f.Payload(&p) == nil {
			c.clientID = p.ClientID
		}
	}
	h := c.handlers[f.Type]
	c.mu.Unlock()

	if h == nil {
		if f.Type != frame.TypeConnectionEstablished {
			c.logger.Info("dropping unknown frame", zap.String("type", f.Type))
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("frame handler panicked", zap.String("type", f.Type), zap.Any("panic", r))
		}
	}()
	h(f)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
