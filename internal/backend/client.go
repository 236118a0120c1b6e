// Package backend maintains the websocket channel to the deep research
// backend. A Client owns exactly one connection at a time, decodes
// inbound frames into protocol messages and delivers them in arrival
// order, and redials after a fixed delay whenever the connection drops.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eternisai/deepr-console/internal/config"
	apierrors "github.com/eternisai/deepr-console/internal/errors"
	"github.com/eternisai/deepr-console/internal/logger"
	"github.com/eternisai/deepr-console/internal/metrics"
	"github.com/eternisai/deepr-console/internal/protocol"
	"github.com/gorilla/websocket"
)

// State describes the connection lifecycle.
type State int

const (
	// StateConnecting means a dial is in flight and the channel is not
	// ready for sends.
	StateConnecting State = iota
	// StateOpen means the channel is established and sends are accepted.
	StateOpen
	// StateClosedPendingRetry means the connection dropped and a redial
	// is scheduled after the retry delay.
	StateClosedPendingRetry
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedPendingRetry:
		return "closed_pending_retry"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Events carries the callbacks a Client invokes. OnMessage and
// OnDisconnect run on the client's run goroutine in arrival order, so a
// slow callback delays the read pump. Nil callbacks are skipped.
type Events struct {
	OnStateChange func(State)
	OnMessage     func(protocol.Inbound)
	OnDisconnect  func(err error)
}

// Options configures a Client.
type Options struct {
	// URL is the ws or wss endpoint of the backend search channel.
	URL string

	// DialTimeout bounds a single handshake attempt.
	DialTimeout time.Duration

	// RetryDelay is the fixed pause between a drop and the next dial.
	RetryDelay time.Duration

	// MaxAttempts caps consecutive failed dials before Run gives up.
	// 0 keeps retrying forever. A successful connect resets the count.
	MaxAttempts int
}

// Client manages the websocket channel to the backend.
type Client struct {
	opts    Options
	events  Events
	dialer  *websocket.Dialer
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	backendWriteMu sync.Mutex // Serializes writes to backend websocket
}

// NewClient creates a client for the given endpoint. Run must be called
// to open the channel.
func NewClient(opts Options, events Events, log *logger.Logger, m *metrics.Metrics) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = config.DefaultDialTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = config.DefaultReconnectDelay
	}

	return &Client{
		opts:   opts,
		events: events,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.DialTimeout,
		},
		logger:  log.WithComponent("backend"),
		metrics: m,
		state:   StateConnecting,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready reports whether the channel accepts sends.
func (c *Client) Ready() bool {
	return c.State() == StateOpen
}

// Send encodes msg and writes it to the backend. Sends are rejected
// while the channel is not open, never queued, so the caller can surface
// the failure immediately.
func (c *Client) Send(msg protocol.Outbound) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != StateOpen || conn == nil {
		c.metrics.SendRejections.Inc()
		return apierrors.NotConnected()
	}

	data, err := protocol.EncodeOutbound(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	c.backendWriteMu.Lock()
	defer c.backendWriteMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to backend: %w", err)
	}

	c.metrics.ActionsSent.WithLabelValues(outboundLabel(msg)).Inc()
	c.logger.Debug("action sent", slog.String("type", outboundLabel(msg)))
	return nil
}

// Run dials the backend and keeps the channel alive until ctx is done.
// Every drop, including a failed dial, schedules the next attempt after
// the fixed retry delay. Run returns ctx.Err on cancellation, or a dial
// error once MaxAttempts consecutive dials have failed.
func (c *Client) Run(ctx context.Context) error {
	log := c.logger.WithContext(ctx)

	attempts := 0
	first := true
	for {
		if !first {
			if err := c.waitRetry(ctx); err != nil {
				return err
			}
			c.metrics.ReconnectAttempts.Inc()
		}
		first = false

		c.setState(StateConnecting)
		log.Info("connecting to research backend", slog.String("url", c.opts.URL))

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempts++
			c.setState(StateClosedPendingRetry)
			log.Warn("backend dial failed",
				slog.String("error", err.Error()),
				slog.Int("attempts", attempts))
			if c.opts.MaxAttempts > 0 && attempts >= c.opts.MaxAttempts {
				return fmt.Errorf("backend unreachable after %d attempts: %w", attempts, err)
			}
			continue
		}

		attempts = 0
		c.attach(conn)
		c.setState(StateOpen)
		log.Info("connected to research backend", slog.String("url", c.opts.URL))

		readErr := c.readPump(ctx, conn)

		c.detach()
		c.setState(StateClosedPendingRetry)
		if c.events.OnDisconnect != nil {
			c.events.OnDisconnect(readErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Info("backend connection closed, retrying",
			slog.Duration("delay", c.opts.RetryDelay))
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

// readPump reads frames until the connection fails. Cancelling ctx
// closes the connection to unblock the read.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("error reading from backend", slog.String("error", err.Error()))
			}
			return err
		}
		c.dispatch(data)
	}
}

// dispatch decodes one frame and hands it to the message callback.
// Unknown message types are dropped so newer backends stay compatible;
// malformed frames are dropped with a warning.
func (c *Client) dispatch(data []byte) {
	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			c.logger.Debug("ignoring unknown backend message", slog.String("error", err.Error()))
			c.metrics.MessagesDropped.WithLabelValues("unknown_type").Inc()
			return
		}
		c.logger.Warn("dropping malformed backend message", slog.String("error", err.Error()))
		c.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return
	}

	c.metrics.MessagesReceived.WithLabelValues(inboundLabel(msg)).Inc()
	if c.events.OnMessage != nil {
		c.events.OnMessage(msg)
	}
}

func (c *Client) waitRetry(ctx context.Context) error {
	timer := time.NewTimer(c.opts.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) detach() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if !changed {
		return
	}
	c.metrics.ConnectionState.Set(float64(s))
	if c.events.OnStateChange != nil {
		c.events.OnStateChange(s)
	}
}

func inboundLabel(msg protocol.Inbound) string {
	switch msg.(type) {
	case protocol.SessionAssigned:
		return protocol.TypeSessionID
	case protocol.StatusUpdate:
		return protocol.TypeStatus
	case protocol.PlanGenerated:
		return protocol.TypePlanGenerated
	case protocol.PlanRefined:
		return protocol.TypePlanRefined
	case protocol.SynthesisStarted:
		return protocol.TypeSynthesisStart
	case protocol.SynthesisChunk:
		return protocol.TypeSynthesisChunk
	case protocol.ResearchComplete:
		return protocol.TypeComplete
	case protocol.BackendError:
		return protocol.TypeError
	case protocol.SessionCleared:
		return protocol.TypeCleared
	default:
		return "unknown"
	}
}

func outboundLabel(msg protocol.Outbound) string {
	switch msg.(type) {
	case protocol.CreatePlan:
		return protocol.TypeCreatePlan
	case protocol.RefinePlan:
		return protocol.TypeRefinePlan
	case protocol.ExecuteResearch:
		return protocol.TypeExecuteResearch
	case protocol.ClearSession:
		return protocol.TypeClear
	default:
		return "unknown"
	}
}
