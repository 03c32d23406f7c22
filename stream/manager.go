package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/sourcegraph/conc"

	"github.com/citrohq/citro-go/config"
	"github.com/citrohq/citro-go/errs"
	"github.com/citrohq/citro-go/internal/observability"
	"github.com/citrohq/citro-go/internal/signing"
)

const (
	commandPing = "ping"

	controlWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	readLimit               = 2 * 1024 * 1024

	subscribedAckPrefix   = "Subscribed to "
	unsubscribedAckPrefix = "Unsubscribed from "
	pongResponse          = "pong"
)

// Handler receives inbound data frames for one channel. Handlers run on the
// manager's single dispatch loop and must not block.
type Handler func(Frame)

type subscription struct {
	key            ChannelKey
	handler        Handler
	active         bool
	subscriptionID string
}

// Manager owns one websocket connection: it keeps the registry of desired
// subscriptions independent of connection state, replays them with fresh
// signatures after every reconnect, and routes inbound frames to handlers by
// locally derived channel key.
type Manager struct {
	url              string
	creds            config.Credentials
	recvWindow       time.Duration
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	pongTimeout      time.Duration
	maxReconnect     time.Duration
	maxAuthFailures  int
	clock            func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes registry mutations against reconnect replay and ACK
	// handling, so a subscribe or unsubscribe can never race a half-applied
	// replay.
	mu           sync.Mutex
	subs         map[ChannelKey]*subscription
	pendingAcks  map[Family][]ChannelKey
	conn         *websocket.Conn
	lastPong     time.Time
	authFailures int

	errs      chan error
	ready     chan struct{}
	readyOnce sync.Once
	started   atomic.Bool
	metrics   *managerMetrics
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock overrides the manager's time source, primarily for
// testing.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager constructs a manager for the configured websocket endpoint.
func NewManager(cfg config.Settings, opts ...ManagerOption) *Manager {
	m := &Manager{
		url:              cfg.Endpoints.WebsocketURL,
		creds:            cfg.Credentials,
		recvWindow:       cfg.RecvWindow,
		handshakeTimeout: cfg.Stream.HandshakeTimeout,
		pingInterval:     cfg.Stream.PingInterval,
		pongTimeout:      cfg.Stream.PongTimeout,
		maxReconnect:     cfg.Stream.MaxReconnectInterval,
		maxAuthFailures:  cfg.Stream.MaxAuthFailures,
		clock:            time.Now,
		subs:             make(map[ChannelKey]*subscription),
		pendingAcks:      make(map[Family][]ChannelKey),
		errs:             make(chan error, 8),
		ready:            make(chan struct{}),
		metrics:          newManagerMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.handshakeTimeout <= 0 {
		m.handshakeTimeout = defaultHandshakeTimeout
	}
	return m
}

// Start connects and begins the reconnect loop. It returns once the first
// connection is established or the start timeout elapses.
func (m *Manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("stream: manager requires context")
	}
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("stream: manager already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	go func() {
		if err := m.connectLoop(); err != nil && !errors.Is(err, context.Canceled) {
			m.reportError(fmt.Errorf("stream manager: %w", err))
		}
	}()

	select {
	case <-m.ready:
		return nil
	case <-time.After(m.handshakeTimeout):
		return errors.New("stream: timeout waiting for websocket connection")
	case <-m.ctx.Done():
		return fmt.Errorf("stream: context done: %w", m.ctx.Err())
	}
}

// Close tears the connection down and stops the reconnect loop.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close(websocket.StatusNormalClosure, "shutdown")
		m.conn = nil
	}
	m.mu.Unlock()
}

// Errors returns asynchronous manager errors, including the fatal
// authentication condition that stops the manager.
func (m *Manager) Errors() <-chan error {
	return m.errs
}

// Subscribe registers a handler for key and, when connected, sends the
// subscribe command. Subscribing an already-registered key is idempotent: the
// original handler stays and no second command is sent.
func (m *Manager) Subscribe(key ChannelKey, handler Handler) error {
	if !key.valid() {
		return errs.FromAPICode(errs.APIInvalidParams, "",
			errs.WithOp("stream.subscribe"),
			errs.WithMessage(fmt.Sprintf("invalid channel key %q", key)))
	}
	if handler == nil {
		return errs.FromAPICode(errs.APIInvalidParams, "",
			errs.WithOp("stream.subscribe"), errs.WithMessage("handler required"))
	}
	if key.Family.Private() && !m.authenticated() {
		return errs.FromAPICode(errs.APIAuthRequired, "",
			errs.WithOp("stream.subscribe"),
			errs.WithMessage(fmt.Sprintf("channel %s requires credentials", key)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subs[key]; exists {
		return nil
	}
	m.subs[key] = &subscription{key: key, handler: handler}
	if m.conn == nil {
		return nil
	}
	return m.sendSubscribeLocked(key)
}

// Unsubscribe removes key from the registry and, when connected, sends the
// teardown command. Calling it for an inactive or unknown channel is a no-op.
func (m *Manager) Unsubscribe(key ChannelKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subs[key]; !exists {
		return nil
	}
	delete(m.subs, key)
	m.voidPendingAckLocked(key)
	m.metrics.setActiveSubscriptions(m.countActiveLocked())
	if m.conn == nil {
		return nil
	}
	return m.sendCommandLocked(key.Family.unsubscribeCommand(), key.params(), key.Family.Private())
}

// Active reports whether key has been acknowledged on the current
// connection.
func (m *Manager) Active(key ChannelKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[key]
	return ok && sub.active
}

// SubscriptionID returns the server-assigned id for key on the current
// connection. Ids are reissued on reconnect and must not be stored.
func (m *Manager) SubscriptionID(key ChannelKey) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[key]
	if !ok || !sub.active {
		return "", false
	}
	return sub.subscriptionID, true
}

func (m *Manager) authenticated() bool {
	return strings.TrimSpace(m.creds.APIKey) != "" && strings.TrimSpace(m.creds.APISecret) != ""
}

func (m *Manager) connectLoop() error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = m.maxReconnect

	for {
		select {
		case <-m.ctx.Done():
			return context.Canceled
		default:
		}

		conn, _, err := websocket.Dial(m.ctx, m.url, nil)
		if err != nil {
			m.reportError(fmt.Errorf("dial %s: %w", m.url, err))
			if err := m.sleepBackoff(backoffCfg); err != nil {
				return err
			}
			continue
		}
		conn.SetReadLimit(readLimit)

		m.mu.Lock()
		m.conn = conn
		m.lastPong = m.clock()
		if err := m.replayLocked(); err != nil {
			m.mu.Unlock()
			m.reportError(fmt.Errorf("resubscribe after reconnect: %w", err))
			_ = conn.Close(websocket.StatusNormalClosure, "")
			if err := m.sleepBackoff(backoffCfg); err != nil {
				return err
			}
			continue
		}
		m.mu.Unlock()

		m.readyOnce.Do(func() {
			close(m.ready)
		})
		backoffCfg.Reset()
		m.metrics.recordConnect(m.ctx)

		connCtx, connCancel := context.WithCancel(m.ctx)
		errCh := make(chan error, 2)
		var wg conc.WaitGroup
		wg.Go(func() {
			errCh <- m.readLoop(connCtx, conn)
		})
		wg.Go(func() {
			errCh <- m.pingLoop(connCtx, conn)
		})

		firstErr := <-errCh
		connCancel()

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		wg.Wait()

		if errors.Is(firstErr, errFatalAuth) {
			m.reportError(errs.New(errs.ClassAuth,
				errs.WithOp("stream.connect"),
				errs.WithMessage(fmt.Sprintf("stopping after %d consecutive authentication failures", m.maxAuthFailures)),
				errs.WithRemediation("check credentials and clock drift against recv_window")))
			m.cancel()
			return context.Canceled
		}
		if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
			m.reportError(fmt.Errorf("websocket connection loop: %w", firstErr))
		}
		m.metrics.recordDisconnect(m.ctx)

		if err := m.sleepBackoff(backoffCfg); err != nil {
			return err
		}
	}
}

func (m *Manager) sleepBackoff(backoffCfg *backoff.ExponentialBackOff) error {
	sleep := backoffCfg.NextBackOff()
	if sleep == backoff.Stop {
		sleep = m.maxReconnect
	}
	select {
	case <-m.ctx.Done():
		return context.Canceled
	case <-time.After(sleep):
		return nil
	}
}

// replayLocked resends every registered subscription as a fresh command with
// a fresh timestamp. Channels become active again only when their new ACK
// arrives.
func (m *Manager) replayLocked() error {
	m.pendingAcks = make(map[Family][]ChannelKey)
	for _, sub := range m.subs {
		sub.active = false
		sub.subscriptionID = ""
	}
	for key := range m.subs {
		if err := m.sendSubscribeLocked(key); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) sendSubscribeLocked(key ChannelKey) error {
	if err := m.sendCommandLocked(key.Family.subscribeCommand(), key.params(), key.Family.Private()); err != nil {
		return err
	}
	m.pendingAcks[key.Family] = append(m.pendingAcks[key.Family], key)
	return nil
}

// sendCommandLocked marshals the command, signs the exact {params, command}
// bytes for private commands, and writes the frame. The signed params bytes
// are embedded verbatim in the outbound frame.
func (m *Manager) sendCommandLocked(command string, params any, private bool) error {
	if m.conn == nil {
		return nil
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", command, err)
	}
	frame := commandFrame{Command: command, Params: rawParams}
	if private {
		payload, err := json.Marshal(signedPayload{Params: rawParams, Command: command})
		if err != nil {
			return fmt.Errorf("marshal %s sign payload: %w", command, err)
		}
		timestamp := signing.Timestamp(m.clock)
		window := signing.RecvWindow(m.recvWindow)
		frame.APIKey = m.creds.APIKey
		frame.Timestamp = timestamp
		frame.RecvWindow = window
		frame.Sign = signing.Sign(m.creds.APISecret, timestamp, m.creds.APIKey, window, payload)
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", command, err)
	}
	writeCtx, cancel := context.WithTimeout(m.ctx, controlWriteTimeout)
	defer cancel()
	if err := m.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", command, err)
	}
	observability.Log().Debug("stream command",
		observability.Field{Key: "command", Value: command})
	return nil
}

var errFatalAuth = errors.New("stream: fatal authentication failure")

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read websocket: %w", err)
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.reportError(fmt.Errorf("decode websocket message: %w", err))
			continue
		}
		if fatal := m.handleFrame(ctx, frame); fatal {
			return errFatalAuth
		}
	}
}

// handleFrame processes one inbound frame and reports whether the manager
// must stop for repeated authentication failures.
func (m *Manager) handleFrame(ctx context.Context, frame inboundFrame) bool {
	if frame.Error != nil {
		err := errs.FromAPICode(frame.Error.Code, frame.Error.Message,
			errs.WithOp("stream.read"))
		m.reportError(err)
		if errs.ClassOf(err) == errs.ClassAuth {
			m.mu.Lock()
			m.authFailures++
			fatal := m.authFailures >= m.maxAuthFailures
			m.mu.Unlock()
			return fatal
		}
		return false
	}
	if frame.Response != "" {
		m.handleAck(frame)
		return false
	}
	if frame.Method != "" {
		m.dispatch(ctx, frame)
	}
	return false
}

// handleAck matches ACKs to the oldest in-flight command of the family named
// in the response text. The server processes commands on one connection in
// order, so FIFO matching is sound.
func (m *Manager) handleAck(frame inboundFrame) {
	switch {
	case frame.Response == pongResponse:
		m.mu.Lock()
		m.lastPong = m.clock()
		m.mu.Unlock()
		return
	case strings.HasPrefix(frame.Response, subscribedAckPrefix):
		fields := strings.Fields(strings.TrimPrefix(frame.Response, subscribedAckPrefix))
		if len(fields) == 0 {
			m.reportError(fmt.Errorf("stream: malformed ack %q", frame.Response))
			return
		}
		family := Family(fields[0])
		if !family.Valid() {
			m.reportError(fmt.Errorf("stream: ack for unknown family %q", family))
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		queue := m.pendingAcks[family]
		if len(queue) == 0 {
			// No command of this family is in flight; stray ACK.
			return
		}
		key := queue[0]
		m.pendingAcks[family] = queue[1:]
		if key == (ChannelKey{}) {
			// Voided slot: the channel was unsubscribed while its subscribe
			// command was in flight. Its ACK is consumed without activating
			// anything so later ACKs stay aligned with their channels.
			return
		}
		if sub, ok := m.subs[key]; ok {
			sub.active = true
			sub.subscriptionID = frame.SubscriptionID
		}
		m.authFailures = 0
		m.metrics.setActiveSubscriptions(m.countActiveLocked())
	case strings.HasPrefix(frame.Response, unsubscribedAckPrefix):
		// Teardown confirmations carry no state the registry still tracks.
	}
}

// voidPendingAckLocked marks key's oldest in-flight subscribe as voided. The
// slot stays in the queue so the server's ACK for that command is consumed in
// order instead of being matched to the next pending channel of the family.
func (m *Manager) voidPendingAckLocked(key ChannelKey) {
	queue := m.pendingAcks[key.Family]
	for i, pending := range queue {
		if pending == key {
			queue[i] = ChannelKey{}
			return
		}
	}
}

func (m *Manager) countActiveLocked() int {
	active := 0
	for _, sub := range m.subs {
		if sub.active {
			active++
		}
	}
	return active
}

// dispatch routes a data frame to its handler by locally derived key.
func (m *Manager) dispatch(ctx context.Context, frame inboundFrame) {
	key, ok := frameKey(frame.Method, frame.Params)
	if !ok {
		m.reportError(fmt.Errorf("stream: frame with unroutable method %q", frame.Method))
		return
	}
	m.mu.Lock()
	sub, registered := m.subs[key]
	var handler Handler
	if registered {
		handler = sub.handler
	}
	m.mu.Unlock()
	if handler == nil {
		return
	}
	var probe frameTypeProbe
	_ = json.Unmarshal(frame.Data, &probe)
	m.metrics.recordFrame(ctx, string(key.Family), probe.Type == "snapshot")
	handler(Frame{
		Key:            key,
		SubscriptionID: frame.SubscriptionID,
		Snapshot:       probe.Type == "snapshot",
		Data:           frame.Data,
	})
}

// pingLoop sends a signed ping on an interval; a connection whose pong is
// overdue is stale and forces a reconnect.
func (m *Manager) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-ticker.C:
			m.mu.Lock()
			stale := m.clock().Sub(m.lastPong) > m.pingInterval+m.pongTimeout
			var err error
			if !stale && m.conn == conn {
				err = m.sendCommandLocked(commandPing, struct{}{}, m.authenticated())
			}
			m.mu.Unlock()
			if stale {
				return fmt.Errorf("stream: pong overdue, connection stale")
			}
			if err != nil {
				return err
			}
		}
	}
}

func (m *Manager) reportError(err error) {
	if err == nil {
		return
	}
	select {
	case <-m.ctx.Done():
	case m.errs <- err:
	default:
	}
}
