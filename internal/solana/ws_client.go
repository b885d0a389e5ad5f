package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-share-vault/internal/observability"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("websocket client closed")

// subscribeTimeout bounds the wait for a subscription confirmation.
const subscribeTimeout = 30 * time.Second

// notificationBuffer is the per-subscription channel capacity. Sends block
// once it is full, so slow consumers apply backpressure instead of losing
// account updates.
const notificationBuffer = 1024

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Commitment is the commitment level requested for subscriptions.
	Commitment string
	// Logger receives connection and protocol errors. Nil disables logging.
	Logger *zap.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Commitment:        DefaultCommitment,
	}
}

// subscription is one account watched by a caller. It outlives reconnects;
// only its server-assigned ID changes.
type subscription struct {
	account PublicKey
	ch      chan AccountNotification
}

// pendingSubscribe waits for the server to confirm a subscribe request.
type pendingSubscribe struct {
	sub       *subscription
	confirmed chan int64
}

// WSClientImpl implements WSClient over accountSubscribe using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed       atomic.Bool
	reconnecting atomic.Bool
	requestID    atomic.Uint64

	mu      sync.Mutex
	subs    map[int64]*subscription      // by server subscription ID
	pending map[uint64]*pendingSubscribe // by request ID

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Commitment == "" {
		cfg.Commitment = DefaultCommitment
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.Named("ws"),
		subs:     make(map[int64]*subscription),
		pending:  make(map[uint64]*pendingSubscribe),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeAccount subscribes to changes of a single account. The returned
// channel is closed by Close.
func (c *WSClientImpl) SubscribeAccount(ctx context.Context, account PublicKey) (<-chan AccountNotification, error) {
	sub := &subscription{account: account, ch: make(chan AccountNotification, notificationBuffer)}
	if _, err := c.subscribe(ctx, sub); err != nil {
		return nil, err
	}
	return sub.ch, nil
}

// Close closes the connection and every subscription channel.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	// Readers must exit before subscription channels are closed.
	c.wg.Wait()

	c.mu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	for id := range c.pending {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	return nil
}

// subscribe sends accountSubscribe for sub and returns the subscription ID.
// sub is registered under that ID before the confirmation is delivered, so
// a notification sent right after the confirmation is never dropped.
func (c *WSClientImpl) subscribe(ctx context.Context, sub *subscription) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	p := &pendingSubscribe{sub: sub, confirmed: make(chan int64, 1)}

	c.mu.Lock()
	c.pending[reqID] = p
	c.mu.Unlock()

	err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []interface{}{
			sub.account.String(),
			map[string]string{"encoding": "base64", "commitment": c.config.Commitment},
		},
	})
	if err != nil {
		c.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(subscribeTimeout)
	defer timer.Stop()

	select {
	case id := <-p.confirmed:
		return id, nil
	case <-timer.C:
		c.dropPending(reqID)
		return 0, fmt.Errorf("subscribe %s: no confirmation after %s", sub.account, subscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		c.dropPending(reqID)
		return 0, ctx.Err()
	}
}

func (c *WSClientImpl) dropPending(reqID uint64) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

// write sends v as JSON on the current connection.
func (c *WSClientImpl) write(v any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *WSClientImpl) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// readLoop dispatches messages until Close. Read failures trigger a
// reconnect with exponential backoff.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for !c.closed.Load() {
		conn := c.currentConn()
		if conn != nil {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			_, message, err := conn.ReadMessage()
			if err == nil {
				delay = c.config.ReconnectDelay
				c.handleMessage(message)
				continue
			}
			if c.closed.Load() {
				return
			}
			c.logger.Debug("read failed", zap.Error(err))
		}

		// No connection or a broken one: start a reconnect unless one is
		// already running, then back off.
		if !c.reconnecting.Swap(true) {
			go c.reconnect(delay)
			delay = min(delay*2, c.config.MaxReconnectDelay)
		}
		select {
		case <-c.done:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// reconnect replaces the connection after delay and restores subscriptions.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("reconnect failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		return
	}
	if c.closed.Load() {
		c.connMu.Lock()
		_ = c.conn.Close()
		c.connMu.Unlock()
		return
	}
	c.logger.Info("reconnected", zap.String("endpoint", c.endpoint))

	c.resubscribeAll(ctx)
}

// resubscribeAll re-registers every subscription on the new connection.
// A subscription that fails keeps its old ID and is retried on the next
// reconnect.
func (c *WSClientImpl) resubscribeAll(ctx context.Context) {
	c.mu.Lock()
	old := make(map[int64]*subscription, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.mu.Unlock()

	for oldID, sub := range old {
		newID, err := c.subscribe(ctx, sub)
		if err != nil {
			c.logger.Warn("resubscribe failed", zap.Stringer("account", sub.account), zap.Error(err))
			continue
		}
		if newID == oldID {
			continue
		}
		c.mu.Lock()
		delete(c.subs, oldID)
		c.mu.Unlock()
	}
}

// wsEnvelope holds the fields shared by responses and notifications.
type wsEnvelope struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Params json.RawMessage `json:"params"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn("malformed message", zap.Error(err))
		return
	}

	switch {
	case env.Error != nil:
		// The pending subscribe times out on its own.
		c.logger.Warn("error response",
			zap.Uint64("id", env.ID),
			zap.Int("code", env.Error.Code),
			zap.String("message", env.Error.Message),
		)
	case env.Method == "accountNotification":
		var params wsNotificationParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			c.logger.Warn("malformed notification", zap.Error(err))
			return
		}
		c.handleAccountNotification(&params)
	case env.ID != 0 && len(env.Result) > 0:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.confirm(env.ID, subID)
	}
}

// confirm registers the pending subscription under subID and wakes the
// subscriber.
func (c *WSClientImpl) confirm(reqID uint64, subID int64) {
	c.mu.Lock()
	p, ok := c.pending[reqID]
	if ok {
		delete(c.pending, reqID)
		c.subs[subID] = p.sub
	}
	c.mu.Unlock()

	if ok {
		p.confirmed <- subID
	}
}

func (c *WSClientImpl) handleAccountNotification(params *wsNotificationParams) {
	start := time.Now()
	defer func() {
		observability.RecordWSMessage(time.Since(start).Seconds())
	}()

	c.mu.Lock()
	sub, ok := c.subs[params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	value := params.Result.Value
	notif := AccountNotification{
		Account:  sub.account,
		Lamports: value.Lamports,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}
	if owner, err := ParsePublicKey(value.Owner); err == nil {
		notif.Owner = owner
	}
	if len(value.Data) > 0 {
		data, err := base64.StdEncoding.DecodeString(value.Data[0])
		if err != nil {
			c.logger.Warn("decode account data", zap.Stringer("account", sub.account), zap.Error(err))
			return
		}
		notif.Data = data
	}

	select {
	case sub.ch <- notif:
	case <-c.done:
	}
}

// pingLoop keeps the connection alive. Write failures are left to readLoop.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
			c.connMu.Unlock()
		}
	}
}

// Wire types of the Solana PubSub API.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext     `json:"context"`
	Value   wsAccountValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsAccountValue struct {
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"` // [base64_data, encoding]
}

var _ WSClient = (*WSClientImpl)(nil)
