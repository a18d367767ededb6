package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/algoflow/algoflow/common/logger"
)

// Stream modes
const (
	ModeLTP   = "ltp"
	ModeQuote = "quote"
	ModeDepth = "depth"
)

// TickFunc receives one streamed market-data frame for a subscription
type TickFunc func(data map[string]any)

// streamFrame is the wire shape of gateway stream messages, both directions
type streamFrame struct {
	Action   string         `json:"action,omitempty"`
	Type     string         `json:"type,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Exchange string         `json:"exchange,omitempty"`
	Symbol   string         `json:"symbol,omitempty"`
	APIKey   string         `json:"api_key,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// StreamManager owns the single websocket connection to the gateway's
// market feed. It is process-global: subscriptions are keyed by
// mode:exchange:symbol and survive across workflow executions. The
// connection is dialed lazily on first subscribe and redialed when the
// stored settings change.
type StreamManager struct {
	mu     sync.Mutex
	url    string
	apiKey string
	conn   *websocket.Conn
	subs   map[string]TickFunc
	log    *logger.Logger
}

// NewStreamManager creates an unconnected stream manager
func NewStreamManager(log *logger.Logger) *StreamManager {
	return &StreamManager{
		subs: make(map[string]TickFunc),
		log:  log,
	}
}

// Configure points the manager at the gateway feed. A change of
// coordinates drops the current connection; the next subscribe redials.
func (m *StreamManager) Configure(url, apiKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.url == url && m.apiKey == apiKey {
		return
	}

	m.url = url
	m.apiKey = apiKey
	m.closeLocked()
}

// IsConnected reports whether the feed connection is up
func (m *StreamManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func subKey(mode, exchange, symbol string) string {
	return mode + ":" + exchange + ":" + symbol
}

// Subscribe registers a callback for one instrument and mode. The first
// matching frame after this call reaches fn; fn stays registered until
// unsubscribed.
func (m *StreamManager) Subscribe(ctx context.Context, mode, exchange, symbol string, fn TickFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnectedLocked(ctx); err != nil {
		return err
	}

	m.subs[subKey(mode, exchange, symbol)] = fn

	return m.writeLocked(streamFrame{
		Action:   "subscribe",
		Mode:     mode,
		Exchange: exchange,
		Symbol:   symbol,
	})
}

// Unsubscribe removes one subscription. The unsubscribe frame is best
// effort; the local registration always goes away.
func (m *StreamManager) Unsubscribe(ctx context.Context, mode, exchange, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, subKey(mode, exchange, symbol))

	if m.conn == nil {
		return nil
	}
	return m.writeLocked(streamFrame{
		Action:   "unsubscribe",
		Mode:     mode,
		Exchange: exchange,
		Symbol:   symbol,
	})
}

// UnsubscribeAll clears every subscription and drops the connection
func (m *StreamManager) UnsubscribeAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.subs {
		delete(m.subs, key)
	}
	m.closeLocked()
}

// Disconnect drops the connection keeping subscriptions registered;
// the next subscribe redials and replays them
func (m *StreamManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *StreamManager) ensureConnectedLocked(ctx context.Context) error {
	if m.conn != nil {
		return nil
	}
	if m.url == "" {
		return fmt.Errorf("stream url is not configured")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway stream: %w", err)
	}
	m.conn = conn

	if err := m.writeLocked(streamFrame{Action: "authenticate", APIKey: m.apiKey}); err != nil {
		m.closeLocked()
		return fmt.Errorf("failed to authenticate stream: %w", err)
	}

	// Replay subscriptions that survived a reconnect
	for key := range m.subs {
		mode, exchange, symbol := splitSubKey(key)
		if err := m.writeLocked(streamFrame{
			Action:   "subscribe",
			Mode:     mode,
			Exchange: exchange,
			Symbol:   symbol,
		}); err != nil {
			m.log.Warn("failed to replay subscription", "key", key, "error", err)
		}
	}

	go m.readLoop(conn)

	m.log.Info("gateway stream connected", "url", m.url)
	return nil
}

func (m *StreamManager) writeLocked(frame streamFrame) error {
	if m.conn == nil {
		return fmt.Errorf("stream is not connected")
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode stream frame: %w", err)
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write stream frame: %w", err)
	}
	return nil
}

func (m *StreamManager) closeLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

// readLoop dispatches incoming frames to subscribers. It exits when the
// connection it was started for dies.
func (m *StreamManager) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
				m.log.Warn("gateway stream disconnected", "error", err)
			}
			m.mu.Unlock()
			return
		}

		var frame streamFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			m.log.Debug("discarding malformed stream frame", "error", err)
			continue
		}
		if frame.Type != "market_data" || frame.Mode == "" {
			continue
		}

		m.mu.Lock()
		fn := m.subs[subKey(frame.Mode, frame.Exchange, frame.Symbol)]
		m.mu.Unlock()

		if fn != nil {
			// Callbacks run outside the lock so they may resubscribe
			fn(frame.Data)
		}
	}
}

func splitSubKey(key string) (mode, exchange, symbol string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return key, "", ""
	}
	return parts[0], parts[1], parts[2]
}
