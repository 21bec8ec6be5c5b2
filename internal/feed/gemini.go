package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/oneway/internal/metrics"
	"github.com/wonny/oneway/pkg/logger"
)

// Gemini v1 marketdata endpoint. The symbol goes into the URL path and
// the stream starts without a subscribe handshake.
const (
	DefaultWSURL = "wss://api.gemini.com/v1/marketdata"

	PingInterval          = 30 * time.Second
	ReconnectInitialDelay = 1 * time.Second
	ReconnectMaxDelay     = 30 * time.Second
	MaxReconnectAttempts  = 10
)

// Trade is one executed trade from the marketdata stream
type Trade struct {
	Symbol     string
	Price      float64
	Amount     float64
	MakerSide  string
	EventID    int64
	ReceivedAt time.Time
}

// Client handles the Gemini marketdata WebSocket connection
type Client struct {
	baseURL string
	symbol  string
	logger  *logger.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	// Callbacks
	onTrade      func(*Trade)
	onError      func(error)
	onConnected  func()
	onDisconnect func()

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewClient creates a new marketdata client for one symbol
func NewClient(baseURL, symbol string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultWSURL
	}
	return &Client{
		baseURL: baseURL,
		symbol:  symbol,
		logger:  log,
		stopCh:  make(chan struct{}),
	}
}

// Callback setters
func (c *Client) OnTrade(fn func(*Trade))  { c.onTrade = fn }
func (c *Client) OnError(fn func(error))   { c.onError = fn }
func (c *Client) OnConnected(fn func())    { c.onConnected = fn }
func (c *Client) OnDisconnect(fn func())   { c.onDisconnect = fn }

// Connect establishes the WebSocket connection and starts the read loop
func (c *Client) Connect(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	c.logger.WithField("symbol", c.symbol).Info("Marketdata feed connected")
	return nil
}

// connect dials the marketdata endpoint
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	url := fmt.Sprintf("%s/%s?heartbeat=true", strings.TrimRight(c.baseURL, "/"), c.symbol)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	c.conn = conn
	c.connected = true

	if c.onConnected != nil {
		c.onConnected()
	}

	return nil
}

// Disconnect closes the connection
func (c *Client) Disconnect() error {
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.connected = false
	}
	c.connMu.Unlock()

	c.wg.Wait()

	if c.onDisconnect != nil {
		c.onDisconnect()
	}

	c.logger.Info("Marketdata feed disconnected")
	return nil
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// readLoop handles incoming messages
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			select {
			case <-c.stopCh:
				return
			default:
			}
			if c.onError != nil {
				c.onError(fmt.Errorf("read error: %w", err))
			}
			c.handleDisconnect()
			return
		}

		c.handleMessage(message)
	}
}

// marketdata message types
type marketdataMessage struct {
	Type    string            `json:"type"`
	EventID int64             `json:"eventId"`
	Events  []marketdataEvent `json:"events"`
}

type marketdataEvent struct {
	Type      string `json:"type"`
	TID       int64  `json:"tid"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	MakerSide string `json:"makerSide"`
}

// handleMessage processes one incoming frame
func (c *Client) handleMessage(data []byte) {
	var msg marketdataMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.WithError(err).Warn("Unparseable marketdata frame")
		return
	}

	// heartbeat frames carry no events
	if msg.Type != "update" {
		return
	}

	for _, event := range msg.Events {
		if event.Type != "trade" {
			continue // change events describe the book, not executions
		}

		trade := c.parseTrade(msg.EventID, event)
		if trade == nil {
			continue
		}

		metrics.FeedTicks.Inc()

		if c.onTrade != nil {
			c.onTrade(trade)
		}
	}
}

// parseTrade converts one trade event, rejecting unparseable prices
func (c *Client) parseTrade(eventID int64, event marketdataEvent) *Trade {
	price, err := strconv.ParseFloat(event.Price, 64)
	if err != nil || price <= 0 {
		return nil
	}
	amount, _ := strconv.ParseFloat(event.Amount, 64)

	return &Trade{
		Symbol:     c.symbol,
		Price:      price,
		Amount:     amount,
		MakerSide:  event.MakerSide,
		EventID:    eventID,
		ReceivedAt: time.Now(),
	}
}

// pingLoop sends periodic pings
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.connMu.Unlock()
					if c.onError != nil {
						c.onError(fmt.Errorf("ping error: %w", err))
					}
					c.handleDisconnect()
					return
				}
			}
			c.connMu.Unlock()
		}
	}
}

// handleDisconnect handles connection loss
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

// Reconnect attempts to reconnect with exponential backoff
func (c *Client) Reconnect(ctx context.Context) error {
	delay := ReconnectInitialDelay

	for attempt := 1; attempt <= MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		c.logger.WithField("attempt", attempt).Info("Attempting feed reconnection")

		if err := c.connect(ctx); err != nil {
			delay = delay * 2
			if delay > ReconnectMaxDelay {
				delay = ReconnectMaxDelay
			}
			continue
		}

		// Restart loops
		c.stopCh = make(chan struct{})
		c.wg.Add(2)
		go c.readLoop()
		go c.pingLoop()

		c.logger.Info("Feed reconnected successfully")
		return nil
	}

	return fmt.Errorf("max reconnect attempts reached")
}
