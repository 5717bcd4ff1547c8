package hub

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrPeerBackpressure = errors.New("peer send buffer is full")
	ErrPeerClosed       = errors.New("peer is closed")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 256
)

// Peer is one connected subscriber, whatever transport it came through.
type Peer interface {
	ID() string
	Transport() string
	Deliver(msg models.Outbound) error
	Close()
}

// encodeFunc frames an outbound message for a transport.
type encodeFunc func(models.Outbound) ([]byte, error)

// handleFunc processes one inbound frame.
type handleFunc func(c *Client, raw []byte)

// Client — websocket-подключение с буферизированной очередью отправки.
type Client struct {
	id        string
	transport string
	conn      *websocket.Conn
	send      chan []byte
	encode    encodeFunc
	handle    handleFunc
	router    *Router
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, transport string, router *Router, encode encodeFunc, handle handleFunc, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:        id,
		transport: transport,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		encode:    encode,
		handle:    handle,
		router:    router,
		logger:    logger.With(slog.String("peer_id", id), slog.String("transport", transport)),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) Transport() string { return c.transport }

// Deliver queues msg for the write pump. It never blocks; a full buffer
// means the peer is too slow and is reported as an error.
func (c *Client) Deliver(msg models.Outbound) error {
	data, err := c.encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPeerClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrPeerBackpressure
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// reply sends a direct response to this peer only.
func (c *Client) reply(event string, payload any) {
	err := c.Deliver(models.Outbound{Event: event, Payload: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		c.logger.Warn("Failed to reply to peer", slog.String("event", event), slog.Any("error", err))
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.router.RemovePeer(c)
		c.Close()
		c.conn.Close()
		c.logger.Debug("Peer disconnected")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected websocket close", slog.Any("error", err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Каждое сообщение — отдельный фрейм, клиенты парсят JSON по фреймам.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Write to peer failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
