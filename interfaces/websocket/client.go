package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/session"
	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/pkg/validation"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Send buffer size
	sendBufferSize = 256
)

var errNoGraph = errors.New("no graph rendered yet")

// Client is one browser connection. It is the view.Surface of its own
// query session: drawing, highlighting and popups become messages.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	logger  *zap.Logger
	session *session.Session

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With(zap.String("connectionID", id)),
	}
}

// Start registers the client and runs its pumps. fetcher serves the
// client's queries.
func (c *Client) Start(fetcher session.Fetcher, opts ...session.Option) {
	opts = append([]session.Option{
		session.WithLogger(c.logger),
		session.WithErrorHandler(func(query string, err error) {
			c.sendError("", err)
		}),
	}, opts...)
	c.session = session.New(fetcher, c, opts...)

	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

// ID returns the connection ID.
func (c *Client) ID() string { return c.id }

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.hub.unregister <- c
		c.conn.Close()
		c.logger.Debug("Read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("Binary messages not supported")
			continue
		}
		c.handle(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(message []byte) {
	var in Inbound
	if err := json.Unmarshal(message, &in); err != nil {
		c.sendError("", err)
		return
	}
	if err := validation.Struct(in); err != nil {
		c.sendError("", err)
		return
	}

	if in.Type == TypeQuery {
		c.session.Submit(in.Query)
		return
	}

	v := c.session.Current()
	if v == nil {
		c.sendError(in.ID, errNoGraph)
		return
	}

	var err error
	switch in.Type {
	case TypeSelect:
		err = v.Select(in.ID)
	case TypeDeselect:
		err = v.Deselect(in.ID)
	case TypeHoverEnter:
		err = v.HoverEnter(in.ID)
	case TypeHoverLeave:
		err = v.HoverLeave(in.ID)
	}
	// A view replaced by a newer query is not the client's mistake.
	if err != nil && !errors.Is(err, view.ErrDestroyed) {
		c.sendError(in.ID, err)
	}
}

func (c *Client) enqueue(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send buffer full, message dropped", zap.String("type", msg.Type))
	}
}

// close stops outbound traffic. Called by the hub once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendError reports err. id names the element the failed message was
// about, if any.
func (c *Client) sendError(id string, err error) {
	c.enqueue(Outbound{Type: TypeError, ID: id, Error: err.Error()})
}

// Draw implements view.Surface.
func (c *Client) Draw(scene view.Scene) error {
	c.enqueue(Outbound{Type: TypeScene, Scene: &scene})
	return nil
}

// SetHighlighted implements view.Surface.
func (c *Client) SetHighlighted(ids []string, on bool) {
	c.enqueue(Outbound{Type: TypeHighlight, IDs: ids, On: on})
}

// OpenPopup implements view.Surface.
func (c *Client) OpenPopup(id, content string) (view.Popup, error) {
	c.enqueue(Outbound{Type: TypePopupOpen, ID: id, Content: content})
	return &remotePopup{client: c, id: id}, nil
}

// Clear implements view.Surface.
func (c *Client) Clear() {
	c.enqueue(Outbound{Type: TypeClear})
}

type remotePopup struct {
	client *Client
	id     string
}

func (p *remotePopup) Show()    { p.client.enqueue(Outbound{Type: TypePopupShow, ID: p.id}) }
func (p *remotePopup) Hide()    { p.client.enqueue(Outbound{Type: TypePopupHide, ID: p.id}) }
func (p *remotePopup) Destroy() { p.client.enqueue(Outbound{Type: TypePopupDestroy, ID: p.id}) }
