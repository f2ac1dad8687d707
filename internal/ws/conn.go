package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ErrConnClosed is returned by Send after Close
var ErrConnClosed = errors.New("plugin connection closed")

// Conn adapts a WebSocket to plugin.Instance
type Conn struct {
	ws     *websocket.Conn
	events chan plugin.Event
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn starts reading plugin frames from ws
func NewConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{
		ws:     ws,
		events: make(chan plugin.Event, 16),
		logger: logger,
		closed: make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()
	return c
}

// Events implements plugin.Instance
func (c *Conn) Events() <-chan plugin.Event { return c.events }

// Send implements plugin.Instance
func (c *Conn) Send(cmd plugin.Command) error {
	frame, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

// Hello tells the plugin which instance and node it was bound to
func (c *Conn) Hello(instanceID, nodeID string) error {
	frame, err := encodeEnvelope(Envelope{Type: TypeHello, InstanceID: instanceID, NodeID: nodeID})
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, frame)
}

// Close implements plugin.Instance
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "released"))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) write(messageType int, data []byte) error {
	if messageType != websocket.CloseMessage {
		select {
		case <-c.closed:
			return ErrConnClosed
		default:
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Conn) emit(ev plugin.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.closed:
		return false
	}
}

func (c *Conn) readLoop() {
	defer close(c.events)

	c.ws.SetReadLimit(int64(frames.MaxSize()))
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			var termErr error
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				termErr = err
			}
			c.emit(plugin.Terminated{Err: termErr})
			return
		}

		ev, err := decodeEvent(raw)
		if err != nil {
			c.logger.Warn("dropping plugin frame", zap.Error(err))
			continue
		}
		if !c.emit(ev) {
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
