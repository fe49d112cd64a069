package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"RoomDetection/pkg/pipeline"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WebsocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		URL:              "ws://localhost:8001/api/v1/rooms/infer",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// websocketBackend talks to an external model server over a single
// persistent connection. Exchanges are serialized; one request is in flight
// at a time.
type websocketBackend struct {
	cfg WebsocketConfig
	log *logrus.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	exchange sync.Mutex
}

func NewWebsocketBackend(cfg WebsocketConfig, log *logrus.Logger) Backend {
	defaults := DefaultWebsocketConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}

	return &websocketBackend{
		cfg: cfg,
		log: log,
	}
}

func (c *websocketBackend) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.log.WithField("url", c.cfg.URL).Info("Connecting to inference server")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.URL, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *websocketBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteTimeout),
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *websocketBackend) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.cfg.WriteTimeout))
		if err != nil {
			c.log.Warnf("Ping to inference server failed, marking connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *websocketBackend) getConnection(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn, nil
	}

	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *websocketBackend) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

// roundTrip writes one message and waits for the reply, bounded by the
// configured timeouts and the deadline of ctx.
func (c *websocketBackend) roundTrip(ctx context.Context, messageType int, payload []byte) ([]byte, error) {
	c.exchange.Lock()
	defer c.exchange.Unlock()

	conn, err := c.getConnection(ctx)
	if err != nil {
		return nil, err
	}

	writeDeadline := time.Now().Add(c.cfg.WriteTimeout)
	readDeadline := time.Now().Add(c.cfg.ReadTimeout)
	ctxDeadline, bounded := ctx.Deadline()
	if bounded {
		if ctxDeadline.Before(writeDeadline) {
			writeDeadline = ctxDeadline
		}
		if ctxDeadline.Before(readDeadline) {
			readDeadline = ctxDeadline
		}
	}

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteMessage(messageType, payload); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error sending frame: %w", deadlineError(ctx, writeDeadline, err))
	}

	conn.SetReadDeadline(readDeadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error reading message: %w", deadlineError(ctx, readDeadline, err))
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	return message, nil
}

// deadlineError reports a socket timeout as the context's error when the
// socket deadline was taken from the context.
func deadlineError(ctx context.Context, deadline time.Time, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !d.After(deadline) {
		return context.DeadlineExceeded
	}
	return err
}

func (c *websocketBackend) Status(ctx context.Context) (Status, error) {
	req, err := json.Marshal(statusRequest{Type: statusRequestType})
	if err != nil {
		return Status{}, err
	}

	message, err := c.roundTrip(ctx, websocket.TextMessage, req)
	if err != nil {
		return Status{}, err
	}

	var resp statusResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return Status{}, fmt.Errorf("error unmarshaling status response: %w", err)
	}

	return Status{
		ModelLoaded: resp.ModelLoaded,
		Device:      resp.Device,
	}, nil
}

func (c *websocketBackend) Detect(ctx context.Context, img Image) ([]pipeline.RawDetection, error) {
	c.log.WithFields(logrus.Fields{
		"bytes":  len(img.Data),
		"width":  img.Size.Width,
		"height": img.Size.Height,
	}).Debug("Sending image to inference server")

	message, err := c.roundTrip(ctx, websocket.BinaryMessage, img.Data)
	if err != nil {
		return nil, err
	}

	detections, err := decodeDetectResponse(message, img.Size)
	if err != nil {
		return nil, err
	}

	c.log.WithField("detections", len(detections)).Debug("Received response from inference server")
	return detections, nil
}
