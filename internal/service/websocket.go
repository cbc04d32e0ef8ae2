package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSendBufferFull 表示客戶端跟不上廣播速度
var ErrSendBufferFull = errors.New("service: send buffer full")

// WebSocketOptions 控制每條連線的讀寫行為
type WebSocketOptions struct {
	ReadLimit  int64
	SendBuffer int
	PongWait   time.Duration
	WriteWait  time.Duration
}

func (o WebSocketOptions) withDefaults() WebSocketOptions {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

// Client 是一條 WebSocket 連線，實作 Conn
type Client struct {
	conn     *websocket.Conn
	sendChan chan []byte
	done     chan struct{}

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		conn:     conn,
		sendChan: make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

// Send 把訊息放入發送佇列，不會阻塞
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return ErrSessionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close 關閉底層連線，讀取迴圈會因此結束並進行斷線清理
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// WebSocketManager 把 WebSocket 連線接到協定處理器
type WebSocketManager struct {
	handler *Handler
	opts    WebSocketOptions
	logger  *slog.Logger
}

func NewWebSocketManager(handler *Handler, opts WebSocketOptions, logger *slog.Logger) *WebSocketManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketManager{
		handler: handler,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// HandleClient 處理一條已升級的連線，直到連線關閉才回傳
func (m *WebSocketManager) HandleClient(conn *websocket.Conn, credential string) {
	client := newClient(conn, m.opts.SendBuffer)
	session, err := m.handler.Connect(client, credential)
	if err != nil {
		m.logger.Error("connect failed", "error", err)
		client.Close()
		return
	}

	go m.writePump(client)
	m.readPump(session, client)
}

// readPump 依序處理入站訊息；結束時一定會執行斷線清理
func (m *WebSocketManager) readPump(session *Session, client *Client) {
	defer func() {
		m.handler.Disconnect(session)
		client.Close()
	}()

	client.conn.SetReadLimit(m.opts.ReadLimit)
	client.conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
		return nil
	})

	ctx := context.Background()
	for {
		msgType, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket unexpected close", "session", session.ID(), "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		m.handler.Handle(ctx, session, message)
	}
}

// writePump 是唯一寫入連線的 goroutine，同時負責心跳
func (m *WebSocketManager) writePump(client *Client) {
	ticker := time.NewTicker(m.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.sendChan:
			client.conn.SetWriteDeadline(time.Now().Add(m.opts.WriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(m.opts.WriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}
