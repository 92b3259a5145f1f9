package websocket

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/pkg/logger"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 512

	// Размер буфера по умолчанию для канала отправки
	defaultClientBufferSize = 128

	// Максимальное количество предупреждений о переполнении буфера до отключения
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// MessageHandler обрабатывает входящее сообщение клиента.
// Ошибка закрывает соединение.
type MessageHandler func(message []byte, client *Client) error

// Client является посредником между WebSocket соединением и hub.
type Client struct {
	// Уникальный ID соединения
	ConnectionID string

	// ID Principal, если клиент передал токен (иначе пусто)
	PrincipalID string

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send       chan []byte
	sendClosed atomic.Bool

	// Пустой набор означает подписку на все события
	subMu         sync.RWMutex
	subscriptions map[string]struct{}

	bufferWarnings atomic.Int32

	log *logrus.Entry
}

// NewClient создает клиента для установленного соединения
func NewClient(hub *Hub, conn *websocket.Conn, principalID string, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = defaultClientBufferSize
	}
	connectionID := uuid.New().String()
	return &Client{
		ConnectionID:  connectionID,
		PrincipalID:   principalID,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, bufferSize),
		subscriptions: make(map[string]struct{}),
		log: logger.WithComponent("WebSocket").WithFields(logrus.Fields{
			"connection_id": connectionID,
			"principal_id":  principalID,
		}),
	}
}

// Start регистрирует клиента в hub и запускает горутины чтения и записи
func (c *Client) Start(handler MessageHandler) error {
	if !c.hub.Register(c) {
		c.conn.Close()
		return fmt.Errorf("hub is stopped")
	}
	go c.writePump()
	go c.readPump(handler)
	return nil
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(handler MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.log.Debug("[WebSocket] Read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("[WebSocket] Read error")
			}
			return
		}

		if err := safeHandleMessage(message, c, handler); err != nil {
			c.log.WithError(err).Warn("[WebSocket] Handler error, closing connection")
			return
		}

		// Любое сообщение от клиента сбрасывает счетчик предупреждений
		c.bufferWarnings.Store(0)
	}
}

// safeHandleMessage вызывает обработчик с recover
func safeHandleMessage(message []byte, client *Client, handler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			client.log.WithField("panic", r).WithField("stack", string(debug.Stack())).Error("[WebSocket] Panic recovered in message handler")
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if handler == nil {
		return nil
	}
	return handler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("[WebSocket] Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub закрыл канал клиента
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Debug("[WebSocket] Write error")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// IsSubscribed проверяет, должен ли клиент получать событие
func (c *Client) IsSubscribed(eventType string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if eventType == "" || len(c.subscriptions) == 0 {
		return true
	}
	_, ok := c.subscriptions[eventType]
	return ok
}

// Subscribe добавляет события в подписку клиента
func (c *Client) Subscribe(eventTypes ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, t := range eventTypes {
		if t != "" {
			c.subscriptions[t] = struct{}{}
		}
	}
}

// Unsubscribe убирает события из подписки. Пустая подписка снова означает все события.
func (c *Client) Unsubscribe(eventTypes ...string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, t := range eventTypes {
		delete(c.subscriptions, t)
	}
}

// Subscriptions возвращает текущий набор подписок
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	out := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		out = append(out, t)
	}
	return out
}

// trySend ставит сообщение в очередь клиента без блокировки
func (c *Client) trySend(message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// CloseSend безопасно закрывает канал send (только один раз)
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}
