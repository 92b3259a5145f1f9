package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/pkg/logger"
)

const outboundBufferSize = 256

// outbound - кадр для рассылки. target != nil означает адресную отправку.
type outbound struct {
	eventType string
	payload   []byte
	target    *Client
}

// Hub хранит подключенных клиентов и рассылает им кадры.
// Все изменения набора клиентов и записи в их каналы выполняются в Run.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	outbound   chan outbound
	done       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	count      atomic.Int64
	dropped    atomic.Int64
	gauge      prometheus.Gauge
	log        *logrus.Entry
}

// NewHub создает hub. gauge может быть nil.
func NewHub(gauge prometheus.Gauge) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		outbound:   make(chan outbound, outboundBufferSize),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		gauge:      gauge,
		log:        logger.WithComponent("WebSocketHub"),
	}
}

// Run запускает цикл обработки hub до вызова Stop
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.outbound:
			if msg.target != nil {
				h.deliver(msg.target, msg)
			} else {
				h.handleBroadcast(msg)
			}
		case <-h.done:
			for client := range h.clients {
				h.remove(client)
			}
			h.log.Info("[WebSocketHub] Stopped")
			return
		}
	}
}

// Stop останавливает Run и отключает всех клиентов
func (h *Hub) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.done) })
	select {
	case <-h.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register ставит клиента в очередь регистрации. false, если hub остановлен.
func (h *Hub) Register(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister ставит клиента в очередь удаления
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast рассылает кадр всем подписанным клиентам без ожидания доставки.
// При переполнении очереди кадр отбрасывается.
func (h *Hub) Broadcast(eventType string, payload []byte) bool {
	return h.enqueue(outbound{eventType: eventType, payload: payload})
}

// SendTo отправляет кадр одному клиенту
func (h *Hub) SendTo(c *Client, eventType string, payload []byte) bool {
	return h.enqueue(outbound{eventType: eventType, payload: payload, target: c})
}

func (h *Hub) enqueue(msg outbound) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.outbound <- msg:
		return true
	default:
		h.dropped.Add(1)
		h.log.WithField("event", msg.eventType).Warn("[WebSocketHub] Outbound queue is full, frame dropped")
		return false
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Dropped возвращает количество отброшенных кадров
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = struct{}{}
	h.updateCount()
	c.log.Debug("[WebSocketHub] Client registered")

	hello, _ := json.Marshal(Event{Type: MessageConnected, Data: map[string]string{"connection_id": c.ConnectionID}})
	c.trySend(hello)
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.CloseSend()
	h.updateCount()
	c.log.Debug("[WebSocketHub] Client unregistered")
}

func (h *Hub) handleBroadcast(msg outbound) {
	for client := range h.clients {
		if !client.IsSubscribed(msg.eventType) {
			continue
		}
		h.deliver(client, msg)
	}
}

// deliver ставит кадр в буфер клиента. Медленный клиент получает предупреждения
// и отключается после maxBufferWarnings переполнений подряд.
func (h *Hub) deliver(client *Client, msg outbound) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	if client.trySend(msg.payload) {
		return
	}

	warnings := client.bufferWarnings.Add(1)
	if warnings >= maxBufferWarnings {
		client.log.WithField("warnings", warnings).Warn("[WebSocketHub] Client exceeded buffer warnings, disconnecting")
		h.remove(client)
		if client.conn != nil {
			client.conn.Close()
		}
		return
	}

	warning, _ := json.Marshal(Event{Type: MessageBufferWarning, Data: map[string]interface{}{
		"warning_count": warnings,
		"max_warnings":  maxBufferWarnings,
	}})
	client.trySend(warning)
}

func (h *Hub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	if h.gauge != nil {
		h.gauge.Set(float64(len(h.clients)))
	}
}
