package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/pkg/logger"
)

// Manager публикует уведомления в hub и обрабатывает сообщения клиентов
type Manager struct {
	hub        *Hub
	relay      *ClusterRelay
	emitted    *prometheus.CounterVec
	bufferSize int
	log        *logrus.Entry
}

// ManagerOption настраивает Manager
type ManagerOption func(*Manager)

// WithClusterRelay включает пересылку уведомлений между экземплярами
func WithClusterRelay(relay *ClusterRelay) ManagerOption {
	return func(m *Manager) { m.relay = relay }
}

// WithEmitCounter считает отправленные уведомления по имени события
func WithEmitCounter(counter *prometheus.CounterVec) ManagerOption {
	return func(m *Manager) { m.emitted = counter }
}

// WithSendBuffer задает размер буфера отправки клиента
func WithSendBuffer(size int) ManagerOption {
	return func(m *Manager) { m.bufferSize = size }
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *Hub, opts ...ManagerOption) *Manager {
	m := &Manager{
		hub:        hub,
		bufferSize: defaultClientBufferSize,
		log:        logger.WithComponent("WebSocketManager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Emit рассылает событие подключенным подписчикам. Доставка не гарантируется.
func (m *Manager) Emit(eventType string, payload interface{}) error {
	frame, err := json.Marshal(Event{Type: eventType, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s notification: %w", eventType, err)
	}

	m.hub.Broadcast(eventType, frame)
	if m.emitted != nil {
		m.emitted.WithLabelValues(eventType).Inc()
	}

	if m.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.relay.Publish(ctx, eventType, frame); err != nil {
			return fmt.Errorf("failed to relay %s notification: %w", eventType, err)
		}
	}
	return nil
}

// Attach регистрирует соединение и запускает обмен сообщениями
func (m *Manager) Attach(conn *websocket.Conn, principalID string) (*Client, error) {
	client := NewClient(m.hub, conn, principalID, m.bufferSize)
	if err := client.Start(m.HandleMessage); err != nil {
		return nil, err
	}
	return client, nil
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Неизвестный тип не закрывает соединение, некорректный JSON закрывает.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		m.sendError(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	switch event.Type {
	case MessageSubscribe, MessageUnsubscribe:
		var req subscriptionRequest
		if len(event.Data) > 0 {
			if err := json.Unmarshal(event.Data, &req); err != nil {
				m.sendError(client, "invalid_format", fmt.Sprintf("Failed to parse %s message", event.Type))
				return nil
			}
		}
		if event.Type == MessageSubscribe {
			client.Subscribe(req.Events...)
		} else {
			client.Unsubscribe(req.Events...)
		}
		m.send(client, MessageSubscribed, map[string]interface{}{"events": client.Subscriptions()})
		return nil
	default:
		m.sendError(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
}

// ClientCount возвращает количество локально подключенных клиентов
func (m *Manager) ClientCount() int {
	return m.hub.ClientCount()
}

func (m *Manager) sendError(client *Client, code, message string) {
	m.send(client, MessageError, map[string]string{"code": code, "message": message})
}

func (m *Manager) send(client *Client, eventType string, data interface{}) {
	frame, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		m.log.WithError(err).Error("[WebSocketManager] Failed to marshal frame")
		return
	}
	m.hub.SendTo(client, eventType, frame)
}
