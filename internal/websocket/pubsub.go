package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/pulse-api/internal/config"
	"github.com/yourusername/pulse-api/internal/pkg/logger"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(ctx context.Context, channel string, message []byte) error

	// Subscribe подписывается на канал. Канал сообщений закрывается по отмене ctx.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close освобождает подписки провайдера
	Close() error
}

// ClusterMessage - уведомление, передаваемое между экземплярами сервиса
type ClusterMessage struct {
	EventType  string          `json:"event_type"`
	InstanceID string          `json:"instance_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NoOpPubSub используется, когда кластерный режим отключен
type NoOpPubSub struct{}

// Publish ничего не делает
func (NoOpPubSub) Publish(context.Context, string, []byte) error { return nil }

// Subscribe возвращает канал, который закрывается по отмене ctx
func (NoOpPubSub) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

// Close ничего не делает
func (NoOpPubSub) Close() error { return nil }

// RedisPubSub реализует PubSubProvider поверх Redis Pub/Sub.
// Клиент Redis принадлежит вызывающему и не закрывается здесь.
type RedisPubSub struct {
	client redis.UniversalClient
	mu     sync.Mutex
	subs   map[string]*redis.PubSub
	log    *logrus.Entry
}

// NewRedisPubSub создает провайдер поверх готового клиента
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}
	return &RedisPubSub{
		client: client,
		subs:   make(map[string]*redis.PubSub),
		log:    logger.WithComponent("RedisPubSub"),
	}, nil
}

// Publish публикует сообщение в канал Redis
func (p *RedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	if err := p.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на канал Redis и пересылает payload в возвращаемый канал
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.client.Subscribe(ctx, channel)

	// Ждем подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs[channel] = pubsub
	p.mu.Unlock()
	p.log.WithField("channel", channel).Info("[RedisPubSub] Subscribed")

	msgCh := make(chan []byte, 100)
	go func() {
		defer func() {
			p.mu.Lock()
			if p.subs[channel] == pubsub {
				delete(p.subs, channel)
			}
			p.mu.Unlock()
			pubsub.Close()
			close(msgCh)
		}()

		redisCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgCh, nil
}

// Close закрывает все активные подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for channel, pubsub := range p.subs {
		if err := pubsub.Close(); err != nil {
			p.log.WithError(err).WithField("channel", channel).Warn("[RedisPubSub] Error closing subscription")
			lastErr = err
		}
		delete(p.subs, channel)
	}
	return lastErr
}

// ClusterRelay пересылает локальные уведомления другим экземплярам и
// доставляет чужие уведомления локальным клиентам
type ClusterRelay struct {
	provider   PubSubProvider
	channel    string
	instanceID string
	hub        *Hub
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *logrus.Entry
}

// NewClusterRelay создает relay. Пустой InstanceID заменяется сгенерированным.
func NewClusterRelay(hub *Hub, cfg config.ClusterConfig, provider PubSubProvider) *ClusterRelay {
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = "instance_" + uuid.NewString()
	}
	if provider == nil {
		provider = NoOpPubSub{}
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "pulse:notifications"
	}
	return &ClusterRelay{
		provider:   provider,
		channel:    channel,
		instanceID: instanceID,
		hub:        hub,
		log:        logger.WithComponent("ClusterRelay").WithField("instance_id", instanceID),
	}
}

// InstanceID возвращает ID этого экземпляра
func (r *ClusterRelay) InstanceID() string {
	return r.instanceID
}

// Start подписывается на канал кластера
func (r *ClusterRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	msgCh, err := r.provider.Subscribe(ctx, r.channel)
	if err != nil {
		cancel()
		return err
	}
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for data := range msgCh {
			r.handle(data)
		}
	}()
	r.log.WithField("channel", r.channel).Info("[ClusterRelay] Started")
	return nil
}

// Stop отменяет подписку и ждет завершения обработки
func (r *ClusterRelay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Publish отправляет кадр остальным экземплярам
func (r *ClusterRelay) Publish(ctx context.Context, eventType string, frame []byte) error {
	data, err := json.Marshal(ClusterMessage{
		EventType:  eventType,
		InstanceID: r.instanceID,
		Payload:    frame,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return r.provider.Publish(ctx, r.channel, data)
}

func (r *ClusterRelay) handle(data []byte) {
	var msg ClusterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.log.WithError(err).Warn("[ClusterRelay] Failed to decode cluster message")
		return
	}
	// Пропускаем сообщения от самого себя
	if msg.InstanceID == r.instanceID {
		return
	}
	r.hub.Broadcast(msg.EventType, msg.Payload)
}
