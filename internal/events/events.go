// 包 events：收藏与访问事件的发布
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"mealody/internal/logger"
	"mealody/internal/metrics"
)

const (
	TypeFavoriteChanged = "favorite_changed"
	TypeShopVisited     = "shop_visited"
)

type Event struct {
	Type      string    `json:"type"`
	ShopID    string    `json:"shop_id"`
	Level     int       `json:"level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop：未配置消息队列时使用
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// MessageWriter：*kafka.Writer 的子集，便于测试替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w   MessageWriter
	now func() time.Time
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, now: time.Now}
}

// NewKafkaWriter：broker 为空时返回 nil
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	if broker == "" || topic == "" {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// Publish：以店铺 ID 为键，保证同一店铺的事件有序
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kafka.Message{Key: []byte(e.ShopID), Value: payload})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		logger.L().Warn("event_publish_error", "type", e.Type, "shop_id", e.ShopID, "err", err)
		return err
	}
	metrics.EventsPublishedTotal.WithLabelValues(e.Type, "ok").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
