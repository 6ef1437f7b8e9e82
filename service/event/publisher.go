/*
 * @module service/event/publisher
 * @description 验证事件发布器，将验证运行的生命周期事件推送到Kafka供下游订阅
 * @architecture 事件驱动架构 - 适配器模式，封装Kafka生产者
 * @documentReference dev_docs/requirements.md
 * @stateFlow 验证完成/失败 -> 事件序列化 -> Kafka发送（尽力而为）
 * @rules 事件发布失败只记录日志，绝不影响验证运行的结果
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/gtfsrt/orchestrator.go
 */

package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// 验证事件类型
const (
	TypeValidationSucceeded = "validation_succeeded"
	TypeValidationFailed    = "validation_failed"
)

// ValidationEvent 验证生命周期事件
type ValidationEvent struct {
	Type        string    `json:"type"`
	DatasetID   string    `json:"dataset_id"`
	ResourceID  string    `json:"resource_id"`
	MaxSeverity *string   `json:"max_severity,omitempty"`
	ErrorsCount int       `json:"errors_count"`
	Message     string    `json:"message,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher 验证事件发布接口
type Publisher interface {
	// Publish 发布一条验证事件，尽力而为
	Publish(ctx context.Context, event ValidationEvent)
}

// NoopPublisher 不发布事件的实现，未配置Kafka时使用
type NoopPublisher struct{}

// Publish 丢弃事件
func (NoopPublisher) Publish(ctx context.Context, event ValidationEvent) {}

// KafkaPublisher Kafka验证事件发布器
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建Kafka事件发布器实例
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}

	return &KafkaPublisher{writer: writer}
}

// Publish 发布一条验证事件
// 发送失败只记录日志，不向调用方传播
func (p *KafkaPublisher) Publish(ctx context.Context, event ValidationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("验证事件序列化失败", "type", event.Type, "error", err)
		return
	}

	message := kafka.Message{
		Key:   []byte(event.ResourceID),
		Value: payload,
		Time:  event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		slog.Error("验证事件发送失败", "type", event.Type,
			"resource_id", event.ResourceID, "error", err)
	}
}

// Close 关闭Kafka生产者
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
