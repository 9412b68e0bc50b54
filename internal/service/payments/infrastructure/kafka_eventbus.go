package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/zhangzw218/EShop/internal/pkg/mq"
	"github.com/zhangzw218/EShop/internal/service/payments/domain"
	"github.com/zhangzw218/EShop/internal/service/payments/domain/port"
)

// 支付子系统的 topic
const (
	TopicRefundCreated   = "eshop.payments.refund-created"
	TopicRefundUpdated   = "eshop.payments.refund-updated"
	TopicRefundDeleted   = "eshop.payments.refund-deleted"
	TopicRefundCompleted = "eshop.payments.refund-completed"
)

// KafkaRefundEventPublisher 把退款完成事件写进 kafka，按退款 ID 分区
type KafkaRefundEventPublisher struct {
	completedWriter *kafka.Writer
}

func NewKafkaRefundEventPublisher(brokers []string) *KafkaRefundEventPublisher {
	return &KafkaRefundEventPublisher{
		completedWriter: mq.NewWriter(brokers, TopicRefundCompleted),
	}
}

var _ port.RefundEventPublisher = (*KafkaRefundEventPublisher)(nil)

func (p *KafkaRefundEventPublisher) PublishRefundCompleted(ctx context.Context, event *domain.RefundCompletedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal refund completed event: %w", err)
	}
	if err := mq.ProduceMessage(ctx, p.completedWriter, []byte(event.Refund.ID), value); err != nil {
		return fmt.Errorf("produce to %s: %w", TopicRefundCompleted, err)
	}
	return nil
}

func (p *KafkaRefundEventPublisher) Close() error {
	return p.completedWriter.Close()
}
