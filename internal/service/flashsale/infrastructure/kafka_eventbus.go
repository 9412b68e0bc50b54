package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/zhangzw218/EShop/internal/pkg/mq"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// 秒杀链路使用的 topic
const (
	TopicCreateResult    = "eshop.flashsale.create-result"
	TopicCreateOrder     = "eshop.flashsale.create-order"
	TopicOrderCreated    = "eshop.flashsale.order-created"
	TopicOrderFailed     = "eshop.flashsale.order-failed"
	TopicResultCompleted = "eshop.flashsale.result-completed"
)

// KafkaEventPublisher 把领域事件写进 kafka
//
// create-result 按 (planId, userId) 取 key，同一用户在同一活动里的
// 消息进同一分区，消费侧天然串行；其余 topic 按 resultId 分区。
type KafkaEventPublisher struct {
	createResultWriter    *kafka.Writer
	createOrderWriter     *kafka.Writer
	resultCompletedWriter *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		createResultWriter:    mq.NewWriter(brokers, TopicCreateResult),
		createOrderWriter:     mq.NewWriter(brokers, TopicCreateOrder),
		resultCompletedWriter: mq.NewWriter(brokers, TopicResultCompleted),
	}
}

var _ port.EventPublisher = (*KafkaEventPublisher)(nil)

func (p *KafkaEventPublisher) PublishCreateResult(ctx context.Context, event *domain.CreateFlashSaleResultEvent) error {
	key := fmt.Sprintf("%s-%s", event.Plan.ID, event.UserID)
	return produce(ctx, p.createResultWriter, key, event)
}

func (p *KafkaEventPublisher) PublishCreateOrder(ctx context.Context, event *domain.CreateFlashSaleOrderEvent) error {
	return produce(ctx, p.createOrderWriter, event.ResultID, event)
}

func (p *KafkaEventPublisher) PublishResultCompleted(ctx context.Context, event *domain.FlashSaleResultCompletedEvent) error {
	return produce(ctx, p.resultCompletedWriter, event.ResultID, event)
}

func (p *KafkaEventPublisher) Close() error {
	for _, w := range []*kafka.Writer{p.createResultWriter, p.createOrderWriter, p.resultCompletedWriter} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}

func produce(ctx context.Context, writer *kafka.Writer, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", writer.Topic, err)
	}
	if err := mq.ProduceMessage(ctx, writer, []byte(key), value); err != nil {
		return fmt.Errorf("produce to %s: %w", writer.Topic, err)
	}
	return nil
}
