package interfaces

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/zhangzw218/EShop/internal/pkg/mq"
	"github.com/zhangzw218/EShop/internal/service/flashsale/application"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// OrderCreatedConsumer 监听订单创建成功事件，把结果推进到 Succeeded
type OrderCreatedConsumer struct {
	consumerAdapter
	handler *application.OrderResultHandler
}

func NewOrderCreatedConsumer(reader *kafka.Reader, handler *application.OrderResultHandler,
	failureHandler *mq.FailureHandler) *OrderCreatedConsumer {
	c := &OrderCreatedConsumer{handler: handler}
	c.consumerAdapter = consumerAdapter{
		reader:         reader,
		failureHandler: failureHandler,
		process:        c.processMessage,
	}
	return c
}

func (c *OrderCreatedConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.FlashSaleOrderCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}
	return c.handler.HandleOrderCreated(ctx, &event)
}

// OrderFailedConsumer 监听订单创建失败事件，把结果置为 Failed 并触发库存回补
type OrderFailedConsumer struct {
	consumerAdapter
	handler *application.OrderResultHandler
}

func NewOrderFailedConsumer(reader *kafka.Reader, handler *application.OrderResultHandler,
	failureHandler *mq.FailureHandler) *OrderFailedConsumer {
	c := &OrderFailedConsumer{handler: handler}
	c.consumerAdapter = consumerAdapter{
		reader:         reader,
		failureHandler: failureHandler,
		process:        c.processMessage,
	}
	return c
}

func (c *OrderFailedConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.FlashSaleOrderCreationFailedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}
	return c.handler.HandleOrderCreationFailed(ctx, &event)
}
