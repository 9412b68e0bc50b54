package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/mq"
	"github.com/zhangzw218/EShop/internal/service/payments/application"
	"github.com/zhangzw218/EShop/internal/service/payments/domain"
)

// refundEventKind 标识消费的是哪类实体变更
type refundEventKind int

const (
	refundCreated refundEventKind = iota
	refundUpdated
	refundDeleted
)

// RefundConsumer 监听支付服务的退款实体变更事件并驱动同步器
type RefundConsumer struct {
	reader         *kafka.Reader
	synchronizer   *application.RefundSynchronizer
	failureHandler *mq.FailureHandler
	kind           refundEventKind

	wg      sync.WaitGroup
	stopped bool
}

func NewRefundCreatedConsumer(reader *kafka.Reader, synchronizer *application.RefundSynchronizer,
	failureHandler *mq.FailureHandler) *RefundConsumer {
	return &RefundConsumer{reader: reader, synchronizer: synchronizer, failureHandler: failureHandler, kind: refundCreated}
}

func NewRefundUpdatedConsumer(reader *kafka.Reader, synchronizer *application.RefundSynchronizer,
	failureHandler *mq.FailureHandler) *RefundConsumer {
	return &RefundConsumer{reader: reader, synchronizer: synchronizer, failureHandler: failureHandler, kind: refundUpdated}
}

func NewRefundDeletedConsumer(reader *kafka.Reader, synchronizer *application.RefundSynchronizer,
	failureHandler *mq.FailureHandler) *RefundConsumer {
	return &RefundConsumer{reader: reader, synchronizer: synchronizer, failureHandler: failureHandler, kind: refundDeleted}
}

// Start 启动监听，长期运行直到 Stop 或 ctx 取消
func (c *RefundConsumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().
			Str("topic", c.reader.Config().Topic).
			Msg("refund consumer started")
		for {
			if c.stopped {
				return
			}
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("refund consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			newCtx := propagator.Extract(ctx, &headerCarrier)

			if processingErr := c.processMessage(newCtx, msg); processingErr != nil {
				c.failureHandler.Handle(newCtx, msg, processingErr)
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit messages")
			}
		}
	}()
	return nil
}

// Stop 优雅停止消费
func (c *RefundConsumer) Stop(ctx context.Context) {
	c.stopped = true
	_ = c.reader.Close()
	c.wg.Wait()
	logger.Ctx(ctx).Info().
		Str("topic", c.reader.Config().Topic).
		Msg("refund consumer stopped")
}

func (c *RefundConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	switch c.kind {
	case refundCreated:
		var event domain.RefundCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return c.synchronizer.HandleRefundCreated(ctx, &event)
	case refundUpdated:
		var event domain.RefundUpdatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return c.synchronizer.HandleRefundUpdated(ctx, &event)
	default:
		var event domain.RefundDeletedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return err
		}
		return c.synchronizer.HandleRefundDeleted(ctx, &event)
	}
}
