package interfaces

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/mq"
)

// consumerAdapter 是所有 kafka 驱动适配器共用的消费循环
// 处理失败的消息交给 FailureHandler 转入死信，然后照常提交 offset
type consumerAdapter struct {
	reader         *kafka.Reader
	failureHandler *mq.FailureHandler
	process        func(ctx context.Context, msg kafka.Message) error

	wg      sync.WaitGroup
	stopped bool
}

// Start 启动监听，长期运行直到 Stop 或 ctx 取消
func (a *consumerAdapter) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().
			Str("topic", a.reader.Config().Topic).
			Msg("kafka consumer adapter started")
		for {
			if a.stopped {
				return
			}
			// FetchMessage 而不是 ReadMessage，提交时机自己控制
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("kafka consumer adapter shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			newCtx := propagator.Extract(ctx, &headerCarrier)

			if processingErr := a.process(newCtx, msg); processingErr != nil {
				a.failureHandler.Handle(newCtx, msg, processingErr)
			}

			// 成功或已移交死信都提交 offset
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit messages")
			}
		}
	}()
	return nil
}

// Stop 优雅停止消费
func (a *consumerAdapter) Stop(ctx context.Context) {
	a.stopped = true
	_ = a.reader.Close()
	a.wg.Wait()
	logger.Ctx(ctx).Info().
		Str("topic", a.reader.Config().Topic).
		Msg("kafka consumer adapter stopped")
}
