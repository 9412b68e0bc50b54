// internal/pkg/mq/failure_handler.go
package mq

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
)

// FailureHandler 把处理失败的消息转移到死信 topic
// 消费侧在移交后照常提交 offset，重投递策略由死信队列的消费者决定
type FailureHandler struct {
	dlqWriter *kafka.Writer
}

func NewFailureHandler(dlqWriter *kafka.Writer) *FailureHandler {
	return &FailureHandler{dlqWriter: dlqWriter}
}

// Handle 将原始消息连同失败原因写入 DLQ
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "x-original-topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "x-failure-reason", Value: []byte(cause.Error())},
		),
	}

	if err := h.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		// DLQ 也写不进去时只能靠日志兜底
		logger.Ctx(ctx).Error().Err(err).
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("failed to forward message to DLQ")
		return
	}

	logger.Ctx(ctx).Warn().Err(cause).
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Msg("message moved to DLQ")
}
