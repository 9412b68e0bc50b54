package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/mq"
	"github.com/zhangzw218/EShop/internal/service/flashsale/application"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
)

// 锁冲突说明同 (plan, user) 的另一条消息正在临界区里，
// 稍等后原地重试比走死信更划算
const (
	lockConflictRetries = 3
	lockConflictBackoff = 200 * time.Millisecond
)

// ResultCreationConsumer 监听结果创建事件并驱动编排器
type ResultCreationConsumer struct {
	consumerAdapter
	handler *application.CreateResultHandler
}

func NewResultCreationConsumer(reader *kafka.Reader, handler *application.CreateResultHandler,
	failureHandler *mq.FailureHandler) *ResultCreationConsumer {
	c := &ResultCreationConsumer{handler: handler}
	c.consumerAdapter = consumerAdapter{
		reader:         reader,
		failureHandler: failureHandler,
		process:        c.processMessage,
	}
	return c
}

func (c *ResultCreationConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.CreateFlashSaleResultEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt <= lockConflictRetries; attempt++ {
		err = c.handler.Handle(ctx, &event)
		if !errors.Is(err, domain.ErrConcurrentResultCreation) {
			return err
		}
		logger.Ctx(ctx).Warn().
			Str("planId", event.Plan.ID).
			Str("userId", event.UserID).
			Int("attempt", attempt+1).
			Msg("result creation lock is contended, backing off")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockConflictBackoff):
		}
	}
	return err
}
