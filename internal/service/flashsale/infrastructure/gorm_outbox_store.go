package infrastructure

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

// GormOutboxStore 把补偿任务持久化到 flash_sale_outbox 表
// 任务在触发它的业务事务之外执行，有独立的重试预算
type GormOutboxStore struct {
	db *gorm.DB
}

func NewGormOutboxStore(db *gorm.DB) *GormOutboxStore {
	return &GormOutboxStore{db: db}
}

func (s *GormOutboxStore) Enqueue(ctx context.Context, task *port.OutboxTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = port.OutboxTaskStatusPending
	}
	return s.db.WithContext(ctx).Create(toOutboxModel(task)).Error
}

func (s *GormOutboxStore) FetchPending(ctx context.Context, limit int) ([]*port.OutboxTask, error) {
	var models []OutboxTaskModel
	err := s.db.WithContext(ctx).
		Where("status = ?", string(port.OutboxTaskStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]*port.OutboxTask, 0, len(models))
	for i := range models {
		tasks = append(tasks, toDomainOutboxTask(&models[i]))
	}
	return tasks, nil
}

func (s *GormOutboxStore) MarkDone(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&OutboxTaskModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(port.OutboxTaskStatusDone),
			"last_error": "",
		}).Error
}

func (s *GormOutboxStore) MarkRetry(ctx context.Context, id string, lastError string) error {
	return s.db.WithContext(ctx).
		Model(&OutboxTaskModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retries":    gorm.Expr("retries + 1"),
			"last_error": lastError,
		}).Error
}

func (s *GormOutboxStore) MarkDead(ctx context.Context, id string, lastError string) error {
	return s.db.WithContext(ctx).
		Model(&OutboxTaskModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(port.OutboxTaskStatusDead),
			"last_error": lastError,
		}).Error
}
