// cmd/payments-service/main.go
package main

import (
	"context"
	"flag"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/zhangzw218/EShop/internal/pkg/bootstrap"
	"github.com/zhangzw218/EShop/internal/pkg/config"
	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/pkg/mq"
	"github.com/zhangzw218/EShop/internal/service/payments/application"
	"github.com/zhangzw218/EShop/internal/service/payments/infrastructure"
	"github.com/zhangzw218/EShop/internal/service/payments/interfaces"
)

const serviceName = "payments-service"

// main 是组装根：同步支付侧的退款实体变更，维护电商侧投影
func main() {
	configPath := flag.String("config", "configs/payments.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = serviceName
	}
	logger.Init(cfg.Service.Name, cfg.Service.LogLevel)
	log := logger.L()

	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	refundRepo := infrastructure.NewGormRefundRepository(db)
	paymentRepo := infrastructure.NewGormPaymentRepository(db)

	brokers := cfg.Infra.Kafka.Brokers
	publisher := infrastructure.NewKafkaRefundEventPublisher(brokers)
	dlqWriter := mq.NewWriter(brokers, cfg.Infra.Kafka.DLQTopic)
	failureHandler := mq.NewFailureHandler(dlqWriter)

	tracer := otel.Tracer(cfg.Service.Name)
	synchronizer := application.NewRefundSynchronizer(refundRepo, paymentRepo, publisher, tracer)

	groupID := cfg.Infra.Kafka.GroupID
	consumers := []*interfaces.RefundConsumer{
		interfaces.NewRefundCreatedConsumer(
			mq.NewReader(brokers, groupID, infrastructure.TopicRefundCreated), synchronizer, failureHandler),
		interfaces.NewRefundUpdatedConsumer(
			mq.NewReader(brokers, groupID, infrastructure.TopicRefundUpdated), synchronizer, failureHandler),
		interfaces.NewRefundDeletedConsumer(
			mq.NewReader(brokers, groupID, infrastructure.TopicRefundDeleted), synchronizer, failureHandler),
	}

	runners := make([]bootstrap.Runner, 0, len(consumers))
	for _, consumer := range consumers {
		consumer := consumer
		runners = append(runners, func(ctx context.Context) error {
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			consumer.Stop(context.Background())
			return nil
		})
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.Service.Name,
		Config:      cfg,
		Runners:     runners,
		OnShutdown: func(ctx context.Context) {
			if err := publisher.Close(); err != nil {
				logger.L().Error().Err(err).Msg("failed to close kafka writers")
			}
			if err := dlqWriter.Close(); err != nil {
				logger.L().Error().Err(err).Msg("failed to close dlq writer")
			}
		},
	})
}
