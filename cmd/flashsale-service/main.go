// cmd/flashsale-service/main.go
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
	"github.com/zhangzw218/EShop/internal/pkg/redis"
	"github.com/zhangzw218/EShop/internal/service/flashsale/application"
	"github.com/zhangzw218/EShop/internal/service/flashsale/infrastructure"
	"github.com/zhangzw218/EShop/internal/service/flashsale/interfaces"
	"github.com/zhangzw218/EShop/internal/zookeeper"
)

const serviceName = "flashsale-service"

// main 是组装根：创建并装配所有依赖，然后交给 bootstrap 运行
func main() {
	configPath := flag.String("config", "configs/flashsale.yaml", "path to config file")
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

	ctx := context.Background()

	// 存储
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	resultRepo := infrastructure.NewGormResultRepository(db)
	planRepo := infrastructure.NewGormPlanRepository(db)
	outboxStore := infrastructure.NewGormOutboxStore(db)

	// Redis：库存、令牌、结果缓存
	redisClient, err := redis.NewClient(ctx, cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	inventoryProvider, err := infrastructure.NewRedisInventoryProvider(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register inventory scripts")
	}
	resultCache := infrastructure.NewRedisCurrentResultCache(redisClient, cfg.FlashSale.CurrentResultTTL.Std())
	tokenStore := infrastructure.NewRedisPreOrderTokenStore(redisClient, cfg.FlashSale.PreOrderTTL.Std())

	// ZooKeeper 分布式锁
	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout.Std())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to zookeeper")
	}
	lock := infrastructure.NewZkLockAdapter(zkConn)

	// Kafka
	brokers := cfg.Infra.Kafka.Brokers
	publisher := infrastructure.NewKafkaEventPublisher(brokers)
	dlqWriter := mq.NewWriter(brokers, cfg.Infra.Kafka.DLQTopic)
	failureHandler := mq.NewFailureHandler(dlqWriter)

	tracer := otel.Tracer(cfg.Service.Name)

	// 应用层
	inventory := application.NewInventoryManager()
	inventory.Register(application.DefaultInventoryProviderName, inventoryProvider)

	planService := application.NewPlanService(planRepo, tokenStore, inventory, publisher, tracer)
	resultService := application.NewResultService(resultRepo, resultCache)
	createResultHandler := application.NewCreateResultHandler(
		lock, resultRepo, resultCache, outboxStore, publisher, tracer, cfg.FlashSale.LockTimeout.Std())

	pushHub := interfaces.NewPushHub()
	orderResultHandler := application.NewOrderResultHandler(
		resultRepo, resultCache, outboxStore, publisher, pushHub, tracer)

	// 消费者与后台组件
	groupID := cfg.Infra.Kafka.GroupID
	resultConsumer := interfaces.NewResultCreationConsumer(
		mq.NewReader(brokers, groupID, infrastructure.TopicCreateResult), createResultHandler, failureHandler)
	orderCreatedConsumer := interfaces.NewOrderCreatedConsumer(
		mq.NewReader(brokers, groupID, infrastructure.TopicOrderCreated), orderResultHandler, failureHandler)
	orderFailedConsumer := interfaces.NewOrderFailedConsumer(
		mq.NewReader(brokers, groupID, infrastructure.TopicOrderFailed), orderResultHandler, failureHandler)

	relay := infrastructure.NewOutboxRelay(outboxStore, inventory,
		cfg.FlashSale.Outbox.PollInterval.Std(), cfg.FlashSale.Outbox.MaxRetries, cfg.FlashSale.Outbox.BatchSize)

	httpHandler := interfaces.NewFlashSaleHandler(planService, resultService)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.Service.Name,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			httpHandler.RegisterRoutes(appCtx.Mux)
			appCtx.Mux.HandleFunc("/ws", pushHub.ServeWS)
		},
		Runners: []bootstrap.Runner{
			func(ctx context.Context) error {
				pushHub.Run(ctx)
				return nil
			},
			func(ctx context.Context) error {
				if err := resultConsumer.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				resultConsumer.Stop(context.Background())
				return nil
			},
			func(ctx context.Context) error {
				if err := orderCreatedConsumer.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				orderCreatedConsumer.Stop(context.Background())
				return nil
			},
			func(ctx context.Context) error {
				if err := orderFailedConsumer.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				orderFailedConsumer.Stop(context.Background())
				return nil
			},
			relay.Run,
		},
		OnShutdown: func(ctx context.Context) {
			if err := publisher.Close(); err != nil {
				logger.L().Error().Err(err).Msg("failed to close kafka writers")
			}
			if err := dlqWriter.Close(); err != nil {
				logger.L().Error().Err(err).Msg("failed to close dlq writer")
			}
			if err := redisClient.Close(); err != nil {
				logger.L().Error().Err(err).Msg("failed to close redis client")
			}
			zkConn.Close()
		},
	})
}
