package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"communitycore/internal/config"
	"communitycore/internal/handler"
	"communitycore/internal/infrastructure/cache"
	"communitycore/internal/infrastructure/database"
	"communitycore/internal/infrastructure/lock"
	"communitycore/internal/infrastructure/mq"
	"communitycore/internal/job"
	"communitycore/internal/repository"
	"communitycore/internal/service"
	"communitycore/pkg/idgen"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径，为空时只使用默认值和环境变量")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID (0-1023)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("加载配置失败")
	}
	setupLogging(cfg.Log)

	if err := idgen.Init(*workerID); err != nil {
		logrus.WithError(err).Fatal("初始化ID生成器失败")
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("初始化数据库失败")
	}

	// 未配置 Redis 或连接失败时退化为进程内锁（仅适用于单实例部署）
	var locker lock.Locker
	if cfg.Redis.Host != "" {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			logrus.WithError(err).Warn("Redis 不可用，使用进程内锁")
		} else {
			defer redisClient.Close()
			locker = lock.NewRedisLocker(redisClient)
		}
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	var publisher mq.Publisher = mq.LogPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			logrus.WithError(err).Fatal("初始化 Kafka 失败")
		}
		publisher = producer
	}
	defer publisher.Close()

	servers := repository.NewServerRepository(db)
	identity := service.NewIdentityService(db, locker)
	ledger := service.NewLedgerService(db, cfg)
	svc := &handler.Services{
		Servers:  servers,
		Identity: identity,
		Ledger:   ledger,
		Transfer: service.NewTransferService(db, identity, ledger),
		Swap:     service.NewSwapService(db, servers, identity, ledger, locker),
		Daily:    service.NewDailyService(db, identity, ledger, locker),
		Killfeed: service.NewKillfeedService(db, cfg.Kafka.Topic.Killfeed, repository.NewClanRepository(db)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg.Jobs.OutboxInterval, cfg.Business.MaxRetryCount)
	go outboxSender.Start(ctx)

	reconcileJob := job.NewReconcileJob(ledger, cfg.Jobs.ReconcileInterval)
	if err := reconcileJob.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("启动对账任务失败")
	}

	if cfg.Kafka.Enabled {
		consumer, err := mq.NewConsumerGroup(&cfg.Kafka, []string{cfg.Kafka.Topic.KillLog}, job.NewKillLogHandler(svc.Killfeed))
		if err != nil {
			logrus.WithError(err).Fatal("初始化击杀日志消费者失败")
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logrus.WithError(err).Error("击杀日志消费者退出")
			}
		}()
	}

	router := handler.SetupRouter(svc)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("服务启动失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("正在关闭服务...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("服务关闭异常")
	}

	logrus.Info("服务已关闭")
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
