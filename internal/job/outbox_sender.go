package job

import (
	"context"
	"time"

	"communitycore/internal/infrastructure/mq"
	"communitycore/internal/metrics"
	"communitycore/internal/model"
	"communitycore/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender 轮询发件箱，把 PENDING 消息投递到 Kafka
// 至少一次投递：发送成功但标记失败时下一轮会重发，消费方需容忍重复
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	maxRetry   int
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	log        *logrus.Entry
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, interval time.Duration, maxRetry int) *OutboxSender {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		maxRetry:   maxRetry,
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
		log:        logrus.WithField("component", "OutboxSender"),
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("查询消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	fields := logrus.Fields{"id": msg.ID, "topic": msg.Topic, "key": msg.MessageKey, "event": msg.EventType}

	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	metrics.RecordOutboxPublish(err == nil)
	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			s.log.WithFields(fields).WithError(updateErr).Error("更新消息状态失败")
		} else {
			s.log.WithFields(fields).Debug("消息发送成功")
		}
		return true
	}

	s.log.WithFields(fields).WithError(err).Warn("消息发送失败")
	if err := s.outboxRepo.MarkRetry(ctx, msg, s.maxRetry); err != nil {
		s.log.WithFields(fields).WithError(err).Error("记录重试失败")
		return false
	}
	if msg.RetryCount+1 >= s.maxRetry {
		s.log.WithFields(fields).Error("消息超过最大重试次数，标记为失败")
	}
	return false
}
