package mq

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"communitycore/internal/config"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Publisher 发送消息到消息队列
type Publisher interface {
	SendMessage(topic, key, value string) error
	Close() error
}

// KafkaProducer 基于 sarama 同步生产者
type KafkaProducer struct {
	producer sarama.SyncProducer
}

// NewKafkaProducer 初始化 Kafka 生产者
func NewKafkaProducer(cfg *config.KafkaConfig) (*KafkaProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}

	logrus.WithField("brokers", cfg.Brokers).Info("Kafka 生产者创建成功")
	return &KafkaProducer{producer: producer}, nil
}

// SendMessage 发送消息到 Kafka
func (p *KafkaProducer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close 关闭 Kafka 生产者
func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// MessageHandler 处理单条消费到的消息
//
// 返回 nil 或包装了 ErrSkipMessage 的错误时提交 offset；
// 其余错误视为可重试（如存储失败），offset 不提交，会话结束后从该消息重新投递。
type MessageHandler func(ctx context.Context, key, value []byte) error

// ErrSkipMessage 消息本身无法处理（格式错误等），重试也不会成功
var ErrSkipMessage = errors.New("消息无法处理")

// retryBackoff 处理失败后重新加入消费者组前的等待时间
const retryBackoff = 2 * time.Second

// ConsumerGroup 包装 sarama 消费者组
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
}

// NewConsumerGroup 创建消费者组
func NewConsumerGroup(cfg *config.KafkaConfig, topics []string, handler MessageHandler) (*ConsumerGroup, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kafkaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 消费者组失败: %w", err)
	}

	return &ConsumerGroup{group: group, topics: topics, handler: handler}, nil
}

// Run 阻塞消费，直到 ctx 取消
func (c *ConsumerGroup) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			logrus.WithError(err).Warn("Kafka 消费者组错误")
		}
	}()

	h := &groupHandler{handler: c.handler}
	for {
		// 每次 rebalance 或处理失败后 Consume 返回，需要循环重新加入
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if h.failed.Swap(false) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
		}
	}
}

// Close 关闭消费者组
func (c *ConsumerGroup) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler MessageHandler
	failed  atomic.Bool
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handler(session.Context(), msg.Key, msg.Value); err != nil {
				log := logrus.WithFields(logrus.Fields{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).WithError(err)
				if !errors.Is(err, ErrSkipMessage) {
					// 不提交 offset，结束本次会话，重新加入后从这条消息继续
					log.Warn("消息处理失败，等待重新投递")
					h.failed.Store(true)
					return err
				}
				log.Warn("消息无法处理，已跳过")
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// LogPublisher 未启用 Kafka 时使用，只记录日志，保证发件箱不会无限堆积
type LogPublisher struct{}

func (LogPublisher) SendMessage(topic, key, value string) error {
	logrus.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug(value)
	return nil
}

func (LogPublisher) Close() error { return nil }
