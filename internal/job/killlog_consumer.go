package job

import (
	"context"
	"fmt"
	"strconv"

	"communitycore/internal/infrastructure/mq"
	"communitycore/internal/service"

	"github.com/sirupsen/logrus"
)

// KillProcessor 处理一行击杀日志
type KillProcessor interface {
	Process(ctx context.Context, serverID int64, line string) (*service.KillfeedResult, error)
}

// NewKillLogHandler Kafka kill_log 主题的消息处理函数
// 消息 key 为内部 server id，value 为原始日志行；投递为至少一次，不去重
// key 无效的消息直接跳过，存储失败原样返回以便重新投递
func NewKillLogHandler(processor KillProcessor) mq.MessageHandler {
	log := logrus.WithField("component", "KillLogConsumer")

	return func(ctx context.Context, key, value []byte) error {
		serverID, err := strconv.ParseInt(string(key), 10, 64)
		if err != nil || serverID <= 0 {
			return fmt.Errorf("%w: 无效的服务器ID %q", mq.ErrSkipMessage, key)
		}

		result, err := processor.Process(ctx, serverID, string(value))
		if err != nil {
			return err
		}
		if result != nil {
			log.WithFields(logrus.Fields{
				"server_id": serverID,
				"killer":    result.Killer,
				"victim":    result.Victim,
			}).Debug("击杀播报已生成")
		}
		return nil
	}
}
