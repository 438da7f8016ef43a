package job

import (
	"context"
	"time"

	"communitycore/internal/metrics"
	"communitycore/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// ReconcileJob 定期核对每个账户的余额与流水合计
// 只报告不修正：不一致说明存在绕过流水改余额的代码路径，需要人工排查
type ReconcileJob struct {
	ledger    *service.LedgerService
	interval  time.Duration
	batchSize int
	log       *logrus.Entry
}

func NewReconcileJob(ledger *service.LedgerService, interval time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ReconcileJob{
		ledger:    ledger,
		interval:  interval,
		batchSize: 200,
		log:       logrus.WithField("component", "ReconcileJob"),
	}
}

// Start 注册定时任务，ctx 取消时关闭调度器
func (j *ReconcileJob) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() {
			if _, err := j.RunOnce(ctx); err != nil {
				j.log.WithError(err).Error("对账失败")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}

	sched.Start()
	j.log.WithField("interval", j.interval).Info("对账任务启动")

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			j.log.WithError(err).Warn("关闭调度器失败")
		}
		j.log.Info("对账任务退出")
	}()
	return nil
}

// RunOnce 执行一轮对账，返回不一致的账户
func (j *ReconcileJob) RunOnce(ctx context.Context) ([]*service.ReconcileResult, error) {
	mismatches, checked, err := j.ledger.ReconcileAll(ctx, j.batchSize)
	if err != nil {
		return mismatches, err
	}
	metrics.SetReconcileMismatches(len(mismatches))

	for _, m := range mismatches {
		j.log.WithFields(logrus.Fields{
			"player_id":   m.PlayerID,
			"balance":     m.Balance,
			"journal_sum": m.JournalSum,
		}).Error("余额与流水不一致")
	}
	j.log.WithFields(logrus.Fields{"checked": checked, "mismatches": len(mismatches)}).Info("对账完成")
	return mismatches, nil
}
