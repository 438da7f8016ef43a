package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"communitycore/internal/killfeed"
	"communitycore/internal/metrics"
	"communitycore/internal/model"
	"communitycore/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// KillfeedService 击杀日志处理：解析、分类、更新战绩、生成播报文本
type KillfeedService struct {
	db         *gorm.DB
	topic      string
	clans      ClanLookup
	linkRepo   *repository.LinkRepository
	statsRepo  *repository.StatsRepository
	configRepo *repository.KillfeedConfigRepository
	outboxRepo *repository.OutboxRepository
	randomizer *killfeed.Randomizer
	now        func() time.Time
}

func NewKillfeedService(db *gorm.DB, topic string, clans ClanLookup) *KillfeedService {
	return &KillfeedService{
		db:         db,
		topic:      topic,
		clans:      clans,
		linkRepo:   repository.NewLinkRepository(db),
		statsRepo:  repository.NewStatsRepository(db),
		configRepo: repository.NewKillfeedConfigRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		randomizer: killfeed.NewTimeSeededRandomizer(),
		now:        time.Now,
	}
}

// KillfeedResult 一条击杀的处理结果
//
// IsPlayerKill 只表示受害者是已绑定玩家。击杀者已绑定、受害者是未绑定的真人时，
// IsPlayerKill 为 false，但击杀者的 kills 和连杀同样会增加（按 PvP 计）；
// 统计击杀数应以 KillerStats 为准，不要依赖 IsPlayerKill。
type KillfeedResult struct {
	ServerID         int64              `json:"server_id"`
	FormattedMessage string             `json:"formatted_message"`
	Killer           string             `json:"killer"`
	Victim           string             `json:"victim"`
	KillerStats      killfeed.StatsView `json:"killer_stats"`
	VictimStats      killfeed.StatsView `json:"victim_stats"`
	IsPlayerKill     bool               `json:"is_player_kill"`
	IsScientistKill  bool               `json:"is_scientist_kill"`
}

// Process 处理一行击杀日志
//
// 解析失败或该服务器关闭了播报时返回 nil, nil；关闭播报不影响战绩更新。
// 只有存储失败才返回 error。
func (s *KillfeedService) Process(ctx context.Context, serverID int64, line string) (*KillfeedResult, error) {
	log := logrus.WithFields(logrus.Fields{"component": "killfeed", "server_id": serverID})

	ev, ok := killfeed.Parse(line)
	if !ok {
		log.WithField("line", line).Debug("无法识别的击杀日志，已丢弃")
		metrics.RecordKillfeedEvent("parse_failed")
		return nil, nil
	}

	var killerLink, victimLink *model.PlayerLink
	kind := killfeed.VictimUnlinked
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if killerLink, err = s.resolveTracked(ctx, tx, serverID, ev.Killer); err != nil {
			return err
		}
		if victimLink, err = s.resolveTracked(ctx, tx, serverID, ev.Victim); err != nil {
			return err
		}
		kind = killfeed.Classify(ev.Victim, victimLink != nil)
		return s.applyStats(ctx, tx, killerLink, victimLink, kind)
	})
	if err != nil {
		metrics.RecordKillfeedEvent("error")
		return nil, fmt.Errorf("更新战绩失败: %w", err)
	}
	metrics.RecordKillfeedVictim(kind.String())

	cfg, err := s.GetConfig(ctx, serverID)
	if err != nil {
		metrics.RecordKillfeedEvent("error")
		return nil, err
	}
	if !cfg.Enabled {
		metrics.RecordKillfeedEvent("disabled")
		return nil, nil
	}

	killer := s.side(ctx, ev.Killer, killerLink)
	victim := s.side(ctx, ev.Victim, victimLink)

	message := killfeed.Render(cfg.FormatString, killer, victim)
	if cfg.RandomizerEnabled {
		message = s.randomizer.Apply(message)
	}

	result := &KillfeedResult{
		ServerID:         serverID,
		FormattedMessage: message,
		Killer:           ev.Killer,
		Victim:           ev.Victim,
		KillerStats:      killer.Stats,
		VictimStats:      victim.Stats,
		IsPlayerKill:     kind == killfeed.VictimPlayer,
		IsScientistKill:  kind == killfeed.VictimNPC,
	}

	if err := s.outboxRepo.Enqueue(ctx, nil, s.topic, model.EventKillfeedMessage, fmt.Sprintf("%d", serverID), result); err != nil {
		// 播报投递失败不影响已提交的战绩
		log.WithError(err).Warn("写入播报消息失败")
	}
	metrics.RecordKillfeedEvent("processed")
	return result, nil
}

// resolveTracked 名字为 Scientist 的一方永远不是玩家
func (s *KillfeedService) resolveTracked(ctx context.Context, tx *gorm.DB, serverID int64, name string) (*model.PlayerLink, error) {
	if strings.EqualFold(name, killfeed.ScientistName) {
		return nil, nil
	}
	return s.linkRepo.FindActiveOnServerByIGN(ctx, tx, serverID, name)
}

// applyStats 击杀者不是已绑定玩家时不修改任何战绩
func (s *KillfeedService) applyStats(ctx context.Context, tx *gorm.DB, killerLink, victimLink *model.PlayerLink, kind killfeed.VictimKind) error {
	if killerLink == nil {
		return nil
	}
	now := s.now()

	// 自杀：只记死亡
	if victimLink != nil && victimLink.ID == killerLink.ID {
		if err := s.statsRepo.Ensure(ctx, tx, killerLink.ID); err != nil {
			return err
		}
		return s.statsRepo.RecordDeath(ctx, tx, killerLink.ID)
	}

	if err := s.statsRepo.Ensure(ctx, tx, killerLink.ID); err != nil {
		return err
	}
	switch kind {
	case killfeed.VictimNPC:
		return s.statsRepo.TouchLastKill(ctx, tx, killerLink.ID, now)
	case killfeed.VictimPlayer:
		if err := s.statsRepo.RecordKill(ctx, tx, killerLink.ID, now); err != nil {
			return err
		}
		if err := s.statsRepo.Ensure(ctx, tx, victimLink.ID); err != nil {
			return err
		}
		return s.statsRepo.RecordDeath(ctx, tx, victimLink.ID)
	default:
		// 未绑定的真人玩家：计一次 PvP 击杀，对方没有战绩行
		return s.statsRepo.RecordKill(ctx, tx, killerLink.ID, now)
	}
}

func (s *KillfeedService) side(ctx context.Context, name string, link *model.PlayerLink) killfeed.Side {
	side := killfeed.Side{Name: name, Stats: killfeed.NeutralStats()}
	if link == nil {
		return side
	}
	side.Stats = s.statsFor(ctx, link.ID)
	if s.clans != nil {
		clan, err := s.clans.ClanName(ctx, link.ID)
		if err != nil {
			logrus.WithError(err).WithField("player_id", link.ID).Warn("查询战队名失败")
		} else {
			side.ClanName = clan
		}
	}
	return side
}

func (s *KillfeedService) statsFor(ctx context.Context, playerID int64) killfeed.StatsView {
	stats, err := s.statsRepo.GetByPlayerID(ctx, nil, playerID)
	if err != nil {
		logrus.WithError(err).WithField("player_id", playerID).Warn("查询战绩失败，使用默认值")
		return killfeed.NeutralStats()
	}
	return toView(stats)
}

func toView(stats *model.PlayerStats) killfeed.StatsView {
	if stats == nil {
		return killfeed.NeutralStats()
	}
	return killfeed.StatsView{
		Kills:         stats.Kills,
		Deaths:        stats.Deaths,
		KillStreak:    stats.KillStreak,
		HighestStreak: stats.HighestStreak,
		KDRatio:       killfeed.KDRatio(stats.Kills, stats.Deaths),
	}
}

// GetPlayerStats 按角色名查询战绩；未绑定或 Scientist 返回全零且 kd 为 "0"
// 读路径只降级不报错，查询失败记录日志后同样返回默认值
func (s *KillfeedService) GetPlayerStats(ctx context.Context, serverID int64, name string) killfeed.StatsView {
	name = killfeed.NormalizeName(name)
	link, err := s.resolveTracked(ctx, nil, serverID, name)
	if err != nil {
		logrus.WithError(err).WithField("name", name).Warn("查询绑定失败，使用默认战绩")
		return killfeed.NeutralStats()
	}
	if link == nil {
		return killfeed.NeutralStats()
	}
	return s.statsFor(ctx, link.ID)
}

// GetConfig 未配置时返回默认配置
func (s *KillfeedService) GetConfig(ctx context.Context, serverID int64) (model.KillfeedConfig, error) {
	cfg, err := s.configRepo.Get(ctx, serverID)
	if err != nil {
		return model.KillfeedConfig{}, fmt.Errorf("查询播报配置失败: %w", err)
	}
	if cfg == nil {
		return model.DefaultKillfeedConfig(serverID), nil
	}
	return *cfg, nil
}

// SetConfig 覆盖服务器的播报配置，模板为空时使用默认模板
func (s *KillfeedService) SetConfig(ctx context.Context, cfg model.KillfeedConfig) (model.KillfeedConfig, error) {
	if strings.TrimSpace(cfg.FormatString) == "" {
		cfg.FormatString = model.DefaultKillfeedFormat
	}
	if err := s.configRepo.Upsert(ctx, &cfg); err != nil {
		return model.KillfeedConfig{}, fmt.Errorf("保存播报配置失败: %w", err)
	}
	return cfg, nil
}
