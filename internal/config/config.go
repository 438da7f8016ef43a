package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
// Driver 取值 mysql / postgres / sqlite，sqlite 只使用 Path
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	GroupID string           `mapstructure:"group_id"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
	Killfeed     string `mapstructure:"killfeed"`
	KillLog      string `mapstructure:"kill_log"`
}

type BusinessConfig struct {
	DailyRewardAmount  int64 `mapstructure:"daily_reward_amount"`
	DailyCooldownHours int   `mapstructure:"daily_cooldown_hours"`
	MaxRetryCount      int   `mapstructure:"max_retry_count"`
}

// DailyCooldown 每日奖励的冷却窗口
func (b BusinessConfig) DailyCooldown() time.Duration {
	return time.Duration(b.DailyCooldownHours) * time.Hour
}

type JobsConfig struct {
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default 返回内置默认配置（无配置文件时使用，测试也基于它）
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "data/core.db",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379},
		Kafka: KafkaConfig{
			GroupID: "community-core",
			Topic: KafkaTopicConfig{
				LedgerEvents: "ledger_events",
				Killfeed:     "killfeed",
				KillLog:      "kill_log",
			},
		},
		Business: BusinessConfig{
			DailyRewardAmount:  100,
			DailyCooldownHours: 24,
			MaxRetryCount:      5,
		},
		Jobs: JobsConfig{
			OutboxInterval:    time.Second,
			ReconcileInterval: 15 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig 加载配置文件
//
// 配置文件可选；环境变量 CORE_<SECTION>_<KEY> 覆盖文件中的值，
// 例如 CORE_DATABASE_DRIVER=postgres。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("core")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if cfg.Business.DailyCooldownHours <= 0 {
		return nil, fmt.Errorf("business.daily_cooldown_hours 必须大于0，当前值: %d", cfg.Business.DailyCooldownHours)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.log_sql", false)

	v.SetDefault("redis.host", d.Redis.Host)
	v.SetDefault("redis.port", d.Redis.Port)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.topic.ledger_events", d.Kafka.Topic.LedgerEvents)
	v.SetDefault("kafka.topic.killfeed", d.Kafka.Topic.Killfeed)
	v.SetDefault("kafka.topic.kill_log", d.Kafka.Topic.KillLog)

	v.SetDefault("business.daily_reward_amount", d.Business.DailyRewardAmount)
	v.SetDefault("business.daily_cooldown_hours", d.Business.DailyCooldownHours)
	v.SetDefault("business.max_retry_count", d.Business.MaxRetryCount)

	v.SetDefault("jobs.outbox_interval", d.Jobs.OutboxInterval)
	v.SetDefault("jobs.reconcile_interval", d.Jobs.ReconcileInterval)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
