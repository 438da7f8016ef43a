package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// 余额本身的正确性由数据库的原子增减和事务保证，锁只用于串行化
// "先判断资格再记账"的流程（每日奖励、跨服兑换），避免并发重复领取。
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// Lock 单次加锁的句柄
type Lock interface {
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	Unlock(ctx context.Context) error
}

// Locker 按 key 创建锁
type Locker interface {
	NewLock(key string, expiration time.Duration) Lock
}

// DistributedLock 基于 Redis 的分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，value 不匹配时不删除（锁已过期并被他人持有）
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// RedisLocker 为每次加锁生成新的持有者标识
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (r *RedisLocker) NewLock(key string, expiration time.Duration) Lock {
	return NewDistributedLock(r.client, key, uuid.NewString(), expiration)
}

// DailyLockKey 每日奖励锁（按 公会+Discord 用户 维度）
func DailyLockKey(guildID, discordID string) string {
	return fmt.Sprintf("economy:lock:daily:%s:%s", guildID, discordID)
}

// SwapLockKey 跨服兑换锁，与每日奖励分开，互不阻塞
func SwapLockKey(guildID, discordID string) string {
	return fmt.Sprintf("economy:lock:swap:%s:%s", guildID, discordID)
}

// LinkUserLockKey 绑定锁（公会+服务器+Discord 用户）
func LinkUserLockKey(guildID string, serverID int64, discordID string) string {
	return fmt.Sprintf("identity:lock:user:%s:%d:%s", guildID, serverID, discordID)
}

// LinkIGNLockKey 绑定锁（公会+服务器+角色名），角色名不区分大小写
func LinkIGNLockKey(guildID string, serverID int64, ign string) string {
	return fmt.Sprintf("identity:lock:ign:%s:%d:%s", guildID, serverID, strings.ToLower(strings.TrimSpace(ign)))
}

// ============================================================================
// 进程内实现：单实例部署或未配置 Redis 时使用
// ============================================================================

// LocalLocker 进程内按 key 互斥
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) NewLock(key string, _ time.Duration) Lock {
	return &localLock{owner: l, key: key}
}

type localLock struct {
	owner *LocalLocker
	key   string
}

func (l *localLock) tryLock() bool {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.owner.held[l.key] {
		return false
	}
	l.owner.held[l.key] = true
	return true
}

func (l *localLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		if l.tryLock() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *localLock) Unlock(_ context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	delete(l.owner.held, l.key)
	return nil
}
