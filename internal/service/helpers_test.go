package service

import (
	"context"
	"testing"
	"time"

	"communitycore/internal/config"
	"communitycore/internal/infrastructure/database"
	"communitycore/internal/infrastructure/lock"
	"communitycore/internal/killfeed"
	"communitycore/internal/model"
	"communitycore/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	clock    *testClock
	locker   lock.Locker
	servers  *repository.ServerRepository
	identity *IdentityService
	ledger   *LedgerService
	transfer *TransferService
	swap     *SwapService
	daily    *DailyService
	killfeed *KillfeedService

	alpha model.GameServer
	bravo model.GameServer
}

const testGuild = "guild-1"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := config.Default()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	env := &testEnv{db: db, cfg: cfg, clock: clock}
	env.alpha = model.GameServer{GuildID: testGuild, Nickname: "Alpha", IP: "10.0.0.1", Port: 28016}
	env.bravo = model.GameServer{GuildID: testGuild, Nickname: "Bravo", IP: "10.0.0.2", Port: 28016}
	require.NoError(t, db.Create(&env.alpha).Error)
	require.NoError(t, db.Create(&env.bravo).Error)

	locker := lock.NewLocalLocker()
	env.locker = locker
	env.servers = repository.NewServerRepository(db)
	env.identity = NewIdentityService(db, locker)
	env.identity.now = clock.Now
	env.ledger = NewLedgerService(db, cfg)
	env.ledger.now = clock.Now
	env.transfer = NewTransferService(db, env.identity, env.ledger)
	env.swap = NewSwapService(db, env.servers, env.identity, env.ledger, locker)
	env.daily = NewDailyService(db, env.identity, env.ledger, locker)
	env.killfeed = NewKillfeedService(db, cfg.Kafka.Topic.Killfeed, repository.NewClanRepository(db))
	env.killfeed.now = clock.Now
	env.killfeed.randomizer = killfeed.NewRandomizer(1)
	return env
}

func (e *testEnv) link(t *testing.T, serverID int64, discordID, ign string) *model.PlayerLink {
	t.Helper()
	l, err := e.identity.LinkChecked(context.Background(), testGuild, serverID, discordID, ign)
	require.NoError(t, err)
	return l
}

func (e *testEnv) fund(t *testing.T, playerID, amount int64) {
	t.Helper()
	_, err := e.ledger.Adjust(context.Background(), playerID, amount, model.TransactionTypeAdminAdjustment)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, playerID int64) int64 {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), playerID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.LedgerTransaction{}).Count(&n).Error)
	return n
}

// requireReconciled 余额 == 流水合计
func (e *testEnv) requireReconciled(t *testing.T, playerIDs ...int64) {
	t.Helper()
	for _, id := range playerIDs {
		r, err := e.ledger.Reconcile(context.Background(), id)
		require.NoError(t, err)
		require.True(t, r.Consistent, "player %d: balance=%d journal=%d", id, r.Balance, r.JournalSum)
	}
}
