package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"communitycore/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) stats(t *testing.T, playerID int64) *model.PlayerStats {
	t.Helper()
	var s model.PlayerStats
	err := e.db.Where("player_id = ?", playerID).First(&s).Error
	if err != nil {
		return nil
	}
	return &s
}

func TestProcess_PlayerKillUpdatesBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.link(t, env.alpha.ID, "u1", "Alice")
	bob := env.link(t, env.alpha.ID, "u2", "Bob")

	// Bob 先拿两次连杀
	for i := 0; i < 2; i++ {
		_, err := env.killfeed.Process(ctx, env.alpha.ID, "Bob killed Stranger")
		require.NoError(t, err)
	}
	require.Equal(t, int64(2), env.stats(t, bob.ID).KillStreak)

	res, err := env.killfeed.Process(ctx, env.alpha.ID, "Bob was killed by alice with AK47 at 120m")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.IsPlayerKill)
	assert.False(t, res.IsScientistKill)
	assert.Equal(t, "alice", res.Killer)
	assert.Equal(t, "Bob", res.Victim)
	assert.Equal(t, "alice ☠️ Bob", res.FormattedMessage)

	a := env.stats(t, alice.ID)
	require.NotNil(t, a)
	assert.Equal(t, int64(1), a.Kills)
	assert.Equal(t, int64(1), a.KillStreak)
	assert.Equal(t, int64(1), a.HighestStreak)
	assert.NotNil(t, a.LastKillTime)

	b := env.stats(t, bob.ID)
	assert.Equal(t, int64(1), b.Deaths)
	assert.Equal(t, int64(0), b.KillStreak)
	assert.Equal(t, int64(2), b.HighestStreak, "最高连杀不因死亡回退")

	assert.Equal(t, "1", res.KillerStats.KDRatio)
	assert.Equal(t, "2.00", res.VictimStats.KDRatio)
}

func TestProcess_NPCKillIsNeutral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.link(t, env.alpha.ID, "u1", "Alice")

	_, err := env.killfeed.Process(ctx, env.alpha.ID, "Alice killed Stranger")
	require.NoError(t, err)
	before := env.stats(t, alice.ID)

	env.clock.Advance(time.Minute)
	res, err := env.killfeed.Process(ctx, env.alpha.ID, "Alice killed a wandering bear")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsScientistKill)
	assert.False(t, res.IsPlayerKill)

	after := env.stats(t, alice.ID)
	assert.Equal(t, before.Kills, after.Kills)
	assert.Equal(t, before.Deaths, after.Deaths)
	assert.Equal(t, before.KillStreak, after.KillStreak)
	assert.Equal(t, before.HighestStreak, after.HighestStreak)
	require.NotNil(t, after.LastKillTime)
	assert.True(t, after.LastKillTime.After(*before.LastKillTime))

	var rows int64
	require.NoError(t, env.db.Model(&model.PlayerStats{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows, "NPC 不产生战绩行")
}

func TestProcess_ScientistIDVictim(t *testing.T) {
	env := newTestEnv(t)
	alice := env.link(t, env.alpha.ID, "u1", "Alice")

	res, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Alice killed 58213")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Scientist", res.Victim)
	assert.True(t, res.IsScientistKill)
	assert.Equal(t, "0", res.VictimStats.KDRatio)
	assert.Zero(t, env.stats(t, alice.ID).Kills)
}

func TestProcess_UntrackedKillerMutatesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.link(t, env.alpha.ID, "u2", "Bob")

	res, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Stranger killed Bob")
	require.NoError(t, err)
	require.NotNil(t, res, "仍然生成播报")

	var rows int64
	require.NoError(t, env.db.Model(&model.PlayerStats{}).Count(&rows).Error)
	assert.Zero(t, rows)
	assert.Equal(t, "0", res.KillerStats.KDRatio)
}

func TestProcess_TrackedOnOtherServerIsNotTracked(t *testing.T) {
	env := newTestEnv(t)
	env.link(t, env.bravo.ID, "u1", "Alice")

	_, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Alice killed Bob")
	require.NoError(t, err)

	var rows int64
	require.NoError(t, env.db.Model(&model.PlayerStats{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestProcess_ParseFailureIsDropped(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Alice joined the game")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestProcess_DisabledStillUpdatesStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.link(t, env.alpha.ID, "u1", "Alice")
	env.link(t, env.alpha.ID, "u2", "Bob")

	_, err := env.killfeed.SetConfig(ctx, model.KillfeedConfig{ServerID: env.alpha.ID, Enabled: false})
	require.NoError(t, err)

	res, err := env.killfeed.Process(ctx, env.alpha.ID, "Alice killed Bob")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int64(1), env.stats(t, alice.ID).Kills)
}

func TestProcess_CustomTemplateWithClanAndRandomizer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.link(t, env.alpha.ID, "u1", "Alice")
	env.link(t, env.alpha.ID, "u2", "Bob")

	clan := model.Clan{ServerID: env.alpha.ID, Name: "Wolves"}
	require.NoError(t, env.db.Create(&clan).Error)
	require.NoError(t, env.db.Create(&model.ClanMember{ClanID: clan.ID, PlayerID: alice.ID}).Error)

	_, err := env.killfeed.SetConfig(ctx, model.KillfeedConfig{
		ServerID:          env.alpha.ID,
		Enabled:           true,
		FormatString:      "[{KillerClanName}] {Killer} ({KillerKD}) KILLED {Victim} [{VictimClanName}] - killed!",
		RandomizerEnabled: false,
	})
	require.NoError(t, err)

	res, err := env.killfeed.Process(ctx, env.alpha.ID, "Alice killed Bob")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "[Wolves] Alice (1) KILLED Bob [] - killed!", res.FormattedMessage)

	_, err = env.killfeed.SetConfig(ctx, model.KillfeedConfig{
		ServerID:          env.alpha.ID,
		Enabled:           true,
		FormatString:      "{Killer} killed {Victim} (Killed again)",
		RandomizerEnabled: true,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		res, err = env.killfeed.Process(ctx, env.alpha.ID, "Alice killed Bob")
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.NotContains(t, strings.ToLower(res.FormattedMessage), "killed")
		assert.True(t, strings.HasPrefix(res.FormattedMessage, "Alice "))
	}
}

func TestProcess_EnqueuesKillfeedEvent(t *testing.T) {
	env := newTestEnv(t)
	env.link(t, env.alpha.ID, "u1", "Alice")

	_, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Alice killed Bob")
	require.NoError(t, err)

	var msgs []model.OutboxMessage
	require.NoError(t, env.db.Where("event_type = ?", model.EventKillfeedMessage).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, env.cfg.Kafka.Topic.Killfeed, msgs[0].Topic)
	assert.Contains(t, msgs[0].Payload, `"formatted_message":"Alice ☠️ Bob"`)
}

func TestGetPlayerStats_NeutralDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.link(t, env.alpha.ID, "u1", "Alice")
	env.link(t, env.alpha.ID, "u2", "Bob")

	for _, name := range []string{"Nobody", "Scientist", "58213", ""} {
		s := env.killfeed.GetPlayerStats(ctx, env.alpha.ID, name)
		assert.Equal(t, "0", s.KDRatio, name)
		assert.Zero(t, s.Kills, name)
	}

	// 已绑定但还没有战绩
	assert.Equal(t, "0", env.killfeed.GetPlayerStats(ctx, env.alpha.ID, "alice").KDRatio)

	for i := 0; i < 3; i++ {
		_, err := env.killfeed.Process(ctx, env.alpha.ID, "Alice killed Bob")
		require.NoError(t, err)
	}
	_, err := env.killfeed.Process(ctx, env.alpha.ID, "Bob killed Alice")
	require.NoError(t, err)
	_, err = env.killfeed.Process(ctx, env.alpha.ID, "Bob killed Alice")
	require.NoError(t, err)

	s := env.killfeed.GetPlayerStats(ctx, env.alpha.ID, "Alice")
	assert.Equal(t, int64(3), s.Kills)
	assert.Equal(t, int64(2), s.Deaths)
	assert.Equal(t, int64(0), s.KillStreak)
	assert.Equal(t, int64(3), s.HighestStreak)
	assert.Equal(t, "1.50", s.KDRatio)
}

func TestProcess_SelfKillCountsAsDeathOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.link(t, env.alpha.ID, "u1", "Alice")

	_, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Alice killed Alice")
	require.NoError(t, err)

	s := env.stats(t, alice.ID)
	require.NotNil(t, s)
	assert.Zero(t, s.Kills)
	assert.Equal(t, int64(1), s.Deaths)
}

func TestKillfeedConfig_DefaultsAndUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg, err := env.killfeed.GetConfig(ctx, env.alpha.ID)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, model.DefaultKillfeedFormat, cfg.FormatString)
	assert.False(t, cfg.RandomizerEnabled)

	saved, err := env.killfeed.SetConfig(ctx, model.KillfeedConfig{ServerID: env.alpha.ID, Enabled: true, FormatString: "  "})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultKillfeedFormat, saved.FormatString)
}

func TestProcess_UnlinkedHumanVictimCountsForKiller(t *testing.T) {
	env := newTestEnv(t)
	alice := env.link(t, env.alpha.ID, "u1", "Alice")

	res, err := env.killfeed.Process(context.Background(), env.alpha.ID, "Alice killed Stranger")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.IsPlayerKill, "受害者未绑定")
	assert.False(t, res.IsScientistKill)
	assert.Equal(t, int64(1), res.KillerStats.Kills)
	assert.Equal(t, int64(1), res.KillerStats.KillStreak)
	assert.Equal(t, "0", res.VictimStats.KDRatio)
	assert.Equal(t, int64(1), env.stats(t, alice.ID).Kills)
}
