package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"communitycore/internal/config"
	"communitycore/internal/infrastructure/database"
	"communitycore/internal/infrastructure/lock"
	"communitycore/internal/model"
	"communitycore/internal/repository"
	"communitycore/internal/service"
	"communitycore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guild = "guild-1"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, model.GameServer) {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	alpha := model.GameServer{GuildID: guild, Nickname: "Alpha", IP: "10.0.0.1", Port: 28016}
	bravo := model.GameServer{GuildID: guild, Nickname: "Bravo", IP: "10.0.0.2", Port: 28016}
	require.NoError(t, db.Create(&alpha).Error)
	require.NoError(t, db.Create(&bravo).Error)

	cfg := config.Default()
	locker := lock.NewLocalLocker()
	servers := repository.NewServerRepository(db)
	identity := service.NewIdentityService(db, locker)
	ledger := service.NewLedgerService(db, cfg)

	router := SetupRouter(&Services{
		Servers:  servers,
		Identity: identity,
		Ledger:   ledger,
		Transfer: service.NewTransferService(db, identity, ledger),
		Swap:     service.NewSwapService(db, servers, identity, ledger, locker),
		Daily:    service.NewDailyService(db, identity, ledger, locker),
		Killfeed: service.NewKillfeedService(db, cfg.Kafka.Topic.Killfeed, repository.NewClanRepository(db)),
	})
	return router, alpha
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "community_core_http_requests_total")
}

func TestLinkAndConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := do(t, r, http.MethodPost, "/api/v1/identity/link", gin.H{
		"guild_id": guild, "server": "alpha", "discord_id": "u1", "ign": "Alice",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/identity/link", gin.H{
		"guild_id": guild, "server": "Alpha", "discord_id": "u2", "ign": "ALICE",
	})
	assert.Equal(t, response.CodeIGNTaken, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/identity/link", gin.H{
		"guild_id": guild, "server": "Nowhere", "discord_id": "u2", "ign": "Bob",
	})
	assert.Equal(t, response.CodeUnknownServer, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/identity/link", gin.H{"guild_id": guild})
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/identity/links?guild_id="+guild+"&discord_id=u1", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	var links struct {
		List []linkView `json:"list"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &links))
	require.Len(t, links.List, 1)
	assert.Equal(t, "Alpha", links.List[0].Server)

	resp = do(t, r, http.MethodGet, "/api/v1/identity/roster?guild_id="+guild+"&server=alpha", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.JSONEq(t, `{"server":"Alpha","list":["Alice"]}`, string(resp.Data))
}

func TestEconomyFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, u := range []struct{ id, ign string }{{"u1", "Alice"}, {"u2", "Bob"}} {
		resp := do(t, r, http.MethodPost, "/api/v1/identity/link", gin.H{
			"guild_id": guild, "server": "Alpha", "discord_id": u.id, "ign": u.ign,
		})
		require.Equal(t, response.CodeSuccess, resp.Code)
	}

	resp := do(t, r, http.MethodPost, "/api/v1/economy/daily", gin.H{"guild_id": guild, "discord_id": "u1"})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/economy/daily", gin.H{"guild_id": guild, "discord_id": "u1"})
	assert.Equal(t, response.CodeDailyCooldown, resp.Code)
	assert.Contains(t, string(resp.Data), "next_eligible_at")

	resp = do(t, r, http.MethodPost, "/api/v1/economy/transfer", gin.H{
		"guild_id": guild, "server": "Alpha", "from_discord_id": "u1", "to_discord_id": "u2", "amount": 1000,
	})
	assert.Equal(t, response.CodeBalanceNotEnough, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/economy/transfer", gin.H{
		"guild_id": guild, "server": "Alpha", "from_discord_id": "u1", "to_discord_id": "u2", "amount": 0,
	})
	assert.Equal(t, response.CodeInvalidAmount, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/economy/transfer", gin.H{
		"guild_id": guild, "server": "Alpha", "from_discord_id": "u1", "to_discord_id": "u2", "amount": 40,
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	resp = do(t, r, http.MethodGet, "/api/v1/economy/balance?guild_id="+guild+"&server=Alpha&discord_id=u2", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	var bal struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &bal))
	assert.Equal(t, int64(40), bal.Balance)

	resp = do(t, r, http.MethodPost, "/api/v1/economy/swap", gin.H{
		"guild_id": guild, "discord_id": "u2", "from_server": "Alpha", "to_server": "Bravo",
	})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/economy/adjust", gin.H{
		"guild_id": guild, "server": "Alpha", "discord_id": "u1", "amount": 5, "type": "daily_reward",
	})
	assert.Equal(t, response.CodeTransactionTypeDeny, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/economy/reconcile?guild_id="+guild+"&server=Alpha&discord_id=u1", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, string(resp.Data), `"consistent":true`)

	resp = do(t, r, http.MethodGet, "/api/v1/economy/history?guild_id="+guild+"&server=Alpha&discord_id=u1", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, string(resp.Data), `"total":2`)

	resp = do(t, r, http.MethodGet, "/api/v1/economy/balance?guild_id="+guild+"&server=Alpha&discord_id=ghost", nil)
	assert.Equal(t, response.CodeNotLinked, resp.Code)
}

func TestKillfeedEndpoints(t *testing.T) {
	r, alpha := newTestRouter(t)
	resp := do(t, r, http.MethodPost, "/api/v1/identity/link", gin.H{
		"guild_id": guild, "server": "Alpha", "discord_id": "u1", "ign": "Alice",
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/killfeed/ingest", gin.H{"server_id": alpha.ID, "line": "Bob was killed by Alice with AK47"})
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"formatted_message":"Alice ☠️ Bob"`)

	resp = do(t, r, http.MethodPost, "/api/v1/killfeed/ingest", gin.H{"server_id": alpha.ID, "line": "server restarting"})
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.JSONEq(t, `{"message":null}`, string(resp.Data))

	resp = do(t, r, http.MethodGet, "/api/v1/killfeed/stats?server_id="+strconv.FormatInt(alpha.ID, 10)+"&name=Nobody", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, string(resp.Data), `"kd_ratio":"0"`)

	resp = do(t, r, http.MethodPut, "/api/v1/killfeed/config", gin.H{"server_id": alpha.ID, "enabled": false})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/killfeed/config?server_id="+strconv.FormatInt(alpha.ID, 10), nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, string(resp.Data), `"enabled":false`)

	// 省略 enabled 视为开启
	resp = do(t, r, http.MethodPut, "/api/v1/killfeed/config", gin.H{"server_id": alpha.ID, "format_string": "{Killer} vs {Victim}"})
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, string(resp.Data), `"enabled":true`)

	resp = do(t, r, http.MethodPost, "/api/v1/killfeed/ingest", gin.H{"server_id": alpha.ID, "line": "Alice killed Bob"})
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Contains(t, string(resp.Data), `"formatted_message":"Alice vs Bob"`)

	resp = do(t, r, http.MethodGet, "/api/v1/killfeed/stats?server_id=abc&name=x", nil)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestKillfeedEndpoints_UnknownServer(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := do(t, r, http.MethodPost, "/api/v1/killfeed/ingest", gin.H{"server_id": 9999, "line": "Alice killed Bob"})
	assert.Equal(t, response.CodeUnknownServer, resp.Code)

	resp = do(t, r, http.MethodPut, "/api/v1/killfeed/config", gin.H{"server_id": 9999, "enabled": true})
	assert.Equal(t, response.CodeUnknownServer, resp.Code)
}
