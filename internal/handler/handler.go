package handler

import (
	"errors"
	"strconv"

	"communitycore/internal/model"
	"communitycore/internal/service"
	"communitycore/pkg/response"

	"github.com/gin-gonic/gin"
)

// Services 处理器依赖的业务服务，由 main 统一组装
type Services struct {
	Servers  service.ServerDirectory
	Identity *service.IdentityService
	Ledger   *service.LedgerService
	Transfer *service.TransferService
	Swap     *service.SwapService
	Daily    *service.DailyService
	Killfeed *service.KillfeedService
}

// Handler 统一处理器
//
// Discord 交互层传入的是公会 ID 和服务器昵称，这里解析成内部 server id 后再调用服务，
// 服务层只认识内部 id。
type Handler struct {
	svc *Services
}

func NewHandler(svc *Services) *Handler {
	return &Handler{svc: svc}
}

// businessErrors 业务错误到响应码的映射
var businessErrors = []struct {
	err  error
	code int
}{
	{service.ErrBalanceNotEnough, response.CodeBalanceNotEnough},
	{service.ErrInvalidAmount, response.CodeInvalidAmount},
	{service.ErrSelfTransfer, response.CodeSelfTransfer},
	{service.ErrNotLinked, response.CodeNotLinked},
	{service.ErrRecipientNotLinked, response.CodeRecipientNotLinked},
	{service.ErrSameServerSwap, response.CodeSameServerSwap},
	{service.ErrNotEnoughServers, response.CodeNotEnoughServers},
	{service.ErrNothingToSwap, response.CodeNothingToSwap},
	{service.ErrIGNTaken, response.CodeIGNTaken},
	{service.ErrDiscordLinkedElsewhere, response.CodeDiscordLinkedOther},
	{service.ErrUnknownServer, response.CodeUnknownServer},
	{service.ErrNoActiveLinks, response.CodeNoActiveLinks},
	{service.ErrConcurrentUpdate, response.CodeConcurrentUpdate},
	{service.ErrTransactionTypeNotAllow, response.CodeTransactionTypeDeny},
}

// writeError 业务错误返回对应业务码，其余按服务器错误处理
func writeError(c *gin.Context, err error) {
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		response.ErrorWithData(c, response.CodeDailyCooldown, cooldown.Error(), gin.H{
			"next_eligible_at": cooldown.NextEligibleAt,
		})
		return
	}
	if errors.Is(err, service.ErrEmptyIGN) {
		response.ParamError(c, err.Error())
		return
	}
	for _, be := range businessErrors {
		if errors.Is(err, be.err) {
			response.BusinessError(c, be.code, err.Error())
			return
		}
	}
	response.ServerError(c, err.Error())
}

// resolveServer 公会 + 服务器昵称 -> 内部服务器，找不到时已写入响应并返回 nil
func (h *Handler) resolveServer(c *gin.Context, guildID, nickname string) *model.GameServer {
	server, err := h.svc.Servers.Lookup(c.Request.Context(), guildID, nickname)
	if err != nil {
		response.ServerError(c, err.Error())
		return nil
	}
	if server == nil {
		writeError(c, service.ErrUnknownServer)
		return nil
	}
	return server
}

// resolvePlayer 查询调用者在该服务器的绑定，未绑定时写入响应并返回 nil
func (h *Handler) resolvePlayer(c *gin.Context, guildID string, serverID int64, discordID string) *model.PlayerLink {
	link, err := h.svc.Identity.ResolveByDiscordID(c.Request.Context(), guildID, serverID, discordID)
	if err != nil {
		response.ServerError(c, err.Error())
		return nil
	}
	if link == nil {
		writeError(c, service.ErrNotLinked)
		return nil
	}
	return link
}

// ============================================================
// 绑定相关接口
// ============================================================

type LinkRequest struct {
	GuildID   string `json:"guild_id" binding:"required"`
	Server    string `json:"server" binding:"required"` // 服务器昵称
	DiscordID string `json:"discord_id" binding:"required"`
	IGN       string `json:"ign" binding:"required"`
}

// Link 绑定角色名
// POST /api/v1/identity/link
func (h *Handler) Link(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	server := h.resolveServer(c, req.GuildID, req.Server)
	if server == nil {
		return
	}

	link, err := h.svc.Identity.LinkChecked(c.Request.Context(), req.GuildID, server.ID, req.DiscordID, req.IGN)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, link)
}

type UnlinkRequest struct {
	GuildID   string `json:"guild_id" binding:"required"`
	Server    string `json:"server"` // 为空时解除公会内全部绑定
	DiscordID string `json:"discord_id" binding:"required"`
}

// Unlink 解除绑定
// POST /api/v1/identity/unlink
func (h *Handler) Unlink(c *gin.Context) {
	var req UnlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if req.Server == "" {
		n, err := h.svc.Identity.UnlinkAll(c.Request.Context(), req.GuildID, req.DiscordID)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, gin.H{"unlinked": n})
		return
	}

	server := h.resolveServer(c, req.GuildID, req.Server)
	if server == nil {
		return
	}
	found, err := h.svc.Identity.Unlink(c.Request.Context(), req.GuildID, server.ID, req.DiscordID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		writeError(c, service.ErrNotLinked)
		return
	}
	response.Success(c, gin.H{"unlinked": 1})
}

type linkView struct {
	PlayerID int64  `json:"player_id"`
	ServerID int64  `json:"server_id"`
	Server   string `json:"server"`
	IGN      string `json:"ign"`
	Balance  int64  `json:"balance"`
}

// ListLinks 用户在公会所有服务器上的绑定及余额
// GET /api/v1/identity/links?guild_id=xxx&discord_id=xxx
func (h *Handler) ListLinks(c *gin.Context) {
	guildID := c.Query("guild_id")
	discordID := c.Query("discord_id")
	if guildID == "" || discordID == "" {
		response.ParamError(c, "guild_id 和 discord_id 不能为空")
		return
	}
	ctx := c.Request.Context()

	links, err := h.svc.Identity.ResolveAllByDiscordID(ctx, guildID, discordID)
	if err != nil {
		writeError(c, err)
		return
	}
	servers, err := h.svc.Servers.ListByGuild(ctx, guildID)
	if err != nil {
		writeError(c, err)
		return
	}
	names := make(map[int64]string, len(servers))
	for _, s := range servers {
		names[s.ID] = s.Nickname
	}

	views := make([]linkView, 0, len(links))
	for _, l := range links {
		balance, err := h.svc.Ledger.GetBalance(ctx, l.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		views = append(views, linkView{
			PlayerID: l.ID,
			ServerID: l.ServerID,
			Server:   names[l.ServerID],
			IGN:      l.IGN,
			Balance:  balance,
		})
	}
	response.Success(c, gin.H{"list": views})
}

// Roster 服务器上所有有效绑定的角色名
// GET /api/v1/identity/roster?guild_id=xxx&server=xxx
func (h *Handler) Roster(c *gin.Context) {
	server := h.resolveServer(c, c.Query("guild_id"), c.Query("server"))
	if server == nil {
		return
	}
	names, err := h.svc.Identity.Roster(c.Request.Context(), server.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"server": server.Nickname, "list": names})
}

// ============================================================
// 经济相关接口
// ============================================================

// GetBalance 查询余额
// GET /api/v1/economy/balance?guild_id=xxx&server=xxx&discord_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	guildID := c.Query("guild_id")
	server := h.resolveServer(c, guildID, c.Query("server"))
	if server == nil {
		return
	}
	link := h.resolvePlayer(c, guildID, server.ID, c.Query("discord_id"))
	if link == nil {
		return
	}

	balance, err := h.svc.Ledger.GetBalance(c.Request.Context(), link.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"player_id": link.ID,
		"ign":       link.IGN,
		"balance":   balance,
	})
}

type TransferRequest struct {
	GuildID       string `json:"guild_id" binding:"required"`
	Server        string `json:"server" binding:"required"`
	FromDiscordID string `json:"from_discord_id" binding:"required"`
	ToDiscordID   string `json:"to_discord_id" binding:"required"`
	Amount        int64  `json:"amount"`
}

// Transfer 同服转账
// POST /api/v1/economy/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	server := h.resolveServer(c, req.GuildID, req.Server)
	if server == nil {
		return
	}

	result, err := h.svc.Transfer.Transfer(c.Request.Context(), &service.TransferRequest{
		GuildID:       req.GuildID,
		ServerID:      server.ID,
		FromDiscordID: req.FromDiscordID,
		ToDiscordID:   req.ToDiscordID,
		Amount:        req.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

type SwapRequest struct {
	GuildID    string `json:"guild_id" binding:"required"`
	DiscordID  string `json:"discord_id" binding:"required"`
	FromServer string `json:"from_server" binding:"required"`
	ToServer   string `json:"to_server" binding:"required"`
}

// Swap 跨服兑换（整额）
// POST /api/v1/economy/swap
func (h *Handler) Swap(c *gin.Context) {
	var req SwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	from := h.resolveServer(c, req.GuildID, req.FromServer)
	if from == nil {
		return
	}
	to := h.resolveServer(c, req.GuildID, req.ToServer)
	if to == nil {
		return
	}

	result, err := h.svc.Swap.Swap(c.Request.Context(), &service.SwapRequest{
		GuildID:      req.GuildID,
		DiscordID:    req.DiscordID,
		FromServerID: from.ID,
		ToServerID:   to.ID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

type DailyRequest struct {
	GuildID   string `json:"guild_id" binding:"required"`
	DiscordID string `json:"discord_id" binding:"required"`
}

// Daily 领取每日奖励
// POST /api/v1/economy/daily
func (h *Handler) Daily(c *gin.Context) {
	var req DailyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.Daily.Claim(c.Request.Context(), req.GuildID, req.DiscordID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

type AdjustRequest struct {
	GuildID   string `json:"guild_id" binding:"required"`
	Server    string `json:"server" binding:"required"`
	DiscordID string `json:"discord_id" binding:"required"`
	Amount    int64  `json:"amount"` // 带符号
	Type      string `json:"type" binding:"required"`
}

// Adjust 小游戏输赢或管理员调整
// POST /api/v1/economy/adjust
func (h *Handler) Adjust(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	server := h.resolveServer(c, req.GuildID, req.Server)
	if server == nil {
		return
	}
	link := h.resolvePlayer(c, req.GuildID, server.ID, req.DiscordID)
	if link == nil {
		return
	}

	result, err := h.svc.Ledger.Adjust(c.Request.Context(), link.ID, req.Amount, req.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// History 流水分页
// GET /api/v1/economy/history?guild_id=xxx&server=xxx&discord_id=xxx&page=1&page_size=20
func (h *Handler) History(c *gin.Context) {
	guildID := c.Query("guild_id")
	server := h.resolveServer(c, guildID, c.Query("server"))
	if server == nil {
		return
	}
	link := h.resolvePlayer(c, guildID, server.ID, c.Query("discord_id"))
	if link == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.svc.Ledger.History(c.Request.Context(), link.ID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

// Reconcile 单个玩家对账
// GET /api/v1/economy/reconcile?guild_id=xxx&server=xxx&discord_id=xxx
func (h *Handler) Reconcile(c *gin.Context) {
	guildID := c.Query("guild_id")
	server := h.resolveServer(c, guildID, c.Query("server"))
	if server == nil {
		return
	}
	link := h.resolvePlayer(c, guildID, server.ID, c.Query("discord_id"))
	if link == nil {
		return
	}

	result, err := h.svc.Ledger.Reconcile(c.Request.Context(), link.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}
