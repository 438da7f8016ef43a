package handler

import (
	"strconv"

	"communitycore/internal/model"
	"communitycore/internal/service"
	"communitycore/pkg/response"

	"github.com/gin-gonic/gin"
)

type IngestRequest struct {
	ServerID int64  `json:"server_id" binding:"required"`
	Line     string `json:"line" binding:"required"`
}

// IngestKill 接收一行击杀日志
// POST /api/v1/killfeed/ingest
//
// 无法解析或播报关闭时 data.message 为 null，仍然返回成功。
func (h *Handler) IngestKill(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.requireServer(c, req.ServerID) {
		return
	}

	result, err := h.svc.Killfeed.Process(c.Request.Context(), req.ServerID, req.Line)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"message": result})
}

// requireServer 服务器不存在时写入响应并返回 false
func (h *Handler) requireServer(c *gin.Context, serverID int64) bool {
	server, err := h.svc.Servers.Get(c.Request.Context(), serverID)
	if err != nil {
		response.ServerError(c, err.Error())
		return false
	}
	if server == nil {
		writeError(c, service.ErrUnknownServer)
		return false
	}
	return true
}

func serverIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("server_id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "server_id 参数错误")
		return 0, false
	}
	return id, true
}

// GetStats 按角色名查询战绩
// GET /api/v1/killfeed/stats?server_id=1&name=xxx
func (h *Handler) GetStats(c *gin.Context) {
	serverID, ok := serverIDParam(c)
	if !ok {
		return
	}
	name := c.Query("name")
	if name == "" {
		response.ParamError(c, "name 参数不能为空")
		return
	}

	response.Success(c, h.svc.Killfeed.GetPlayerStats(c.Request.Context(), serverID, name))
}

// GetKillfeedConfig 查询播报配置
// GET /api/v1/killfeed/config?server_id=1
func (h *Handler) GetKillfeedConfig(c *gin.Context) {
	serverID, ok := serverIDParam(c)
	if !ok {
		return
	}
	cfg, err := h.svc.Killfeed.GetConfig(c.Request.Context(), serverID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, cfg)
}

type KillfeedConfigRequest struct {
	ServerID          int64  `json:"server_id" binding:"required"`
	Enabled           *bool  `json:"enabled"` // 缺省为开启
	FormatString      string `json:"format_string"`
	RandomizerEnabled bool   `json:"randomizer_enabled"`
}

// SetKillfeedConfig 覆盖播报配置
// PUT /api/v1/killfeed/config
func (h *Handler) SetKillfeedConfig(c *gin.Context) {
	var req KillfeedConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !h.requireServer(c, req.ServerID) {
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cfg, err := h.svc.Killfeed.SetConfig(c.Request.Context(), model.KillfeedConfig{
		ServerID:          req.ServerID,
		Enabled:           enabled,
		FormatString:      req.FormatString,
		RandomizerEnabled: req.RandomizerEnabled,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, cfg)
}
