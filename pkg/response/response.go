package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码，调用方按 code 决定给用户的提示文案
const (
	CodeBalanceNotEnough    = 1001
	CodeInvalidAmount       = 1002
	CodeSelfTransfer        = 1003
	CodeNotLinked           = 1004
	CodeRecipientNotLinked  = 1005
	CodeSameServerSwap      = 1006
	CodeNotEnoughServers    = 1007
	CodeNothingToSwap       = 1008
	CodeDailyCooldown       = 1009
	CodeIGNTaken            = 1010
	CodeDiscordLinkedOther  = 1011
	CodeUnknownServer       = 1012
	CodeNoActiveLinks       = 1013
	CodeConcurrentUpdate    = 1014
	CodeTransactionTypeDeny = 1015
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData 业务错误同时返回结构化数据（如冷却结束时间）
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
