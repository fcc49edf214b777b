package handler

import (
	"errors"
	"net/http"

	"github.com/coldbrew/cps/internal/chain"
	"github.com/coldbrew/cps/internal/logic"
	"github.com/coldbrew/cps/internal/normalize"
	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailFromError 按错误类型映射HTTP状态码返回
func FailFromError(c *gin.Context, err error) {
	ErrorResponse(c, statusForError(err), err.Error())
}

// statusForError 错误到状态码的映射
func statusForError(err error) int {
	switch {
	case errors.Is(err, logic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, logic.ErrHandleTaken),
		errors.Is(err, logic.ErrInvoicePaid):
		return http.StatusConflict
	case errors.Is(err, logic.ErrInvalid),
		errors.Is(err, logic.ErrInvalidAllocation),
		errors.Is(err, normalize.ErrInvalidAddress),
		errors.Is(err, normalize.ErrInvalidTxHash),
		errors.Is(err, normalize.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrChainUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
