package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/coldbrew/cps/internal/logic"
	"github.com/gin-gonic/gin"
)

// PayoutHandler 分账方案处理器
type PayoutHandler struct {
	payoutLogic *logic.PayoutLogic
}

// NewPayoutHandler 创建分账方案处理器
func NewPayoutHandler(payoutLogic *logic.PayoutLogic) *PayoutHandler {
	return &PayoutHandler{payoutLogic: payoutLogic}
}

// CreateScheduleRequest 创建分账方案请求
type CreateScheduleRequest struct {
	OwnerAddress string                 `json:"owner_address" binding:"required"`
	Name         string                 `json:"name" binding:"required"`
	TokenAddress string                 `json:"token_address" binding:"required"`
	ChainId      int64                  `json:"chain_id" binding:"required"`
	Recipients   []logic.RecipientInput `json:"recipients" binding:"required"`
}

// CreateSchedule 创建分账方案。收款人份额之和必须等于 10000 bps。
func (h *PayoutHandler) CreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.payoutLogic.CreateSchedule(req.OwnerAddress, logic.CreateScheduleInput{
		Name:         req.Name,
		TokenAddress: req.TokenAddress,
		ChainId:      req.ChainId,
		Recipients:   req.Recipients,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "schedule created", schedule)
}

// ListSchedules 获取分账方案列表
func (h *PayoutHandler) ListSchedules(c *gin.Context) {
	ownerAddress := c.Query("owner_address")
	if ownerAddress == "" {
		ErrorResponse(c, http.StatusBadRequest, "owner_address is required")
		return
	}

	schedules, err := h.payoutLogic.ListSchedules(ownerAddress)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", schedules)
}

// UpdateScheduleRequest 更新分账方案请求，nil 字段不变更
type UpdateScheduleRequest struct {
	OwnerAddress string                  `json:"owner_address" binding:"required"`
	Name         *string                 `json:"name"`
	Recipients   *[]logic.RecipientInput `json:"recipients"`
}

// UpdateSchedule 更新分账方案
func (h *PayoutHandler) UpdateSchedule(c *gin.Context) {
	scheduleId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid schedule id")
		return
	}

	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.payoutLogic.UpdateSchedule(req.OwnerAddress, scheduleId, req.Name, req.Recipients); err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "schedule updated", nil)
}

// DeleteScheduleRequest 删除分账方案请求
type DeleteScheduleRequest struct {
	OwnerAddress string `json:"owner_address" binding:"required"`
}

// DeleteSchedule 删除分账方案及其收款人和执行记录
func (h *PayoutHandler) DeleteSchedule(c *gin.Context) {
	scheduleId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid schedule id")
		return
	}

	var req DeleteScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.payoutLogic.DeleteSchedule(req.OwnerAddress, scheduleId); err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "schedule deleted", nil)
}

// ListExecutions 获取分账执行记录
func (h *PayoutHandler) ListExecutions(c *gin.Context) {
	scheduleId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid schedule id")
		return
	}

	ownerAddress := c.Query("owner_address")
	if ownerAddress == "" {
		ErrorResponse(c, http.StatusBadRequest, "owner_address is required")
		return
	}

	executions, err := h.payoutLogic.Executions(ownerAddress, scheduleId)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", executions)
}

// RecordExecutionRequest 登记分账执行请求
type RecordExecutionRequest struct {
	OwnerAddress string `json:"owner_address" binding:"required"`
	TxHash       string `json:"tx_hash" binding:"required"`
	TotalAmount  string `json:"total_amount" binding:"required"`
	ExecutedAt   int64  `json:"executed_at"`
}

// RecordExecution 登记一次链上分账执行。同一 tx_hash 重复登记返回已有记录。
func (h *PayoutHandler) RecordExecution(c *gin.Context) {
	scheduleId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid schedule id")
		return
	}

	var req RecordExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	executedAt := time.Now()
	if req.ExecutedAt > 0 {
		executedAt = time.UnixMilli(req.ExecutedAt)
	}

	execution, err := h.payoutLogic.RecordExecution(req.OwnerAddress, scheduleId, req.TxHash, req.TotalAmount, executedAt)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "execution recorded", execution)
}
