package handler

import (
	"net/http"
	"strconv"

	"github.com/coldbrew/cps/internal/logic"
	"github.com/gin-gonic/gin"
)

// PaylinkHandler 收款链接处理器
type PaylinkHandler struct {
	paylinkLogic *logic.PaylinkLogic
}

// NewPaylinkHandler 创建收款链接处理器
func NewPaylinkHandler(paylinkLogic *logic.PaylinkLogic) *PaylinkHandler {
	return &PaylinkHandler{paylinkLogic: paylinkLogic}
}

// CreatePaylinkRequest 创建收款链接请求
type CreatePaylinkRequest struct {
	OwnerAddress     string `json:"owner_address" binding:"required"`
	Handle           string `json:"handle" binding:"required"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ChainId          int64  `json:"chain_id" binding:"required"`
	TokenAddress     string `json:"token_address" binding:"required"`
	ReceivingAddress string `json:"receiving_address"`
}

// CreatePaylink 创建收款链接
func (h *PaylinkHandler) CreatePaylink(c *gin.Context) {
	var req CreatePaylinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	paylink, err := h.paylinkLogic.CreatePaylink(req.OwnerAddress, logic.CreatePaylinkInput{
		Handle:           req.Handle,
		Title:            req.Title,
		Description:      req.Description,
		ChainId:          req.ChainId,
		TokenAddress:     req.TokenAddress,
		ReceivingAddress: req.ReceivingAddress,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "paylink created", paylink)
}

// ListPaylinks 获取收款链接列表
func (h *PaylinkHandler) ListPaylinks(c *gin.Context) {
	ownerAddress := c.Query("owner_address")
	if ownerAddress == "" {
		ErrorResponse(c, http.StatusBadRequest, "owner_address is required")
		return
	}

	paylinks, err := h.paylinkLogic.ListForOwner(ownerAddress)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", paylinks)
}

// GetPaylink 按 handle 获取收款链接
func (h *PaylinkHandler) GetPaylink(c *gin.Context) {
	paylink, err := h.paylinkLogic.GetByHandle(c.Param("handle"))
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", paylink)
}

// UpdatePaylinkRequest 更新收款链接请求
type UpdatePaylinkRequest struct {
	OwnerAddress     string  `json:"owner_address" binding:"required"`
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	ReceivingAddress *string `json:"receiving_address"`
	IsActive         *bool   `json:"is_active"`
}

// UpdatePaylink 更新收款链接
func (h *PaylinkHandler) UpdatePaylink(c *gin.Context) {
	paylinkId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid paylink id")
		return
	}

	var req UpdatePaylinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err = h.paylinkLogic.UpdatePaylink(req.OwnerAddress, paylinkId, logic.UpdatePaylinkInput{
		Title:            req.Title,
		Description:      req.Description,
		ReceivingAddress: req.ReceivingAddress,
		IsActive:         req.IsActive,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "paylink updated", nil)
}

// ArchivePaylinkRequest 归档收款链接请求
type ArchivePaylinkRequest struct {
	OwnerAddress string `json:"owner_address" binding:"required"`
}

// ArchivePaylink 归档收款链接
func (h *PaylinkHandler) ArchivePaylink(c *gin.Context) {
	paylinkId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid paylink id")
		return
	}

	var req ArchivePaylinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.paylinkLogic.ArchivePaylink(req.OwnerAddress, paylinkId); err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "paylink archived", nil)
}

// ListPayments 获取收款链接的支付记录
func (h *PaylinkHandler) ListPayments(c *gin.Context) {
	paylinkId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid paylink id")
		return
	}

	ownerAddress := c.Query("owner_address")
	if ownerAddress == "" {
		ErrorResponse(c, http.StatusBadRequest, "owner_address is required")
		return
	}

	payments, err := h.paylinkLogic.Payments(ownerAddress, paylinkId)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", payments)
}

// SyncPaylinkRequest 扫描对账请求
type SyncPaylinkRequest struct {
	InvoiceSlug    string `json:"invoice_slug"`
	ExpectedAmount string `json:"expected_amount"`
}

// SyncPaylink 扫描收款地址的转账并落账。操作幂等，可任意重试。
// 请求体可省略，发票匹配参数按需携带。
func (h *PaylinkHandler) SyncPaylink(c *gin.Context) {
	var req SyncPaylinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.paylinkLogic.SyncTransfers(c.Request.Context(), c.Param("handle"), logic.SyncOptions{
		InvoiceSlug:    req.InvoiceSlug,
		ExpectedAmount: req.ExpectedAmount,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", result)
}
