package handler

import (
	"net/http"
	"time"

	"github.com/coldbrew/cps/internal/logic"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler 发票处理器
type InvoiceHandler struct {
	invoiceLogic    *logic.InvoiceLogic
	settlementLogic *logic.SettlementLogic
}

// NewInvoiceHandler 创建发票处理器
func NewInvoiceHandler(invoiceLogic *logic.InvoiceLogic, settlementLogic *logic.SettlementLogic) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceLogic:    invoiceLogic,
		settlementLogic: settlementLogic,
	}
}

// CreateInvoiceRequest 创建发票请求
type CreateInvoiceRequest struct {
	OwnerAddress  string                 `json:"owner_address" binding:"required"`
	Title         string                 `json:"title"`
	CustomerName  string                 `json:"customer_name"`
	CustomerEmail string                 `json:"customer_email"`
	Notes         string                 `json:"notes"`
	DueAt         *time.Time             `json:"due_at"`
	LineItems     []logic.LineItemInput  `json:"line_items" binding:"required"`
	TokenAddress  string                 `json:"token_address" binding:"required"`
	ChainId       int64                  `json:"chain_id" binding:"required"`
	PaylinkHandle string                 `json:"paylink_handle"`
	PayerAddress  string                 `json:"payer_address"`
}

// CreateInvoice 创建发票
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.invoiceLogic.CreateInvoice(req.OwnerAddress, logic.CreateInvoiceInput{
		Title:         req.Title,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Notes:         req.Notes,
		DueAt:         req.DueAt,
		LineItems:     req.LineItems,
		TokenAddress:  req.TokenAddress,
		ChainId:       req.ChainId,
		PaylinkHandle: req.PaylinkHandle,
		PayerAddress:  req.PayerAddress,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "invoice created", result)
}

// ListInvoices 获取发票列表
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	ownerAddress := c.Query("owner_address")
	if ownerAddress == "" {
		ErrorResponse(c, http.StatusBadRequest, "owner_address is required")
		return
	}

	invoices, err := h.invoiceLogic.ListForOwner(ownerAddress)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", invoices)
}

// GetInvoice 按 slug 获取发票
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceLogic.GetBySlug(c.Param("slug"))
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", invoice)
}

// UpdateInvoiceRequest 更新发票请求
type UpdateInvoiceRequest struct {
	OwnerAddress string     `json:"owner_address" binding:"required"`
	Notes        *string    `json:"notes"`
	DueAt        *time.Time `json:"due_at"`
}

// UpdateInvoice 更新发票备注与到期时间
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.invoiceLogic.UpdateDetails(req.OwnerAddress, c.Param("slug"), req.Notes, req.DueAt); err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "invoice updated", nil)
}

// RegisterInvoiceRequest 发票上链登记请求
type RegisterInvoiceRequest struct {
	OwnerAddress      string `json:"owner_address" binding:"required"`
	RegistryAddress   string `json:"registry_address" binding:"required"`
	RegistryInvoiceId string `json:"registry_invoice_id" binding:"required"`
	ReferenceHash     string `json:"reference_hash" binding:"required"`
	TxHash            string `json:"tx_hash" binding:"required"`
}

// RegisterInvoice 绑定链上登记信息
func (h *InvoiceHandler) RegisterInvoice(c *gin.Context) {
	var req RegisterInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.invoiceLogic.RegisterOnchain(req.OwnerAddress, c.Param("slug"),
		req.RegistryAddress, req.RegistryInvoiceId, req.ReferenceHash, req.TxHash)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "invoice registered", nil)
}

// AttachPaylinkRequest 关联收款链接请求
type AttachPaylinkRequest struct {
	OwnerAddress  string `json:"owner_address" binding:"required"`
	PaylinkHandle string `json:"paylink_handle" binding:"required"`
}

// AttachPaylink 关联收款链接
func (h *InvoiceHandler) AttachPaylink(c *gin.Context) {
	var req AttachPaylinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.invoiceLogic.AttachPaylink(req.OwnerAddress, c.Param("slug"), req.PaylinkHandle); err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "paylink attached", nil)
}

// SettleInvoiceRequest 结算校验请求
type SettleInvoiceRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

// SettleInvoice 校验登记合约结算。校验不通过不是HTTP错误，
// 结果载荷里的 ok/reason 描述具体结论。
func (h *InvoiceHandler) SettleInvoice(c *gin.Context) {
	var req SettleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.settlementLogic.VerifySettlement(c.Request.Context(), c.Param("slug"), req.TxHash)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", result)
}

// ArchiveInvoiceRequest 归档发票请求
type ArchiveInvoiceRequest struct {
	OwnerAddress string `json:"owner_address" binding:"required"`
}

// ArchiveInvoice 归档发票
func (h *InvoiceHandler) ArchiveInvoice(c *gin.Context) {
	var req ArchiveInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.invoiceLogic.Archive(req.OwnerAddress, c.Param("slug")); err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "invoice archived", nil)
}
