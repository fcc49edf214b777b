package logic

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/coldbrew/cps/internal/model"
	"github.com/coldbrew/cps/internal/normalize"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceLogic 发票业务逻辑
type InvoiceLogic struct {
	db    *gorm.DB
	users *UserLogic
}

// NewInvoiceLogic 创建发票业务逻辑
func NewInvoiceLogic(db *gorm.DB) *InvoiceLogic {
	return &InvoiceLogic{db: db, users: NewUserLogic(db)}
}

// LineItemInput 发票行项目入参
type LineItemInput struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  string `json:"unit_amount"`
}

// CreateInvoiceInput 创建发票入参
type CreateInvoiceInput struct {
	Title         string
	CustomerName  string
	CustomerEmail string
	Notes         string
	DueAt         *time.Time
	LineItems     []LineItemInput
	TokenAddress  string
	ChainId       int64
	PaylinkHandle string
	PayerAddress  string
}

// CreateInvoiceResult 创建发票结果
type CreateInvoiceResult struct {
	Slug        string `json:"slug"`
	Number      string `json:"number"`
	TotalAmount string `json:"total_amount"`
}

// CreateInvoice 创建发票。总金额由行项目在服务端重新计算，
// 绝不采用客户端上报的合计。
func (l *InvoiceLogic) CreateInvoice(ownerAddress string, input CreateInvoiceInput) (*CreateInvoiceResult, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	if len(input.LineItems) == 0 {
		return nil, fmt.Errorf("%w: invoices require at least one line item", ErrInvalid)
	}

	token, err := normalize.Address(input.TokenAddress)
	if err != nil {
		return nil, err
	}

	payer := ""
	if input.PayerAddress != "" {
		payer, err = normalize.Address(input.PayerAddress)
		if err != nil {
			return nil, err
		}
	}

	// 逐项校验并累计总额
	total := new(big.Int)
	items := make([]model.InvoiceLineItemModel, 0, len(input.LineItems))
	for i, item := range input.LineItems {
		quantity := item.Quantity
		if quantity < 0 {
			quantity = 0
		}
		unit, err := normalize.Amount(item.UnitAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: line item %d has invalid unit amount", ErrInvalid, i+1)
		}
		total.Add(total, new(big.Int).Mul(unit, big.NewInt(quantity)))

		items = append(items, model.InvoiceLineItemModel{
			Position:    i,
			Description: strings.TrimSpace(item.Description),
			Quantity:    quantity,
			UnitAmount:  unit.String(),
		})
	}

	var existingCount int64
	if err := l.db.Model(&model.InvoiceModel{}).Where("owner_id = ?", owner.Id).Count(&existingCount).Error; err != nil {
		return nil, err
	}

	invoice := model.InvoiceModel{
		OwnerId:       owner.Id,
		Slug:          generateSlug(),
		Number:        generateInvoiceNumber(existingCount),
		Title:         input.Title,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		Notes:         input.Notes,
		Status:        model.InvoiceStatusDraft,
		TotalAmount:   total.String(),
		TokenAddress:  token,
		ChainId:       input.ChainId,
		DueAt:         input.DueAt,
		PayerAddress:  payer,
		PaylinkHandle: normalize.Handle(input.PaylinkHandle),
		LineItems:     items,
	}

	if err := l.db.Create(&invoice).Error; err != nil {
		return nil, err
	}

	return &CreateInvoiceResult{
		Slug:        invoice.Slug,
		Number:      invoice.Number,
		TotalAmount: invoice.TotalAmount,
	}, nil
}

// ListForOwner 获取用户的发票列表（不含已归档）
func (l *InvoiceLogic) ListForOwner(ownerAddress string) ([]model.InvoiceModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	var invoices []model.InvoiceModel
	err = l.db.Where("owner_id = ? AND archived_at IS NULL", owner.Id).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetBySlug 按 slug 获取发票（支付页公开访问）
func (l *InvoiceLogic) GetBySlug(slug string) (*model.InvoiceModel, error) {
	var invoice model.InvoiceModel
	err := l.db.Where("slug = ?", slug).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// requireOwned 加载属于调用者的发票，非属主一律按不存在处理
func (l *InvoiceLogic) requireOwned(ownerAddress, slug string) (*model.InvoiceModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	var invoice model.InvoiceModel
	if err := l.db.Where("slug = ?", slug).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if invoice.OwnerId != owner.Id {
		return nil, ErrNotFound
	}
	return &invoice, nil
}

// RegisterOnchain 将发票绑定到链上登记合约，状态进入 issued
func (l *InvoiceLogic) RegisterOnchain(ownerAddress, slug, registryAddress, registryInvoiceId, referenceHash, txHash string) error {
	invoice, err := l.requireOwned(ownerAddress, slug)
	if err != nil {
		return err
	}
	if invoice.Status == model.InvoiceStatusPaid {
		return ErrInvoicePaid
	}

	registry, err := normalize.Address(registryAddress)
	if err != nil {
		return err
	}
	if _, err := normalize.Amount(registryInvoiceId); err != nil {
		return fmt.Errorf("%w: registry invoice id must be a non-negative integer", ErrInvalid)
	}
	issuanceTx, err := normalize.TxHash(txHash)
	if err != nil {
		return err
	}

	return l.db.Model(invoice).Updates(map[string]interface{}{
		"registry_address":    registry,
		"registry_invoice_id": registryInvoiceId,
		"reference_hash":      referenceHash,
		"issuance_tx_hash":    issuanceTx,
		"status":              model.InvoiceStatusIssued,
	}).Error
}

// UpdateDetails 更新备注与到期时间。已支付发票不可变更。
func (l *InvoiceLogic) UpdateDetails(ownerAddress, slug string, notes *string, dueAt *time.Time) error {
	invoice, err := l.requireOwned(ownerAddress, slug)
	if err != nil {
		return err
	}
	if invoice.Status == model.InvoiceStatusPaid {
		return ErrInvoicePaid
	}

	updates := map[string]interface{}{}
	if notes != nil {
		updates["notes"] = *notes
	}
	if dueAt != nil {
		updates["due_at"] = dueAt
	}
	if len(updates) == 0 {
		return nil
	}
	return l.db.Model(invoice).Updates(updates).Error
}

// AttachPaylink 将发票关联到收款链接
func (l *InvoiceLogic) AttachPaylink(ownerAddress, slug, handle string) error {
	invoice, err := l.requireOwned(ownerAddress, slug)
	if err != nil {
		return err
	}
	if invoice.Status == model.InvoiceStatusPaid {
		return ErrInvoicePaid
	}

	normalized := normalize.Handle(handle)
	var count int64
	if err := l.db.Model(&model.PaylinkModel{}).Where("handle = ?", normalized).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	return l.db.Model(invoice).Update("paylink_handle", normalized).Error
}

// Archive 归档发票（软删除）。已支付发票不可归档。
func (l *InvoiceLogic) Archive(ownerAddress, slug string) error {
	invoice, err := l.requireOwned(ownerAddress, slug)
	if err != nil {
		return err
	}
	if invoice.Status == model.InvoiceStatusPaid {
		return ErrInvoicePaid
	}
	if invoice.ArchivedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	return l.db.Model(invoice).Update("archived_at", &now).Error
}

// MarkPaid 将发票置为已支付（状态守卫，重复调用不产生二次变更）
func (l *InvoiceLogic) MarkPaid(slug, txHash string, paidAt time.Time) error {
	return markInvoicePaid(l.db, slug, txHash, paidAt)
}

// markInvoicePaid 状态守卫的支付转移：只有未支付的发票才会被更新，
// 重复或乱序调用都不会回退已支付状态。对账和结算校验共用这一条路径。
func markInvoicePaid(db *gorm.DB, slug, txHash string, paidAt time.Time) error {
	normalized, err := normalize.TxHash(txHash)
	if err != nil {
		return err
	}

	return db.Model(&model.InvoiceModel{}).
		Where("slug = ? AND status <> ?", slug, model.InvoiceStatusPaid).
		Updates(map[string]interface{}{
			"status":          model.InvoiceStatusPaid,
			"paid_at":         &paidAt,
			"payment_tx_hash": normalized,
		}).Error
}

// generateSlug 生成公开访问用的唯一 slug
func generateSlug() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("inv-%s-%s", ts, random)
}

// generateInvoiceNumber 生成人类可读的发票编号
func generateInvoiceNumber(existingCount int64) string {
	return fmt.Sprintf("CB-%d-%04d", time.Now().Year(), existingCount+1)
}
