package model

import (
	"time"
)

// InvoiceStatus 发票状态
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"  // 草稿
	InvoiceStatusIssued InvoiceStatus = "issued" // 已上链登记
	InvoiceStatusPaid   InvoiceStatus = "paid"   // 已支付
)

// InvoiceModel 发票
type InvoiceModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OwnerId       int64  `json:"owner_id" gorm:"index;not null"`
	Slug          string `json:"slug" gorm:"uniqueIndex;not null"`
	Number        string `json:"number" gorm:"not null"`
	Title         string `json:"title"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Notes         string `json:"notes"`

	Status       InvoiceStatus `json:"status" gorm:"index;default:'draft'"`
	TotalAmount  string        `json:"total_amount" gorm:"not null"` // 基础单位整数串
	TokenAddress string        `json:"token_address" gorm:"not null"`
	ChainId      int64         `json:"chain_id" gorm:"not null"`

	DueAt        *time.Time `json:"due_at"`
	PaidAt       *time.Time `json:"paid_at"`
	PayerAddress string     `json:"payer_address"` // 限定付款人（可选）

	PaylinkHandle string `json:"paylink_handle"` // 关联的收款链接（可选）

	// 上链登记信息
	RegistryAddress   string `json:"registry_address"`
	RegistryInvoiceId string `json:"registry_invoice_id"`
	ReferenceHash     string `json:"reference_hash"`
	IssuanceTxHash    string `json:"issuance_tx_hash"`
	PaymentTxHash     string `json:"payment_tx_hash"`

	ArchivedAt *time.Time `json:"archived_at"`

	LineItems []InvoiceLineItemModel `json:"line_items,omitempty" gorm:"foreignKey:InvoiceId"`
}

// TableName 自定义表名
func (InvoiceModel) TableName() string {
	return "invoice"
}

// InvoiceLineItemModel 发票行项目
type InvoiceLineItemModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	InvoiceId   int64  `json:"invoice_id" gorm:"index;not null"`
	Position    int    `json:"position" gorm:"not null"`
	Description string `json:"description" gorm:"not null"`
	Quantity    int64  `json:"quantity" gorm:"not null"`
	UnitAmount  string `json:"unit_amount" gorm:"not null"` // 基础单位整数串
}

// TableName 自定义表名
func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_item"
}
