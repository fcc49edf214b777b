package model

import (
	"time"
)

// PaylinkPaymentModel 检测到的转账记录。
// 按交易哈希唯一，只增不改，是对账的幂等键。
type PaylinkPaymentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	PaylinkId   int64     `json:"paylink_id" gorm:"index;not null"`
	TxHash      string    `json:"tx_hash" gorm:"uniqueIndex;not null"`
	Sender      string    `json:"sender" gorm:"not null"`
	Amount      string    `json:"amount" gorm:"not null"` // 基础单位整数串
	BlockNum    int64     `json:"block_num"`
	ChainId     int64     `json:"chain_id"`
	DetectedAt  time.Time `json:"detected_at"`
	InvoiceSlug string    `json:"invoice_slug"` // 匹配到的发票（可选）
}

// TableName 自定义表名
func (PaylinkPaymentModel) TableName() string {
	return "paylink_payment"
}
