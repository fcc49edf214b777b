package model

import (
	"time"
)

// PaylinkModel 收款链接
type PaylinkModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Handle           string `json:"handle" gorm:"uniqueIndex;not null"`
	OwnerId          int64  `json:"owner_id" gorm:"index;not null"`
	ReceivingAddress string `json:"receiving_address" gorm:"not null"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ChainId          int64  `json:"chain_id" gorm:"not null"`
	TokenAddress     string `json:"token_address" gorm:"not null"`

	// 扫描游标；nil 表示从未同步过。只由对账逻辑推进，单调不减。
	LastSyncedBlock *int64 `json:"last_synced_block"`

	IsActive   bool       `json:"is_active" gorm:"default:true"`
	ArchivedAt *time.Time `json:"archived_at"`
}

// TableName 自定义表名
func (PaylinkModel) TableName() string {
	return "paylink"
}
