package model

import (
	"time"
)

// PayoutScheduleModel 分账方案
type PayoutScheduleModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OwnerId      int64  `json:"owner_id" gorm:"index;not null"`
	Name         string `json:"name" gorm:"not null"`
	TokenAddress string `json:"token_address" gorm:"not null"`
	ChainId      int64  `json:"chain_id" gorm:"not null"`

	Recipients []PayoutRecipientModel `json:"recipients,omitempty" gorm:"foreignKey:ScheduleId"`
}

// TableName 自定义表名
func (PayoutScheduleModel) TableName() string {
	return "payout_schedule"
}

// PayoutRecipientModel 分账收款人。份额单位为基点（bps），方案内合计必须等于10000。
type PayoutRecipientModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ScheduleId int64  `json:"schedule_id" gorm:"index;not null"`
	Position   int    `json:"position" gorm:"not null"`
	Address    string `json:"address" gorm:"not null"`
	ShareBps   int64  `json:"share_bps" gorm:"not null"`
	Label      string `json:"label"`
}

// TableName 自定义表名
func (PayoutRecipientModel) TableName() string {
	return "payout_recipient"
}

// PayoutExecutionModel 分账执行回执。按交易哈希唯一，只增不改。
type PayoutExecutionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ScheduleId  int64     `json:"schedule_id" gorm:"index;not null"`
	TxHash      string    `json:"tx_hash" gorm:"uniqueIndex;not null"`
	TotalAmount string    `json:"total_amount" gorm:"not null"` // 基础单位整数串
	ExecutedAt  time.Time `json:"executed_at"`
}

// TableName 自定义表名
func (PayoutExecutionModel) TableName() string {
	return "payout_execution"
}
