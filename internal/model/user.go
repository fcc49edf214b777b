package model

import (
	"time"
)

// UserModel 用户（按钱包地址识别）
type UserModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	WalletAddress string `json:"wallet_address" gorm:"uniqueIndex;not null"`
}

// TableName 自定义表名
func (UserModel) TableName() string {
	return "app_user"
}
