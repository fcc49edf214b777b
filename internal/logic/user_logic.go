package logic

import (
	"errors"

	"github.com/coldbrew/cps/internal/model"
	"github.com/coldbrew/cps/internal/normalize"
	"gorm.io/gorm"
)

// UserLogic 用户业务逻辑
type UserLogic struct {
	db *gorm.DB
}

// NewUserLogic 创建用户业务逻辑
func NewUserLogic(db *gorm.DB) *UserLogic {
	return &UserLogic{db: db}
}

// RequireByWallet 按钱包地址获取用户，首次出现时自动建档
func (u *UserLogic) RequireByWallet(address string) (*model.UserModel, error) {
	addr, err := normalize.Address(address)
	if err != nil {
		return nil, err
	}

	var user model.UserModel
	err = u.db.Where("wallet_address = ?", addr).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = model.UserModel{WalletAddress: addr}
	if createErr := u.db.Create(&user).Error; createErr != nil {
		// 并发建档撞上唯一索引时重查
		if err := u.db.Where("wallet_address = ?", addr).First(&user).Error; err != nil {
			return nil, createErr
		}
	}
	return &user, nil
}

// GetById 按ID获取用户
func (u *UserLogic) GetById(id int64) (*model.UserModel, error) {
	var user model.UserModel
	if err := u.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
