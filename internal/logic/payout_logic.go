package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coldbrew/cps/internal/model"
	"github.com/coldbrew/cps/internal/normalize"
	"gorm.io/gorm"
)

// totalShareBps 分账份额合计必须精确等于10000基点（100%）
const totalShareBps = 10000

// PayoutLogic 分账方案业务逻辑
type PayoutLogic struct {
	db    *gorm.DB
	users *UserLogic
}

// NewPayoutLogic 创建分账业务逻辑
func NewPayoutLogic(db *gorm.DB) *PayoutLogic {
	return &PayoutLogic{db: db, users: NewUserLogic(db)}
}

// RecipientInput 分账收款人入参
type RecipientInput struct {
	Address  string `json:"address"`
	ShareBps int64  `json:"share_bps"`
	Label    string `json:"label"`
}

// sanitizeRecipients 校验并规范化收款人列表。
// 任一校验失败整个操作失败，不会持久化不完整的方案。
func sanitizeRecipients(recipients []RecipientInput) ([]model.PayoutRecipientModel, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalid)
	}

	sanitized := make([]model.PayoutRecipientModel, 0, len(recipients))
	var total int64
	for i, recipient := range recipients {
		address, err := normalize.Address(recipient.Address)
		if err != nil {
			return nil, err
		}
		share := recipient.ShareBps
		if share < 0 {
			share = 0
		}
		total += share

		sanitized = append(sanitized, model.PayoutRecipientModel{
			Position: i,
			Address:  address,
			ShareBps: share,
			Label:    strings.TrimSpace(recipient.Label),
		})
	}

	if total != totalShareBps {
		return nil, ErrInvalidAllocation
	}
	return sanitized, nil
}

// CreateScheduleInput 创建分账方案入参
type CreateScheduleInput struct {
	Name         string
	TokenAddress string
	ChainId      int64
	Recipients   []RecipientInput
}

// CreateSchedule 创建分账方案
func (l *PayoutLogic) CreateSchedule(ownerAddress string, input CreateScheduleInput) (*model.PayoutScheduleModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: schedule name is required", ErrInvalid)
	}

	token, err := normalize.Address(input.TokenAddress)
	if err != nil {
		return nil, err
	}

	recipients, err := sanitizeRecipients(input.Recipients)
	if err != nil {
		return nil, err
	}

	schedule := model.PayoutScheduleModel{
		OwnerId:      owner.Id,
		Name:         name,
		TokenAddress: token,
		ChainId:      input.ChainId,
		Recipients:   recipients,
	}
	if err := l.db.Create(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListSchedules 获取用户的分账方案列表
func (l *PayoutLogic) ListSchedules(ownerAddress string) ([]model.PayoutScheduleModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	var schedules []model.PayoutScheduleModel
	err = l.db.Where("owner_id = ?", owner.Id).
		Preload("Recipients", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id DESC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// requireOwned 加载属于调用者的分账方案
func (l *PayoutLogic) requireOwned(ownerAddress string, scheduleId int64) (*model.PayoutScheduleModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	var schedule model.PayoutScheduleModel
	if err := l.db.First(&schedule, scheduleId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if schedule.OwnerId != owner.Id {
		return nil, ErrNotFound
	}
	return &schedule, nil
}

// UpdateSchedule 更新分账方案。收款人列表整体替换，校验失败不落库。
func (l *PayoutLogic) UpdateSchedule(ownerAddress string, scheduleId int64, name *string, recipients *[]RecipientInput) error {
	schedule, err := l.requireOwned(ownerAddress, scheduleId)
	if err != nil {
		return err
	}

	// 先校验，再进事务
	var sanitized []model.PayoutRecipientModel
	if recipients != nil {
		sanitized, err = sanitizeRecipients(*recipients)
		if err != nil {
			return err
		}
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			if trimmed == "" {
				return fmt.Errorf("%w: schedule name is required", ErrInvalid)
			}
			if err := tx.Model(schedule).Update("name", trimmed).Error; err != nil {
				return err
			}
		}

		if recipients != nil {
			if err := tx.Where("schedule_id = ?", schedule.Id).Delete(&model.PayoutRecipientModel{}).Error; err != nil {
				return err
			}
			for i := range sanitized {
				sanitized[i].ScheduleId = schedule.Id
			}
			if err := tx.Create(&sanitized).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSchedule 删除分账方案，级联删除收款人与执行回执
func (l *PayoutLogic) DeleteSchedule(ownerAddress string, scheduleId int64) error {
	schedule, err := l.requireOwned(ownerAddress, scheduleId)
	if err != nil {
		return err
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", schedule.Id).Delete(&model.PayoutExecutionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("schedule_id = ?", schedule.Id).Delete(&model.PayoutRecipientModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(schedule).Error
	})
}

// Executions 获取分账方案的执行回执（新到旧）
func (l *PayoutLogic) Executions(ownerAddress string, scheduleId int64) ([]model.PayoutExecutionModel, error) {
	schedule, err := l.requireOwned(ownerAddress, scheduleId)
	if err != nil {
		return nil, err
	}

	var executions []model.PayoutExecutionModel
	err = l.db.Where("schedule_id = ?", schedule.Id).
		Order("id DESC").
		Find(&executions).Error
	if err != nil {
		return nil, err
	}
	return executions, nil
}

// RecordExecution 记录一次链上分账执行。
// 交易哈希是幂等键：同一哈希重复上报静默返回已有回执，绝不重复计账。
func (l *PayoutLogic) RecordExecution(ownerAddress string, scheduleId int64, txHash, totalAmount string, executedAt time.Time) (*model.PayoutExecutionModel, error) {
	schedule, err := l.requireOwned(ownerAddress, scheduleId)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize.TxHash(txHash)
	if err != nil {
		return nil, err
	}
	amount, err := normalize.Amount(totalAmount)
	if err != nil {
		return nil, err
	}

	var existing model.PayoutExecutionModel
	err = l.db.Where("tx_hash = ?", normalized).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	execution := model.PayoutExecutionModel{
		ScheduleId:  schedule.Id,
		TxHash:      normalized,
		TotalAmount: amount.String(),
		ExecutedAt:  executedAt,
	}
	if err := l.db.Create(&execution).Error; err != nil {
		// 并发上报撞上唯一索引时返回已有回执
		if err2 := l.db.Where("tx_hash = ?", normalized).First(&existing).Error; err2 == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &execution, nil
}
