package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/coldbrew/cps/internal/logger"
	"github.com/coldbrew/cps/internal/model"
	"github.com/coldbrew/cps/internal/normalize"
	"gorm.io/gorm"
)

// DefaultLookbackBlocks 首次扫描的回溯窗口。没有游标时从
// max(0, 最新区块-回溯窗口) 开始，避免无界的历史扫描。
const DefaultLookbackBlocks = 5000

// PaylinkLogic 收款链接业务逻辑：CRUD、转账扫描与对账落账
type PaylinkLogic struct {
	db       *gorm.DB
	reader   ChainReaderFunc
	lookback int64
	users    *UserLogic
}

// NewPaylinkLogic 创建收款链接业务逻辑
func NewPaylinkLogic(db *gorm.DB, reader ChainReaderFunc, lookbackBlocks int64) *PaylinkLogic {
	if lookbackBlocks <= 0 {
		lookbackBlocks = DefaultLookbackBlocks
	}
	return &PaylinkLogic{
		db:       db,
		reader:   reader,
		lookback: lookbackBlocks,
		users:    NewUserLogic(db),
	}
}

// CreatePaylinkInput 创建收款链接入参
type CreatePaylinkInput struct {
	Handle           string
	Title            string
	Description      string
	ChainId          int64
	TokenAddress     string
	ReceivingAddress string
}

// CreatePaylink 创建收款链接。handle 全局唯一、统一小写；
// 未指定收款地址时默认使用属主钱包地址。
func (l *PaylinkLogic) CreatePaylink(ownerAddress string, input CreatePaylinkInput) (*model.PaylinkModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	handle := normalize.Handle(input.Handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: handle is required", ErrInvalid)
	}

	var count int64
	if err := l.db.Model(&model.PaylinkModel{}).Where("handle = ?", handle).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrHandleTaken
	}

	token, err := normalize.Address(input.TokenAddress)
	if err != nil {
		return nil, err
	}

	receiving := input.ReceivingAddress
	if receiving == "" {
		receiving = ownerAddress
	}
	receiving, err = normalize.Address(receiving)
	if err != nil {
		return nil, err
	}

	paylink := model.PaylinkModel{
		Handle:           handle,
		OwnerId:          owner.Id,
		ReceivingAddress: receiving,
		Title:            input.Title,
		Description:      input.Description,
		ChainId:          input.ChainId,
		TokenAddress:     token,
		IsActive:         true,
	}
	if err := l.db.Create(&paylink).Error; err != nil {
		return nil, err
	}
	return &paylink, nil
}

// ListForOwner 获取用户的有效收款链接
func (l *PaylinkLogic) ListForOwner(ownerAddress string) ([]model.PaylinkModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	var paylinks []model.PaylinkModel
	err = l.db.Where("owner_id = ? AND is_active = ?", owner.Id, true).
		Order("id DESC").
		Find(&paylinks).Error
	if err != nil {
		return nil, err
	}
	return paylinks, nil
}

// GetByHandle 按 handle 获取收款链接（支付页公开访问）
func (l *PaylinkLogic) GetByHandle(handle string) (*model.PaylinkModel, error) {
	var paylink model.PaylinkModel
	err := l.db.Where("handle = ?", normalize.Handle(handle)).First(&paylink).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &paylink, nil
}

// requireOwned 加载属于调用者的收款链接
func (l *PaylinkLogic) requireOwned(ownerAddress string, paylinkId int64) (*model.PaylinkModel, error) {
	owner, err := l.users.RequireByWallet(ownerAddress)
	if err != nil {
		return nil, err
	}

	var paylink model.PaylinkModel
	if err := l.db.First(&paylink, paylinkId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if paylink.OwnerId != owner.Id {
		return nil, ErrNotFound
	}
	return &paylink, nil
}

// UpdatePaylinkInput 更新收款链接入参，nil 字段不变更
type UpdatePaylinkInput struct {
	Title            *string
	Description      *string
	ReceivingAddress *string
	IsActive         *bool
}

// UpdatePaylink 更新收款链接。重新激活会清除归档时间。
func (l *PaylinkLogic) UpdatePaylink(ownerAddress string, paylinkId int64, input UpdatePaylinkInput) error {
	paylink, err := l.requireOwned(ownerAddress, paylinkId)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ReceivingAddress != nil {
		receiving, err := normalize.Address(*input.ReceivingAddress)
		if err != nil {
			return err
		}
		updates["receiving_address"] = receiving
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
		if *input.IsActive {
			updates["archived_at"] = nil
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return l.db.Model(paylink).Updates(updates).Error
}

// ArchivePaylink 归档收款链接：置为不活跃，保留历史支付记录
func (l *PaylinkLogic) ArchivePaylink(ownerAddress string, paylinkId int64) error {
	paylink, err := l.requireOwned(ownerAddress, paylinkId)
	if err != nil {
		return err
	}
	if !paylink.IsActive && paylink.ArchivedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	return l.db.Model(paylink).Updates(map[string]interface{}{
		"is_active":   false,
		"archived_at": &now,
	}).Error
}

// Payments 获取收款链接的支付记录（新到旧）
func (l *PaylinkLogic) Payments(ownerAddress string, paylinkId int64) ([]model.PaylinkPaymentModel, error) {
	paylink, err := l.requireOwned(ownerAddress, paylinkId)
	if err != nil {
		return nil, err
	}

	var payments []model.PaylinkPaymentModel
	err = l.db.Where("paylink_id = ?", paylink.Id).
		Order("id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// SyncOptions 扫描时的发票匹配参数。ExpectedAmount 与链上转账金额
// 精确相等时，该笔支付会被标记为对应发票的付款（不做模糊匹配）。
type SyncOptions struct {
	InvoiceSlug    string
	ExpectedAmount string
}

// PaymentCandidate 扫描产出的候选支付
type PaymentCandidate struct {
	TxHash      string
	Sender      string
	Amount      string
	BlockNum    int64
	ChainId     int64
	DetectedAt  time.Time
	InvoiceSlug string
}

// InsertedPayment 本次对账新落账的支付
type InsertedPayment struct {
	TxHash      string    `json:"tx_hash"`
	Sender      string    `json:"sender"`
	Amount      string    `json:"amount"`
	DetectedAt  time.Time `json:"detected_at"`
	InvoiceSlug string    `json:"invoice_slug,omitempty"`
}

// SyncResult 一次扫描的结果
type SyncResult struct {
	Inserted    []InsertedPayment `json:"inserted"`
	LatestBlock *int64            `json:"latest_block"`
}

// SyncTransfers 增量扫描收款地址的转账并落账。
// 操作整体幂等，可被任意调用方以任意频率重复触发。
func (l *PaylinkLogic) SyncTransfers(ctx context.Context, handle string, opts SyncOptions) (*SyncResult, error) {
	var paylink model.PaylinkModel
	err := l.db.Where("handle = ?", normalize.Handle(handle)).First(&paylink).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SyncResult{Inserted: []InsertedPayment{}}, nil
		}
		return nil, err
	}
	if !paylink.IsActive {
		return &SyncResult{Inserted: []InsertedPayment{}}, nil
	}

	reader, err := l.reader(paylink.ChainId)
	if err != nil {
		return nil, err
	}

	latestBlock, err := reader.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	// 扫描窗口：有游标则从游标+1开始，否则回溯有限区块数
	var fromBlock int64
	if paylink.LastSyncedBlock != nil {
		fromBlock = *paylink.LastSyncedBlock + 1
	} else {
		fromBlock = latestBlock - l.lookback
		if fromBlock < 0 {
			fromBlock = 0
		}
	}

	logs, err := reader.TransferLogs(ctx, paylink.TokenAddress, paylink.ReceivingAddress, fromBlock, latestBlock)
	if err != nil {
		return nil, err
	}

	if len(logs) == 0 {
		// 没有新日志也要推进过期游标，保证后续窗口有界
		if paylink.LastSyncedBlock == nil || *paylink.LastSyncedBlock < latestBlock {
			if _, err := l.ApplySyncResult(paylink.Id, latestBlock, nil); err != nil {
				return nil, err
			}
		}
		return &SyncResult{Inserted: []InsertedPayment{}, LatestBlock: &latestBlock}, nil
	}

	var expected *big.Int
	if opts.ExpectedAmount != "" {
		expected, err = normalize.Amount(opts.ExpectedAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: expected amount must be a non-negative integer", ErrInvalid)
		}
	}

	// 区块时间戳按区块号缓存，同区块多笔转账只读一次
	blockTimes := make(map[int64]time.Time)
	candidates := make([]PaymentCandidate, 0, len(logs))
	for _, transfer := range logs {
		detectedAt, ok := blockTimes[transfer.BlockNum]
		if !ok {
			detectedAt, err = reader.BlockTimestamp(ctx, transfer.BlockNum)
			if err != nil {
				return nil, err
			}
			blockTimes[transfer.BlockNum] = detectedAt
		}

		sender, err := normalize.Address(transfer.From)
		if err != nil {
			logger.Warn("Skipping transfer %s with malformed sender: %v", transfer.TxHash, err)
			continue
		}

		invoiceSlug := ""
		if expected != nil && opts.InvoiceSlug != "" && transfer.Value.Cmp(expected) == 0 {
			invoiceSlug = opts.InvoiceSlug
		}

		candidates = append(candidates, PaymentCandidate{
			TxHash:      transfer.TxHash,
			Sender:      sender,
			Amount:      transfer.Value.String(),
			BlockNum:    transfer.BlockNum,
			ChainId:     paylink.ChainId,
			DetectedAt:  detectedAt,
			InvoiceSlug: invoiceSlug,
		})
	}

	inserted, err := l.ApplySyncResult(paylink.Id, latestBlock, candidates)
	if err != nil {
		return nil, err
	}

	return &SyncResult{Inserted: inserted, LatestBlock: &latestBlock}, nil
}

// ApplySyncResult 将候选支付幂等合并进账本并推进游标。
// 交易哈希唯一索引是幂等键：重复、并发的调用不会产生重复记录，
// 也不会回退任何已支付发票。单张发票更新失败不影响本批其他支付。
func (l *PaylinkLogic) ApplySyncResult(paylinkId int64, latestBlock int64, candidates []PaymentCandidate) ([]InsertedPayment, error) {
	var paylink model.PaylinkModel
	if err := l.db.First(&paylink, paylinkId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	inserted := make([]InsertedPayment, 0, len(candidates))
	for _, candidate := range candidates {
		txHash, err := normalize.TxHash(candidate.TxHash)
		if err != nil {
			logger.Warn("Skipping candidate with malformed tx hash %q: %v", candidate.TxHash, err)
			continue
		}

		var count int64
		if err := l.db.Model(&model.PaylinkPaymentModel{}).Where("tx_hash = ?", txHash).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			// 已落账，跳过
			continue
		}

		payment := model.PaylinkPaymentModel{
			PaylinkId:   paylink.Id,
			TxHash:      txHash,
			Sender:      candidate.Sender,
			Amount:      candidate.Amount,
			BlockNum:    candidate.BlockNum,
			ChainId:     candidate.ChainId,
			DetectedAt:  candidate.DetectedAt,
			InvoiceSlug: candidate.InvoiceSlug,
		}
		if err := l.db.Create(&payment).Error; err != nil {
			// 并发写入撞上唯一索引时当作已存在处理
			logger.Warn("Failed to insert payment %s: %v", txHash, err)
			continue
		}

		inserted = append(inserted, InsertedPayment{
			TxHash:      txHash,
			Sender:      candidate.Sender,
			Amount:      candidate.Amount,
			DetectedAt:  candidate.DetectedAt,
			InvoiceSlug: candidate.InvoiceSlug,
		})

		if candidate.InvoiceSlug != "" {
			if err := markInvoicePaid(l.db, candidate.InvoiceSlug, txHash, candidate.DetectedAt); err != nil {
				logger.Error("Failed to mark invoice %s paid from payment %s: %v", candidate.InvoiceSlug, txHash, err)
			}
		}
	}

	// 游标只增不减：并发或乱序的调用不会让它回退
	err := l.db.Model(&model.PaylinkModel{}).
		Where("id = ? AND (last_synced_block IS NULL OR last_synced_block < ?)", paylink.Id, latestBlock).
		Update("last_synced_block", latestBlock).Error
	if err != nil {
		return nil, err
	}

	return inserted, nil
}
