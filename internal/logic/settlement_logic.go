package logic

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/coldbrew/cps/internal/model"
	"github.com/coldbrew/cps/internal/normalize"
	"gorm.io/gorm"
)

// SettlementLogic 登记合约结算校验。
// 调用方自报的交易哈希只是线索，付款事实以重新读取的合约状态为准。
type SettlementLogic struct {
	db     *gorm.DB
	reader ChainReaderFunc
	users  *UserLogic
}

// NewSettlementLogic 创建结算校验逻辑
func NewSettlementLogic(db *gorm.DB, reader ChainReaderFunc) *SettlementLogic {
	return &SettlementLogic{db: db, reader: reader, users: NewUserLogic(db)}
}

// SettlementResult 结算校验结果。校验失败是业务结果而非错误，
// Reason 给出具体原因码；链不可达等可重试故障才以 error 返回。
type SettlementResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Payer  string `json:"payer,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// VerifySettlement 校验登记合约上的结算并推进发票状态。
// 校验顺序固定，任一失败立即返回且不产生任何状态变更。
func (l *SettlementLogic) VerifySettlement(ctx context.Context, slug, claimedTxHash string) (*SettlementResult, error) {
	txHash, err := normalize.TxHash(claimedTxHash)
	if err != nil {
		return nil, err
	}

	var invoice model.InvoiceModel
	if err := l.db.Where("slug = ?", slug).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SettlementResult{OK: false, Reason: ReasonInvoiceNotFound}, nil
		}
		return nil, err
	}

	if invoice.RegistryAddress == "" || invoice.RegistryInvoiceId == "" {
		return &SettlementResult{OK: false, Reason: ReasonNotRegistered}, nil
	}

	registryInvoiceId, ok := new(big.Int).SetString(invoice.RegistryInvoiceId, 10)
	if !ok {
		return &SettlementResult{OK: false, Reason: ReasonNotRegistered}, nil
	}

	reader, err := l.reader(invoice.ChainId)
	if err != nil {
		return nil, err
	}

	// 重新读取合约权威状态，链故障属于可重试错误
	record, err := reader.RegistryInvoice(ctx, invoice.RegistryAddress, registryInvoiceId)
	if err != nil {
		return nil, err
	}

	if !record.Paid {
		return &SettlementResult{OK: false, Reason: ReasonInvoiceUnpaid}, nil
	}

	if !normalize.AmountEqual(record.Amount.String(), invoice.TotalAmount) {
		return &SettlementResult{OK: false, Reason: ReasonAmountMismatch}, nil
	}

	if invoice.ReferenceHash != "" && !strings.EqualFold(invoice.ReferenceHash, record.ReferenceHash) {
		return &SettlementResult{OK: false, Reason: ReasonReferenceMismatch}, nil
	}

	if _, err := l.users.GetById(invoice.OwnerId); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &SettlementResult{OK: false, Reason: ReasonOwnerMissing}, nil
		}
		return nil, err
	}

	// 全部校验通过后走与转账对账相同的状态守卫路径
	if err := markInvoicePaid(l.db, invoice.Slug, txHash, time.Now().UTC()); err != nil {
		return nil, err
	}

	payer := record.Payer
	if normalized, err := normalize.Address(record.Payer); err == nil {
		payer = normalized
	}

	return &SettlementResult{
		OK:     true,
		Payer:  payer,
		Amount: record.Amount.String(),
	}, nil
}
