package logic

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/coldbrew/cps/internal/chain"
	"github.com/coldbrew/cps/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPaylink(t *testing.T, l *PaylinkLogic, handle string) *model.PaylinkModel {
	t.Helper()
	paylink, err := l.CreatePaylink(testOwner, CreatePaylinkInput{
		Handle:       handle,
		Title:        "Coffee fund",
		ChainId:      11155111,
		TokenAddress: testToken,
	})
	require.NoError(t, err)
	return paylink
}

func TestCreatePaylink(t *testing.T) {
	db := newTestDB(t)
	l := NewPaylinkLogic(db, nil, 0)

	paylink := createTestPaylink(t, l, "  Coffee-Fund ")
	assert.Equal(t, "coffee-fund", paylink.Handle)
	// 未指定收款地址时默认属主钱包
	assert.Equal(t, testOwner, paylink.ReceivingAddress)
	assert.True(t, paylink.IsActive)
	assert.Nil(t, paylink.LastSyncedBlock)

	// handle 全局唯一
	_, err := l.CreatePaylink(testOwner, CreatePaylinkInput{
		Handle:       "coffee-fund",
		ChainId:      11155111,
		TokenAddress: testToken,
	})
	assert.ErrorIs(t, err, ErrHandleTaken)
}

func TestUpdatePaylinkOwnership(t *testing.T) {
	db := newTestDB(t)
	l := NewPaylinkLogic(db, nil, 0)
	paylink := createTestPaylink(t, l, "coffee-fund")

	// 非属主视角下资源不存在
	title := "hijacked"
	err := l.UpdatePaylink(testSender, paylink.Id, UpdatePaylinkInput{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	title = "Tea fund"
	require.NoError(t, l.UpdatePaylink(testOwner, paylink.Id, UpdatePaylinkInput{Title: &title}))

	got, err := l.GetByHandle("coffee-fund")
	require.NoError(t, err)
	assert.Equal(t, "Tea fund", got.Title)
}

func TestArchivePaylinkKeepsPayments(t *testing.T) {
	db := newTestDB(t)
	l := NewPaylinkLogic(db, nil, 0)
	paylink := createTestPaylink(t, l, "coffee-fund")

	_, err := l.ApplySyncResult(paylink.Id, 50, []PaymentCandidate{{
		TxHash:     testTxHash(1),
		Sender:     testSender,
		Amount:     "500",
		BlockNum:   40,
		ChainId:    paylink.ChainId,
		DetectedAt: time.Now().UTC(),
	}})
	require.NoError(t, err)

	require.NoError(t, l.ArchivePaylink(testOwner, paylink.Id))
	// 归档幂等
	require.NoError(t, l.ArchivePaylink(testOwner, paylink.Id))

	got, err := l.GetByHandle("coffee-fund")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.ArchivedAt)

	payments, err := l.Payments(testOwner, paylink.Id)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	// 重新激活清除归档时间
	active := true
	require.NoError(t, l.UpdatePaylink(testOwner, paylink.Id, UpdatePaylinkInput{IsActive: &active}))
	got, err = l.GetByHandle("coffee-fund")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.ArchivedAt)
}

func TestSyncTransfersFirstScan(t *testing.T) {
	db := newTestDB(t)
	reader := &fakeChainReader{
		head: 120,
		logs: []chain.TransferLog{
			{TxHash: testTxHash(1), From: testSender, Value: big.NewInt(500), BlockNum: 100},
		},
	}
	l := NewPaylinkLogic(db, fixedReader(reader), 5000)
	paylink := createTestPaylink(t, l, "coffee-fund")

	result, err := l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{})
	require.NoError(t, err)
	require.Len(t, result.Inserted, 1)
	assert.Equal(t, testTxHash(1), result.Inserted[0].TxHash)
	assert.Equal(t, "500", result.Inserted[0].Amount)
	require.NotNil(t, result.LatestBlock)
	assert.Equal(t, int64(120), *result.LatestBlock)

	// 游标推进到扫描时的最新区块
	got, err := l.GetByHandle("coffee-fund")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncedBlock)
	assert.Equal(t, int64(120), *got.LastSyncedBlock)

	payments, err := l.Payments(testOwner, paylink.Id)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(100), payments[0].BlockNum)
}

func TestSyncTransfersIdempotent(t *testing.T) {
	db := newTestDB(t)
	reader := &fakeChainReader{
		head: 120,
		logs: []chain.TransferLog{
			{TxHash: testTxHash(1), From: testSender, Value: big.NewInt(500), BlockNum: 100},
		},
	}
	l := NewPaylinkLogic(db, fixedReader(reader), 5000)
	paylink := createTestPaylink(t, l, "coffee-fund")

	_, err := l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{})
	require.NoError(t, err)

	// 游标之后没有新日志，重复扫描不产生重复记录
	result, err := l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Inserted)

	// 游标清空后重扫同一窗口，唯一索引兜底
	require.NoError(t, db.Model(&model.PaylinkModel{}).
		Where("id = ?", paylink.Id).
		Update("last_synced_block", nil).Error)

	result, err = l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Inserted)

	payments, err := l.Payments(testOwner, paylink.Id)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestSyncTransfersAdvancesStaleCursor(t *testing.T) {
	db := newTestDB(t)
	reader := &fakeChainReader{head: 200}
	l := NewPaylinkLogic(db, fixedReader(reader), 5000)
	paylink := createTestPaylink(t, l, "coffee-fund")

	cursor := int64(50)
	require.NoError(t, db.Model(&model.PaylinkModel{}).
		Where("id = ?", paylink.Id).
		Update("last_synced_block", cursor).Error)

	// 没有任何新转账也要推进游标，窗口保持有界
	result, err := l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Inserted)

	got, err := l.GetByHandle("coffee-fund")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncedBlock)
	assert.Equal(t, int64(200), *got.LastSyncedBlock)
}

func TestSyncTransfersInactiveNoop(t *testing.T) {
	db := newTestDB(t)
	reader := &fakeChainReader{
		head: 120,
		logs: []chain.TransferLog{
			{TxHash: testTxHash(1), From: testSender, Value: big.NewInt(500), BlockNum: 100},
		},
	}
	l := NewPaylinkLogic(db, fixedReader(reader), 5000)
	paylink := createTestPaylink(t, l, "coffee-fund")
	require.NoError(t, l.ArchivePaylink(testOwner, paylink.Id))

	result, err := l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Inserted)
	assert.Nil(t, result.LatestBlock)

	// 不存在的 handle 同样安静返回
	result, err = l.SyncTransfers(context.Background(), "no-such-handle", SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Inserted)
}

func TestSyncTransfersMarksInvoicePaidOnExactAmount(t *testing.T) {
	db := newTestDB(t)
	reader := &fakeChainReader{
		head: 120,
		logs: []chain.TransferLog{
			{TxHash: testTxHash(1), From: testSender, Value: big.NewInt(999), BlockNum: 99},
			{TxHash: testTxHash(2), From: testSender, Value: big.NewInt(1000), BlockNum: 100},
		},
	}
	l := NewPaylinkLogic(db, fixedReader(reader), 5000)
	createTestPaylink(t, l, "coffee-fund")

	invoices := NewInvoiceLogic(db)
	created, err := invoices.CreateInvoice(testOwner, CreateInvoiceInput{
		Title:        "Design work",
		TokenAddress: testToken,
		ChainId:      11155111,
		LineItems:    []LineItemInput{{Description: "Logo", Quantity: 1, UnitAmount: "1000"}},
	})
	require.NoError(t, err)

	result, err := l.SyncTransfers(context.Background(), "coffee-fund", SyncOptions{
		InvoiceSlug:    created.Slug,
		ExpectedAmount: "1000",
	})
	require.NoError(t, err)
	require.Len(t, result.Inserted, 2)

	// 只有金额精确相等的那笔被标记到发票
	bySlug := map[string]string{}
	for _, p := range result.Inserted {
		bySlug[p.TxHash] = p.InvoiceSlug
	}
	assert.Equal(t, "", bySlug[testTxHash(1)])
	assert.Equal(t, created.Slug, bySlug[testTxHash(2)])

	invoice, err := invoices.GetBySlug(created.Slug)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, testTxHash(2), invoice.PaymentTxHash)
	require.NotNil(t, invoice.PaidAt)
}

func TestApplySyncResultCursorMonotonic(t *testing.T) {
	db := newTestDB(t)
	l := NewPaylinkLogic(db, nil, 0)
	paylink := createTestPaylink(t, l, "coffee-fund")

	_, err := l.ApplySyncResult(paylink.Id, 300, nil)
	require.NoError(t, err)

	// 乱序到达的旧结果不能回退游标
	_, err = l.ApplySyncResult(paylink.Id, 200, nil)
	require.NoError(t, err)

	got, err := l.GetByHandle("coffee-fund")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncedBlock)
	assert.Equal(t, int64(300), *got.LastSyncedBlock)
}

func TestApplySyncResultSkipsMalformed(t *testing.T) {
	db := newTestDB(t)
	l := NewPaylinkLogic(db, nil, 0)
	paylink := createTestPaylink(t, l, "coffee-fund")

	now := time.Now().UTC()
	inserted, err := l.ApplySyncResult(paylink.Id, 80, []PaymentCandidate{
		{TxHash: "not-a-hash", Sender: testSender, Amount: "1", BlockNum: 70, DetectedAt: now},
		{TxHash: testTxHash(7), Sender: testSender, Amount: "2", BlockNum: 71, ChainId: paylink.ChainId, DetectedAt: now},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, testTxHash(7), inserted[0].TxHash)

	_, err = l.ApplySyncResult(9999, 80, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
