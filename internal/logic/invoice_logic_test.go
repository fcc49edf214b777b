package logic

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/coldbrew/cps/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestInvoice(t *testing.T, l *InvoiceLogic, items ...LineItemInput) *CreateInvoiceResult {
	t.Helper()
	if len(items) == 0 {
		items = []LineItemInput{{Description: "Logo design", Quantity: 1, UnitAmount: "1000"}}
	}
	created, err := l.CreateInvoice(testOwner, CreateInvoiceInput{
		Title:        "Design work",
		CustomerName: "ACME",
		TokenAddress: testToken,
		ChainId:      11155111,
		LineItems:    items,
	})
	require.NoError(t, err)
	return created
}

func TestCreateInvoiceComputesTotal(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)

	created := createTestInvoice(t, l,
		LineItemInput{Description: "Logo", Quantity: 2, UnitAmount: "1500000"},
		LineItemInput{Description: "Icons", Quantity: 10, UnitAmount: "200000"},
		LineItemInput{Description: "Freebie", Quantity: -3, UnitAmount: "999"}, // 负数量视为 0
	)

	// 合计由服务端按行项目重算
	assert.Equal(t, "5000000", created.TotalAmount)
	assert.True(t, strings.HasPrefix(created.Slug, "inv-"), "slug %q", created.Slug)
	assert.Contains(t, created.Number, "CB-")

	invoice, err := l.GetBySlug(created.Slug)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusDraft, invoice.Status)
	require.Len(t, invoice.LineItems, 3)
	assert.Equal(t, int64(0), invoice.LineItems[2].Quantity)
}

func TestCreateInvoiceValidation(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)

	_, err := l.CreateInvoice(testOwner, CreateInvoiceInput{
		TokenAddress: testToken,
		ChainId:      11155111,
	})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = l.CreateInvoice(testOwner, CreateInvoiceInput{
		TokenAddress: testToken,
		ChainId:      11155111,
		LineItems:    []LineItemInput{{Description: "Logo", Quantity: 1, UnitAmount: "10.5"}},
	})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestInvoiceNumberSequence(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)

	first := createTestInvoice(t, l)
	second := createTestInvoice(t, l)

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("CB-%d-0001", year), first.Number)
	assert.Equal(t, fmt.Sprintf("CB-%d-0002", year), second.Number)
}

func TestRegisterOnchain(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)
	created := createTestInvoice(t, l)

	err := l.RegisterOnchain(testOwner, created.Slug, testRegistry, "not-a-number", "", testTxHash(5))
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, l.RegisterOnchain(testOwner, created.Slug, testRegistry, "7", "0xref", testTxHash(5)))

	invoice, err := l.GetBySlug(created.Slug)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusIssued, invoice.Status)
	assert.Equal(t, testRegistry, invoice.RegistryAddress)
	assert.Equal(t, "7", invoice.RegistryInvoiceId)
	assert.Equal(t, testTxHash(5), invoice.IssuanceTxHash)
}

func TestPaidInvoiceIsImmutable(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)
	created := createTestInvoice(t, l)

	require.NoError(t, l.MarkPaid(created.Slug, testTxHash(9), time.Now().UTC()))

	notes := "late fee waived"
	assert.ErrorIs(t, l.UpdateDetails(testOwner, created.Slug, &notes, nil), ErrInvoicePaid)
	assert.ErrorIs(t, l.Archive(testOwner, created.Slug), ErrInvoicePaid)
	assert.ErrorIs(t, l.RegisterOnchain(testOwner, created.Slug, testRegistry, "7", "", testTxHash(5)), ErrInvoicePaid)

	// 重复标记支付不覆盖首个交易哈希
	require.NoError(t, l.MarkPaid(created.Slug, testTxHash(10), time.Now().UTC()))
	invoice, err := l.GetBySlug(created.Slug)
	require.NoError(t, err)
	assert.Equal(t, testTxHash(9), invoice.PaymentTxHash)
}

func TestAttachPaylink(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)
	created := createTestInvoice(t, l)

	// 不存在的收款链接无法关联
	assert.ErrorIs(t, l.AttachPaylink(testOwner, created.Slug, "missing"), ErrNotFound)

	paylinks := NewPaylinkLogic(db, nil, 0)
	createTestPaylink(t, paylinks, "coffee-fund")

	require.NoError(t, l.AttachPaylink(testOwner, created.Slug, "Coffee-Fund"))
	invoice, err := l.GetBySlug(created.Slug)
	require.NoError(t, err)
	assert.Equal(t, "coffee-fund", invoice.PaylinkHandle)
}

func TestArchiveInvoiceHidesFromList(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)
	created := createTestInvoice(t, l)

	require.NoError(t, l.Archive(testOwner, created.Slug))
	// 归档幂等
	require.NoError(t, l.Archive(testOwner, created.Slug))

	list, err := l.ListForOwner(testOwner)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 直接访问仍可见
	_, err = l.GetBySlug(created.Slug)
	require.NoError(t, err)
}

func TestInvoiceOwnership(t *testing.T) {
	db := newTestDB(t)
	l := NewInvoiceLogic(db)
	created := createTestInvoice(t, l)

	notes := "x"
	assert.ErrorIs(t, l.UpdateDetails(testSender, created.Slug, &notes, nil), ErrNotFound)
	assert.ErrorIs(t, l.Archive(testSender, created.Slug), ErrNotFound)
}
