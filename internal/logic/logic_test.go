package logic

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/coldbrew/cps/internal/chain"
	"github.com/coldbrew/cps/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	testOwner    = "0x1111111111111111111111111111111111111111"
	testToken    = "0x2222222222222222222222222222222222222222"
	testSender   = "0x3333333333333333333333333333333333333333"
	testRegistry = "0x4444444444444444444444444444444444444444"
)

// newTestDB 每个测试独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		NamingStrategy: &schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	return db
}

func testTxHash(n byte) string {
	return fmt.Sprintf("0x%064x", n)
}

// fakeChainReader 内存实现的链读取器
type fakeChainReader struct {
	head       int64
	timestamps map[int64]time.Time
	logs       []chain.TransferLog
	registry   map[string]*chain.RegistryInvoice

	headErr error
	logsErr error
}

func (f *fakeChainReader) BlockNumber(ctx context.Context) (int64, error) {
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *fakeChainReader) BlockTimestamp(ctx context.Context, blockNum int64) (time.Time, error) {
	if ts, ok := f.timestamps[blockNum]; ok {
		return ts, nil
	}
	return time.Unix(1700000000+blockNum, 0).UTC(), nil
}

func (f *fakeChainReader) TransferLogs(ctx context.Context, token, to string, fromBlock, toBlock int64) ([]chain.TransferLog, error) {
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	var out []chain.TransferLog
	for _, l := range f.logs {
		if l.BlockNum >= fromBlock && l.BlockNum <= toBlock {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeChainReader) RegistryInvoice(ctx context.Context, registryAddr string, invoiceId *big.Int) (*chain.RegistryInvoice, error) {
	record, ok := f.registry[invoiceId.String()]
	if !ok {
		return nil, fmt.Errorf("%w: registry read failed", chain.ErrChainUnavailable)
	}
	return record, nil
}

func fixedReader(f *fakeChainReader) ChainReaderFunc {
	return func(chainId int64) (ChainReader, error) {
		return f, nil
	}
}
