package logic

import (
	"context"
	"math/big"
	"time"

	"github.com/coldbrew/cps/internal/chain"
)

// ChainReader 对账逻辑需要的链读取能力。*chain.Client 即实现。
// 全部为纯读取，可自由重试；端点全挂时返回 chain.ErrChainUnavailable。
type ChainReader interface {
	BlockNumber(ctx context.Context) (int64, error)
	BlockTimestamp(ctx context.Context, blockNum int64) (time.Time, error)
	TransferLogs(ctx context.Context, token, to string, fromBlock, toBlock int64) ([]chain.TransferLog, error)
	RegistryInvoice(ctx context.Context, registryAddr string, invoiceId *big.Int) (*chain.RegistryInvoice, error)
}

// ChainReaderFunc 按链ID解析 ChainReader
type ChainReaderFunc func(chainId int64) (ChainReader, error)

// ResolverReader 将链客户端解析器适配为 ChainReaderFunc
func ResolverReader(resolver *chain.Resolver) ChainReaderFunc {
	return func(chainId int64) (ChainReader, error) {
		return resolver.Client(chainId)
	}
}
