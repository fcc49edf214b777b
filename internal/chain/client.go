package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/coldbrew/cps/internal/config"
	"github.com/coldbrew/cps/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrChainUnavailable 所有RPC端点都不可用。调用方应视为可重试错误。
var ErrChainUnavailable = errors.New("chain unavailable")

// ERC20转账事件ABI定义
const erc20ABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "from", "type": "address"},
			{"indexed": true, "name": "to", "type": "address"},
			{"indexed": false, "name": "value", "type": "uint256"}
		],
		"name": "Transfer",
		"type": "event"
	}
]`

// TransferLog 一条规范化后的转账日志
type TransferLog struct {
	TxHash   string
	From     string
	Value    *big.Int
	BlockNum int64
}

// Client 绑定单条链的RPC客户端，支持多端点按顺序故障转移。
// 端点连接按需建立并缓存，某个端点出错时自动切换到下一个。
type Client struct {
	cfg        config.ChainConfig
	erc20      abi.ABI
	registry   abi.ABI
	privateKey *ecdsa.PrivateKey

	mu      sync.Mutex
	conns   map[string]*ethclient.Client // 按端点缓存的连接
	primary int                          // 上次成功的端点下标
}

// NewClient 创建链客户端
func NewClient(cfg config.ChainConfig) (*Client, error) {
	if len(cfg.RpcUrls) == 0 {
		return nil, fmt.Errorf("chain %d has no RPC URLs configured", cfg.ChainId)
	}

	erc20Parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	registryParsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	client := &Client{
		cfg:      cfg,
		erc20:    erc20Parsed,
		registry: registryParsed,
		conns:    make(map[string]*ethclient.Client),
	}

	// 解析私钥（可选，仅提交交易时需要）
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		client.privateKey = key
	}

	return client, nil
}

// ChainId 获取链ID
func (c *Client) ChainId() int64 {
	return c.cfg.ChainId
}

// RegistryAddress 获取配置的登记合约地址
func (c *Client) RegistryAddress() string {
	return c.cfg.RegistryAddress
}

// withFailover 依次尝试各端点执行操作，全部失败时返回 ErrChainUnavailable
func (c *Client) withFailover(fn func(conn *ethclient.Client) error) error {
	var lastErr error

	c.mu.Lock()
	start := c.primary
	c.mu.Unlock()

	total := len(c.cfg.RpcUrls)
	for i := 0; i < total; i++ {
		idx := (start + i) % total
		url := c.cfg.RpcUrls[idx]

		conn, err := c.conn(url)
		if err != nil {
			logger.Warn("Failed to connect RPC endpoint %s (chain %d): %v", url, c.cfg.ChainId, err)
			lastErr = err
			continue
		}

		if err := fn(conn); err != nil {
			logger.Warn("RPC endpoint %s failed (chain %d): %v", url, c.cfg.ChainId, err)
			c.dropConn(url)
			lastErr = err
			continue
		}

		// 记住可用端点，后续请求优先使用
		c.mu.Lock()
		c.primary = idx
		c.mu.Unlock()
		return nil
	}

	return fmt.Errorf("%w: chain %d: %v", ErrChainUnavailable, c.cfg.ChainId, lastErr)
}

// conn 获取或建立端点连接
func (c *Client) conn(url string) (*ethclient.Client, error) {
	c.mu.Lock()
	if conn, ok := c.conns[url]; ok {
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.conns[url]; ok {
		conn.Close()
		return existing, nil
	}
	c.conns[url] = conn
	return conn, nil
}

// dropConn 丢弃出错端点的连接，下次使用时重新建立
func (c *Client) dropConn(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[url]; ok {
		conn.Close()
		delete(c.conns, url)
	}
}

// Close 关闭全部端点连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, conn := range c.conns {
		conn.Close()
		delete(c.conns, url)
	}
}

// BlockNumber 获取最新区块号
func (c *Client) BlockNumber(ctx context.Context) (int64, error) {
	var number int64
	err := c.withFailover(func(conn *ethclient.Client) error {
		header, err := conn.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		number = header.Number.Int64()
		return nil
	})
	return number, err
}

// BlockTimestamp 获取指定区块的时间戳
func (c *Client) BlockTimestamp(ctx context.Context, blockNum int64) (time.Time, error) {
	var ts time.Time
	err := c.withFailover(func(conn *ethclient.Client) error {
		header, err := conn.HeaderByNumber(ctx, new(big.Int).SetInt64(blockNum))
		if err != nil {
			return err
		}
		ts = time.Unix(int64(header.Time), 0).UTC()
		return nil
	})
	return ts, err
}

// TransferLogs 查询代币合约上收款地址为 to 的转账日志
func (c *Client) TransferLogs(ctx context.Context, token, to string, fromBlock, toBlock int64) ([]TransferLog, error) {
	transferEvent := c.erc20.Events["Transfer"]
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetInt64(fromBlock),
		ToBlock:   new(big.Int).SetInt64(toBlock),
		Addresses: []common.Address{common.HexToAddress(token)},
		Topics: [][]common.Hash{
			{transferEvent.ID},
			nil, // from 不限
			{common.BytesToHash(common.HexToAddress(to).Bytes())},
		},
	}

	var rawLogs []types.Log
	err := c.withFailover(func(conn *ethclient.Client) error {
		logs, err := conn.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		rawLogs = logs
		return nil
	})
	if err != nil {
		return nil, err
	}

	transfers := make([]TransferLog, 0, len(rawLogs))
	for _, raw := range rawLogs {
		transfer, err := c.parseTransferLog(raw)
		if err != nil {
			// 单条日志解析失败不影响整批扫描
			logger.Warn("Skipping malformed transfer log %s: %v", raw.TxHash.Hex(), err)
			continue
		}
		transfers = append(transfers, transfer)
	}

	return transfers, nil
}

// parseTransferLog 解析转账事件日志
func (c *Client) parseTransferLog(raw types.Log) (TransferLog, error) {
	if len(raw.Topics) < 3 {
		return TransferLog{}, fmt.Errorf("invalid Transfer event: insufficient topics")
	}
	if len(raw.Data) == 0 {
		return TransferLog{}, fmt.Errorf("invalid Transfer event: empty data")
	}

	return TransferLog{
		TxHash:   raw.TxHash.Hex(),
		From:     common.BytesToAddress(raw.Topics[1].Bytes()).Hex(),
		Value:    new(big.Int).SetBytes(raw.Data),
		BlockNum: int64(raw.BlockNumber),
	}, nil
}

// Auth 获取交易授权，未配置私钥时返回错误
func (c *Client) Auth() (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("chain %d has no signing key configured", c.cfg.ChainId)
	}
	return bind.NewKeyedTransactorWithChainID(c.privateKey, big.NewInt(c.cfg.ChainId))
}

// WaitForReceipt 轮询等待交易回执
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(time.Second * 2)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		err := c.withFailover(func(conn *ethclient.Client) error {
			r, err := conn.TransactionReceipt(ctx, hash)
			if errors.Is(err, ethereum.NotFound) {
				// 交易尚未打包，继续轮询
				return nil
			}
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Healthy 检查链连接是否可用
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.BlockNumber(ctx)
	return err == nil
}
