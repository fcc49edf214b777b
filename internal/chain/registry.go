package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// 发票登记合约ABI定义（只读部分）
const registryABI = `[
	{
		"inputs": [{"name": "invoiceId", "type": "uint256"}],
		"name": "getInvoice",
		"outputs": [
			{"name": "issuer", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "payer", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "paid", "type": "bool"},
			{"name": "referenceHash", "type": "bytes32"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// RegistryInvoice 登记合约上的发票权威状态
type RegistryInvoice struct {
	Issuer        string
	Token         string
	Payer         string
	Amount        *big.Int
	Paid          bool
	ReferenceHash string
}

// RegistryInvoice 读取登记合约上指定发票的权威记录。
// 结算校验只信任这里读到的状态，不信任调用方自报的交易哈希。
func (c *Client) RegistryInvoice(ctx context.Context, registryAddr string, invoiceId *big.Int) (*RegistryInvoice, error) {
	callData, err := c.registry.Pack("getInvoice", invoiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getInvoice call: %w", err)
	}

	contractAddr := common.HexToAddress(registryAddr)
	msg := ethereum.CallMsg{
		To:   &contractAddr,
		Data: callData,
	}

	var output []byte
	err = c.withFailover(func(conn *ethclient.Client) error {
		result, err := conn.CallContract(ctx, msg, nil)
		if err != nil {
			return err
		}
		output = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	values, err := c.registry.Unpack("getInvoice", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getInvoice result: %w", err)
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("unexpected getInvoice result length: %d", len(values))
	}

	issuer, ok1 := values[0].(common.Address)
	token, ok2 := values[1].(common.Address)
	payer, ok3 := values[2].(common.Address)
	amount, ok4 := values[3].(*big.Int)
	paid, ok5 := values[4].(bool)
	referenceHash, ok6 := values[5].([32]byte)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return nil, fmt.Errorf("unexpected getInvoice result types")
	}

	return &RegistryInvoice{
		Issuer:        issuer.Hex(),
		Token:         token.Hex(),
		Payer:         payer.Hex(),
		Amount:        amount,
		Paid:          paid,
		ReferenceHash: common.BytesToHash(referenceHash[:]).Hex(),
	}, nil
}
