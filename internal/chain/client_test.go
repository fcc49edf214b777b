package chain

import (
	"math/big"
	"testing"

	"github.com/coldbrew/cps/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(config.ChainConfig{
		ChainId: 11155111,
		RpcUrls: []string{"http://127.0.0.1:18545"},
	})
	require.NoError(t, err)
	return client
}

func TestParseTransferLog(t *testing.T) {
	client := newTestClient(t)

	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")
	receiver := common.HexToAddress("0x2222222222222222222222222222222222222222")
	transferID := client.erc20.Events["Transfer"].ID

	raw := types.Log{
		TxHash: common.HexToHash("0xaa11"),
		Topics: []common.Hash{
			transferID,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(receiver.Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(1500000).Bytes(), 32),
		BlockNumber: 100,
	}

	transfer, err := client.parseTransferLog(raw)
	require.NoError(t, err)
	assert.Equal(t, sender.Hex(), transfer.From)
	assert.Equal(t, "1500000", transfer.Value.String())
	assert.Equal(t, int64(100), transfer.BlockNum)
}

func TestParseTransferLogMalformed(t *testing.T) {
	client := newTestClient(t)

	// topic 数量不足
	_, err := client.parseTransferLog(types.Log{
		Topics: []common.Hash{client.erc20.Events["Transfer"].ID},
		Data:   make([]byte, 32),
	})
	require.Error(t, err)

	// data 为空
	_, err = client.parseTransferLog(types.Log{
		Topics: []common.Hash{
			client.erc20.Events["Transfer"].ID,
			common.Hash{},
			common.Hash{},
		},
	})
	require.Error(t, err)
}

func TestAuthRequiresKey(t *testing.T) {
	client := newTestClient(t)
	_, err := client.Auth()
	require.Error(t, err)

	signing, err := NewClient(config.ChainConfig{
		ChainId:    11155111,
		RpcUrls:    []string{"http://127.0.0.1:18545"},
		PrivateKey: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	})
	require.NoError(t, err)

	auth, err := signing.Auth()
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, auth.From)
}
