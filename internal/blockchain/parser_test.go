package blockchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithdrawalLog(t *testing.T) {
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := big.NewInt(1500000000000000000) // 1.5 token

	log := types.Log{
		Address: contract,
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("TokensWithdrawn(address,uint256)")),
			common.BytesToHash(recipient.Bytes()),
		},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		TxHash:      common.HexToHash("0xdeadbeef"),
		BlockNumber: 19000001,
	}

	event, err := ParseWithdrawalLog(log)
	require.NoError(t, err)
	assert.Equal(t, contract, event.Contract)
	assert.Equal(t, recipient, event.Recipient)
	assert.Equal(t, 0, event.Amount.Cmp(amount))
	assert.Equal(t, log.TxHash.Hex(), event.TxHash)
	assert.Equal(t, int64(19000001), event.BlockNum)
}

func TestParseWithdrawalLog_InsufficientTopics(t *testing.T) {
	log := types.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("TokensWithdrawn(address,uint256)")),
		},
	}

	_, err := ParseWithdrawalLog(log)
	require.ErrorIs(t, err, ErrInvalidLogFormat)
}

func TestParseWithdrawalLog_EmptyData(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("TokensWithdrawn(address,uint256)")),
			common.BytesToHash(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
		},
	}

	event, err := ParseWithdrawalLog(log)
	require.NoError(t, err)
	assert.True(t, event.Amount.Sign() == 0)
}
