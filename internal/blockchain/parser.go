package blockchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WithdrawalEvent 归属合约发出的一次已确认提现
type WithdrawalEvent struct {
	Contract  common.Address
	Recipient common.Address
	Amount    *big.Int
	TxHash    string
	BlockNum  int64
}

// ParseWithdrawalLog 解析 TokensWithdrawn(address indexed, uint256) 日志
func ParseWithdrawalLog(log types.Log) (*WithdrawalEvent, error) {
	if len(log.Topics) < 2 {
		return nil, ErrInvalidLogFormat
	}

	recipient := common.BytesToAddress(log.Topics[1].Bytes())

	amount := new(big.Int)
	if len(log.Data) > 0 {
		amount.SetBytes(log.Data)
	}

	return &WithdrawalEvent{
		Contract:  log.Address,
		Recipient: recipient,
		Amount:    amount,
		TxHash:    log.TxHash.Hex(),
		BlockNum:  int64(log.BlockNumber),
	}, nil
}

var ErrInvalidLogFormat = &InvalidLogFormatError{}

type InvalidLogFormatError struct{}

func (e *InvalidLogFormatError) Error() string {
	return "invalid log format: insufficient topics"
}
