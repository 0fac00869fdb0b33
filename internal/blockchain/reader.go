package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/polartar/vtvl-app-sub002/pkg/errors"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

// 归属合约的只读接口
const vestingReaderABI = `[
	{"name":"getClaim","type":"function","stateMutability":"view",
		"inputs":[{"name":"_recipient","type":"address"}],
		"outputs":[{"name":"allocation","type":"uint256"},{"name":"withdrawn","type":"uint256"}]},
	{"name":"claimableAmount","type":"function","stateMutability":"view",
		"inputs":[{"name":"_recipient","type":"address"}],
		"outputs":[{"name":"amount","type":"uint256"}]}
]`

var vestingABI = mustParseABI(vestingReaderABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid vesting reader ABI: %v", err))
	}
	return parsed
}

// ClaimRead 单个地址的链上读数；Err 非空表示该地址读取失败
type ClaimRead struct {
	Address    common.Address
	Allocation *big.Int
	Withdrawn  *big.Int
	Unclaimed  *big.Int
	Err        error
}

// BatchReadClaims 批量读取归属合约中多个地址的领取状态
// 所有地址的 getClaim 和 claimableAmount 合并为一次 RPC 批量调用
// 单个地址失败不影响其余地址，部分结果合法；仅传输层失败返回整体错误
func (c *Client) BatchReadClaims(ctx context.Context, contract common.Address, addresses []common.Address) ([]ClaimRead, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	elems := make([]rpc.BatchElem, 0, len(addresses)*2)
	for _, addr := range addresses {
		claimData, err := vestingABI.Pack("getClaim", addr)
		if err != nil {
			return nil, errors.New(errors.ErrReconcileUnavail, "编码getClaim调用失败", err)
		}
		unclaimedData, err := vestingABI.Pack("claimableAmount", addr)
		if err != nil {
			return nil, errors.New(errors.ErrReconcileUnavail, "编码claimableAmount调用失败", err)
		}

		for _, data := range [][]byte{claimData, unclaimedData} {
			elems = append(elems, rpc.BatchElem{
				Method: "eth_call",
				Args: []interface{}{
					map[string]interface{}{
						"to":   contract.Hex(),
						"data": hexutil.Encode(data),
					},
					"latest",
				},
				Result: new(hexutil.Bytes),
			})
		}
	}

	if err := c.rpc.BatchCallContext(ctx, elems); err != nil {
		return nil, errors.New(errors.ErrReconcileUnavail, "批量合约读取失败", err)
	}

	reads := make([]ClaimRead, 0, len(addresses))
	for i, addr := range addresses {
		read := ClaimRead{Address: addr}
		claimElem, unclaimedElem := elems[i*2], elems[i*2+1]

		if claimElem.Error != nil {
			read.Err = errors.New(errors.ErrReconcileUnavail,
				fmt.Sprintf("读取地址 %s 的getClaim失败", addr.Hex()), claimElem.Error)
		} else if unclaimedElem.Error != nil {
			read.Err = errors.New(errors.ErrReconcileUnavail,
				fmt.Sprintf("读取地址 %s 的claimableAmount失败", addr.Hex()), unclaimedElem.Error)
		} else {
			read.Allocation, read.Withdrawn, read.Err = unpackClaim(*claimElem.Result.(*hexutil.Bytes))
			if read.Err == nil {
				read.Unclaimed, read.Err = unpackClaimable(*unclaimedElem.Result.(*hexutil.Bytes))
			}
		}

		if read.Err != nil {
			logger.WithFields(map[string]interface{}{
				"chain_id": c.chainCfg.ID,
				"contract": contract.Hex(),
				"address":  addr.Hex(),
			}).Warn("地址读取失败，标记为待定: ", read.Err)
		}

		reads = append(reads, read)
	}

	return reads, nil
}

func unpackClaim(data []byte) (allocation, withdrawn *big.Int, err error) {
	values, err := vestingABI.Unpack("getClaim", data)
	if err != nil {
		return nil, nil, errors.New(errors.ErrReconcileUnavail, "解码getClaim返回值失败", err)
	}
	allocation, ok1 := values[0].(*big.Int)
	withdrawn, ok2 := values[1].(*big.Int)
	if !ok1 || !ok2 {
		return nil, nil, errors.New(errors.ErrReconcileUnavail, "getClaim返回值类型不符", nil)
	}
	return allocation, withdrawn, nil
}

func unpackClaimable(data []byte) (*big.Int, error) {
	values, err := vestingABI.Unpack("claimableAmount", data)
	if err != nil {
		return nil, errors.New(errors.ErrReconcileUnavail, "解码claimableAmount返回值失败", err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New(errors.ErrReconcileUnavail, "claimableAmount返回值类型不符", nil)
	}
	return amount, nil
}
