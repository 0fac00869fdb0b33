package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polartar/vtvl-app-sub002/internal/blockchain"
	"github.com/polartar/vtvl-app-sub002/internal/events"
	"github.com/polartar/vtvl-app-sub002/internal/models"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/pkg/errors"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

// 代币精度固定18位，与链上合约一致
const tokenDecimals = 18

// amountFromWei 链上整数金额转为带精度的十进制数
func amountFromWei(value *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(value, -tokenDecimals)
}

type WithdrawalService struct {
	scheduleRepo   *repository.ScheduleRepository
	recipientRepo  *repository.RecipientRepository
	withdrawalRepo *repository.WithdrawalRepository
	blockRepo      *repository.BlockRepository
	bus            *events.Bus
	mu             sync.Mutex
}

func NewWithdrawalService(
	scheduleRepo *repository.ScheduleRepository,
	recipientRepo *repository.RecipientRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	blockRepo *repository.BlockRepository,
	bus *events.Bus,
) *WithdrawalService {
	return &WithdrawalService{
		scheduleRepo:   scheduleRepo,
		recipientRepo:  recipientRepo,
		withdrawalRepo: withdrawalRepo,
		blockRepo:      blockRepo,
		bus:            bus,
	}
}

// ProcessWithdrawal 处理已确认的提现事件并更新受益人台账
// 记录提现历史并通过交易哈希确保幂等性；withdrawn 只增不减
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, chainID string, event *blockchain.WithdrawalEvent, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.withdrawalRepo.ExistsByTxHash(ctx, event.TxHash)
	if err != nil {
		return errors.New(errors.ErrWithdrawalUpdate, "检查交易是否存在失败", err)
	}
	if exists {
		logger.WithFields(map[string]interface{}{
			"tx_hash": event.TxHash,
		}).Debug("交易已处理")
		return nil
	}

	schedule, err := s.scheduleRepo.GetByContractAddress(ctx, chainID, event.Contract.Hex())
	if err != nil {
		return errors.New(errors.ErrWithdrawalUpdate, "查询归属计划失败", err)
	}
	if schedule == nil {
		logger.WithFields(map[string]interface{}{
			"chain_id": chainID,
			"contract": event.Contract.Hex(),
		}).Warn("提现事件来自未登记的合约，忽略")
		return nil
	}

	recipient, err := s.recipientRepo.GetByWallet(ctx, schedule.ID, event.Recipient.Hex())
	if err != nil {
		return errors.New(errors.ErrWithdrawalUpdate, "查询受益人失败", err)
	}
	if recipient == nil {
		// 链上有领取但台账缺失，留给对账流程作为警告暴露
		logger.WithFields(map[string]interface{}{
			"schedule_id": schedule.ID,
			"wallet":      event.Recipient.Hex(),
		}).Warn("提现事件对应的受益人不在台账中")
		return s.blockRepo.MarkProcessed(ctx, chainID, event.BlockNum)
	}

	withdrawnBefore, err := decimal.NewFromString(recipient.Withdrawn)
	if err != nil {
		withdrawnBefore = decimal.Zero
	}

	amount := amountFromWei(event.Amount)
	withdrawnAfter := withdrawnBefore.Add(amount)

	history := &models.WithdrawalHistory{
		ChainID:         chainID,
		ScheduleID:      schedule.ID,
		WalletAddress:   event.Recipient.Hex(),
		WithdrawnBefore: withdrawnBefore.String(),
		WithdrawnAfter:  withdrawnAfter.String(),
		Amount:          amount.String(),
		TxHash:          event.TxHash,
		BlockNumber:     event.BlockNum,
		Timestamp:       timestamp,
	}

	if err := s.withdrawalRepo.Create(ctx, history); err != nil {
		return errors.New(errors.ErrWithdrawalUpdate, "创建提现历史失败", err)
	}

	if err := s.recipientRepo.UpdateWithdrawn(ctx, schedule.ID, event.Recipient.Hex(), withdrawnAfter.String()); err != nil {
		return errors.New(errors.ErrWithdrawalUpdate, "更新已提现额失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":         chainID,
		"schedule_id":      schedule.ID,
		"wallet":           event.Recipient.Hex(),
		"withdrawn_before": withdrawnBefore.String(),
		"withdrawn_after":  withdrawnAfter.String(),
	}).Info("已提现额已更新")

	s.bus.Publish(events.TypeWithdrawalRecorded, history)

	return s.blockRepo.MarkProcessed(ctx, chainID, event.BlockNum)
}

// GetRecentWithdrawals 获取最近的提现记录
func (s *WithdrawalService) GetRecentWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalHistory, error) {
	return s.withdrawalRepo.GetRecent(ctx, limit)
}
