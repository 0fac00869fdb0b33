package blockchain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polartar/vtvl-app-sub002/internal/config"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

type WithdrawalListener struct {
	chainCfg     *config.ChainConfig
	client       *Client
	blockRepo    *repository.BlockRepository
	scheduleRepo *repository.ScheduleRepository
	eventChan    chan *WithdrawalEvent
	stopChan     chan struct{}
	isProcessing int32
}

func NewWithdrawalListener(
	chainCfg *config.ChainConfig,
	client *Client,
	blockRepo *repository.BlockRepository,
	scheduleRepo *repository.ScheduleRepository,
) *WithdrawalListener {
	return &WithdrawalListener{
		chainCfg:     chainCfg,
		client:       client,
		blockRepo:    blockRepo,
		scheduleRepo: scheduleRepo,
		eventChan:    make(chan *WithdrawalEvent, 1000),
		stopChan:     make(chan struct{}),
	}
}

// Start 启动提现事件监听器
func (l *WithdrawalListener) Start(ctx context.Context, startBlock int64) {
	ticker := time.NewTicker(time.Duration(l.chainCfg.PullInterval) * time.Second)
	defer ticker.Stop()

	lastProcessedBlock := startBlock

	for {
		select {
		case <-ctx.Done():
			logger.Info("提现监听器已停止：上下文已取消")
			return
		case <-l.stopChan:
			logger.Info("提现监听器已停止：收到停止信号")
			return
		case <-ticker.C:
			// 检查是否正在处理
			if atomic.LoadInt32(&l.isProcessing) == 1 {
				logger.WithFields(map[string]interface{}{
					"chain_id": l.chainCfg.ID,
				}).Warn("上一次处理尚未完成，跳过本次触发")
				continue
			}

			atomic.StoreInt32(&l.isProcessing, 1)

			block, err := l.processNewBlocks(ctx, lastProcessedBlock)
			if err != nil {
				logger.Error("处理区块失败:", err)
			} else if block > lastProcessedBlock {
				lastProcessedBlock = block
			}

			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

// Stop 停止提现事件监听器
func (l *WithdrawalListener) Stop() {
	close(l.stopChan)
}

// GetEventChannel 获取事件通道
func (l *WithdrawalListener) GetEventChannel() <-chan *WithdrawalEvent {
	return l.eventChan
}

// IsProcessing 返回是否正在处理
func (l *WithdrawalListener) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// processNewBlocks 处理新区块
// 监听的合约地址来自已部署的归属计划，每轮重新查询以覆盖新部署
func (l *WithdrawalListener) processNewBlocks(ctx context.Context, lastBlock int64) (int64, error) {
	confirmedBlock, err := l.client.GetConfirmBlockNumber(ctx)
	if err != nil {
		return lastBlock, err
	}

	if confirmedBlock <= lastBlock {
		return lastBlock, nil
	}

	startBlock := lastBlock + 1
	if startBlock == 1 && l.chainCfg.StartBlock > 0 {
		startBlock = l.chainCfg.StartBlock
	}

	batchSize := int64(l.chainCfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}

	maxBatchSize := int64(5000)
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	if confirmedBlock-startBlock >= batchSize {
		confirmedBlock = startBlock + batchSize - 1
	}

	schedules, err := l.scheduleRepo.GetDeployedByChain(ctx, l.chainCfg.ID)
	if err != nil {
		return lastBlock, err
	}

	// 链上还没有已部署计划时只推进游标
	if len(schedules) == 0 {
		if err := l.blockRepo.MarkProcessed(ctx, l.chainCfg.ID, confirmedBlock); err != nil {
			return lastBlock, err
		}
		return confirmedBlock, nil
	}

	contracts := make([]common.Address, 0, len(schedules))
	for _, s := range schedules {
		contracts = append(contracts, common.HexToAddress(s.ContractAddress))
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":        l.chainCfg.ID,
		"start_block":     startBlock,
		"confirmed_block": confirmedBlock,
		"contracts":       len(contracts),
	}).Info("处理新区块")

	logs, err := l.client.GetWithdrawalLogs(ctx, contracts, startBlock, confirmedBlock)
	if err != nil {
		return lastBlock, err
	}

	// 即使没有事件，也要标记区块已处理
	if len(logs) == 0 {
		logger.WithFields(map[string]interface{}{
			"chain_id":        l.chainCfg.ID,
			"start_block":     startBlock,
			"confirmed_block": confirmedBlock,
		}).Debug("区块范围内无提现事件")

		if err := l.blockRepo.MarkProcessed(ctx, l.chainCfg.ID, confirmedBlock); err != nil {
			logger.Error("标记区块已处理失败:", err)
			return lastBlock, err
		}

		return confirmedBlock, nil
	}

	for _, log := range logs {
		event, err := ParseWithdrawalLog(log)
		if err != nil {
			logger.Error("解析日志失败:", err)
			continue
		}

		select {
		case l.eventChan <- event:
		default:
			logger.Warn("事件通道已满，丢弃事件")
		}
	}

	// 有事件时由提现服务处理完成后标记区块
	return confirmedBlock, nil
}
