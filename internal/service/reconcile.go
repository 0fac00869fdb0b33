package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polartar/vtvl-app-sub002/internal/blockchain"
	"github.com/polartar/vtvl-app-sub002/internal/config"
	"github.com/polartar/vtvl-app-sub002/internal/events"
	"github.com/polartar/vtvl-app-sub002/internal/models"
	"github.com/polartar/vtvl-app-sub002/internal/reconcile"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/pkg/errors"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"
	"github.com/shopspring/decimal"
)

type ReconcileService struct {
	scheduleRepo  *repository.ScheduleRepository
	recipientRepo *repository.RecipientRepository
	runRepo       *repository.RunRepository
	bus           *events.Bus
	clients       map[string]*blockchain.Client
	cfg           *config.ReconcileConfig
}

func NewReconcileService(
	scheduleRepo *repository.ScheduleRepository,
	recipientRepo *repository.RecipientRepository,
	runRepo *repository.RunRepository,
	bus *events.Bus,
	cfg *config.ReconcileConfig,
) *ReconcileService {
	return &ReconcileService{
		scheduleRepo:  scheduleRepo,
		recipientRepo: recipientRepo,
		runRepo:       runRepo,
		bus:           bus,
		clients:       make(map[string]*blockchain.Client),
		cfg:           cfg,
	}
}

// RegisterClient 登记链的区块链客户端
func (s *ReconcileService) RegisterClient(chainID string, client *blockchain.Client) {
	s.clients[chainID] = client
}

// ReconcileOrganization 对组织在指定链上的全部计划做一次对账
// 已部署计划的读数来自批量合约调用；单个地址失败只影响该地址
// 结果以幂等哈希落库，并向订阅方广播
func (s *ReconcileService) ReconcileOrganization(ctx context.Context, orgID, chainID string) (*reconcile.Summary, error) {
	schedules, err := s.scheduleRepo.GetByOrganization(ctx, orgID, chainID)
	if err != nil {
		return nil, errors.New(errors.ErrReconcileRun, "查询归属计划失败", err)
	}

	ledgerByAddr := make(map[string]*reconcile.LedgerEntry)
	states := make(map[string]reconcile.ClaimState)
	readErrs := make(map[string]error)

	for i := range schedules {
		schedule := &schedules[i]

		recipients, err := s.recipientRepo.GetBySchedule(ctx, schedule.ID)
		if err != nil {
			return nil, errors.New(errors.ErrReconcileRun, "查询受益人失败", err)
		}

		for _, rec := range recipients {
			addr := reconcile.NormalizeAddress(rec.WalletAddress)
			entry, ok := ledgerByAddr[addr]
			if !ok {
				entry = &reconcile.LedgerEntry{
					WalletAddress: addr,
					Name:          rec.Name,
					Email:         rec.Email,
					Allocation:    decimal.Zero,
					Withdrawn:     decimal.Zero,
				}
				ledgerByAddr[addr] = entry
			}
			entry.Allocation = entry.Allocation.Add(parseLedgerAmount(rec.Allocation, "allocation", addr))
			entry.Withdrawn = entry.Withdrawn.Add(parseLedgerAmount(rec.Withdrawn, "withdrawn", addr))
		}

		if !schedule.IsDeployed() {
			continue
		}

		s.readDeployedSchedule(ctx, chainID, schedule, recipients, states, readErrs)
	}

	ledger := make([]reconcile.LedgerEntry, 0, len(ledgerByAddr))
	for _, entry := range ledgerByAddr {
		ledger = append(ledger, *entry)
	}

	summary := reconcile.Merge(reconcile.ReadResult{States: states, Errors: readErrs}, ledger)

	for _, warning := range summary.Warnings {
		logger.WithFields(map[string]interface{}{
			"org_id":   orgID,
			"chain_id": chainID,
		}).Warn("对账警告: ", warning)
	}

	if err := s.persistRun(ctx, orgID, chainID, &summary); err != nil {
		logger.Error("保存对账结果失败:", err)
	}

	s.bus.Publish(events.TypeReconcileCompleted, &summary)

	return &summary, nil
}

// parseLedgerAmount 解析台账中的金额字符串
// 解析失败按零处理并告警，脏数据不会无声地缩小台账合计
func parseLedgerAmount(raw, field, wallet string) decimal.Decimal {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"wallet": wallet,
			"field":  field,
			"value":  raw,
		}).Warn("台账金额格式不合法，按零处理")
		return decimal.Zero
	}
	return amount
}

// readDeployedSchedule 批量读取单个已部署计划的链上状态
// 同一地址跨多个计划时读数累加
func (s *ReconcileService) readDeployedSchedule(
	ctx context.Context,
	chainID string,
	schedule *models.VestingSchedule,
	recipients []models.Recipient,
	states map[string]reconcile.ClaimState,
	readErrs map[string]error,
) {
	addresses := make([]common.Address, 0, len(recipients))
	for _, rec := range recipients {
		addresses = append(addresses, common.HexToAddress(rec.WalletAddress))
	}
	if len(addresses) == 0 {
		return
	}

	client, ok := s.clients[chainID]
	if !ok {
		err := errors.New(errors.ErrReconcileUnavail, "链客户端未登记: "+chainID, nil)
		for _, addr := range addresses {
			readErrs[reconcile.NormalizeAddress(addr.Hex())] = err
		}
		return
	}

	readTimeout := time.Duration(s.cfg.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	reads, err := client.BatchReadClaims(readCtx, common.HexToAddress(schedule.ContractAddress), addresses)
	if err != nil {
		// 传输层失败只影响本计划的地址，其余计划继续对账
		logger.WithFields(map[string]interface{}{
			"schedule_id": schedule.ID,
			"contract":    schedule.ContractAddress,
		}).Error("批量合约读取失败:", err)
		for _, addr := range addresses {
			readErrs[reconcile.NormalizeAddress(addr.Hex())] = err
		}
		return
	}

	for _, read := range reads {
		addr := reconcile.NormalizeAddress(read.Address.Hex())
		if read.Err != nil {
			readErrs[addr] = read.Err
			continue
		}

		state := states[addr]
		state.Allocation = state.Allocation.Add(amountFromWei(read.Allocation))
		state.Withdrawn = state.Withdrawn.Add(amountFromWei(read.Withdrawn))
		state.Unclaimed = state.Unclaimed.Add(amountFromWei(read.Unclaimed))
		states[addr] = state
		delete(readErrs, addr)
	}
}

// persistRun 将对账结果以幂等哈希落库并清理历史记录
func (s *ReconcileService) persistRun(ctx context.Context, orgID, chainID string, summary *reconcile.Summary) error {
	var blockNumber int64
	if client, ok := s.clients[chainID]; ok {
		if latest, err := client.GetLatestBlockNumber(ctx); err == nil {
			blockNumber = latest
		}
	}

	hash := s.runRepo.GenerateHash(orgID, chainID, blockNumber)
	exists, err := s.runRepo.ExistsByHash(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	var data models.JSONB
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}

	run := &models.ReconciliationRun{
		OrganizationID:   orgID,
		ChainID:          chainID,
		BlockNumber:      blockNumber,
		RunHash:          hash,
		Summary:          data,
		UnavailableCount: summary.UnavailableCount,
		WarningCount:     len(summary.Warnings),
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		return err
	}

	return s.runRepo.Prune(ctx, orgID, chainID, s.cfg.SnapshotKeep)
}

// GetLatestRun 获取组织最近一次对账结果
func (s *ReconcileService) GetLatestRun(ctx context.Context, orgID, chainID string) (*models.ReconciliationRun, error) {
	return s.runRepo.GetLatest(ctx, orgID, chainID)
}
