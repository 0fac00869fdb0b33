package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RecipientStatus 对账后单个受益人的数据来源状态
type RecipientStatus string

const (
	// StatusReconciled 链上数据可用，以链上为准
	StatusReconciled RecipientStatus = "reconciled"
	// StatusPending 计划尚未部署上链，以链下台账为准
	StatusPending RecipientStatus = "pending"
	// StatusUnavailable 链上读取失败，展示待定状态而非清零
	StatusUnavailable RecipientStatus = "unavailable"
)

// ClaimState 链上合约对单个地址的权威读数
type ClaimState struct {
	Allocation decimal.Decimal
	Withdrawn  decimal.Decimal
	Unclaimed  decimal.Decimal
}

// ReadResult 一次批量链上读取的结果，部分失败合法
// Errors 中的地址读取失败，States 中缺席且无错误表示链上不存在该地址
type ReadResult struct {
	States map[string]ClaimState
	Errors map[string]error
}

// LedgerEntry 链下台账中一条受益人记录
// 部署前台账是分配额的权威来源，姓名邮箱等元数据始终来自台账
type LedgerEntry struct {
	WalletAddress string
	Name          string
	Email         string
	Allocation    decimal.Decimal
	Withdrawn     decimal.Decimal
}

// RecipientTotal 对账后单个受益人的合并视图
type RecipientTotal struct {
	WalletAddress string          `json:"walletAddress"`
	Name          string          `json:"name,omitempty"`
	Email         string          `json:"email,omitempty"`
	Status        RecipientStatus `json:"status"`
	Allocation    decimal.Decimal `json:"allocation"`
	Withdrawn     decimal.Decimal `json:"withdrawn"`
	Unclaimed     decimal.Decimal `json:"unclaimed"`
	Locked        decimal.Decimal `json:"locked"`
}

// Summary 对账汇总：逐受益人行、组织级合计与警告
type Summary struct {
	Recipients       []RecipientTotal `json:"recipients"`
	TotalAllocation  decimal.Decimal  `json:"totalAllocation"`
	TotalWithdrawn   decimal.Decimal  `json:"totalWithdrawn"`
	TotalUnclaimed   decimal.Decimal  `json:"totalUnclaimed"`
	TotalLocked      decimal.Decimal  `json:"totalLocked"`
	UnavailableCount int              `json:"unavailableCount"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// NormalizeAddress 钱包地址归一化，匹配一律不区分大小写
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Merge 合并链上读数与链下台账
// 合并策略：已部署计划以链上数字为准；仅存在于台账的地址视为待部署；
// 仅存在于链上的地址是数据同步缺陷，产生警告但不丢弃；
// 单个地址读取失败只影响该地址，其余地址正常对账
func Merge(onChain ReadResult, ledger []LedgerEntry) Summary {
	summary := Summary{
		TotalAllocation: decimal.Zero,
		TotalWithdrawn:  decimal.Zero,
		TotalUnclaimed:  decimal.Zero,
		TotalLocked:     decimal.Zero,
	}

	// 调用方传入的键不保证已归一化，匹配前统一处理
	states := make(map[string]ClaimState, len(onChain.States))
	for addr, state := range onChain.States {
		states[NormalizeAddress(addr)] = state
	}
	readErrs := make(map[string]error, len(onChain.Errors))
	for addr, err := range onChain.Errors {
		readErrs[NormalizeAddress(addr)] = err
	}

	seen := make(map[string]bool, len(ledger))

	for _, entry := range ledger {
		addr := NormalizeAddress(entry.WalletAddress)
		seen[addr] = true

		row := RecipientTotal{
			WalletAddress: addr,
			Name:          entry.Name,
			Email:         entry.Email,
		}

		if state, ok := states[addr]; ok {
			row.Status = StatusReconciled
			row.Allocation = state.Allocation
			row.Withdrawn = state.Withdrawn
			row.Unclaimed = state.Unclaimed
		} else if _, failed := readErrs[addr]; failed {
			row.Status = StatusUnavailable
			row.Allocation = entry.Allocation
			row.Withdrawn = entry.Withdrawn
			row.Unclaimed = decimal.Zero
			summary.UnavailableCount++
		} else {
			row.Status = StatusPending
			row.Allocation = entry.Allocation
			row.Withdrawn = entry.Withdrawn
			row.Unclaimed = decimal.Zero
		}

		row.Locked = lockedAmount(row.Allocation, row.Withdrawn, row.Unclaimed)
		summary.addRow(row)
	}

	// 链上存在但台账缺失的地址
	orphans := make([]string, 0)
	for addr := range states {
		if !seen[addr] {
			orphans = append(orphans, addr)
		}
	}
	sort.Strings(orphans)

	for _, addr := range orphans {
		state := states[addr]
		row := RecipientTotal{
			WalletAddress: addr,
			Status:        StatusReconciled,
			Allocation:    state.Allocation,
			Withdrawn:     state.Withdrawn,
			Unclaimed:     state.Unclaimed,
		}
		row.Locked = lockedAmount(row.Allocation, row.Withdrawn, row.Unclaimed)
		summary.addRow(row)
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("no off-chain ledger entry for %s", addr))
	}

	return summary
}

// lockedAmount = allocation − withdrawn − unclaimed，读数过期导致为负时钳制到零
func lockedAmount(allocation, withdrawn, unclaimed decimal.Decimal) decimal.Decimal {
	locked := allocation.Sub(withdrawn).Sub(unclaimed)
	if locked.IsNegative() {
		return decimal.Zero
	}
	return locked
}

func (s *Summary) addRow(row RecipientTotal) {
	s.Recipients = append(s.Recipients, row)
	s.TotalAllocation = s.TotalAllocation.Add(row.Allocation)
	s.TotalWithdrawn = s.TotalWithdrawn.Add(row.Withdrawn)
	s.TotalUnclaimed = s.TotalUnclaimed.Add(row.Unclaimed)
	s.TotalLocked = s.TotalLocked.Add(row.Locked)
}
