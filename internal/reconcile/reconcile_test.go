package reconcile

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func findRow(t *testing.T, summary Summary, addr string) RecipientTotal {
	t.Helper()
	for _, row := range summary.Recipients {
		if row.WalletAddress == addr {
			return row
		}
	}
	t.Fatalf("recipient %s not found in summary", addr)
	return RecipientTotal{}
}

func TestMerge_OnChainWins(t *testing.T) {
	// 链上读数与台账不一致时以链上为准
	ledger := []LedgerEntry{
		{WalletAddress: "0xAbC1", Name: "Alice", Allocation: d("900"), Withdrawn: d("100")},
	}
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xabc1": {Allocation: d("1000"), Withdrawn: d("400"), Unclaimed: d("200")},
		},
	}

	summary := Merge(onChain, ledger)
	require.Len(t, summary.Recipients, 1)

	row := summary.Recipients[0]
	assert.Equal(t, StatusReconciled, row.Status)
	assert.Equal(t, "Alice", row.Name)
	assert.True(t, row.Allocation.Equal(d("1000")))
	assert.True(t, row.Withdrawn.Equal(d("400")))
	assert.True(t, row.Unclaimed.Equal(d("200")))
	assert.True(t, row.Locked.Equal(d("400")))
	assert.Empty(t, summary.Warnings)
}

func TestMerge_LedgerOnlyIsPending(t *testing.T) {
	// 计划尚未部署：台账是唯一来源
	ledger := []LedgerEntry{
		{WalletAddress: "0xdef2", Name: "Bob", Allocation: d("500"), Withdrawn: d("0")},
	}

	summary := Merge(ReadResult{}, ledger)
	require.Len(t, summary.Recipients, 1)

	row := summary.Recipients[0]
	assert.Equal(t, StatusPending, row.Status)
	assert.True(t, row.Allocation.Equal(d("500")))
	assert.True(t, row.Unclaimed.IsZero())
	assert.True(t, row.Locked.Equal(d("500")))
}

func TestMerge_OnChainOnlyProducesWarning(t *testing.T) {
	// 链上有领取记录但台账缺失：保留行并产生警告，不丢弃数据
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0x9f31": {Allocation: d("1000"), Withdrawn: d("400"), Unclaimed: d("200")},
		},
	}

	summary := Merge(onChain, nil)
	require.Len(t, summary.Recipients, 1)

	row := summary.Recipients[0]
	assert.Equal(t, StatusReconciled, row.Status)
	assert.True(t, row.Locked.Equal(d("400")))

	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "0x9f31")
	assert.Contains(t, summary.Warnings[0], "no off-chain ledger entry")
}

func TestMerge_PartialReadFailure(t *testing.T) {
	// 批量读取部分失败：失败地址标记为 unavailable 并保留台账数字，其余正常对账
	ledger := []LedgerEntry{
		{WalletAddress: "0xaaa1", Allocation: d("1000"), Withdrawn: d("250")},
		{WalletAddress: "0xbbb2", Allocation: d("2000"), Withdrawn: d("0")},
		{WalletAddress: "0xccc3", Allocation: d("3000"), Withdrawn: d("500")},
	}
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xaaa1": {Allocation: d("1000"), Withdrawn: d("300"), Unclaimed: d("100")},
			"0xccc3": {Allocation: d("3000"), Withdrawn: d("500"), Unclaimed: d("0")},
		},
		Errors: map[string]error{
			"0xbbb2": errors.New("execution reverted"),
		},
	}

	summary := Merge(onChain, ledger)
	require.Len(t, summary.Recipients, 3)
	assert.Equal(t, 1, summary.UnavailableCount)

	reconciled := findRow(t, summary, "0xaaa1")
	assert.Equal(t, StatusReconciled, reconciled.Status)
	assert.True(t, reconciled.Withdrawn.Equal(d("300")))

	unavailable := findRow(t, summary, "0xbbb2")
	assert.Equal(t, StatusUnavailable, unavailable.Status)
	assert.True(t, unavailable.Allocation.Equal(d("2000")))
	assert.True(t, unavailable.Unclaimed.IsZero())

	other := findRow(t, summary, "0xccc3")
	assert.Equal(t, StatusReconciled, other.Status)
}

// 链上读数的键未归一化时匹配同样生效，链上数字不会被降级为台账数字
func TestMerge_MixedCaseOnChainKeys(t *testing.T) {
	ledger := []LedgerEntry{
		{WalletAddress: "0xabc1", Allocation: d("900"), Withdrawn: d("100")},
		{WalletAddress: "0xdef2", Allocation: d("500"), Withdrawn: d("0")},
	}
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xAbC1": {Allocation: d("1000"), Withdrawn: d("400"), Unclaimed: d("200")},
		},
		Errors: map[string]error{
			"0xDeF2": errors.New("timeout"),
		},
	}

	summary := Merge(onChain, ledger)
	require.Len(t, summary.Recipients, 2)
	assert.Empty(t, summary.Warnings)

	reconciled := findRow(t, summary, "0xabc1")
	assert.Equal(t, StatusReconciled, reconciled.Status)
	assert.True(t, reconciled.Allocation.Equal(d("1000")))
	assert.True(t, reconciled.Withdrawn.Equal(d("400")))

	unavailable := findRow(t, summary, "0xdef2")
	assert.Equal(t, StatusUnavailable, unavailable.Status)
	assert.Equal(t, 1, summary.UnavailableCount)
}

func TestMerge_CaseInsensitiveAddressMatch(t *testing.T) {
	ledger := []LedgerEntry{
		{WalletAddress: "0xAbCdEf", Allocation: d("100"), Withdrawn: d("0")},
	}
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xabcdef": {Allocation: d("100"), Withdrawn: d("10"), Unclaimed: d("5")},
		},
	}

	summary := Merge(onChain, ledger)
	require.Len(t, summary.Recipients, 1)
	assert.Equal(t, StatusReconciled, summary.Recipients[0].Status)
	assert.Empty(t, summary.Warnings)
}

func TestMerge_LockedClampedToZero(t *testing.T) {
	// 过期读数可能让 withdrawn+unclaimed 超过 allocation，locked 不出现负数
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xfff9": {Allocation: d("100"), Withdrawn: d("80"), Unclaimed: d("30")},
		},
	}
	ledger := []LedgerEntry{
		{WalletAddress: "0xfff9", Allocation: d("100")},
	}

	summary := Merge(onChain, ledger)
	require.Len(t, summary.Recipients, 1)
	assert.True(t, summary.Recipients[0].Locked.IsZero())
}

func TestMerge_Totals(t *testing.T) {
	ledger := []LedgerEntry{
		{WalletAddress: "0xa", Allocation: d("100"), Withdrawn: d("10")},
		{WalletAddress: "0xb", Allocation: d("200"), Withdrawn: d("0")},
	}
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xa": {Allocation: d("100"), Withdrawn: d("20"), Unclaimed: d("30")},
		},
	}

	summary := Merge(onChain, ledger)
	assert.True(t, summary.TotalAllocation.Equal(d("300")))
	assert.True(t, summary.TotalWithdrawn.Equal(d("20")))
	assert.True(t, summary.TotalUnclaimed.Equal(d("30")))
	// 0xa: 100-20-30=50; 0xb: 200-0-0=200
	assert.True(t, summary.TotalLocked.Equal(d("250")))
}

func TestMerge_OrphanWarningsSorted(t *testing.T) {
	onChain := ReadResult{
		States: map[string]ClaimState{
			"0xccc": {Allocation: d("1")},
			"0xaaa": {Allocation: d("1")},
			"0xbbb": {Allocation: d("1")},
		},
	}

	summary := Merge(onChain, nil)
	require.Len(t, summary.Warnings, 3)
	assert.Contains(t, summary.Warnings[0], "0xaaa")
	assert.Contains(t, summary.Warnings[1], "0xbbb")
	assert.Contains(t, summary.Warnings[2], "0xccc")
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xAbCdEf "))
	assert.Equal(t, "0xabcdef", NormalizeAddress("0xabcdef"))
}
