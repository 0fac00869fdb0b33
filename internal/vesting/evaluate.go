package vesting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evaluate 计算给定时刻的归属快照
// 纯函数，可在任意频率下重复调用；饱和通过边界钳制精确达成，不依赖误差比较
func Evaluate(cfg ScheduleConfig, events []ReleaseEvent, withdrawn decimal.Decimal, now time.Time) Snapshot {
	vested := vestedAt(cfg, events, now)

	claimable := vested.Sub(withdrawn)
	if claimable.IsNegative() {
		claimable = decimal.Zero
	}

	locked := cfg.TotalAmount.Sub(vested)
	if locked.IsNegative() {
		locked = decimal.Zero
	}

	return Snapshot{
		Vested:    vested,
		Claimable: claimable,
		Locked:    locked,
	}
}

func vestedAt(cfg ScheduleConfig, events []ReleaseEvent, now time.Time) decimal.Decimal {
	if now.Before(cfg.StartTime) {
		return decimal.Zero
	}
	if cfg.EndTime != nil && !now.Before(*cfg.EndTime) {
		return cfg.TotalAmount
	}

	if cfg.ReleaseFrequency == FrequencyContinuous {
		return continuousVestedAt(cfg, now)
	}

	vested := decimal.Zero
	for _, ev := range events {
		if ev.Timestamp.After(now) {
			break
		}
		vested = ev.CumulativeAmount
	}
	if vested.GreaterThan(cfg.TotalAmount) {
		return cfg.TotalAmount
	}
	return vested
}

// continuousVestedAt 线性插值：锁定期内恰好为 CliffAmount，区间内按耗时比例累积
// 调用方已处理 now < StartTime 和 now >= EndTime 两种边界
func continuousVestedAt(cfg ScheduleConfig, now time.Time) decimal.Decimal {
	cliffEnd := cfg.CliffEnd()
	if now.Before(cliffEnd) {
		return cfg.CliffAmount
	}
	if cfg.EndTime == nil {
		return cfg.CliffAmount
	}

	duration := cfg.EndTime.Sub(cliffEnd)
	if duration <= 0 {
		return cfg.TotalAmount
	}

	remaining := cfg.TotalAmount.Sub(cfg.CliffAmount)
	elapsed := decimal.NewFromInt(int64(now.Sub(cliffEnd) / time.Second))
	total := decimal.NewFromInt(int64(duration / time.Second))

	accrued := remaining.Mul(elapsed).DivRound(total, amountPrecision)
	if accrued.GreaterThan(remaining) {
		accrued = remaining
	}

	return cfg.CliffAmount.Add(accrued)
}
