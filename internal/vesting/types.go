package vesting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleConfig 一份归属计划的完整配置
// 链上激活后 StartTime 不可变更
type ScheduleConfig struct {
	StartTime        time.Time
	EndTime          *time.Time
	CliffDuration    string
	CliffAmount      decimal.Decimal
	ReleaseFrequency string
	TotalAmount      decimal.Decimal
}

// ReleaseEvent 单个释放点，由时间线计算器生成后不再修改
type ReleaseEvent struct {
	Timestamp         time.Time       `json:"timestamp"`
	IncrementalAmount decimal.Decimal `json:"incrementalAmount"`
	CumulativeAmount  decimal.Decimal `json:"cumulativeAmount"`
}

// Snapshot 按需重新计算的派生值，不做持久化
// 任意时刻满足 Vested + Locked == TotalAmount
type Snapshot struct {
	Vested    decimal.Decimal `json:"vested"`
	Claimable decimal.Decimal `json:"claimable"`
	Locked    decimal.Decimal `json:"locked"`
}

var (
	ErrEndTimeRequired   = errors.New("end time is required")
	ErrCliffExceedsTotal = errors.New("cliff amount exceeds total amount")
	ErrNonPositiveAmount = errors.New("total amount must be positive")
	ErrStartAfterEnd     = errors.New("start time must be before end time")
)

// Validate 在计划持久化之前校验配置
// 时长标记不合法或窗口对所选频率而言过短都会在这里被拒绝
func (c *ScheduleConfig) Validate() error {
	if _, err := ResolveCliffSeconds(c.CliffDuration); err != nil {
		return err
	}
	if _, err := ResolveFrequencySeconds(c.ReleaseFrequency); err != nil {
		return err
	}
	if !c.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveAmount, c.TotalAmount)
	}
	if c.CliffAmount.IsNegative() || c.CliffAmount.GreaterThan(c.TotalAmount) {
		return fmt.Errorf("%w: cliff=%s total=%s", ErrCliffExceedsTotal, c.CliffAmount, c.TotalAmount)
	}
	if c.EndTime == nil {
		return ErrEndTimeRequired
	}
	if !c.StartTime.Before(*c.EndTime) {
		return fmt.Errorf("%w: start=%s end=%s", ErrStartAfterEnd, c.StartTime, c.EndTime)
	}

	_, err := ComputeReleaseEvents(*c)
	return err
}

// CliffEnd 锁定期结束时刻；无锁定期时等于 StartTime
func (c *ScheduleConfig) CliffEnd() time.Time {
	cliffSeconds, err := ResolveCliffSeconds(c.CliffDuration)
	if err != nil {
		return c.StartTime
	}
	return c.StartTime.Add(time.Duration(cliffSeconds) * time.Second)
}
