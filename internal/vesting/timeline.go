package vesting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// 释放份额的小数位数，与代币精度一致
const amountPrecision = 18

var ErrDegenerateSchedule = errors.New("schedule window too short for release frequency")

// ComputeReleaseEvents 由配置生成完整的释放时间线
// 纯函数：相同输入必然产生相同的事件序列，时间戳严格升序
// 最后一个周期性释放吸收整除余数，保证事件总额精确等于 TotalAmount
func ComputeReleaseEvents(cfg ScheduleConfig) ([]ReleaseEvent, error) {
	cliffSeconds, err := ResolveCliffSeconds(cfg.CliffDuration)
	if err != nil {
		return nil, err
	}
	frequencySeconds, err := ResolveFrequencySeconds(cfg.ReleaseFrequency)
	if err != nil {
		return nil, err
	}
	if cfg.EndTime == nil {
		return nil, ErrEndTimeRequired
	}

	cliffEnd := cfg.StartTime.Add(time.Duration(cliffSeconds) * time.Second)
	remaining := cfg.TotalAmount.Sub(cfg.CliffAmount)

	var events []ReleaseEvent
	if cfg.CliffDuration != CliffNone {
		events = append(events, ReleaseEvent{
			Timestamp:         cliffEnd,
			IncrementalAmount: cfg.CliffAmount,
		})
	}

	if frequencySeconds == ContinuousSeconds {
		// continuous 不逐秒枚举事件，只生成线性区间的终点
		// 区间内部的累积由评估器插值计算
		if cliffEnd.After(*cfg.EndTime) {
			return nil, fmt.Errorf("%w: cliff ends after end time", ErrDegenerateSchedule)
		}
		if remaining.IsPositive() {
			events = append(events, ReleaseEvent{
				Timestamp:         *cfg.EndTime,
				IncrementalAmount: remaining,
			})
		}
		return finalizeEvents(events), nil
	}

	remainingSeconds := int64(cfg.EndTime.Sub(cliffEnd) / time.Second)
	if remainingSeconds < 0 {
		return nil, fmt.Errorf("%w: cliff ends after end time", ErrDegenerateSchedule)
	}

	numReleases := remainingSeconds / frequencySeconds
	if numReleases == 0 {
		if remaining.IsPositive() {
			return nil, fmt.Errorf("%w: %d releases of %ds fit in %ds",
				ErrDegenerateSchedule, numReleases, frequencySeconds, remainingSeconds)
		}
		return finalizeEvents(events), nil
	}

	perRelease := remaining.
		DivRound(decimal.NewFromInt(numReleases), amountPrecision+1).
		Truncate(amountPrecision)

	released := decimal.Zero
	for i := int64(1); i <= numReleases; i++ {
		amount := perRelease
		if i == numReleases {
			amount = remaining.Sub(released)
		}
		events = append(events, ReleaseEvent{
			Timestamp:         cliffEnd.Add(time.Duration(i*frequencySeconds) * time.Second),
			IncrementalAmount: amount,
		})
		released = released.Add(amount)
	}

	return finalizeEvents(events), nil
}

// finalizeEvents 合并时间戳相同的事件并填充累计值
// 锁定期释放与首个周期释放重合时合并为一个事件
func finalizeEvents(events []ReleaseEvent) []ReleaseEvent {
	merged := events[:0]
	for _, ev := range events {
		if len(merged) > 0 && merged[len(merged)-1].Timestamp.Equal(ev.Timestamp) {
			merged[len(merged)-1].IncrementalAmount =
				merged[len(merged)-1].IncrementalAmount.Add(ev.IncrementalAmount)
			continue
		}
		merged = append(merged, ev)
	}

	cumulative := decimal.Zero
	for i := range merged {
		cumulative = cumulative.Add(merged[i].IncrementalAmount)
		merged[i].CumulativeAmount = cumulative
	}
	return merged
}
