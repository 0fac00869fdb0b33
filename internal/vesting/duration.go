package vesting

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// 固定的时长常量（秒）
// 月/季度/年不按日历计算，与已部署合约的时间参数保持一致，不可修改
const (
	SecondsPerMinute  int64 = 60
	SecondsPerHour    int64 = 3600
	SecondsPerDay     int64 = 86400
	SecondsPerWeek    int64 = 604800
	SecondsPerMonth   int64 = 2628000
	SecondsPerQuarter int64 = 7884000
	SecondsPerYear    int64 = 31536000
)

const (
	CliffNone = "no-cliff"

	FrequencyContinuous = "continuous"

	// ResolveFrequencySeconds 对 continuous 返回的哨兵值
	ContinuousSeconds int64 = 0
)

var ErrInvalidDurationToken = errors.New("invalid duration token")

var unitSeconds = map[string]int64{
	"minute": SecondsPerMinute,
	"hour":   SecondsPerHour,
	"day":    SecondsPerDay,
	"week":   SecondsPerWeek,
	"month":  SecondsPerMonth,
	"year":   SecondsPerYear,
}

var (
	cliffTokenRegex = regexp.MustCompile(`^(\d+)-(hour|day|week|month|year)s?$`)
	everyTokenRegex = regexp.MustCompile(`^every-(\d+)-(minute|hour|day|week|month|year)s?$`)
)

// ResolveCliffSeconds 解析锁定期时长标记为秒数
// 支持 no-cliff 和 N-unit 形式（如 6-months、1-hour、10-years）
func ResolveCliffSeconds(token string) (int64, error) {
	if token == CliffNone {
		return 0, nil
	}

	matches := cliffTokenRegex.FindStringSubmatch(token)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDurationToken, token)
	}

	count, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || count <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDurationToken, token)
	}

	return count * unitSeconds[matches[2]], nil
}

// ResolveFrequencySeconds 解析释放频率标记为秒数
// continuous 返回 ContinuousSeconds(0)，由评估器按线性累积处理
func ResolveFrequencySeconds(token string) (int64, error) {
	switch token {
	case FrequencyContinuous:
		return ContinuousSeconds, nil
	case "minute":
		return SecondsPerMinute, nil
	case "hourly":
		return SecondsPerHour, nil
	case "daily":
		return SecondsPerDay, nil
	case "weekly":
		return SecondsPerWeek, nil
	case "monthly":
		return SecondsPerMonth, nil
	case "quarterly":
		return SecondsPerQuarter, nil
	case "yearly":
		return SecondsPerYear, nil
	}

	matches := everyTokenRegex.FindStringSubmatch(token)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDurationToken, token)
	}

	count, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || count <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDurationToken, token)
	}

	return count * unitSeconds[matches[2]], nil
}
