package vesting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func endAt(start time.Time, seconds int64) *time.Time {
	end := start.Add(time.Duration(seconds) * time.Second)
	return &end
}

func TestComputeReleaseEvents_CliffPlusMonthly(t *testing.T) {
	// 总额10000，6个月锁定期释放1000，其后12个月每月释放750
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, 18*SecondsPerMonth),
		CliffDuration:    "6-months",
		CliffAmount:      d("1000"),
		ReleaseFrequency: "monthly",
		TotalAmount:      d("10000"),
	}

	events, err := ComputeReleaseEvents(cfg)
	require.NoError(t, err)
	require.Len(t, events, 13)

	cliffEnd := start.Add(time.Duration(6*SecondsPerMonth) * time.Second)
	assert.True(t, events[0].Timestamp.Equal(cliffEnd))
	assert.True(t, events[0].IncrementalAmount.Equal(d("1000")))

	for i := 1; i <= 12; i++ {
		expected := cliffEnd.Add(time.Duration(int64(i)*SecondsPerMonth) * time.Second)
		assert.True(t, events[i].Timestamp.Equal(expected), "event %d timestamp", i)
		assert.True(t, events[i].IncrementalAmount.Equal(d("750")), "event %d amount", i)
	}

	last := events[len(events)-1]
	assert.True(t, last.CumulativeAmount.Equal(cfg.TotalAmount))
}

func TestComputeReleaseEvents_SumEqualsTotal(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		cfg  ScheduleConfig
	}{
		{
			name: "weekly no cliff",
			cfg: ScheduleConfig{
				StartTime:        start,
				EndTime:          endAt(start, 10*SecondsPerWeek),
				CliffDuration:    CliffNone,
				ReleaseFrequency: "weekly",
				TotalAmount:      d("12345.678901234567891234"),
			},
		},
		{
			name: "indivisible amount",
			cfg: ScheduleConfig{
				StartTime:        start,
				EndTime:          endAt(start, 3*SecondsPerDay),
				CliffDuration:    CliffNone,
				ReleaseFrequency: "daily",
				TotalAmount:      d("100"),
			},
		},
		{
			name: "cliff with quarterly",
			cfg: ScheduleConfig{
				StartTime:        start,
				EndTime:          endAt(start, SecondsPerYear+4*SecondsPerQuarter),
				CliffDuration:    "1-year",
				CliffAmount:      d("333.33"),
				ReleaseFrequency: "quarterly",
				TotalAmount:      d("1000"),
			},
		},
		{
			name: "continuous with cliff",
			cfg: ScheduleConfig{
				StartTime:        start,
				EndTime:          endAt(start, 2*SecondsPerYear),
				CliffDuration:    "6-months",
				CliffAmount:      d("500"),
				ReleaseFrequency: "continuous",
				TotalAmount:      d("5000"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := ComputeReleaseEvents(tt.cfg)
			require.NoError(t, err)
			require.NotEmpty(t, events)

			sum := decimal.Zero
			for _, ev := range events {
				sum = sum.Add(ev.IncrementalAmount)
			}
			assert.True(t, sum.Equal(tt.cfg.TotalAmount),
				"sum %s != total %s", sum, tt.cfg.TotalAmount)
			assert.True(t, events[len(events)-1].CumulativeAmount.Equal(tt.cfg.TotalAmount))
		})
	}
}

// 除不尽时最后一次释放吸收余数
func TestComputeReleaseEvents_RemainderAbsorbedByLast(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, 3*SecondsPerDay),
		CliffDuration:    CliffNone,
		ReleaseFrequency: "daily",
		TotalAmount:      d("100"),
	}

	events, err := ComputeReleaseEvents(cfg)
	require.NoError(t, err)
	require.Len(t, events, 3)

	perRelease := d("33.333333333333333333")
	assert.True(t, events[0].IncrementalAmount.Equal(perRelease))
	assert.True(t, events[1].IncrementalAmount.Equal(perRelease))
	assert.True(t, events[2].IncrementalAmount.Equal(d("33.333333333333333334")))
}

func TestComputeReleaseEvents_TimestampsStrictlyIncreasing(t *testing.T) {
	start := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, 24*SecondsPerMonth),
		CliffDuration:    "3-months",
		CliffAmount:      d("100"),
		ReleaseFrequency: "monthly",
		TotalAmount:      d("2200"),
	}

	events, err := ComputeReleaseEvents(cfg)
	require.NoError(t, err)

	for i := 1; i < len(events); i++ {
		assert.True(t, events[i].Timestamp.After(events[i-1].Timestamp),
			"event %d not after event %d", i, i-1)
	}
}

// 锁定期覆盖整个窗口时，锁定期释放与区间终点重合并合并为一个事件
func TestComputeReleaseEvents_MergesCoincidentEvents(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, 6*SecondsPerMonth),
		CliffDuration:    "6-months",
		CliffAmount:      d("400"),
		ReleaseFrequency: "continuous",
		TotalAmount:      d("1000"),
	}

	events, err := ComputeReleaseEvents(cfg)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IncrementalAmount.Equal(d("1000")))
	assert.True(t, events[0].CumulativeAmount.Equal(d("1000")))
}

func TestComputeReleaseEvents_Deterministic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, 7*SecondsPerWeek),
		CliffDuration:    "1-week",
		CliffAmount:      d("10.5"),
		ReleaseFrequency: "weekly",
		TotalAmount:      d("73.5"),
	}

	first, err := ComputeReleaseEvents(cfg)
	require.NoError(t, err)
	second, err := ComputeReleaseEvents(cfg)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Timestamp.Equal(second[i].Timestamp))
		assert.True(t, first[i].IncrementalAmount.Equal(second[i].IncrementalAmount))
		assert.True(t, first[i].CumulativeAmount.Equal(second[i].CumulativeAmount))
	}
}

// 窗口对所选频率而言过短：一个周期都放不下
func TestComputeReleaseEvents_DegenerateWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, SecondsPerDay),
		CliffDuration:    CliffNone,
		ReleaseFrequency: "monthly",
		TotalAmount:      d("1000"),
	}

	_, err := ComputeReleaseEvents(cfg)
	require.ErrorIs(t, err, ErrDegenerateSchedule)
}

// 锁定期超出计划窗口在创建时被拒绝，离散和连续频率一视同仁
func TestComputeReleaseEvents_CliffEndsAfterEndTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, frequency := range []string{"monthly", "continuous"} {
		t.Run(frequency, func(t *testing.T) {
			cfg := ScheduleConfig{
				StartTime:        start,
				EndTime:          endAt(start, SecondsPerMonth),
				CliffDuration:    "6-months",
				CliffAmount:      d("100"),
				ReleaseFrequency: frequency,
				TotalAmount:      d("1000"),
			}

			_, err := ComputeReleaseEvents(cfg)
			require.ErrorIs(t, err, ErrDegenerateSchedule)
			require.ErrorIs(t, cfg.Validate(), ErrDegenerateSchedule)
		})
	}
}

func TestComputeReleaseEvents_InvalidTokens(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cfg := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, SecondsPerYear),
		CliffDuration:    "6-fortnights",
		ReleaseFrequency: "monthly",
		TotalAmount:      d("1000"),
	}
	_, err := ComputeReleaseEvents(cfg)
	require.ErrorIs(t, err, ErrInvalidDurationToken)

	cfg.CliffDuration = CliffNone
	cfg.ReleaseFrequency = "sometimes"
	_, err = ComputeReleaseEvents(cfg)
	require.ErrorIs(t, err, ErrInvalidDurationToken)
}

func TestValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	valid := ScheduleConfig{
		StartTime:        start,
		EndTime:          endAt(start, SecondsPerYear),
		CliffDuration:    CliffNone,
		ReleaseFrequency: "monthly",
		TotalAmount:      d("1000"),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(c *ScheduleConfig)
		wantErr error
	}{
		{
			name:    "missing end time",
			mutate:  func(c *ScheduleConfig) { c.EndTime = nil },
			wantErr: ErrEndTimeRequired,
		},
		{
			name:    "start after end",
			mutate:  func(c *ScheduleConfig) { c.StartTime = c.EndTime.Add(time.Hour) },
			wantErr: ErrStartAfterEnd,
		},
		{
			name:    "zero total",
			mutate:  func(c *ScheduleConfig) { c.TotalAmount = decimal.Zero },
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "cliff exceeds total",
			mutate:  func(c *ScheduleConfig) { c.CliffDuration = "1-month"; c.CliffAmount = d("2000") },
			wantErr: ErrCliffExceedsTotal,
		},
		{
			name:    "negative cliff amount",
			mutate:  func(c *ScheduleConfig) { c.CliffAmount = d("-1") },
			wantErr: ErrCliffExceedsTotal,
		},
		{
			name:    "bad cliff token",
			mutate:  func(c *ScheduleConfig) { c.CliffDuration = "soon" },
			wantErr: ErrInvalidDurationToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}
