package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polartar/vtvl-app-sub002/internal/service"
	"github.com/polartar/vtvl-app-sub002/pkg/errors"
)

func TestCreateStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "invalid duration token",
			err:  errors.New(errors.ErrInvalidDuration, "无法识别的时长标记", nil),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "degenerate schedule",
			err:  errors.New(errors.ErrDegenerateSchedule, "计划窗口过短", nil),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "validation error",
			err:  errors.New(errors.ErrScheduleValidation, "配置不合法", nil),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "store error is not a client fault",
			err:  errors.New(errors.ErrScheduleStore, "保存归属计划失败", nil),
			want: http.StatusInternalServerError,
		},
		{
			name: "plain error",
			err:  assert.AnError,
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, createStatusCode(tt.err))
		})
	}
}

// 校验在触达存储层之前完成，不合法的配置直接返回422
func TestCreateSchedule_RejectsInvalidConfig(t *testing.T) {
	h := NewScheduleHandler(service.NewScheduleService(nil, nil, nil))

	body := `{
		"organizationId": "org-1",
		"chainId": "ethereum",
		"name": "test",
		"tokenAddress": "0x1111111111111111111111111111111111111111",
		"startTime": "2024-01-01T00:00:00Z",
		"endTime": "2025-01-01T00:00:00Z",
		"cliffDuration": "6-fortnights",
		"cliffAmount": "0",
		"releaseFrequency": "monthly",
		"totalAmount": "1000",
		"recipients": []
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Schedules(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateSchedule_MalformedBody(t *testing.T) {
	h := NewScheduleHandler(service.NewScheduleService(nil, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Schedules(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
