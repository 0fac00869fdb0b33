package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/polartar/vtvl-app-sub002/internal/config"
	"github.com/polartar/vtvl-app-sub002/internal/events"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/internal/scheduler"
	"github.com/polartar/vtvl-app-sub002/internal/service"
	"github.com/polartar/vtvl-app-sub002/pkg/errors"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func parsePagination(r *http.Request) (page, pageSize, offset int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize, (page - 1) * pageSize
}

// createStatusCode 配置校验失败返回422，落库等服务端失败返回500
func createStatusCode(err error) int {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		switch appErr.Code {
		case errors.ErrInvalidDuration, errors.ErrDegenerateSchedule, errors.ErrScheduleValidation:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// parseAt 解析快照时刻，缺省为当前时间
func parseAt(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("at"); raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(unix, 0)
		}
	}
	return time.Now()
}

type ScheduleHandler struct {
	scheduleSvc *service.ScheduleService
}

func NewScheduleHandler(scheduleSvc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// Schedules 处理 /api/schedules 的创建与列表
func (h *ScheduleHandler) Schedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSchedule(w, r)
	case http.MethodGet:
		h.listSchedules(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ScheduleHandler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var input service.CreateScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	schedule, err := h.scheduleSvc.CreateSchedule(r.Context(), input)
	if err != nil {
		writeError(w, createStatusCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, schedule)
}

func (h *ScheduleHandler) listSchedules(w http.ResponseWriter, r *http.Request) {
	chainID := r.URL.Query().Get("chain_id")
	if chainID == "" {
		writeError(w, http.StatusBadRequest, "chain_id is required")
		return
	}

	page, pageSize, offset := parsePagination(r)

	ctx := r.Context()
	schedules, err := h.scheduleSvc.ListSchedules(ctx, chainID, offset, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list schedules: "+err.Error())
		return
	}

	total, err := h.scheduleSvc.CountSchedules(ctx, chainID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count schedules: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    schedules,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// ScheduleDetail 处理 /api/schedules/{id}[/timeline|/snapshot|/recipients|/deploy]
func (h *ScheduleHandler) ScheduleDetail(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/schedules/{id}")
		return
	}

	scheduleID := pathParts[2]
	if scheduleID == "" {
		writeError(w, http.StatusBadRequest, "schedule id is required")
		return
	}

	sub := ""
	if len(pathParts) > 3 {
		sub = pathParts[3]
	}

	switch sub {
	case "":
		h.getSchedule(w, r, scheduleID)
	case "timeline":
		h.getTimeline(w, r, scheduleID)
	case "snapshot":
		h.getSnapshot(w, r, scheduleID)
	case "recipients":
		h.listRecipients(w, r, scheduleID)
	case "deploy":
		h.markDeployed(w, r, scheduleID)
	default:
		writeError(w, http.StatusNotFound, "unknown resource: "+sub)
	}
}

func (h *ScheduleHandler) getSchedule(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	schedule, err := h.scheduleSvc.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get schedule: "+err.Error())
		return
	}
	if schedule == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	writeJSON(w, http.StatusOK, schedule)
}

func (h *ScheduleHandler) getTimeline(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	timeline, err := h.scheduleSvc.GetTimeline(r.Context(), scheduleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute timeline: "+err.Error())
		return
	}
	if timeline == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scheduleId": scheduleID,
		"events":     timeline,
	})
}

func (h *ScheduleHandler) getSnapshot(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	at := parseAt(r)

	ctx := r.Context()
	wallet := r.URL.Query().Get("wallet")

	if wallet != "" {
		snapshot, err := h.scheduleSvc.GetRecipientSnapshot(ctx, scheduleID, wallet, at)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute snapshot: "+err.Error())
			return
		}
		if snapshot == nil {
			writeError(w, http.StatusNotFound, "recipient not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"scheduleId": scheduleID,
			"wallet":     wallet,
			"at":         at.Unix(),
			"snapshot":   snapshot,
		})
		return
	}

	snapshot, err := h.scheduleSvc.GetScheduleSnapshot(ctx, scheduleID, at)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute snapshot: "+err.Error())
		return
	}
	if snapshot == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scheduleId": scheduleID,
		"at":         at.Unix(),
		"snapshot":   snapshot,
	})
}

func (h *ScheduleHandler) listRecipients(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	page, pageSize, offset := parsePagination(r)

	ctx := r.Context()
	recipients, err := h.scheduleSvc.ListRecipients(ctx, scheduleID, offset, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recipients: "+err.Error())
		return
	}

	total, err := h.scheduleSvc.CountRecipients(ctx, scheduleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count recipients: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    recipients,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (h *ScheduleHandler) markDeployed(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ContractAddress string `json:"contractAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContractAddress == "" {
		writeError(w, http.StatusBadRequest, "contractAddress is required")
		return
	}

	if err := h.scheduleSvc.MarkDeployed(r.Context(), scheduleID, body.ContractAddress); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark deployed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deployed"})
}

type RecipientHandler struct {
	recipientRepo  *repository.RecipientRepository
	withdrawalRepo *repository.WithdrawalRepository
}

func NewRecipientHandler(recipientRepo *repository.RecipientRepository, withdrawalRepo *repository.WithdrawalRepository) *RecipientHandler {
	return &RecipientHandler{recipientRepo: recipientRepo, withdrawalRepo: withdrawalRepo}
}

// GetPortfolio 领取门户视图：/api/recipients/{chain_id}/{address}
func (h *RecipientHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/recipients/{chain_id}/{address}")
		return
	}

	chainID := pathParts[2]
	walletAddress := pathParts[3]

	if chainID == "" || walletAddress == "" {
		writeError(w, http.StatusBadRequest, "chain_id and address are required")
		return
	}

	ctx := r.Context()
	recipients, err := h.recipientRepo.GetByWalletAcrossSchedules(ctx, chainID, walletAddress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get recipient records: "+err.Error())
		return
	}

	withdrawals, err := h.withdrawalRepo.GetByWallet(ctx, chainID, walletAddress, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get withdrawals: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chain":       chainID,
		"address":     walletAddress,
		"allocations": recipients,
		"withdrawals": withdrawals,
	})
}

type ReconcileHandler struct {
	reconcileSvc   *service.ReconcileService
	reconScheduler *scheduler.ReconcileScheduler
}

func NewReconcileHandler(reconcileSvc *service.ReconcileService, reconScheduler *scheduler.ReconcileScheduler) *ReconcileHandler {
	return &ReconcileHandler{reconcileSvc: reconcileSvc, reconScheduler: reconScheduler}
}

// GetSummary 获取组织最近一次对账结果：/api/reconcile/{org_id}?chain_id=
func (h *ReconcileHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 {
		writeError(w, http.StatusBadRequest, "invalid path format, expected /api/reconcile/{org_id}")
		return
	}

	orgID := pathParts[2]
	chainID := r.URL.Query().Get("chain_id")
	if orgID == "" || chainID == "" {
		writeError(w, http.StatusBadRequest, "org_id and chain_id are required")
		return
	}

	run, err := h.reconcileSvc.GetLatestRun(r.Context(), orgID, chainID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reconciliation: "+err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no reconciliation run found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// TriggerReconcile 手动触发对账：POST /api/reconcile/run
func (h *ReconcileHandler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		OrganizationID string `json:"organizationId"`
		ChainID        string `json:"chainId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrganizationID == "" || body.ChainID == "" {
		writeError(w, http.StatusBadRequest, "organizationId and chainId are required")
		return
	}

	if err := h.reconScheduler.TriggerManualReconciliation(r.Context(), body.OrganizationID, body.ChainID); err != nil {
		writeError(w, http.StatusInternalServerError, "reconciliation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type WithdrawalHandler struct {
	withdrawalSvc *service.WithdrawalService
}

func NewWithdrawalHandler(withdrawalSvc *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

func (h *WithdrawalHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	withdrawals, err := h.withdrawalSvc.GetRecentWithdrawals(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get withdrawals: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": withdrawals,
	})
}

type StatsHandler struct {
	scheduleRepo   *repository.ScheduleRepository
	withdrawalRepo *repository.WithdrawalRepository
	bus            *events.Bus
	chains         []config.ChainConfig
}

func NewStatsHandler(
	scheduleRepo *repository.ScheduleRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	bus *events.Bus,
	chains []config.ChainConfig,
) *StatsHandler {
	return &StatsHandler{
		scheduleRepo:   scheduleRepo,
		withdrawalRepo: withdrawalRepo,
		bus:            bus,
		chains:         chains,
	}
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()

	scheduleCounts := make(map[string]int64)
	for _, chain := range h.chains {
		count, err := h.scheduleRepo.CountByChain(ctx, chain.ID)
		if err != nil {
			continue
		}
		scheduleCounts[chain.ID] = count
	}

	totalWithdrawals, err := h.withdrawalRepo.CountAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count withdrawals: "+err.Error())
		return
	}

	days := 7
	dailyWithdrawals, err := h.withdrawalRepo.GetDailyWithdrawalCounts(ctx, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get daily counts: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedules":        scheduleCounts,
		"totalWithdrawals": totalWithdrawals,
		"dailyWithdrawals": dailyWithdrawals,
		"subscribers":      h.bus.SubscriberCount(),
	})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
