package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/polartar/vtvl-app-sub002/internal/events"
	"github.com/polartar/vtvl-app-sub002/internal/models"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/internal/vesting"
	"github.com/polartar/vtvl-app-sub002/pkg/errors"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

type ScheduleService struct {
	scheduleRepo  *repository.ScheduleRepository
	recipientRepo *repository.RecipientRepository
	bus           *events.Bus
}

func NewScheduleService(
	scheduleRepo *repository.ScheduleRepository,
	recipientRepo *repository.RecipientRepository,
	bus *events.Bus,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo:  scheduleRepo,
		recipientRepo: recipientRepo,
		bus:           bus,
	}
}

type RecipientInput struct {
	WalletAddress string `json:"walletAddress"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Allocation    string `json:"allocation"`
}

type CreateScheduleInput struct {
	OrganizationID   string           `json:"organizationId"`
	ChainID          string           `json:"chainId"`
	Name             string           `json:"name"`
	TokenAddress     string           `json:"tokenAddress"`
	StartTime        time.Time        `json:"startTime"`
	EndTime          *time.Time       `json:"endTime"`
	CliffDuration    string           `json:"cliffDuration"`
	CliffAmount      string           `json:"cliffAmount"`
	ReleaseFrequency string           `json:"releaseFrequency"`
	TotalAmount      string           `json:"totalAmount"`
	Recipients       []RecipientInput `json:"recipients"`
}

// CreateSchedule 校验并创建归属计划及其受益人台账
// 时长标记不合法或窗口对频率而言过短的配置在这里被拒绝，不会落库
func (s *ScheduleService) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*models.VestingSchedule, error) {
	cfg, err := buildConfig(input)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, validationError(err)
	}

	allocated := decimal.Zero
	for _, rec := range input.Recipients {
		allocation, err := decimal.NewFromString(rec.Allocation)
		if err != nil || !allocation.IsPositive() {
			return nil, errors.New(errors.ErrScheduleValidation,
				"受益人分配额必须为正数: "+rec.WalletAddress, err)
		}
		allocated = allocated.Add(allocation)
	}
	if allocated.GreaterThan(cfg.TotalAmount) {
		return nil, errors.New(errors.ErrScheduleValidation,
			"受益人分配总额超过计划总额", nil)
	}

	schedule := &models.VestingSchedule{
		ID:               uuid.NewString(),
		OrganizationID:   input.OrganizationID,
		ChainID:          input.ChainID,
		Name:             input.Name,
		TokenAddress:     input.TokenAddress,
		StartTime:        cfg.StartTime,
		EndTime:          cfg.EndTime,
		CliffDuration:    cfg.CliffDuration,
		CliffAmount:      cfg.CliffAmount.String(),
		ReleaseFrequency: cfg.ReleaseFrequency,
		TotalAmount:      cfg.TotalAmount.String(),
		Status:           models.ScheduleStatusDraft,
	}

	if err := s.scheduleRepo.Create(ctx, schedule); err != nil {
		return nil, errors.New(errors.ErrScheduleStore, "保存归属计划失败", err)
	}

	for _, rec := range input.Recipients {
		recipient := &models.Recipient{
			ScheduleID:    schedule.ID,
			WalletAddress: rec.WalletAddress,
			Name:          rec.Name,
			Email:         rec.Email,
			Allocation:    rec.Allocation,
			Withdrawn:     "0",
		}
		if err := s.recipientRepo.Create(ctx, recipient); err != nil {
			return nil, errors.New(errors.ErrScheduleStore,
				"保存受益人失败: "+rec.WalletAddress, err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"schedule_id": schedule.ID,
		"org_id":      schedule.OrganizationID,
		"chain_id":    schedule.ChainID,
		"recipients":  len(input.Recipients),
	}).Info("归属计划已创建")

	s.bus.Publish(events.TypeScheduleCreated, schedule)

	return schedule, nil
}

// MarkDeployed 登记计划的链上合约地址
func (s *ScheduleService) MarkDeployed(ctx context.Context, scheduleID, contractAddress string) error {
	if err := s.scheduleRepo.MarkDeployed(ctx, scheduleID, contractAddress); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"schedule_id": scheduleID,
		"contract":    contractAddress,
	}).Info("归属计划已部署")

	s.bus.Publish(events.TypeScheduleDeployed, scheduleID)
	return nil
}

// GetSchedule 获取指定归属计划
func (s *ScheduleService) GetSchedule(ctx context.Context, id string) (*models.VestingSchedule, error) {
	return s.scheduleRepo.GetByID(ctx, id)
}

// GetTimeline 获取计划的完整释放时间线
func (s *ScheduleService) GetTimeline(ctx context.Context, id string) ([]vesting.ReleaseEvent, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil || schedule == nil {
		return nil, err
	}

	cfg, err := configFromModel(schedule)
	if err != nil {
		return nil, err
	}

	return vesting.ComputeReleaseEvents(cfg)
}

// GetScheduleSnapshot 计算计划级归属快照
// withdrawn 为全部受益人已提现额之和
func (s *ScheduleService) GetScheduleSnapshot(ctx context.Context, id string, at time.Time) (*vesting.Snapshot, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil || schedule == nil {
		return nil, err
	}

	cfg, err := configFromModel(schedule)
	if err != nil {
		return nil, err
	}

	eventsList, err := vesting.ComputeReleaseEvents(cfg)
	if err != nil {
		return nil, err
	}

	recipients, err := s.recipientRepo.GetBySchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	withdrawn := decimal.Zero
	for _, rec := range recipients {
		amount, err := decimal.NewFromString(rec.Withdrawn)
		if err != nil {
			continue
		}
		withdrawn = withdrawn.Add(amount)
	}

	snapshot := vesting.Evaluate(cfg, eventsList, withdrawn, at)
	return &snapshot, nil
}

// GetRecipientSnapshot 计算单个受益人的归属快照
// 受益人份额按 allocation/totalAmount 等比缩放整个时间线
func (s *ScheduleService) GetRecipientSnapshot(ctx context.Context, scheduleID, walletAddress string, at time.Time) (*vesting.Snapshot, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, scheduleID)
	if err != nil || schedule == nil {
		return nil, err
	}

	recipient, err := s.recipientRepo.GetByWallet(ctx, scheduleID, walletAddress)
	if err != nil || recipient == nil {
		return nil, err
	}

	cfg, err := configFromModel(schedule)
	if err != nil {
		return nil, err
	}

	allocation, err := decimal.NewFromString(recipient.Allocation)
	if err != nil {
		return nil, errors.New(errors.ErrScheduleValidation, "受益人分配额格式不合法", err)
	}
	withdrawn, err := decimal.NewFromString(recipient.Withdrawn)
	if err != nil {
		withdrawn = decimal.Zero
	}

	scaled := cfg
	scaled.TotalAmount = allocation
	scaled.CliffAmount = cfg.CliffAmount.Mul(allocation).DivRound(cfg.TotalAmount, tokenDecimals)

	eventsList, err := vesting.ComputeReleaseEvents(scaled)
	if err != nil {
		return nil, err
	}

	snapshot := vesting.Evaluate(scaled, eventsList, withdrawn, at)
	return &snapshot, nil
}

// ListRecipients 分页获取计划的受益人
func (s *ScheduleService) ListRecipients(ctx context.Context, scheduleID string, offset, limit int) ([]models.Recipient, error) {
	return s.recipientRepo.GetBySchedulePaginated(ctx, scheduleID, offset, limit)
}

func (s *ScheduleService) CountRecipients(ctx context.Context, scheduleID string) (int64, error) {
	return s.recipientRepo.CountBySchedule(ctx, scheduleID)
}

func (s *ScheduleService) ListSchedules(ctx context.Context, chainID string, offset, limit int) ([]models.VestingSchedule, error) {
	return s.scheduleRepo.GetByChainPaginated(ctx, chainID, offset, limit)
}

func (s *ScheduleService) CountSchedules(ctx context.Context, chainID string) (int64, error) {
	return s.scheduleRepo.CountByChain(ctx, chainID)
}

func buildConfig(input CreateScheduleInput) (vesting.ScheduleConfig, error) {
	total, err := decimal.NewFromString(input.TotalAmount)
	if err != nil {
		return vesting.ScheduleConfig{}, errors.New(errors.ErrScheduleValidation, "计划总额格式不合法", err)
	}

	cliffAmount := decimal.Zero
	if input.CliffAmount != "" {
		cliffAmount, err = decimal.NewFromString(input.CliffAmount)
		if err != nil {
			return vesting.ScheduleConfig{}, errors.New(errors.ErrScheduleValidation, "锁定期释放额格式不合法", err)
		}
	}

	return vesting.ScheduleConfig{
		StartTime:        input.StartTime,
		EndTime:          input.EndTime,
		CliffDuration:    input.CliffDuration,
		CliffAmount:      cliffAmount,
		ReleaseFrequency: input.ReleaseFrequency,
		TotalAmount:      total,
	}, nil
}

func configFromModel(schedule *models.VestingSchedule) (vesting.ScheduleConfig, error) {
	total, err := decimal.NewFromString(schedule.TotalAmount)
	if err != nil {
		return vesting.ScheduleConfig{}, errors.New(errors.ErrScheduleValidation, "计划总额格式不合法", err)
	}
	cliffAmount, err := decimal.NewFromString(schedule.CliffAmount)
	if err != nil {
		return vesting.ScheduleConfig{}, errors.New(errors.ErrScheduleValidation, "锁定期释放额格式不合法", err)
	}

	return vesting.ScheduleConfig{
		StartTime:        schedule.StartTime,
		EndTime:          schedule.EndTime,
		CliffDuration:    schedule.CliffDuration,
		CliffAmount:      cliffAmount,
		ReleaseFrequency: schedule.ReleaseFrequency,
		TotalAmount:      total,
	}, nil
}

// validationError 将核心校验错误映射为带错误码的应用错误
func validationError(err error) error {
	switch {
	case stderrors.Is(err, vesting.ErrInvalidDurationToken):
		return errors.New(errors.ErrInvalidDuration, "无法识别的时长标记", err)
	case stderrors.Is(err, vesting.ErrDegenerateSchedule):
		return errors.New(errors.ErrDegenerateSchedule, "计划窗口对所选释放频率而言过短", err)
	default:
		return errors.New(errors.ErrScheduleValidation, "归属计划配置不合法", err)
	}
}
