package repository

import (
	"context"
	"errors"

	"github.com/polartar/vtvl-app-sub002/internal/models"

	"gorm.io/gorm"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.VestingSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

// GetByID 获取指定归属计划
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.VestingSchedule, error) {
	var schedule models.VestingSchedule
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&schedule).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &schedule, err
}

// GetByOrganization 获取组织在指定链上的全部计划
func (r *ScheduleRepository) GetByOrganization(ctx context.Context, orgID, chainID string) ([]models.VestingSchedule, error) {
	var schedules []models.VestingSchedule
	query := r.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if chainID != "" {
		query = query.Where("chain_id = ?", chainID)
	}
	err := query.Find(&schedules).Error
	return schedules, err
}

// GetByContractAddress 按链上合约地址查找已部署的计划
func (r *ScheduleRepository) GetByContractAddress(ctx context.Context, chainID, contractAddress string) (*models.VestingSchedule, error) {
	var schedule models.VestingSchedule
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND LOWER(contract_address) = LOWER(?)", chainID, contractAddress).
		First(&schedule).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &schedule, err
}

// GetDeployedByChain 获取链上已部署的计划，提现监听器据此确定要过滤的合约地址
func (r *ScheduleRepository) GetDeployedByChain(ctx context.Context, chainID string) ([]models.VestingSchedule, error) {
	var schedules []models.VestingSchedule
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND status = ? AND contract_address <> ''", chainID, models.ScheduleStatusDeployed).
		Find(&schedules).Error
	return schedules, err
}

// MarkDeployed 记录计划的链上合约地址并置为已部署
// 部署后链上数据成为分配额与提现额的权威来源
func (r *ScheduleRepository) MarkDeployed(ctx context.Context, id, contractAddress string) error {
	return r.db.WithContext(ctx).
		Model(&models.VestingSchedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"contract_address": contractAddress,
			"status":           models.ScheduleStatusDeployed,
		}).Error
}

// GetByChainPaginated 分页获取计划列表
func (r *ScheduleRepository) GetByChainPaginated(ctx context.Context, chainID string, offset, limit int) ([]models.VestingSchedule, error) {
	var schedules []models.VestingSchedule
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Offset(offset).
		Limit(limit).
		Find(&schedules).Error
	return schedules, err
}

// GetOrganizations 获取链上存在归属计划的全部组织
func (r *ScheduleRepository) GetOrganizations(ctx context.Context, chainID string) ([]string, error) {
	var orgs []string
	err := r.db.WithContext(ctx).
		Model(&models.VestingSchedule{}).
		Where("chain_id = ?", chainID).
		Distinct().
		Pluck("organization_id", &orgs).Error
	return orgs, err
}

func (r *ScheduleRepository) CountByChain(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VestingSchedule{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}
