package repository

import (
	"context"
	"errors"

	"github.com/polartar/vtvl-app-sub002/internal/models"

	"gorm.io/gorm"
)

type RecipientRepository struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) Create(ctx context.Context, recipient *models.Recipient) error {
	return r.db.WithContext(ctx).Create(recipient).Error
}

// GetByWallet 获取受益人在指定计划中的台账记录
func (r *RecipientRepository) GetByWallet(ctx context.Context, scheduleID, walletAddress string) (*models.Recipient, error) {
	var recipient models.Recipient
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND LOWER(wallet_address) = LOWER(?)", scheduleID, walletAddress).
		First(&recipient).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &recipient, err
}

// GetBySchedule 获取计划的全部受益人
func (r *RecipientRepository) GetBySchedule(ctx context.Context, scheduleID string) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Find(&recipients).Error
	return recipients, err
}

// GetBySchedulePaginated 分页获取受益人
func (r *RecipientRepository) GetBySchedulePaginated(ctx context.Context, scheduleID string, offset, limit int) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Offset(offset).
		Limit(limit).
		Find(&recipients).Error
	return recipients, err
}

func (r *RecipientRepository) CountBySchedule(ctx context.Context, scheduleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Recipient{}).
		Where("schedule_id = ?", scheduleID).
		Count(&count).Error
	return count, err
}

// UpdateWithdrawn 更新受益人已提现额
// withdrawn 只增不减，过期的链上读数不会回退已记录的值
func (r *RecipientRepository) UpdateWithdrawn(ctx context.Context, scheduleID, walletAddress, withdrawn string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE recipients
		SET withdrawn = ?, updated_at = NOW()
		WHERE schedule_id = ? AND LOWER(wallet_address) = LOWER(?)
			AND CAST(withdrawn AS DECIMAL(65,18)) <= CAST(? AS DECIMAL(65,18))
	`, withdrawn, scheduleID, walletAddress, withdrawn).Error
}

// GetByWalletAcrossSchedules 领取门户视图：受益人在某条链上的全部台账记录
func (r *RecipientRepository) GetByWalletAcrossSchedules(ctx context.Context, chainID, walletAddress string) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := r.db.WithContext(ctx).
		Joins("JOIN vesting_schedules ON vesting_schedules.id = recipients.schedule_id").
		Where("vesting_schedules.chain_id = ? AND LOWER(recipients.wallet_address) = LOWER(?)", chainID, walletAddress).
		Find(&recipients).Error
	return recipients, err
}
