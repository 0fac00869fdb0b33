package repository

import (
	"context"
	"time"

	"github.com/polartar/vtvl-app-sub002/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, history *models.WithdrawalHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// GetByWallet 获取受益人的提现历史
func (r *WithdrawalRepository) GetByWallet(ctx context.Context, chainID, walletAddress string, limit int) ([]models.WithdrawalHistory, error) {
	var histories []models.WithdrawalHistory
	query := r.db.WithContext(ctx).
		Where("chain_id = ? AND LOWER(wallet_address) = LOWER(?)", chainID, walletAddress).
		Order("timestamp DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&histories).Error
	return histories, err
}

func (r *WithdrawalRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalHistory{}).
		Where("tx_hash = ?", txHash).
		Count(&count).Error
	return count > 0, err
}

func (r *WithdrawalRepository) GetRecent(ctx context.Context, limit int) ([]models.WithdrawalHistory, error) {
	var histories []models.WithdrawalHistory
	if limit <= 0 {
		limit = 10
	}
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&histories).Error
	return histories, err
}

func (r *WithdrawalRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalHistory{}).
		Count(&count).Error
	return count, err
}

func (r *WithdrawalRepository) GetDailyWithdrawalCounts(ctx context.Context, days int) (map[string]int64, error) {
	type DailyCount struct {
		Date  string
		Count int64
	}

	var results []DailyCount
	startDate := time.Now().AddDate(0, 0, -days+1).Format("2006-01-02")

	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalHistory{}).
		Select("DATE(timestamp) as date, COUNT(*) as count").
		Where("DATE(timestamp) >= ?", startDate).
		Group("DATE(timestamp)").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, r := range results {
		counts[r.Date] = r.Count
	}
	return counts, nil
}
