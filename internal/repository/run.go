package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/polartar/vtvl-app-sub002/internal/models"

	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *RunRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReconciliationRun{}).
		Where("run_hash = ?", hash).
		Count(&count).Error
	return count > 0, err
}

// GenerateHash 对账运行的幂等键：同一组织/链/区块高度只落库一次
func (r *RunRepository) GenerateHash(orgID, chainID string, blockNumber int64) string {
	data := fmt.Sprintf("%s:%s:%d", orgID, chainID, blockNumber)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// GetLatest 获取组织在指定链上最近一次对账结果
func (r *RunRepository) GetLatest(ctx context.Context, orgID, chainID string) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND chain_id = ?", orgID, chainID).
		Order("created_at DESC").
		First(&run).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &run, err
}

func (r *RunRepository) GetByOrganization(ctx context.Context, orgID string, limit int) ([]models.ReconciliationRun, error) {
	var runs []models.ReconciliationRun
	query := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&runs).Error
	return runs, err
}

// Prune 按保留条数清理历史对账记录
func (r *RunRepository) Prune(ctx context.Context, orgID, chainID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(`
		DELETE FROM reconciliation_runs
		WHERE organization_id = ? AND chain_id = ?
			AND id NOT IN (
				SELECT id FROM (
					SELECT id FROM reconciliation_runs
					WHERE organization_id = ? AND chain_id = ?
					ORDER BY created_at DESC
					LIMIT ?
				) recent
			)
	`, orgID, chainID, orgID, chainID, keep).Error
}
