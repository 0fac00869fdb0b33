package repository

import (
	"context"
	"errors"

	"github.com/polartar/vtvl-app-sub002/internal/models"

	"gorm.io/gorm"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// GetLastProcessed 获取链的提现监听器当前处理到的区块号
func (r *BlockRepository) GetLastProcessed(ctx context.Context, chainID string) (int64, error) {
	var cursor models.BlockCursor
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		First(&cursor).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return cursor.BlockNumber, err
}

// MarkProcessed 推进链的区块游标
func (r *BlockRepository) MarkProcessed(ctx context.Context, chainID string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.BlockCursor
		err := tx.Where("chain_id = ?", chainID).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			cursor := &models.BlockCursor{
				ChainID:     chainID,
				BlockNumber: blockNumber,
			}
			return tx.Create(cursor).Error
		}

		if err != nil {
			return err
		}

		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
