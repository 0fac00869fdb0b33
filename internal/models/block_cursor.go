package models

import (
	"time"
)

// BlockCursor 每条链一行，记录提现监听器处理到的区块
type BlockCursor struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID     string    `gorm:"uniqueIndex:uk_chain;size:50;not null" json:"chain_id"`
	BlockNumber int64     `gorm:"not null" json:"block_number"`
	ProcessedAt time.Time `gorm:"autoUpdateTime" json:"processed_at"`
}

func (BlockCursor) TableName() string {
	return "block_cursors"
}
