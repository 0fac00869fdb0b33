package models

import (
	"time"
)

type WithdrawalHistory struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID         string    `gorm:"size:50;not null;index:idx_chain_wallet_time" json:"chain_id"`
	ScheduleID      string    `gorm:"size:36;not null;index" json:"schedule_id"`
	WalletAddress   string    `gorm:"size:42;not null;index:idx_chain_wallet_time" json:"wallet_address"`
	WithdrawnBefore string    `gorm:"type:decimal(65,18);not null" json:"withdrawn_before"`
	WithdrawnAfter  string    `gorm:"type:decimal(65,18);not null" json:"withdrawn_after"`
	Amount          string    `gorm:"type:decimal(65,18);not null" json:"amount"`
	TxHash          string    `gorm:"size:66;not null;uniqueIndex:uk_tx" json:"tx_hash"`
	BlockNumber     int64     `gorm:"not null;index" json:"block_number"`
	Timestamp       time.Time `gorm:"not null;index:idx_chain_wallet_time" json:"timestamp"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (WithdrawalHistory) TableName() string {
	return "withdrawal_history"
}
