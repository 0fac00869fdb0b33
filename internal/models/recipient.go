package models

import (
	"time"

	"gorm.io/gorm"
)

type Recipient struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ScheduleID    string         `gorm:"uniqueIndex:uk_schedule_wallet;size:36;not null" json:"schedule_id"`
	WalletAddress string         `gorm:"uniqueIndex:uk_schedule_wallet;size:42;not null" json:"wallet_address"`
	Name          string         `gorm:"size:100" json:"name"`
	Email         string         `gorm:"size:255" json:"email"`
	Allocation    string         `gorm:"type:decimal(65,18);not null;default:0" json:"allocation"`
	Withdrawn     string         `gorm:"type:decimal(65,18);not null;default:0" json:"withdrawn"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Recipient) TableName() string {
	return "recipients"
}
