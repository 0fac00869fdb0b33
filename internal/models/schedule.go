package models

import (
	"time"

	"gorm.io/gorm"
)

type ScheduleStatus string

const (
	ScheduleStatusDraft    ScheduleStatus = "draft"
	ScheduleStatusDeployed ScheduleStatus = "deployed"
	ScheduleStatusRevoked  ScheduleStatus = "revoked"
)

type VestingSchedule struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID   string         `gorm:"size:36;not null;index:idx_org_chain" json:"organization_id"`
	ChainID          string         `gorm:"size:50;not null;index:idx_org_chain" json:"chain_id"`
	Name             string         `gorm:"size:100;not null" json:"name"`
	ContractAddress  string         `gorm:"size:42;index" json:"contract_address"`
	TokenAddress     string         `gorm:"size:42;not null" json:"token_address"`
	StartTime        time.Time      `gorm:"not null" json:"start_time"`
	EndTime          *time.Time     `json:"end_time"`
	CliffDuration    string         `gorm:"size:20;not null" json:"cliff_duration"`
	CliffAmount      string         `gorm:"type:decimal(65,18);not null;default:0" json:"cliff_amount"`
	ReleaseFrequency string         `gorm:"size:20;not null" json:"release_frequency"`
	TotalAmount      string         `gorm:"type:decimal(65,18);not null" json:"total_amount"`
	Status           ScheduleStatus `gorm:"type:enum('draft','deployed','revoked');not null;default:'draft'" json:"status"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (VestingSchedule) TableName() string {
	return "vesting_schedules"
}

// IsDeployed 计划是否已部署上链；部署后链上数据成为权威来源
func (s *VestingSchedule) IsDeployed() bool {
	return s.Status == ScheduleStatusDeployed && s.ContractAddress != ""
}
