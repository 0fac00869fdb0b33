package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// ReconciliationRun 一次对账运行的结果快照
// RunHash 保证同一组织/链/区块高度的对账只落库一次
type ReconciliationRun struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID   string    `gorm:"size:36;not null;index:idx_org_chain_time" json:"organization_id"`
	ChainID          string    `gorm:"size:50;not null;index:idx_org_chain_time" json:"chain_id"`
	BlockNumber      int64     `gorm:"not null" json:"block_number"`
	RunHash          string    `gorm:"size:64;not null;uniqueIndex" json:"run_hash"`
	Summary          JSONB     `gorm:"type:json;not null" json:"summary"`
	UnavailableCount int       `gorm:"not null;default:0" json:"unavailable_count"`
	WarningCount     int       `gorm:"not null;default:0" json:"warning_count"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_org_chain_time" json:"created_at"`
}

func (ReconciliationRun) TableName() string {
	return "reconciliation_runs"
}
