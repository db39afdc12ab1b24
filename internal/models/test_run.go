package models

import "time"

// Run status values
const (
	RunStatusPending = "pending"
	RunStatusPassed  = "passed"
	RunStatusFailed  = "fail"
)

// DefaultRunName is used until an uploaded run is renamed after its id.
const DefaultRunName = "TempName"

// TestRun 测试执行记录
type TestRun struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RunName   string     `gorm:"size:255;not null" json:"run_name"`
	StartDate *time.Time `gorm:"index" json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `gorm:"size:50;index" json:"status"`
	Stand     string     `gorm:"size:255;index" json:"stand"`
	FileLink  string     `gorm:"size:1024" json:"file_link,omitempty"`
	Files     JSONArray  `gorm:"type:text" json:"files,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	SoftDelete
}

// TableName 指定表名
func (TestRun) TableName() string {
	return "test_runs"
}
