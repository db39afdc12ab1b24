package models

import "time"

// TestSuite 测试套件，通过 parent_id 组成树
type TestSuite struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"` // 活跃记录唯一
	Description string    `gorm:"type:text" json:"description"`
	ParentID    *uint     `gorm:"index" json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete

	// 关联
	Parent   *TestSuite  `gorm:"foreignKey:ParentID;constraint:OnDelete:SET NULL" json:"-"`
	Children []TestSuite `gorm:"-" json:"children,omitempty"`
}

// TableName 指定表名
func (TestSuite) TableName() string {
	return "test_suites"
}
