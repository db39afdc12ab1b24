package models

import (
	"time"

	"gorm.io/gorm"
)

// SoftDelete 软删除字段，嵌入到支持软删除的模型中
type SoftDelete struct {
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Active 只查询未删除的记录
func Active(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}

// ActiveUnless lifts the Active scope when includeDeleted is set.
func ActiveUnless(includeDeleted bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if includeDeleted {
			return db
		}
		return Active(db)
	}
}
