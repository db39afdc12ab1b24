package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TestCase 测试案例模型
type TestCase struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"` // 活跃记录唯一，见 repository.Migrate
	Preconditions  string    `gorm:"type:text" json:"preconditions"`
	Description    string    `gorm:"type:text" json:"description"`
	ExpectedResult string    `gorm:"type:text" json:"expected_result"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	SoftDelete

	// 关联
	Steps      []TestCaseStep  `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	TagLinks   []TestCaseTag   `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"-"`
	SuiteLinks []TestCaseSuite `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"-"`
	Files      []Attachment    `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (TestCase) TableName() string {
	return "test_cases"
}

// TestCaseStep 测试步骤
type TestCaseStep struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TestCaseID  uint      `gorm:"not null;uniqueIndex:uq_step_case_position,priority:1" json:"test_case_id"`
	Position    int       `gorm:"not null;uniqueIndex:uq_step_case_position,priority:2" json:"position"`
	Action      string    `gorm:"type:text;not null" json:"action"`
	Expected    string    `gorm:"type:text" json:"expected"`
	Attachments JSONArray `gorm:"type:text" json:"attachments"`
}

// TableName 指定表名
func (TestCaseStep) TableName() string {
	return "test_case_steps"
}

// Tag 标签，不做软删除
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:255;not null" json:"name"`
}

// TableName 指定表名
func (Tag) TableName() string {
	return "tags"
}

// TestCaseTag 用例与标签的关联
type TestCaseTag struct {
	TestCaseID uint `gorm:"primaryKey;autoIncrement:false" json:"test_case_id"`
	TagID      uint `gorm:"primaryKey;autoIncrement:false;index" json:"tag_id"`

	Tag *Tag `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (TestCaseTag) TableName() string {
	return "test_case_tags"
}

// TestCaseSuite 用例与套件的关联，position 按套件排序
type TestCaseSuite struct {
	TestCaseID uint `gorm:"primaryKey;autoIncrement:false" json:"test_case_id"`
	SuiteID    uint `gorm:"primaryKey;autoIncrement:false;index" json:"suite_id"`
	Position   int  `gorm:"not null;default:0" json:"position"`

	Suite *TestSuite `gorm:"foreignKey:SuiteID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定表名
func (TestCaseSuite) TableName() string {
	return "test_case_suites"
}

// Attachment 用例附件，文件本体存放在对象存储中
type Attachment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TestCaseID       uint      `gorm:"not null;index" json:"test_case_id"`
	OriginalFilename string    `gorm:"size:512;not null" json:"original_filename"`
	ObjectName       string    `gorm:"uniqueIndex;size:1024;not null" json:"object_name"`
	Bucket           string    `gorm:"size:255;not null" json:"bucket"`
	ContentType      string    `gorm:"size:255" json:"content_type"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachments"
}

// ===== 自定义JSON类型 =====

// JSONArray 自定义JSON数组类型
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = JSONArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal JSONArray value: unsupported type %T", value)
	}

	// Handle empty array case
	if len(bytes) == 0 || string(bytes) == "[]" {
		*j = JSONArray{}
		return nil
	}

	if err := json.Unmarshal(bytes, j); err != nil {
		return fmt.Errorf("failed to unmarshal JSONArray value: %w (input: %s)", err, string(bytes))
	}
	return nil
}
