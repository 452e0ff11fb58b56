package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User 系统用户 (HR / SUPERUSER)
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	Name         string     `gorm:"type:varchar(255);not null"`
	Email        string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email_unique"`
	PasswordHash string     `gorm:"column:password;type:varchar(255);not null"`
	Role         string     `gorm:"type:varchar(50);not null;default:'HR'"`
	OTP          *string    `gorm:"column:otp;type:varchar(10)"`
	OTPExpiry    *time.Time `gorm:"column:otp_expiry;type:datetime(6)"`
	CreatedAt    time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// Employee 员工档案表。列表字段以 JSON 列保存。
type Employee struct {
	ID                      uint64         `gorm:"primaryKey;autoIncrement"`
	UserID                  uint64         `gorm:"not null;index:idx_employees_user_id"`
	FullName                string         `gorm:"type:varchar(255);not null"`
	Email                   string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_employees_email_unique"`
	JobTitle                string         `gorm:"type:varchar(255);not null;index:idx_employees_job_title"`
	PromotionYears          *int           `gorm:"type:int"`
	Profile                 *string        `gorm:"type:text"`
	Skills                  datatypes.JSON `gorm:"type:json"`
	ProfessionalExperiences datatypes.JSON `gorm:"type:json"`
	Educations              datatypes.JSON `gorm:"type:json"`
	Publications            datatypes.JSON `gorm:"type:json"`
	Distinctions            datatypes.JSON `gorm:"type:json"`
	Certifications          datatypes.JSON `gorm:"type:json"`
	FileURL                 *string        `gorm:"type:varchar(1024)"`
	FileData                []byte         `gorm:"type:longblob"`
	ResignStatus            bool           `gorm:"not null;default:false"`
	ResignDate              *time.Time     `gorm:"type:datetime(6)"`
	CreatedAt               time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt               time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Employee) TableName() string {
	return "employees"
}

// ContentChunk 员工档案编译后的检索分块。随员工记录整体删除重建。
type ContentChunk struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	EmployeeID     uint64         `gorm:"not null;index:idx_chunks_employee_id"`
	UserID         uint64         `gorm:"not null;index:idx_chunks_user_id"`
	Type           string         `gorm:"type:varchar(50);not null"`
	ChunkText      string         `gorm:"type:text;not null"`
	Embedding      datatypes.JSON `gorm:"type:json"`               // []float64, 首次检索时回填
	EmbeddingModel string         `gorm:"type:varchar(100)"`       // 生成 Embedding 的模型
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Employee *Employee `gorm:"foreignKey:EmployeeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ContentChunk) TableName() string {
	return "content_chunks"
}

// Record 归属于用户的通用 JSON 记录 (chat / client / company / project / interview / prompt)
type Record struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	UserID    uint64         `gorm:"not null;index:idx_records_user_kind,priority:1"`
	Kind      string         `gorm:"type:varchar(50);not null;index:idx_records_user_kind,priority:2"`
	Data      datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Record) TableName() string {
	return "records"
}

// Evaluation RAG 回答质量评估
type Evaluation struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	UserID          uint64    `gorm:"not null;index"`
	Question        string    `gorm:"type:text;not null"`
	Answer          string    `gorm:"type:mediumtext"`
	CortexCoherence *float64  `gorm:"type:double"`
	Groundedness    float64   `gorm:"type:double"`
	Relevance       float64   `gorm:"type:double"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// ToJSON 序列化任意值为 datatypes.JSON，nil 切片写成 []
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(bytes) == "null" {
		return datatypes.JSON("[]"), nil
	}
	return bytes, nil
}

// MapToJSON Helper function to convert map[string]interface{} to datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	if m == nil {
		return datatypes.JSON("{}"), nil
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
