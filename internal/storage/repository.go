package storage

import (
	"context"
	"errors"
	"time"

	"prosterio-go/internal/storage/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在，或不属于当前用户
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("duplicate record")
)

// 所有按用户过滤的查询中，userID 为 0 表示不过滤 (SUPERUSER)。

// EmployeeTx 是单个事务内可用的员工写操作
type EmployeeTx interface {
	// FindForMerge 按 id (非 0 时) 或 email 查找员工，不区分归属
	FindForMerge(ctx context.Context, id uint64, email string) (*models.Employee, error)
	GetEmployee(ctx context.Context, userID, id uint64) (*models.Employee, error)
	CreateEmployee(ctx context.Context, e *models.Employee) error
	UpdateEmployee(ctx context.Context, e *models.Employee) error
	MarkResigned(ctx context.Context, id uint64, at time.Time) error
	DeleteEmployee(ctx context.Context, id uint64) error
	// ReplaceChunks 删除 employeeIDs 的全部分块后插入 chunks
	ReplaceChunks(ctx context.Context, employeeIDs []uint64, chunks []models.ContentChunk) error
	DeleteChunks(ctx context.Context, employeeID uint64) (int64, error)
	EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) error
}

// EmployeeRepository 员工档案存储
type EmployeeRepository interface {
	// InTx 在一个事务中执行 fn，fn 返回错误时整体回滚
	InTx(ctx context.Context, fn func(tx EmployeeTx) error) error
	ListEmployees(ctx context.Context, userID uint64) ([]models.Employee, error)
	GetEmployee(ctx context.Context, userID, id uint64) (*models.Employee, error)
}

// ChunkRepository 检索阶段读取分块并回填 embedding
type ChunkRepository interface {
	ListChunks(ctx context.Context, userID uint64) ([]models.ContentChunk, error)
	SaveEmbeddings(ctx context.Context, model string, vectors map[uint64][]float64) error
}

// UserRepository 用户账号存储
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	SetOTP(ctx context.Context, userID uint64, otp string, expiry time.Time) error
	// ResetPassword 更新密码哈希并清除 OTP
	ResetPassword(ctx context.Context, userID uint64, passwordHash string) error
}

// RecordRepository 通用 JSON 记录存储
type RecordRepository interface {
	CreateRecord(ctx context.Context, r *models.Record) error
	ListRecords(ctx context.Context, userID uint64, kind string) ([]models.Record, error)
	GetRecord(ctx context.Context, userID uint64, kind string, id uint64) (*models.Record, error)
	UpdateRecord(ctx context.Context, userID uint64, kind string, id uint64, data datatypes.JSON) (*models.Record, error)
}

// EvaluationRepository RAG 评估结果存储
type EvaluationRepository interface {
	CreateEvaluation(ctx context.Context, e *models.Evaluation) error
}

// AnalyticsRepository 员工统计查询
type AnalyticsRepository interface {
	JobTitleDistribution(ctx context.Context, userID uint64) ([]JobTitleCount, error)
	ExperienceLevelDistribution(ctx context.Context, userID uint64) ([]ExperienceLevelCount, error)
	TopSkills(ctx context.Context, userID uint64, limit int) ([]SkillCount, error)
	EducationToJobTitle(ctx context.Context, userID uint64) ([]EducationJobTitleCount, error)
}

// JobTitleCount 职位分布
type JobTitleCount struct {
	JobTitle       string `json:"job_title"`
	TotalEmployees int64  `json:"total_employees"`
}

// ExperienceLevelCount 经验级别分布
type ExperienceLevelCount struct {
	ExperienceLevel string `json:"experience_level"`
	TotalEmployees  int64  `json:"total_employees"`
}

// SkillCount 技能计数
type SkillCount struct {
	Skill          string `json:"skill"`
	TotalEmployees int64  `json:"total_employees"`
}

// EducationJobTitleCount 学历与职位的组合计数
type EducationJobTitleCount struct {
	Education string `json:"education"`
	JobTitle  string `json:"job_title"`
	Count     int64  `json:"count"`
}

// ownedBy 按 user_id 过滤，0 表示不过滤
func ownedBy(userID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if userID == 0 {
			return db
		}
		return db.Where("user_id = ?", userID)
	}
}

// translateError 把 gorm 错误映射为存储层哨兵错误
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
