package storage

import (
	"context"
	"fmt"
	"time"

	"prosterio-go/internal/storage/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// chunkInsertBatchSize 分块批量插入大小
const chunkInsertBatchSize = 200

// 确保 GORM 实现满足接口
var (
	_ EmployeeRepository   = (*MySQL)(nil)
	_ ChunkRepository      = (*MySQL)(nil)
	_ EmployeeTx           = (*employeeTx)(nil)
	_ UserRepository       = (*MySQL)(nil)
	_ RecordRepository     = (*MySQL)(nil)
	_ EvaluationRepository = (*MySQL)(nil)
	_ AnalyticsRepository  = (*MySQL)(nil)
)

// employeeTx 绑定到单个 gorm 事务
type employeeTx struct {
	tx *gorm.DB
}

// InTx 实现 EmployeeRepository
func (m *MySQL) InTx(ctx context.Context, fn func(tx EmployeeTx) error) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.EmployeeTx", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	return m.Transaction(ctx, func(tx *gorm.DB) error {
		return fn(&employeeTx{tx: tx})
	})
}

// ListEmployees 按 id 升序列出员工，不加载 file_data
func (m *MySQL) ListEmployees(ctx context.Context, userID uint64) ([]models.Employee, error) {
	var employees []models.Employee
	err := m.db.WithContext(ctx).
		Omit("file_data").
		Scopes(ownedBy(userID)).
		Order("id ASC").
		Find(&employees).Error
	if err != nil {
		return nil, fmt.Errorf("查询员工列表失败: %w", err)
	}
	return employees, nil
}

// GetEmployee 获取单个员工，不属于 userID 时返回 ErrNotFound
func (m *MySQL) GetEmployee(ctx context.Context, userID, id uint64) (*models.Employee, error) {
	return getEmployee(m.db.WithContext(ctx), userID, id)
}

func getEmployee(db *gorm.DB, userID, id uint64) (*models.Employee, error) {
	var e models.Employee
	if err := db.Scopes(ownedBy(userID)).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, translateError(err)
	}
	return &e, nil
}

func (t *employeeTx) FindForMerge(ctx context.Context, id uint64, email string) (*models.Employee, error) {
	query := func() *gorm.DB { return t.tx.WithContext(ctx).Omit("file_data") }
	var e models.Employee
	// id 优先于 email
	if id != 0 {
		err := query().Where("id = ?", id).First(&e).Error
		if err == nil {
			return &e, nil
		}
		if translateError(err) != ErrNotFound {
			return nil, err
		}
	}
	if err := query().Where("email = ?", email).First(&e).Error; err != nil {
		return nil, translateError(err)
	}
	return &e, nil
}

func (t *employeeTx) GetEmployee(ctx context.Context, userID, id uint64) (*models.Employee, error) {
	return getEmployee(t.tx.WithContext(ctx), userID, id)
}

func (t *employeeTx) CreateEmployee(ctx context.Context, e *models.Employee) error {
	return translateError(t.tx.WithContext(ctx).Create(e).Error)
}

// UpdateEmployee 全量覆盖所有业务字段 (MERGE 语义)
func (t *employeeTx) UpdateEmployee(ctx context.Context, e *models.Employee) error {
	res := t.tx.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
		"user_id":                  e.UserID,
		"full_name":                e.FullName,
		"email":                    e.Email,
		"job_title":                e.JobTitle,
		"promotion_years":          e.PromotionYears,
		"profile":                  e.Profile,
		"skills":                   e.Skills,
		"professional_experiences": e.ProfessionalExperiences,
		"educations":               e.Educations,
		"publications":             e.Publications,
		"distinctions":             e.Distinctions,
		"certifications":           e.Certifications,
		"file_url":                 e.FileURL,
		"file_data":                e.FileData,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL 对未改变的行返回 0，需要确认行是否存在
		var count int64
		if err := t.tx.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", e.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (t *employeeTx) MarkResigned(ctx context.Context, id uint64, at time.Time) error {
	res := t.tx.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).Updates(map[string]interface{}{
		"resign_status": true,
		"resign_date":   at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *employeeTx) DeleteEmployee(ctx context.Context, id uint64) error {
	res := t.tx.WithContext(ctx).Where("id = ?", id).Delete(&models.Employee{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *employeeTx) ReplaceChunks(ctx context.Context, employeeIDs []uint64, chunks []models.ContentChunk) error {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("chunks.employee_count", len(employeeIDs)),
		attribute.Int("chunks.insert_count", len(chunks)),
	)

	if len(employeeIDs) > 0 {
		if err := t.tx.WithContext(ctx).Where("employee_id IN ?", employeeIDs).Delete(&models.ContentChunk{}).Error; err != nil {
			return fmt.Errorf("删除旧分块失败: %w", err)
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := t.tx.WithContext(ctx).CreateInBatches(chunks, chunkInsertBatchSize).Error; err != nil {
		return fmt.Errorf("插入分块失败: %w", err)
	}
	return nil
}

func (t *employeeTx) DeleteChunks(ctx context.Context, employeeID uint64) (int64, error) {
	res := t.tx.WithContext(ctx).Where("employee_id = ?", employeeID).Delete(&models.ContentChunk{})
	return res.RowsAffected, res.Error
}

func (t *employeeTx) EnqueueOutbox(ctx context.Context, msg *models.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = models.OutboxStatusPending
	}
	return t.tx.WithContext(ctx).Create(msg).Error
}

// ListChunks 按 id 升序返回分块
func (m *MySQL) ListChunks(ctx context.Context, userID uint64) ([]models.ContentChunk, error) {
	var chunks []models.ContentChunk
	err := m.db.WithContext(ctx).Scopes(ownedBy(userID)).Order("id ASC").Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("查询分块失败: %w", err)
	}
	return chunks, nil
}

// SaveEmbeddings 回填分块 embedding。分块在此期间被删除时静默跳过。
func (m *MySQL) SaveEmbeddings(ctx context.Context, model string, vectors map[uint64][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	return m.Transaction(ctx, func(tx *gorm.DB) error {
		for id, vec := range vectors {
			raw, err := models.ToJSON(vec)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.ContentChunk{}).Where("id = ?", id).Updates(map[string]interface{}{
				"embedding":       raw,
				"embedding_model": model,
			}).Error; err != nil {
				return fmt.Errorf("回填分块 %d 的 embedding 失败: %w", id, err)
			}
		}
		return nil
	})
}
