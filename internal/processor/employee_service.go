package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prosterio-go/internal/chunk"
	"prosterio-go/internal/constants"
	"prosterio-go/internal/logger"
	"prosterio-go/internal/outbox"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"
	"prosterio-go/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("processor")

// 批量操作的结果状态
const (
	StatusInserted = "success (inserted)"
	StatusUpdated  = "success (updated)"
	StatusFailed   = "failed"
)

// ErrMsgForeignEmployee 批量合并命中其他用户的员工时的单条错误
const ErrMsgForeignEmployee = "Employee belongs to another user"


// AnalyticsInvalidator 员工数据变化后让统计缓存失效
type AnalyticsInvalidator interface {
	BumpAnalyticsGeneration(ctx context.Context) error
}

// BulkItemResult 批量导入中单条记录的结果
type BulkItemResult struct {
	Email      string `json:"email"`
	EmployeeID uint64 `json:"employee_id,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// BulkResult 批量导入结果，Results 与输入顺序一致
type BulkResult struct {
	Results   []BulkItemResult
	Succeeded int
}

// EmployeeSummary 员工列表项
type EmployeeSummary struct {
	ID           uint64     `json:"id"`
	FullName     string     `json:"full_name"`
	JobTitle     string     `json:"job_title"`
	Email        string     `json:"email"`
	FileURL      *string    `json:"file_url"`
	ResignStatus bool       `json:"resign_status"`
	ResignDate   *time.Time `json:"resign_date"`
}

// EmployeeService 员工档案的写入与查询。每次写入都在同一事务中重建分块并写入 outbox。
type EmployeeService struct {
	repo     storage.EmployeeRepository
	cache    AnalyticsInvalidator
	exchange string
	now      func() time.Time
	log      zerolog.Logger
}

// NewEmployeeService 创建服务。cache 可为 nil；exchange 为空时不写 outbox。
func NewEmployeeService(repo storage.EmployeeRepository, cache AnalyticsInvalidator, exchange string) *EmployeeService {
	return &EmployeeService{
		repo:     repo,
		cache:    cache,
		exchange: exchange,
		now:      time.Now,
		log:      logger.Named("employees"),
	}
}

type pendingUpsert struct {
	index  int
	record types.EmployeeRecord
}

// BulkUpsert 按 id (提供时) 或 email 合并员工记录。新记录归 userID 所有；
// 匹配到的记录保留原归属，scopeUserID 非 0 时只能合并自己名下的员工。
// 校验失败或归属不符的记录单独报告，其余记录在一个事务中写入；事务失败时所有有效记录都标记为失败。
func (s *EmployeeService) BulkUpsert(ctx context.Context, userID, scopeUserID uint64, records []types.EmployeeRecord) (BulkResult, error) {
	ctx, span := tracer.Start(ctx, "EmployeeService.BulkUpsert")
	defer span.End()
	span.SetAttributes(attribute.Int("employees.count", len(records)))

	if len(records) == 0 {
		return BulkResult{}, newValidationError("bulk_upsert", "No employees data provided")
	}

	result := BulkResult{Results: make([]BulkItemResult, len(records))}
	valid := make([]pendingUpsert, 0, len(records))
	for i, rec := range records {
		rec.Normalize()
		if err := rec.Validate(); err != nil {
			key := rec.Email
			if key == "" {
				key = fmt.Sprintf("unknown_%d", i)
			}
			result.Results[i] = BulkItemResult{Email: key, Status: StatusFailed, Error: err.Error()}
			continue
		}
		valid = append(valid, pendingUpsert{index: i, record: rec})
	}
	if len(valid) == 0 {
		return result, newValidationError("bulk_upsert", "No valid employees to process")
	}

	outcomes := make(map[int]BulkItemResult, len(valid))
	err := s.repo.InTx(ctx, func(tx storage.EmployeeTx) error {
		// 同一批次中同一员工出现多次时，以最后一次的分块为准
		chunksByEmployee := make(map[uint64][]models.ContentChunk)
		order := make([]uint64, 0, len(valid))

		for _, p := range valid {
			rec := p.record
			existing, err := tx.FindForMerge(ctx, rec.ID, rec.Email)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("查找员工 %s 失败: %w", rec.Email, err)
			}

			if existing != nil && scopeUserID != 0 && existing.UserID != scopeUserID {
				outcomes[p.index] = BulkItemResult{Email: rec.Email, Status: StatusFailed, Error: ErrMsgForeignEmployee}
				continue
			}

			e, err := models.EmployeeFromRecord(rec, userID)
			if err != nil {
				return err
			}
			status, eventType := StatusInserted, constants.EventEmployeeUpserted
			resigned := false
			if existing != nil {
				e.ID, e.UserID = existing.ID, existing.UserID
				resigned = existing.ResignStatus
				e.ResignStatus, e.ResignDate = existing.ResignStatus, existing.ResignDate
				if e.FileData == nil {
					e.FileData = existing.FileData
				}
				if err := tx.UpdateEmployee(ctx, e); err != nil {
					return fmt.Errorf("更新员工 %s 失败: %w", rec.Email, err)
				}
				status = StatusUpdated
			} else {
				e.ID = 0
				e.ResignStatus, e.ResignDate = false, nil
				if err := tx.CreateEmployee(ctx, e); err != nil {
					return fmt.Errorf("创建员工 %s 失败: %w", rec.Email, err)
				}
			}

			if _, seen := chunksByEmployee[e.ID]; !seen {
				order = append(order, e.ID)
			}
			var compiled []models.ContentChunk
			if !resigned {
				compiled = toChunkRows(chunk.Compile(rec, e.ID, e.UserID))
			}
			chunksByEmployee[e.ID] = compiled

			if err := s.enqueue(ctx, tx, eventType, e, len(compiled)); err != nil {
				return err
			}
			outcomes[p.index] = BulkItemResult{Email: rec.Email, EmployeeID: e.ID, Status: status}
		}

		var all []models.ContentChunk
		for _, id := range order {
			all = append(all, chunksByEmployee[id]...)
		}
		if len(order) == 0 {
			return nil
		}
		return tx.ReplaceChunks(ctx, order, all)
	})

	if err != nil {
		span.RecordError(err)
		for _, p := range valid {
			result.Results[p.index] = BulkItemResult{Email: p.record.Email, Status: StatusFailed, Error: err.Error()}
		}
		s.log.Error().Err(err).Int("valid", len(valid)).Msg("批量写入员工失败，事务已回滚")
		return result, newStoreError("bulk_upsert", "", err)
	}

	for idx, out := range outcomes {
		result.Results[idx] = out
		if out.Status != StatusFailed {
			result.Succeeded++
		}
	}
	if result.Succeeded > 0 {
		s.invalidateAnalytics(ctx)
	}
	s.log.Info().Int("succeeded", result.Succeeded).Int("failed", len(records)-result.Succeeded).Msg("批量写入员工完成")
	return result, nil
}

// Update 全量更新员工并重建分块。已离职员工只更新字段，不再生成分块。
func (s *EmployeeService) Update(ctx context.Context, scopeUserID, id uint64, rec types.EmployeeRecord) (*types.EmployeeRecord, error) {
	ctx, span := tracer.Start(ctx, "EmployeeService.Update")
	defer span.End()

	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, newValidationError("update", err.Error())
	}

	var updated *types.EmployeeRecord
	err := s.repo.InTx(ctx, func(tx storage.EmployeeTx) error {
		existing, err := tx.GetEmployee(ctx, scopeUserID, id)
		if err != nil {
			return err
		}
		e, err := models.EmployeeFromRecord(rec, existing.UserID)
		if err != nil {
			return err
		}
		e.ID = existing.ID
		e.ResignStatus, e.ResignDate = existing.ResignStatus, existing.ResignDate
		if rec.FileData == nil {
			e.FileData = existing.FileData
		}
		if err := tx.UpdateEmployee(ctx, e); err != nil {
			return err
		}

		var rows []models.ContentChunk
		if !existing.ResignStatus {
			rows = toChunkRows(chunk.Compile(rec, e.ID, e.UserID))
		}
		if err := tx.ReplaceChunks(ctx, []uint64{e.ID}, rows); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, constants.EventEmployeeUpserted, e, len(rows)); err != nil {
			return err
		}
		out, err := e.ToRecord()
		if err != nil {
			return err
		}
		updated = &out
		return nil
	})
	if err != nil {
		return nil, s.wrapWriteError("update", id, err)
	}
	s.invalidateAnalytics(ctx)
	return updated, nil
}

// Resign 标记离职并删除全部分块
func (s *EmployeeService) Resign(ctx context.Context, scopeUserID, id uint64) error {
	ctx, span := tracer.Start(ctx, "EmployeeService.Resign")
	defer span.End()

	err := s.repo.InTx(ctx, func(tx storage.EmployeeTx) error {
		e, err := tx.GetEmployee(ctx, scopeUserID, id)
		if err != nil {
			return err
		}
		if err := tx.MarkResigned(ctx, e.ID, s.now()); err != nil {
			return err
		}
		if _, err := tx.DeleteChunks(ctx, e.ID); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, constants.EventEmployeeResigned, e, 0)
	})
	if err != nil {
		return s.wrapWriteError("resign", id, err)
	}
	s.invalidateAnalytics(ctx)
	return nil
}

// Delete 删除员工及其全部分块
func (s *EmployeeService) Delete(ctx context.Context, scopeUserID, id uint64) error {
	ctx, span := tracer.Start(ctx, "EmployeeService.Delete")
	defer span.End()

	err := s.repo.InTx(ctx, func(tx storage.EmployeeTx) error {
		e, err := tx.GetEmployee(ctx, scopeUserID, id)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteChunks(ctx, e.ID); err != nil {
			return err
		}
		if err := tx.DeleteEmployee(ctx, e.ID); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, constants.EventEmployeeDeleted, e, 0)
	})
	if err != nil {
		return s.wrapWriteError("delete", id, err)
	}
	s.invalidateAnalytics(ctx)
	return nil
}

// List 返回员工摘要列表
func (s *EmployeeService) List(ctx context.Context, scopeUserID uint64) ([]EmployeeSummary, error) {
	rows, err := s.repo.ListEmployees(ctx, scopeUserID)
	if err != nil {
		return nil, newStoreError("list", "", err)
	}
	out := make([]EmployeeSummary, 0, len(rows))
	for _, e := range rows {
		out = append(out, EmployeeSummary{
			ID:           e.ID,
			FullName:     e.FullName,
			JobTitle:     e.JobTitle,
			Email:        e.Email,
			FileURL:      e.FileURL,
			ResignStatus: e.ResignStatus,
			ResignDate:   e.ResignDate,
		})
	}
	return out, nil
}

// Get 返回完整员工记录
func (s *EmployeeService) Get(ctx context.Context, scopeUserID, id uint64) (*types.EmployeeRecord, error) {
	e, err := s.repo.GetEmployee(ctx, scopeUserID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newNotFoundError("get", fmt.Sprint(id), "Employee not found")
		}
		return nil, newStoreError("get", fmt.Sprint(id), err)
	}
	rec, err := e.ToRecord()
	if err != nil {
		return nil, newStoreError("get", fmt.Sprint(id), err)
	}
	return &rec, nil
}

func (s *EmployeeService) enqueue(ctx context.Context, tx storage.EmployeeTx, eventType string, e *models.Employee, chunkCount int) error {
	if s.exchange == "" {
		return nil
	}
	msg, err := outbox.NewEmployeeEvent(s.exchange, storage.EmployeeEventMessage{
		EventType:  eventType,
		EmployeeID: e.ID,
		UserID:     e.UserID,
		Email:      e.Email,
		JobTitle:   e.JobTitle,
		ChunkCount: chunkCount,
		OccurredAt: s.now(),
	})
	if err != nil {
		return err
	}
	return tx.EnqueueOutbox(ctx, msg)
}

func (s *EmployeeService) invalidateAnalytics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpAnalyticsGeneration(ctx); err != nil {
		s.log.Warn().Err(err).Msg("统计缓存失效失败")
	}
}

func (s *EmployeeService) wrapWriteError(op string, id uint64, err error) error {
	key := fmt.Sprint(id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return newNotFoundError(op, key, "Employee not found")
	case errors.Is(err, storage.ErrDuplicate):
		return newConflictError(op, key, "Email already exists")
	default:
		s.log.Error().Err(err).Str("op", op).Uint64("employee_id", id).Msg("员工写入失败")
		return newStoreError(op, key, err)
	}
}

func toChunkRows(chunks []chunk.Chunk) []models.ContentChunk {
	rows := make([]models.ContentChunk, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, models.ContentChunk{
			EmployeeID: c.EmployeeID,
			UserID:     c.UserID,
			Type:       string(c.Type),
			ChunkText:  c.Text,
		})
	}
	return rows
}
