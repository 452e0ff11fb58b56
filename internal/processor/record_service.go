package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"

	"gorm.io/datatypes"
)

// 通用记录类型
const (
	KindChat      = "chat"
	KindClient    = "client"
	KindCompany   = "company"
	KindProject   = "project"
	KindInterview = "interview"
	KindPrompt    = "prompt"
)

var notFoundMessages = map[string]string{
	KindChat:      "Chat not found",
	KindClient:    "Client not found",
	KindCompany:   "Company not found",
	KindProject:   "Project not found",
	KindInterview: "Interview not found",
	KindPrompt:    "Prompt not found",
}

// RecordView 对外返回的记录
type RecordView struct {
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// RecordService 归属于用户的 JSON 记录 (聊天、客户、公司、项目、面试、提示词)
type RecordService struct {
	repo storage.RecordRepository
}

// NewRecordService 创建服务
func NewRecordService(repo storage.RecordRepository) *RecordService {
	return &RecordService{repo: repo}
}

// Create 保存一条记录，data 必须是合法 JSON 且不能为 null
func (s *RecordService) Create(ctx context.Context, ownerID uint64, kind string, data []byte) (*RecordView, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || !json.Valid(data) {
		return nil, newValidationError("create_"+kind, "Request body must be valid JSON")
	}
	r := &models.Record{UserID: ownerID, Kind: kind, Data: datatypes.JSON(data)}
	if err := s.repo.CreateRecord(ctx, r); err != nil {
		return nil, newStoreError("create_"+kind, "", err)
	}
	return toView(r), nil
}

// List 列出 scopeUserID 可见的某类记录
func (s *RecordService) List(ctx context.Context, scopeUserID uint64, kind string) ([]RecordView, error) {
	rows, err := s.repo.ListRecords(ctx, scopeUserID, kind)
	if err != nil {
		return nil, newStoreError("list_"+kind, "", err)
	}
	out := make([]RecordView, 0, len(rows))
	for i := range rows {
		out = append(out, *toView(&rows[i]))
	}
	return out, nil
}

// Get 返回一条记录
func (s *RecordService) Get(ctx context.Context, scopeUserID uint64, kind string, id uint64) (*RecordView, error) {
	r, err := s.repo.GetRecord(ctx, scopeUserID, kind, id)
	if err != nil {
		return nil, s.wrap("get_"+kind, kind, id, err)
	}
	return toView(r), nil
}

// Update 把 patch 中的字段合并进已有对象；任一方不是 JSON 对象时整体替换
func (s *RecordService) Update(ctx context.Context, scopeUserID uint64, kind string, id uint64, patch []byte) (*RecordView, error) {
	patch = bytes.TrimSpace(patch)
	if len(patch) == 0 || !json.Valid(patch) {
		return nil, newValidationError("update_"+kind, "Request body must be valid JSON")
	}
	existing, err := s.repo.GetRecord(ctx, scopeUserID, kind, id)
	if err != nil {
		return nil, s.wrap("update_"+kind, kind, id, err)
	}

	merged, err := mergeObjects(existing.Data, patch)
	if err != nil {
		return nil, newValidationError("update_"+kind, err.Error())
	}
	updated, err := s.repo.UpdateRecord(ctx, scopeUserID, kind, id, merged)
	if err != nil {
		return nil, s.wrap("update_"+kind, kind, id, err)
	}
	return toView(updated), nil
}

// NotFoundMessage 返回某类记录不存在时的对外消息
func NotFoundMessage(kind string) string {
	if msg, ok := notFoundMessages[kind]; ok {
		return msg
	}
	return "Record not found"
}

func (s *RecordService) wrap(op, kind string, id uint64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return newNotFoundError(op, fmt.Sprint(id), NotFoundMessage(kind))
	}
	return newStoreError(op, fmt.Sprint(id), err)
}

func mergeObjects(base, patch []byte) (datatypes.JSON, error) {
	var baseObj, patchObj map[string]json.RawMessage
	if json.Unmarshal(base, &baseObj) != nil || json.Unmarshal(patch, &patchObj) != nil || baseObj == nil || patchObj == nil {
		return datatypes.JSON(patch), nil
	}
	for k, v := range patchObj {
		baseObj[k] = v
	}
	out, err := json.Marshal(baseObj)
	if err != nil {
		return nil, fmt.Errorf("合并记录失败: %w", err)
	}
	return out, nil
}

func toView(r *models.Record) *RecordView {
	return &RecordView{ID: r.ID, Data: json.RawMessage(r.Data)}
}
