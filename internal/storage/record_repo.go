package storage

import (
	"context"

	"prosterio-go/internal/storage/models"

	"gorm.io/datatypes"
)

// CreateRecord 保存一条 JSON 记录
func (m *MySQL) CreateRecord(ctx context.Context, r *models.Record) error {
	return m.db.WithContext(ctx).Create(r).Error
}

// ListRecords 按创建顺序列出某类记录
func (m *MySQL) ListRecords(ctx context.Context, userID uint64, kind string) ([]models.Record, error) {
	var records []models.Record
	err := m.db.WithContext(ctx).
		Scopes(ownedBy(userID)).
		Where("kind = ?", kind).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// GetRecord 获取某类记录中的一条
func (m *MySQL) GetRecord(ctx context.Context, userID uint64, kind string, id uint64) (*models.Record, error) {
	var r models.Record
	err := m.db.WithContext(ctx).
		Scopes(ownedBy(userID)).
		Where("kind = ? AND id = ?", kind, id).
		First(&r).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &r, nil
}

// UpdateRecord 覆盖记录内容
func (m *MySQL) UpdateRecord(ctx context.Context, userID uint64, kind string, id uint64, data datatypes.JSON) (*models.Record, error) {
	r, err := m.GetRecord(ctx, userID, kind, id)
	if err != nil {
		return nil, err
	}
	r.Data = data
	if err := m.db.WithContext(ctx).Model(r).Update("data", data).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// CreateEvaluation 保存 RAG 评估结果
func (m *MySQL) CreateEvaluation(ctx context.Context, e *models.Evaluation) error {
	return m.db.WithContext(ctx).Create(e).Error
}
