package handler

import (
	"context"

	"prosterio-go/internal/processor"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RecordService 按类型存取的 JSON 记录
type RecordService interface {
	Create(ctx context.Context, ownerID uint64, kind string, data []byte) (*processor.RecordView, error)
	List(ctx context.Context, scopeUserID uint64, kind string) ([]processor.RecordView, error)
	Get(ctx context.Context, scopeUserID uint64, kind string, id uint64) (*processor.RecordView, error)
	Update(ctx context.Context, scopeUserID uint64, kind string, id uint64, patch []byte) (*processor.RecordView, error)
}

// RecordHandler 为 chats、clients、interviews 等记录生成 handler
type RecordHandler struct {
	svc RecordService
}

// NewRecordHandler 创建 handler
func NewRecordHandler(svc RecordService) *RecordHandler {
	return &RecordHandler{svc: svc}
}

// Create 创建记录，返回 {"message": message, "data": ...}
func (h *RecordHandler) Create(kind, message string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id, ok := identity(c)
		if !ok {
			return
		}
		rec, err := h.svc.Create(ctx, id.UserID, kind, c.Request.Body())
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(consts.StatusCreated, utils.H{"message": message, "data": rec})
	}
}

// List 返回 {key: [...]}
func (h *RecordHandler) List(kind, key string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id, ok := identity(c)
		if !ok {
			return
		}
		rows, err := h.svc.List(ctx, id.ScopeUserID(), kind)
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(consts.StatusOK, utils.H{key: rows})
	}
}

// Get 返回 {key: ...}
func (h *RecordHandler) Get(kind, key string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id, ok := identity(c)
		if !ok {
			return
		}
		recID, ok := pathID(c, "id", processor.NotFoundMessage(kind))
		if !ok {
			return
		}
		rec, err := h.svc.Get(ctx, id.ScopeUserID(), kind, recID)
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(consts.StatusOK, utils.H{key: rec})
	}
}

// Update 浅合并更新记录
func (h *RecordHandler) Update(kind, message string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id, ok := identity(c)
		if !ok {
			return
		}
		recID, ok := pathID(c, "id", processor.NotFoundMessage(kind))
		if !ok {
			return
		}
		rec, err := h.svc.Update(ctx, id.ScopeUserID(), kind, recID, c.Request.Body())
		if err != nil {
			writeError(ctx, c, err)
			return
		}
		c.JSON(consts.StatusOK, utils.H{"message": message, "data": rec})
	}
}
