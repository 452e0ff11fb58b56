package handler

import (
	"context"

	"prosterio-go/internal/processor"
	"prosterio-go/internal/retrieval"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// AnalyticsService 员工统计
type AnalyticsService interface {
	Compute(ctx context.Context, scopeUserID uint64) (*processor.Analytics, error)
}

// Answerer 检索增强问答
type Answerer interface {
	Answer(ctx context.Context, scopeUserID uint64, question string) (*retrieval.Answer, error)
}

// InsightHandler 处理统计与 RAG 问答
type InsightHandler struct {
	analytics AnalyticsService
	rag       Answerer
}

// NewInsightHandler 创建 handler，rag 为 nil 时问答返回未配置
func NewInsightHandler(analytics AnalyticsService, rag Answerer) *InsightHandler {
	return &InsightHandler{analytics: analytics, rag: rag}
}

// Analytics GET /api/analytics
func (h *InsightHandler) Analytics(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.analytics.Compute(ctx, id.ScopeUserID())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// RAG POST /api/rag
func (h *InsightHandler) RAG(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(c, &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	if h.rag == nil {
		writeError(ctx, c, retrieval.ErrNotConfigured)
		return
	}
	ans, err := h.rag.Answer(ctx, id.ScopeUserID(), req.Prompt)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	eval := ans.Evaluation
	if eval == nil {
		eval = retrieval.Evaluation{}
	}
	c.JSON(consts.StatusOK, utils.H{"message": "RAG data processed", "answer": ans.Text, "evaluation": eval})
}
