package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"prosterio-go/internal/export"
	"prosterio-go/internal/processor"
	"prosterio-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const employeeNotFound = "Employee not found"

// EmployeeService 员工档案操作
type EmployeeService interface {
	BulkUpsert(ctx context.Context, userID, scopeUserID uint64, records []types.EmployeeRecord) (processor.BulkResult, error)
	Update(ctx context.Context, scopeUserID, id uint64, rec types.EmployeeRecord) (*types.EmployeeRecord, error)
	Resign(ctx context.Context, scopeUserID, id uint64) error
	Delete(ctx context.Context, scopeUserID, id uint64) error
	List(ctx context.Context, scopeUserID uint64) ([]processor.EmployeeSummary, error)
	Get(ctx context.Context, scopeUserID, id uint64) (*types.EmployeeRecord, error)
}

// EmployeeHandler 处理 /api/employees
type EmployeeHandler struct {
	svc EmployeeService
	now func() time.Time
}

// NewEmployeeHandler 创建 handler
func NewEmployeeHandler(svc EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, now: time.Now}
}

// BulkUpsert POST /api/employees
func (h *EmployeeHandler) BulkUpsert(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req struct {
		Employees []types.EmployeeRecord `json:"employees"`
	}
	if err := decodeJSON(c, &req); err != nil {
		writeError(ctx, c, err)
		return
	}

	res, err := h.svc.BulkUpsert(ctx, id.UserID, id.ScopeUserID(), req.Employees)
	switch {
	case err == nil:
		c.JSON(consts.StatusCreated, utils.H{"message": "Bulk employee operation completed", "results": res.Results})
	case res.Results == nil:
		writeError(ctx, c, err)
	case errors.Is(err, processor.ErrValidation):
		c.JSON(consts.StatusBadRequest, utils.H{"message": processor.Message(err), "results": res.Results})
	default:
		c.JSON(consts.StatusBadRequest, utils.H{"error": processor.Message(err), "results": res.Results})
	}
}

// List GET /api/employees
func (h *EmployeeHandler) List(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	rows, err := h.svc.List(ctx, id.ScopeUserID())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, rows)
}

// Export GET /api/employees/export
func (h *EmployeeHandler) Export(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	rows, err := h.svc.List(ctx, id.ScopeUserID())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteEmployees(&buf, rows); err != nil {
		writeErrorStatus(ctx, c, consts.StatusInternalServerError, err)
		return
	}
	name := fmt.Sprintf("employees-%s.xlsx", h.now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(consts.StatusOK, export.ContentType, buf.Bytes())
}

// Get GET /api/employees/:id
func (h *EmployeeHandler) Get(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	empID, ok := pathID(c, "id", employeeNotFound)
	if !ok {
		return
	}
	rec, err := h.svc.Get(ctx, id.ScopeUserID(), empID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, rec)
}

// Update PUT /api/employees/:id
func (h *EmployeeHandler) Update(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	empID, ok := pathID(c, "id", employeeNotFound)
	if !ok {
		return
	}
	var rec types.EmployeeRecord
	if err := decodeJSON(c, &rec); err != nil {
		writeError(ctx, c, err)
		return
	}
	updated, err := h.svc.Update(ctx, id.ScopeUserID(), empID, rec)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "Employee updated successfully", "data": updated})
}

// Resign PATCH /api/employees/:id/resign
func (h *EmployeeHandler) Resign(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	empID, ok := pathID(c, "id", employeeNotFound)
	if !ok {
		return
	}
	if err := h.svc.Resign(ctx, id.ScopeUserID(), empID); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "Employee resigned and content chunks removed"})
}

// Delete DELETE /api/employees/:id
func (h *EmployeeHandler) Delete(ctx context.Context, c *app.RequestContext) {
	id, ok := identity(c)
	if !ok {
		return
	}
	empID, ok := pathID(c, "id", employeeNotFound)
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, id.ScopeUserID(), empID); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "Employee deleted"})
}
