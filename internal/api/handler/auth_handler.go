package handler

import (
	"context"
	"errors"

	"prosterio-go/internal/processor"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// AuthService 登录、用户与密码重置
type AuthService interface {
	Login(ctx context.Context, email, password string) (*processor.LoginResult, error)
	CreateUser(ctx context.Context, name, email, password, role string) (*processor.UserView, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyPasswordReset(ctx context.Context, email, otp, newPassword string) error
}

// AuthHandler 处理 /api/login、/api/users 与 /api/forgot-password
type AuthHandler struct {
	svc AuthService
}

// NewAuthHandler 创建 handler
func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login POST /api/login
func (h *AuthHandler) Login(ctx context.Context, c *app.RequestContext) {
	var req loginRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	res, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser POST /api/users
func (h *AuthHandler) CreateUser(ctx context.Context, c *app.RequestContext) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	if !caller.CanGrant(req.Role) {
		c.JSON(consts.StatusForbidden, utils.H{"error": "Only a superuser can create superuser accounts"})
		return
	}
	user, err := h.svc.CreateUser(ctx, req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, utils.H{"message": "User created successfully", "data": user})
}

// RequestPasswordReset POST /api/forgot-password/request
func (h *AuthHandler) RequestPasswordReset(ctx context.Context, c *app.RequestContext) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(c, &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	if err := h.svc.RequestPasswordReset(ctx, req.Email); err != nil {
		// 邮件发送失败按服务端错误返回
		if errors.Is(err, processor.ErrUpstream) {
			writeErrorStatus(ctx, c, consts.StatusInternalServerError, err)
			return
		}
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "OTP sent successfully to your email"})
}

type verifyResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// VerifyPasswordReset POST /api/forgot-password/verify
func (h *AuthHandler) VerifyPasswordReset(ctx context.Context, c *app.RequestContext) {
	var req verifyResetRequest
	if err := decodeJSON(c, &req); err != nil {
		writeError(ctx, c, err)
		return
	}
	if err := h.svc.VerifyPasswordReset(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"message": "Password reset successful"})
}
