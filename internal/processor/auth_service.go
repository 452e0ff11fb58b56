package processor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"prosterio-go/internal/auth"
	"prosterio-go/internal/logger"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"
	"prosterio-go/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	otpLength        = 6
	defaultOTPTTL    = 15 * time.Minute
	resetMailSubject = "Password Reset Request - Prosterio"
)

// Mailer 发送纯文本邮件
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// UserView 对外返回的用户信息
type UserView struct {
	ID    uint64 `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string   `json:"access_token"`
	User        UserView `json:"user"`
}

// AuthService 登录、创建用户与密码重置
type AuthService struct {
	users      storage.UserRepository
	tokens     *auth.TokenManager
	mailer     Mailer
	otpTTL     time.Duration
	bcryptCost int
	now        func() time.Time
	log        zerolog.Logger
}

// NewAuthService 创建服务。mailer 为 nil 时请求重置密码会返回上游错误。
func NewAuthService(users storage.UserRepository, tokens *auth.TokenManager, mailer Mailer, otpTTL time.Duration, bcryptCost int) *AuthService {
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		mailer:     mailer,
		otpTTL:     otpTTL,
		bcryptCost: bcryptCost,
		now:        time.Now,
		log:        logger.Named("auth"),
	}
}

// Login 校验密码并签发 token。用户不存在与密码错误返回同一个错误。
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, newValidationError("login", "Email and password required")
	}
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()
	span.SetAttributes(attribute.String("user.email", tracing.SafeAttributeValue("user.email", email, tracing.DefaultMaxLength)))

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, newStoreError("login", email, err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, auth.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, fmt.Errorf("签发 token 失败: %w", err)
	}
	s.log.Info().Uint64("user_id", u.ID).Msg("用户登录")
	return &LoginResult{
		AccessToken: token,
		User:        UserView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
	}, nil
}

// CreateUser 创建用户，四个字段都必填
func (s *AuthService) CreateUser(ctx context.Context, name, email, password, role string) (*UserView, error) {
	name, email, role = strings.TrimSpace(name), strings.TrimSpace(email), strings.TrimSpace(role)
	if name == "" || email == "" || password == "" || role == "" {
		return nil, newValidationError("create_user", "Missing required fields")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("Password hashing failed: %w", err)
	}
	u := &models.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, newConflictError("create_user", email, "Email already exists")
		}
		return nil, newStoreError("create_user", email, err)
	}
	return &UserView{Name: u.Name, Email: u.Email, Role: u.Role}, nil
}

// RequestPasswordReset 先保存 OTP 再发送邮件。邮件失败时 OTP 已保存，重新请求会覆盖。
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return newValidationError("request_reset", "Email is required")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newNotFoundError("request_reset", email, "User not found")
		}
		return newStoreError("request_reset", email, err)
	}

	otp, err := auth.GenerateOTP(otpLength)
	if err != nil {
		return err
	}
	if err := s.users.SetOTP(ctx, u.ID, otp, s.now().Add(s.otpTTL)); err != nil {
		return newStoreError("request_reset", email, err)
	}

	if s.mailer == nil {
		return &PipelineError{Op: "request_reset", Key: email, BaseErr: ErrUpstream, Detail: "Failed to send email: mail is not configured"}
	}
	if err := s.mailer.Send(ctx, u.Email, resetMailSubject, resetMailBody(otp, s.otpTTL)); err != nil {
		s.log.Error().Err(err).Uint64("user_id", u.ID).Msg("发送重置密码邮件失败")
		return &PipelineError{Op: "request_reset", Key: email, BaseErr: ErrUpstream, Cause: err, Detail: "Failed to send email: " + err.Error()}
	}
	return nil
}

// VerifyPasswordReset 校验 OTP 后重置密码并清除 OTP
func (s *AuthService) VerifyPasswordReset(ctx context.Context, email, otp, newPassword string) error {
	email, otp = strings.TrimSpace(email), strings.TrimSpace(otp)
	if email == "" || otp == "" || newPassword == "" {
		return newValidationError("verify_reset", "Email, OTP, and new password are required")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return newNotFoundError("verify_reset", email, "User not found")
		}
		return newStoreError("verify_reset", email, err)
	}

	if u.OTP == nil || subtle.ConstantTimeCompare([]byte(*u.OTP), []byte(otp)) != 1 {
		return &PipelineError{Op: "verify_reset", Key: email, BaseErr: ErrValidation, Cause: ErrInvalidOTP, Detail: ErrInvalidOTP.Error()}
	}
	if u.OTPExpiry == nil || u.OTPExpiry.Before(s.now()) {
		return &PipelineError{Op: "verify_reset", Key: email, BaseErr: ErrValidation, Cause: ErrOTPExpired, Detail: ErrOTPExpired.Error()}
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, u.ID, hash); err != nil {
		return newStoreError("verify_reset", email, err)
	}
	s.log.Info().Uint64("user_id", u.ID).Msg("密码已重置")
	return nil
}

func resetMailBody(otp string, ttl time.Duration) string {
	return fmt.Sprintf(`Hello,

You have requested to reset your password for your Prosterio account.

Your OTP code is: %s

This code will expire in %d minutes. Please do not share this code with anyone.

If you did not request this password reset, please ignore this email.

Best regards,
Prosterio Team
`, otp, int(ttl.Minutes()))
}
