package storage

import (
	"context"
	"time"

	"prosterio-go/internal/storage/models"
)

// FindByEmail 按邮箱查找用户
func (m *MySQL) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := m.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

// CreateUser 创建用户，邮箱重复时返回 ErrDuplicate
func (m *MySQL) CreateUser(ctx context.Context, u *models.User) error {
	return translateError(m.db.WithContext(ctx).Create(u).Error)
}

// SetOTP 保存重置密码验证码
func (m *MySQL) SetOTP(ctx context.Context, userID uint64, otp string, expiry time.Time) error {
	res := m.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"otp":        otp,
		"otp_expiry": expiry,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPassword 更新密码并清除验证码
func (m *MySQL) ResetPassword(ctx context.Context, userID uint64, passwordHash string) error {
	res := m.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"password":   passwordHash,
		"otp":        nil,
		"otp_expiry": nil,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
