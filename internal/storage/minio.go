package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"prosterio-go/internal/config"
	"prosterio-go/internal/logger"

	"github.com/gofrs/uuid/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo 对象元数据
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadResumeFile 上传原始简历，返回对象键
	UploadResumeFile(ctx context.Context, fileExt string, reader io.Reader, fileSize int64) (string, error)
	// GetObjectStream 返回对象内容流，调用方负责关闭
	GetObjectStream(ctx context.Context, objectName string) (io.ReadCloser, ObjectInfo, error)
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	DeleteFile(ctx context.Context, objectName string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	log    zerolog.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	l := logger.Named("minio")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.ResumesBucket
	if bucket == "" {
		bucket = "resumes"
	}

	m := &MinIO{client: client, cfg: cfg, bucket: bucket, log: l}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", bucket, err)
	}

	// 设置生命周期规则
	if cfg.ResumeExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, bucket, "expire-resumes", cfg.ResumeExpireDays); err != nil {
			l.Warn().Err(err).Str("bucket", bucket).Msg("设置生命周期规则失败")
		}
	}

	l.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO客户端初始化完成")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.log.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

// setupBucketLifecycle 为指定存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

// ResumeObjectName 生成原始简历的对象键: resume/{uuidv7}/original{ext}
func ResumeObjectName(fileExt string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成对象ID失败: %w", err)
	}
	return fmt.Sprintf("resume/%s/original%s", id.String(), strings.ToLower(fileExt)), nil
}

// UploadResumeFile 上传原始简历文件，返回对象键 (不含bucket前缀)
func (m *MinIO) UploadResumeFile(ctx context.Context, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	objectName, err := ResumeObjectName(fileExt)
	if err != nil {
		return "", err
	}
	info, err := m.client.PutObject(ctx, m.bucket, objectName, reader, fileSize,
		minio.PutObjectOptions{ContentType: getContentType(fileExt)})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectName, err)
	}
	m.log.Debug().Str("object", objectName).Int64("size", info.Size).Msg("简历原件已上传")
	return objectName, nil
}

// GetObjectStream 打开对象读取流。对象不存在时返回 ErrObjectNotFound。
func (m *MinIO) GetObjectStream(ctx context.Context, objectName string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("获取对象 %s/%s 失败: %w", m.bucket, objectName, err)
	}
	// GetObject 是惰性的，Stat 才会真正请求服务端
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.bucket, objectName, err)
	}
	return obj, ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}

// DownloadFile 读取整个对象
func (m *MinIO) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	rc, _, err := m.GetObjectStream(ctx, objectName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.bucket, objectName, err)
	}
	return data, nil
}

// GetPresignedURL 获取预签名URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// DeleteFile 删除文件
func (m *MinIO) DeleteFile(ctx context.Context, objectName string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}

// 获取内容类型
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
