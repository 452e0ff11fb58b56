package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"prosterio-go/internal/config"
	"prosterio-go/internal/logger"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	defaultMimeType = "application/pdf"
	defaultTimeout  = 60 * time.Second
)

// ErrNotConfigured 未配置服务账号
var ErrNotConfigured = errors.New("google drive is not configured")

// UploadResult 上传结果
type UploadResult struct {
	FileID      string `json:"file_id"`
	WebViewLink string `json:"web_view_link"`
}

// Uploader 上传文件到 Google Drive 并设置为任何人可读
type Uploader struct {
	svc      *drive.Service
	folderID string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewUploader 用服务账号 JSON 创建上传器
func NewUploader(ctx context.Context, cfg config.GDriveConfig) (*Uploader, error) {
	if cfg.CredentialsFile == "" {
		return nil, ErrNotConfigured
	}
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("读取 Google 服务账号文件失败: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("解析 Google 服务账号失败: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("创建 Drive 客户端失败: %w", err)
	}
	return NewUploaderWithService(svc, cfg.FolderID, config.GetDuration(cfg.Timeout, defaultTimeout)), nil
}

// NewUploaderWithService 使用已有的 Drive 客户端
func NewUploaderWithService(svc *drive.Service, folderID string, timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Uploader{svc: svc, folderID: folderID, timeout: timeout, log: logger.Named("gdrive")}
}

// Upload 上传文件，返回文件 id 与浏览链接
func (u *Uploader) Upload(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	meta := &drive.File{Name: name}
	if u.folderID != "" {
		meta.Parents = []string{u.folderID}
	}
	created, err := u.svc.Files.Create(meta).
		Media(r, googleapi.ContentType(mimeTypeOf(name))).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("上传文件到 Drive 失败: %w", err)
	}

	_, err = u.svc.Permissions.Create(created.Id, &drive.Permission{Role: "reader", Type: "anyone"}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("设置 Drive 文件权限失败: %w", err)
	}

	u.log.Info().Str("file_id", created.Id).Str("name", name).Msg("文件已上传到 Drive")
	return &UploadResult{FileID: created.Id, WebViewLink: created.WebViewLink}, nil
}

func mimeTypeOf(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return defaultMimeType
}
