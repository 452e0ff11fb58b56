package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"prosterio-go/internal/extractor"
	"prosterio-go/internal/gdrive"
	"prosterio-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// DocumentService 简历抽取
type DocumentService interface {
	Extract(ctx context.Context, files []extractor.File) ([]extractor.FileResult, error)
}

// DriveUploader 上传到 Google Drive
type DriveUploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (*gdrive.UploadResult, error)
}

// DocumentHandler 处理简历上传、原始文件下载与 Drive 上传
type DocumentHandler struct {
	svc     DocumentService
	objects storage.ObjectStorage
	drive   DriveUploader
}

// NewDocumentHandler 创建 handler，objects 与 drive 可为 nil
func NewDocumentHandler(svc DocumentService, objects storage.ObjectStorage, drive DriveUploader) *DocumentHandler {
	return &DocumentHandler{svc: svc, objects: objects, drive: drive}
}

// Extract POST /api/documents
func (h *DocumentHandler) Extract(ctx context.Context, c *app.RequestContext) {
	if _, ok := identity(c); !ok {
		return
	}
	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["documents"]
	}
	if len(headers) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No PDF files uploaded"})
		return
	}

	files := make([]extractor.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readFileHeader(fh)
		if err != nil {
			writeErrorStatus(ctx, c, consts.StatusInternalServerError, err)
			return
		}
		files = append(files, extractor.File{Name: fh.Filename, Data: data})
	}

	results, err := h.svc.Extract(ctx, files)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, results)
}

// ServePDF GET /pdfs/*key，流式返回保存的原始简历
func (h *DocumentHandler) ServePDF(ctx context.Context, c *app.RequestContext) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if h.objects == nil || key == "" || strings.Contains(key, "..") {
		c.JSON(consts.StatusNotFound, utils.H{"error": "File not found"})
		return
	}
	rc, info, err := h.objects.GetObjectStream(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "File not found"})
			return
		}
		writeErrorStatus(ctx, c, consts.StatusInternalServerError, err)
		return
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
	// 响应写完后 hertz 会关闭实现了 io.Closer 的 body stream
	c.SetBodyStream(rc, int(info.Size))
}

// UploadToDrive POST /api/gdrive
func (h *DocumentHandler) UploadToDrive(ctx context.Context, c *app.RequestContext) {
	if _, ok := identity(c); !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No file provided"})
		return
	}
	name := strings.TrimSpace(string(c.FormValue("file_name")))
	if name == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No file name provided"})
		return
	}
	if fh.Filename == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No file selected"})
		return
	}
	if h.drive == nil {
		writeError(ctx, c, gdrive.ErrNotConfigured)
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeErrorStatus(ctx, c, consts.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	res, err := h.drive.Upload(ctx, name, f)
	if err != nil {
		if errors.Is(err, gdrive.ErrNotConfigured) {
			writeError(ctx, c, err)
			return
		}
		writeErrorStatus(ctx, c, consts.StatusBadGateway, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
