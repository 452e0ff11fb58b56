package processor

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"prosterio-go/internal/extractor"
	"prosterio-go/internal/llm"
	"prosterio-go/internal/logger"
	"prosterio-go/internal/storage"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// PDFRoutePrefix 原始文件的对外访问前缀，GET /pdfs/*key 从 MinIO 读取
const PDFRoutePrefix = "/pdfs/"

// BatchExtractor 批量简历抽取
type BatchExtractor interface {
	Batch(ctx context.Context, files []extractor.File, workers int) []extractor.FileResult
}

// DocumentOptions 抽取配置
type DocumentOptions struct {
	Workers        int
	MaxFileBytes   int64
	StoreOriginals bool
}

// DocumentService 上传简历的抽取入口
type DocumentService struct {
	extractor BatchExtractor
	objects   storage.ObjectStorage
	opts      DocumentOptions
	log       zerolog.Logger
}

// NewDocumentService 创建服务。extractor 为 nil 表示模型未配置；objects 可为 nil。
func NewDocumentService(ex BatchExtractor, objects storage.ObjectStorage, opts DocumentOptions) *DocumentService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &DocumentService{extractor: ex, objects: objects, opts: opts, log: logger.Named("documents")}
}

// Extract 逐个文件抽取，单个文件失败不影响其他文件，结果与输入顺序一致
func (s *DocumentService) Extract(ctx context.Context, files []extractor.File) ([]extractor.FileResult, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Extract")
	defer span.End()
	span.SetAttributes(attribute.Int("documents.count", len(files)))

	if len(files) == 0 {
		return nil, newValidationError("extract", "No PDF files uploaded")
	}
	if s.extractor == nil {
		return nil, &PipelineError{Op: "extract", BaseErr: ErrUpstream, Cause: llm.ErrNotConfigured, Detail: "language model is not configured"}
	}

	results := make([]extractor.FileResult, len(files))
	accepted := make([]extractor.File, 0, len(files))
	positions := make([]int, 0, len(files))
	for i, f := range files {
		if s.opts.MaxFileBytes > 0 && int64(len(f.Data)) > s.opts.MaxFileBytes {
			msg := fmt.Sprintf("file exceeds the %d MB limit", s.opts.MaxFileBytes>>20)
			results[i] = extractor.FileResult{Filename: f.Name, Error: msg, Err: newValidationError("extract", msg)}
			continue
		}
		accepted = append(accepted, f)
		positions = append(positions, i)
	}

	for j, res := range s.extractor.Batch(ctx, accepted, s.opts.Workers) {
		if res.Data != nil && s.opts.StoreOriginals && s.objects != nil {
			if url, err := s.storeOriginal(ctx, accepted[j]); err != nil {
				s.log.Warn().Err(err).Str("file", accepted[j].Name).Msg("保存原始文件失败")
			} else {
				res.Data.FileURL = &url
			}
		}
		results[positions[j]] = res
	}
	return results, nil
}

func (s *DocumentService) storeOriginal(ctx context.Context, f extractor.File) (string, error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	key, err := s.objects.UploadResumeFile(ctx, ext, bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return "", err
	}
	return PDFRoutePrefix + key, nil
}
