package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// TextExtractor 把原始文件字节转换为纯文本
type TextExtractor interface {
	ExtractText(ctx context.Context, name string, data []byte) (string, error)
}

// TextExtractors 按小写扩展名 (含点) 选择提取器
type TextExtractors map[string]TextExtractor

// NewTextExtractors 注册 .pdf 与 .docx 的默认提取器
func NewTextExtractors(ctx context.Context) (TextExtractors, error) {
	pdf, err := NewPDFTextExtractor(ctx)
	if err != nil {
		return nil, err
	}
	return TextExtractors{
		".pdf":  pdf,
		".docx": DocxTextExtractor{},
	}, nil
}

// ForFile 按文件名后缀返回提取器
func (t TextExtractors) ForFile(name string) (TextExtractor, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if e, ok := t[ext]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
}

// Supports 判断文件名是否有对应的提取器
func (t TextExtractors) Supports(name string) bool {
	_, ok := t[strings.ToLower(filepath.Ext(name))]
	return ok
}
