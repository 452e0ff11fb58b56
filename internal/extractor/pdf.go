package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"prosterio-go/internal/logger"

	einopdf "github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

const defaultPDFTimeout = 30 * time.Second

// PDFTextExtractor 先用 Eino PDF Parser 提取全文，没有结果时按页回退到 ledongthuc/pdf
type PDFTextExtractor struct {
	parser  *einopdf.PDFParser
	timeout time.Duration
	log     zerolog.Logger
}

// NewPDFTextExtractor 初始化提取器。不按页面分割，以获取整个文档的连续文本。
func NewPDFTextExtractor(ctx context.Context) (*PDFTextExtractor, error) {
	p, err := einopdf.NewPDFParser(ctx, &einopdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}
	return &PDFTextExtractor{
		parser:  p,
		timeout: defaultPDFTimeout,
		log:     logger.Named("pdf"),
	}, nil
}

// ExtractText 实现 TextExtractor
func (e *PDFTextExtractor) ExtractText(ctx context.Context, name string, data []byte) (string, error) {
	start := time.Now()

	text, err := e.parseWithEino(ctx, name, data)
	if err != nil || strings.TrimSpace(text) == "" {
		e.log.Debug().Err(err).Str("file", name).Msg("eino 解析无结果，回退到逐页提取")
		fallback, ferr := plainTextByPage(data)
		if ferr != nil {
			if err == nil {
				err = ferr
			}
			return "", fmt.Errorf("%w: %s: %v", ErrNoTextExtracted, name, err)
		}
		text = fallback
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTextExtracted, name)
	}
	e.log.Debug().
		Str("file", name).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("PDF 提取完成")
	return text, nil
}

func (e *PDFTextExtractor) parseWithEino(ctx context.Context, name string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(name))
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for %s: %w", name, err)
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if c := strings.TrimSpace(doc.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// plainTextByPage 逐页读取纯文本，跳过空页。损坏文件可能让底层库 panic，这里转为错误。
func plainTextByPage(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(pageText))
	}
	return b.String(), nil
}
