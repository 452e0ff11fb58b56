package extractor

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	xmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	blankLinePattern = regexp.MustCompile(`\n\s*\n+`)
)

// DocxTextExtractor 读取 .docx 的 document.xml 并去掉标签
type DocxTextExtractor struct{}

// ExtractText 实现 TextExtractor
func (DocxTextExtractor) ExtractText(_ context.Context, name string, data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: failed to parse docx: %v", ErrNoTextExtracted, name, err)
	}
	defer doc.Close()

	text := docxPlainText(doc.Editable().GetContent())
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTextExtracted, name)
	}
	return text, nil
}

// docxPlainText 段落和换行标签转为换行，其余标签删除
func docxPlainText(content string) string {
	r := strings.NewReplacer("</w:p>", "\n", "<w:br/>", "\n", "<w:tab/>", "\t")
	text := xmlTagPattern.ReplaceAllString(r.Replace(content), "")
	text = html.UnescapeString(text)
	text = blankLinePattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
