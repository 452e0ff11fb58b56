package extractor

import "errors"

var (
	// ErrNoTextExtracted 文档中没有可用文本 (扫描件、空文件或损坏文件)
	ErrNoTextExtracted = errors.New("no text could be extracted from the document")
	// ErrModelResponseNotJSON 模型回复中找不到合法 JSON
	ErrModelResponseNotJSON = errors.New("no valid JSON found in model response")
	// ErrModelUnavailable 模型调用失败或超时
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrUnsupportedFile 不支持的文件类型
	ErrUnsupportedFile = errors.New("unsupported file type")
)
