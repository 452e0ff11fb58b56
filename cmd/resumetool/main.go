// resumetool 在本地调试简历抽取：提取文本、调用模型解析为员工记录、编译检索分块。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"prosterio-go/internal/chunk"
	"prosterio-go/internal/config"
	"prosterio-go/internal/extractor"
	"prosterio-go/internal/llm"
	"prosterio-go/internal/types"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const usage = `用法: resumetool <text|parse|chunk> [flags] <file>...

  text   输出 PDF/DOCX 的纯文本
  parse  调用抽取模型，输出 {"employees": [...]}，可直接提交到 POST /api/employees
  chunk  读取员工记录 JSON (parse 的输出)，输出编译后的检索分块
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "internal/config/config.yaml", "Path to config file")
	maxLen := fs.Int("maxlen", -1, "text 命令输出的最大字符数，-1 表示全部")
	workers := fs.IntP("workers", "w", 2, "parse 命令的并发数")
	_ = fs.Parse(os.Args[2:])
	files := fs.Args()

	_ = godotenv.Load()
	ctx := context.Background()

	var err error
	switch cmd {
	case "text":
		err = runText(ctx, os.Stdout, files, *maxLen)
	case "parse":
		err = runParse(ctx, os.Stdout, *configPath, files, *workers)
	case "chunk":
		err = runChunk(os.Stdout, files)
	default:
		fmt.Fprintf(os.Stderr, "未知命令 %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func runText(ctx context.Context, w io.Writer, files []string, maxLen int) error {
	if len(files) == 0 {
		return errors.New("至少需要一个文件")
	}
	texts, err := extractor.NewTextExtractors(ctx)
	if err != nil {
		return err
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ex, err := texts.ForFile(path)
		if err != nil {
			return err
		}
		text, err := ex.ExtractText(ctx, filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if maxLen >= 0 && len([]rune(text)) > maxLen {
			text = string([]rune(text)[:maxLen]) + "..."
		}
		fmt.Fprintf(w, "==> %s (%d 字符)\n%s\n\n", path, len([]rune(text)), text)
	}
	return nil
}

func runParse(ctx context.Context, w io.Writer, configPath string, files []string, workers int) error {
	if len(files) == 0 {
		return errors.New("至少需要一个文件")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	models, err := llm.NewFactory(ctx, cfg)
	if err != nil {
		return err
	}
	m, name, err := models.ChatModel(llm.PurposeExtraction)
	if err != nil {
		return err
	}
	texts, err := extractor.NewTextExtractors(ctx)
	if err != nil {
		return err
	}
	ex := extractor.NewResumeExtractor(m, texts,
		extractor.WithPromptTemplate(cfg.Documents.PromptTemplate),
		extractor.WithTimeout(config.GetDuration(cfg.LLM.ExtractionTimeout, time.Minute)),
	)

	inputs := make([]extractor.File, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		inputs = append(inputs, extractor.File{Name: filepath.Base(path), Data: data})
	}

	start := time.Now()
	out := struct {
		Employees []types.EmployeeRecord `json:"employees"`
	}{Employees: []types.EmployeeRecord{}}
	for _, res := range ex.Batch(ctx, inputs, workers) {
		if res.Data == nil {
			fmt.Fprintf(os.Stderr, "跳过 %s: %s\n", res.Filename, res.Error)
			continue
		}
		out.Employees = append(out.Employees, *res.Data)
	}
	fmt.Fprintf(os.Stderr, "模型 %s 解析 %d/%d 个文件，用时 %s\n", name, len(out.Employees), len(inputs), time.Since(start).Round(time.Millisecond))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runChunk(w io.Writer, files []string) error {
	if len(files) != 1 {
		return errors.New("chunk 需要一个 JSON 文件")
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		return err
	}
	var in struct {
		Employees []types.EmployeeRecord `json:"employees"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", files[0], err)
	}
	for i, rec := range in.Employees {
		fmt.Fprintf(w, "==> %s\n", rec.Email)
		for _, c := range chunk.Compile(rec, uint64(i+1), 0) {
			fmt.Fprintf(w, "[%s] %s\n", c.Type, c.Text)
		}
		fmt.Fprintln(w)
	}
	return nil
}
