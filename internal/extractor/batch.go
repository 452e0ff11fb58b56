package extractor

import (
	"context"
	"fmt"
	"sync"

	"prosterio-go/internal/types"

	"github.com/panjf2000/ants/v2"
)

// File 上传的一个文件
type File struct {
	Name string
	Data []byte
}

// FileResult 单个文件的抽取结果，Data 与 Error 二选一
type FileResult struct {
	Filename string                `json:"filename"`
	Data     *types.EmployeeRecord `json:"data,omitempty"`
	Error    string                `json:"error,omitempty"`
	Err      error                 `json:"-"`
}

// Batch 在 ants 协程池中并发抽取，单个文件失败不影响其他文件，结果与输入顺序一致
func (r *ResumeExtractor) Batch(ctx context.Context, files []File, workers int) []FileResult {
	results := make([]FileResult, len(files))
	if len(files) == 0 {
		return results
	}
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, len(files))

	run := func(i int) {
		f := files[i]
		res := FileResult{Filename: f.Name}
		record, err := r.Extract(ctx, f.Name, f.Data)
		if err != nil {
			res.Err = err
			res.Error = err.Error()
			r.log.Warn().Err(err).Str("file", f.Name).Msg("简历抽取失败")
		} else {
			res.Data = record
		}
		results[i] = res
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		// 协程池创建失败时串行处理
		r.log.Warn().Err(err).Msg("创建协程池失败，改为串行抽取")
		for i := range files {
			run(i)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		idx := i
		if err := pool.Submit(func() {
			defer wg.Done()
			run(idx)
		}); err != nil {
			wg.Done()
			results[idx] = FileResult{
				Filename: files[idx].Name,
				Err:      err,
				Error:    fmt.Sprintf("failed to schedule extraction: %v", err),
			}
		}
	}
	wg.Wait()
	return results
}
