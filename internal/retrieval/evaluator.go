package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"prosterio-go/internal/extractor"
	"prosterio-go/internal/logger"
	"prosterio-go/internal/storage"
	"prosterio-go/internal/storage/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

const (
	judgePrefix         = "cortex_"
	defaultJudgeTimeout = 30 * time.Second
)

const judgePromptTemplate = `You are evaluating the quality of a response.

CONTEXT: %s

QUESTION: %s

RESPONSE: %s

Rate the response on a scale of 0.0 to 1.0 for the following criteria:
1. Groundedness: Is the response supported by the context?
2. Relevance: Is the response relevant to the question?
3. Coherence: Is the response well-structured and coherent?

Output only a JSON object with the scores, like:
{"groundedness": 0.85, "relevance": 0.92, "coherence": 0.78}`

// Evaluation 评估结果：groundedness、relevance，以及裁判模型给出的 cortex_* 分数。
// 裁判或持久化失败时带 error。
type Evaluation map[string]any

// Evaluator 评估回答质量。任何失败都只记录在结果里，不影响回答本身。
type Evaluator struct {
	judge   model.ToolCallingChatModel
	store   storage.EvaluationRepository
	timeout time.Duration
	log     zerolog.Logger
}

// NewEvaluator 创建评估器。judge 为 nil 时只计算词重叠分数；store 为 nil 时不持久化。
func NewEvaluator(judge model.ToolCallingChatModel, store storage.EvaluationRepository, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = defaultJudgeTimeout
	}
	return &Evaluator{judge: judge, store: store, timeout: timeout, log: logger.Named("evaluator")}
}

// Evaluate 计算分数并保存
func (e *Evaluator) Evaluate(ctx context.Context, userID uint64, question, contextText, answer string) Evaluation {
	grounded := Groundedness(contextText, answer)
	relevance := Relevance(question, answer)
	out := Evaluation{"groundedness": grounded, "relevance": relevance}

	var coherence *float64
	if e.judge != nil {
		scores, err := e.askJudge(ctx, question, contextText, answer)
		if err != nil {
			e.log.Warn().Err(err).Msg("裁判模型评估失败")
			out["error"] = err.Error()
		} else {
			for k, v := range scores {
				if _, exists := out[k]; exists {
					continue
				}
				out[judgePrefix+k] = v
				if k == "coherence" {
					if f, ok := v.(float64); ok {
						coherence = &f
					}
				}
			}
		}
	}

	if e.store != nil {
		row := &models.Evaluation{
			UserID:          userID,
			Question:        question,
			Answer:          answer,
			CortexCoherence: coherence,
			Groundedness:    grounded,
			Relevance:       relevance,
		}
		if err := e.store.CreateEvaluation(ctx, row); err != nil {
			e.log.Warn().Err(err).Msg("保存评估结果失败")
			out["error"] = err.Error()
		}
	}
	return out
}

func (e *Evaluator) askJudge(ctx context.Context, question, contextText, answer string) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.judge.Generate(callCtx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(judgePromptTemplate, contextText, question, answer)),
	})
	if err != nil {
		return nil, err
	}
	raw := extractor.ExtractJSON(reply.Content)
	if raw == "" {
		return nil, errors.New("No JSON found in evaluation response")
	}
	var scores map[string]any
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, errors.New("Failed to parse evaluation JSON")
	}
	return scores, nil
}

// Groundedness 回答中有多少比例的关键词出现在上下文里
func Groundedness(contextText, answer string) float64 {
	if contextText == "" || answer == "" {
		return 0
	}
	ctxTokens := keywords(contextText)
	respTokens := keywords(answer)
	return overlap(respTokens, ctxTokens)
}

// Relevance 问题中有多少比例的关键词出现在回答里。回答侧不过滤停用词。
func Relevance(question, answer string) float64 {
	if question == "" || answer == "" {
		return 0
	}
	return overlap(keywords(question), tokens(answer))
}

// overlap |of ∩ in| / |of|，of 为空时为 0
func overlap(of, in map[string]struct{}) float64 {
	if len(of) == 0 {
		return 0
	}
	n := 0
	for t := range of {
		if _, ok := in[t]; ok {
			n++
		}
	}
	return min(1.0, float64(n)/float64(len(of)))
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(s)) {
		out[t] = struct{}{}
	}
	return out
}

// keywords 小写空白切分，去掉停用词和长度不超过 2 的词
func keywords(s string) map[string]struct{} {
	out := tokens(s)
	for t := range out {
		if _, stop := englishStopwords[t]; stop || len(t) <= 2 {
			delete(out, t)
		}
	}
	return out
}
