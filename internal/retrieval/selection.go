package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// SelectionPolicy 决定哪些分块进入回答上下文
type SelectionPolicy string

const (
	// FirstPerEmployee 每个员工取 id 最小的分块 (通常是 INFORMATION)
	FirstPerEmployee SelectionPolicy = "first_per_employee"
	// BestPerEmployee 每个员工取与问题最相似的分块
	BestPerEmployee SelectionPolicy = "best_per_employee"
	// All 不分组，全部分块参与排序
	All SelectionPolicy = "all"
)

// ParsePolicy 解析配置值，空串为默认策略
func ParsePolicy(s string) (SelectionPolicy, error) {
	switch p := SelectionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FirstPerEmployee, nil
	case FirstPerEmployee, BestPerEmployee, All:
		return p, nil
	default:
		return "", fmt.Errorf("unknown selection policy %q", s)
	}
}

// Candidate 已嵌入的分块及其与问题的相似度
type Candidate struct {
	ChunkID    uint64
	EmployeeID uint64
	Type       string
	Text       string
	Score      float64
}

// CosineSimilarity 计算余弦相似度。维度不同或任一向量为零向量时返回 0。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Select 按策略挑选分块，并按相似度降序排列；相似度相同时 id 小者在前。
// topK <= 0 表示不截断。
func Select(candidates []Candidate, policy SelectionPolicy, topK int) []Candidate {
	var picked []Candidate
	switch policy {
	case All:
		picked = append(picked, candidates...)
	default:
		best := make(map[uint64]int, len(candidates))
		for _, c := range candidates {
			i, seen := best[c.EmployeeID]
			if !seen {
				best[c.EmployeeID] = len(picked)
				picked = append(picked, c)
				continue
			}
			cur := picked[i]
			switch policy {
			case BestPerEmployee:
				if c.Score > cur.Score || (c.Score == cur.Score && c.ChunkID < cur.ChunkID) {
					picked[i] = c
				}
			default:
				if c.ChunkID < cur.ChunkID {
					picked[i] = c
				}
			}
		}
	}

	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].Score != picked[j].Score {
			return picked[i].Score > picked[j].Score
		}
		return picked[i].ChunkID < picked[j].ChunkID
	})
	if topK > 0 && len(picked) > topK {
		picked = picked[:topK]
	}
	return picked
}

// JoinContext 以单个空格拼接分块文本
func JoinContext(selected []Candidate) string {
	parts := make([]string, 0, len(selected))
	for _, c := range selected {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}
