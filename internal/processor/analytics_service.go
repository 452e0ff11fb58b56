package processor

import (
	"context"
	"time"

	"prosterio-go/internal/logger"
	"prosterio-go/internal/storage"

	"github.com/rs/zerolog"
)

const (
	topSkillsLimit      = 10
	analyticsReport     = "summary"
	defaultAnalyticsTTL = 5 * time.Minute
)

// AnalyticsCache 统计结果缓存。代数在任何员工写入后递增，旧代数的快照不再被读取。
type AnalyticsCache interface {
	AnalyticsGeneration(ctx context.Context) (int64, error)
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, expiration time.Duration) error
}

// Analytics 四项统计
type Analytics struct {
	JobTitleDistribution        []storage.JobTitleCount          `json:"job_title_distribution"`
	ExperienceLevelDistribution []storage.ExperienceLevelCount   `json:"experience_level_distribution"`
	TopSkills                   []storage.SkillCount             `json:"top_skills"`
	EducationToJobTitle         []storage.EducationJobTitleCount `json:"education_to_job_title"`
}

// AnalyticsService 计算并缓存员工统计
type AnalyticsService struct {
	repo  storage.AnalyticsRepository
	cache AnalyticsCache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewAnalyticsService 创建服务，cache 可为 nil
func NewAnalyticsService(repo storage.AnalyticsRepository, cache AnalyticsCache, ttl time.Duration) *AnalyticsService {
	if ttl <= 0 {
		ttl = defaultAnalyticsTTL
	}
	return &AnalyticsService{repo: repo, cache: cache, ttl: ttl, log: logger.Named("analytics")}
}

// Compute 返回 scopeUserID 可见员工的统计。缓存读写失败只记日志。
func (s *AnalyticsService) Compute(ctx context.Context, scopeUserID uint64) (*Analytics, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Compute")
	defer span.End()

	var key string
	if s.cache != nil {
		gen, err := s.cache.AnalyticsGeneration(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("读取统计缓存代数失败")
		} else {
			key = storage.AnalyticsSnapshotKey(gen, analyticsReport, scopeUserID)
			var cached Analytics
			hit, err := s.cache.GetJSON(ctx, key, &cached)
			if err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("读取统计缓存失败")
			} else if hit {
				return &cached, nil
			}
		}
	}

	out, err := s.compute(ctx, scopeUserID)
	if err != nil {
		span.RecordError(err)
		return nil, newStoreError("analytics", "", err)
	}

	if key != "" {
		if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("写入统计缓存失败")
		}
	}
	return out, nil
}

func (s *AnalyticsService) compute(ctx context.Context, userID uint64) (*Analytics, error) {
	var (
		out Analytics
		err error
	)
	if out.JobTitleDistribution, err = s.repo.JobTitleDistribution(ctx, userID); err != nil {
		return nil, err
	}
	if out.ExperienceLevelDistribution, err = s.repo.ExperienceLevelDistribution(ctx, userID); err != nil {
		return nil, err
	}
	if out.TopSkills, err = s.repo.TopSkills(ctx, userID, topSkillsLimit); err != nil {
		return nil, err
	}
	if out.EducationToJobTitle, err = s.repo.EducationToJobTitle(ctx, userID); err != nil {
		return nil, err
	}
	// 空结果输出 [] 而不是 null
	if out.JobTitleDistribution == nil {
		out.JobTitleDistribution = []storage.JobTitleCount{}
	}
	if out.ExperienceLevelDistribution == nil {
		out.ExperienceLevelDistribution = []storage.ExperienceLevelCount{}
	}
	if out.TopSkills == nil {
		out.TopSkills = []storage.SkillCount{}
	}
	if out.EducationToJobTitle == nil {
		out.EducationToJobTitle = []storage.EducationJobTitleCount{}
	}
	return &out, nil
}
