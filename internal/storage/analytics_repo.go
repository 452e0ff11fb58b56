package storage

import (
	"context"
	"fmt"

	"prosterio-go/internal/storage/models"
)

// JobTitleDistribution 按职位统计员工数，数量降序
func (m *MySQL) JobTitleDistribution(ctx context.Context, userID uint64) ([]JobTitleCount, error) {
	var rows []JobTitleCount
	err := m.db.WithContext(ctx).Model(&models.Employee{}).
		Select("job_title, COUNT(*) AS total_employees").
		Scopes(ownedBy(userID)).
		Group("job_title").
		Order("total_employees DESC, job_title ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计职位分布失败: %w", err)
	}
	return rows, nil
}

// ExperienceLevelDistribution 根据职位名称关键字划分经验级别
func (m *MySQL) ExperienceLevelDistribution(ctx context.Context, userID uint64) ([]ExperienceLevelCount, error) {
	var rows []ExperienceLevelCount
	err := m.db.WithContext(ctx).Model(&models.Employee{}).
		Select(`CASE
			WHEN LOWER(job_title) LIKE ? THEN 'Junior'
			WHEN LOWER(job_title) LIKE ? THEN 'Senior'
			WHEN LOWER(job_title) LIKE ? THEN 'Managerial'
			ELSE 'Mid-Level'
		END AS experience_level, COUNT(*) AS total_employees`, "%junior%", "%senior%", "%manager%").
		Scopes(ownedBy(userID)).
		Group("experience_level").
		Order("total_employees DESC, experience_level ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计经验级别失败: %w", err)
	}
	return rows, nil
}

// TopSkills 出现次数最多的技能 (MySQL 8 JSON_TABLE 展开)
func (m *MySQL) TopSkills(ctx context.Context, userID uint64, limit int) ([]SkillCount, error) {
	var rows []SkillCount
	err := m.db.WithContext(ctx).Raw(`
		SELECT jt.skill AS skill, COUNT(*) AS total_employees
		FROM employees e,
			JSON_TABLE(e.skills, '$[*]' COLUMNS (skill VARCHAR(255) PATH '$')) AS jt
		WHERE (? = 0 OR e.user_id = ?) AND jt.skill IS NOT NULL AND jt.skill <> ''
		GROUP BY jt.skill
		ORDER BY total_employees DESC, skill ASC
		LIMIT ?`, userID, userID, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计技能失败: %w", err)
	}
	return rows, nil
}

// EducationToJobTitle 学历名称与职位的组合计数
func (m *MySQL) EducationToJobTitle(ctx context.Context, userID uint64) ([]EducationJobTitleCount, error) {
	var rows []EducationJobTitleCount
	err := m.db.WithContext(ctx).Raw(`
		SELECT edu.education AS education, e.job_title AS job_title, COUNT(*) AS count
		FROM employees e,
			JSON_TABLE(e.educations, '$[*]' COLUMNS (education VARCHAR(512) PATH '$.title')) AS edu
		WHERE (? = 0 OR e.user_id = ?) AND edu.education IS NOT NULL
		GROUP BY edu.education, e.job_title
		ORDER BY count DESC, education ASC`, userID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计学历与职位失败: %w", err)
	}
	return rows, nil
}
