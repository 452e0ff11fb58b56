package models

import (
	"encoding/json"
	"fmt"

	"prosterio-go/internal/types"
)

// EmployeeFromRecord 把经过 Normalize 的员工记录转换为表模型
func EmployeeFromRecord(rec types.EmployeeRecord, userID uint64) (*Employee, error) {
	e := &Employee{
		ID:           rec.ID,
		UserID:       userID,
		FullName:     rec.FullName,
		Email:        rec.Email,
		JobTitle:     rec.JobTitle,
		Profile:      rec.Profile,
		FileURL:      rec.FileURL,
		FileData:     rec.FileData,
		ResignStatus: rec.ResignStatus,
		ResignDate:   rec.ResignDate,
	}
	if rec.PromotionYears != nil {
		years := int(*rec.PromotionYears)
		e.PromotionYears = &years
	}

	var err error
	if e.Skills, err = ToJSON(rec.Skills); err != nil {
		return nil, fmt.Errorf("序列化 skills 失败: %w", err)
	}
	if e.ProfessionalExperiences, err = ToJSON(rec.ProfessionalExperiences); err != nil {
		return nil, fmt.Errorf("序列化 professional_experiences 失败: %w", err)
	}
	if e.Educations, err = ToJSON(rec.Educations); err != nil {
		return nil, fmt.Errorf("序列化 educations 失败: %w", err)
	}
	if e.Publications, err = ToJSON(rec.Publications); err != nil {
		return nil, fmt.Errorf("序列化 publications 失败: %w", err)
	}
	if e.Distinctions, err = ToJSON(rec.Distinctions); err != nil {
		return nil, fmt.Errorf("序列化 distinctions 失败: %w", err)
	}
	if e.Certifications, err = ToJSON(rec.Certifications); err != nil {
		return nil, fmt.Errorf("序列化 certifications 失败: %w", err)
	}
	return e, nil
}

// ToRecord 把表模型还原为员工记录，列表字段保证非 nil
func (e *Employee) ToRecord() (types.EmployeeRecord, error) {
	rec := types.EmployeeRecord{
		ID:           e.ID,
		UserID:       e.UserID,
		FullName:     e.FullName,
		Email:        e.Email,
		JobTitle:     e.JobTitle,
		Profile:      e.Profile,
		FileURL:      e.FileURL,
		ResignStatus: e.ResignStatus,
		ResignDate:   e.ResignDate,
	}
	if e.PromotionYears != nil {
		rec.PromotionYears = types.IntPtr(*e.PromotionYears)
	}

	decode := func(raw []byte, dst interface{}, field string) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", field, err)
		}
		return nil
	}
	if err := decode(e.Skills, &rec.Skills, "skills"); err != nil {
		return rec, err
	}
	if err := decode(e.ProfessionalExperiences, &rec.ProfessionalExperiences, "professional_experiences"); err != nil {
		return rec, err
	}
	if err := decode(e.Educations, &rec.Educations, "educations"); err != nil {
		return rec, err
	}
	if err := decode(e.Publications, &rec.Publications, "publications"); err != nil {
		return rec, err
	}
	if err := decode(e.Distinctions, &rec.Distinctions, "distinctions"); err != nil {
		return rec, err
	}
	if err := decode(e.Certifications, &rec.Certifications, "certifications"); err != nil {
		return rec, err
	}
	rec.Normalize()
	return rec, nil
}
