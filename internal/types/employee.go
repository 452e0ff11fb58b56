package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMissingRequiredFields 员工记录缺少必填字段
var ErrMissingRequiredFields = errors.New("Missing required fields (email, full_name, job_title)")

// EmployeeRecord 员工档案。列表字段在 Normalize 之后永远不为 nil。
type EmployeeRecord struct {
	ID                      uint64                   `json:"id,omitempty"`
	UserID                  uint64                   `json:"user_id,omitempty"`
	FullName                string                   `json:"full_name"`
	Email                   string                   `json:"email"`
	JobTitle                string                   `json:"job_title"`
	PromotionYears          *FlexInt                 `json:"promotion_years"`
	Profile                 *string                  `json:"profile"`
	Skills                  []string                 `json:"skills"`
	ProfessionalExperiences []ProfessionalExperience `json:"professional_experiences"`
	Educations              []Education              `json:"educations"`
	Publications            []Publication            `json:"publications"`
	Distinctions            []Distinction            `json:"distinctions"`
	Certifications          []string                 `json:"certifications"`
	FileURL                 *string                  `json:"file_url"`
	FileData                []byte                   `json:"file_data,omitempty"`
	ResignStatus            bool                     `json:"resign_status"`
	ResignDate              *time.Time               `json:"resign_date"`
}

// ProfessionalExperience 工作经历，日期格式 "MMM YYYY"，结束日期允许 "Current"
type ProfessionalExperience struct {
	Company     *string    `json:"company"`
	JobTitle    *string    `json:"job_title"`
	Location    *string    `json:"location"`
	DateStart   *string    `json:"date_start"`
	DateEnd     *string    `json:"date_end"`
	Description StringList `json:"description"`
}

// Education 教育经历，日期格式 "YYYY"
type Education struct {
	Institution *string     `json:"institution"`
	Title       *string     `json:"title"`
	DateStart   *FlexString `json:"date_start"`
	DateEnd     *FlexString `json:"date_end"`
	Score       *FlexString `json:"score"`
	Description StringList  `json:"description"`
}

// Publication 发表物
type Publication struct {
	Title       *string     `json:"title,omitempty"`
	Publication *string     `json:"publication"`
	Date        *FlexString `json:"date"`
}

// Distinction 荣誉奖项
type Distinction struct {
	Name        *string    `json:"name"`
	Description StringList `json:"description"`
}

// Normalize 去除首尾空白并把 nil 列表置为空列表
func (r *EmployeeRecord) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.JobTitle = strings.TrimSpace(r.JobTitle)

	if r.Skills == nil {
		r.Skills = []string{}
	}
	if r.ProfessionalExperiences == nil {
		r.ProfessionalExperiences = []ProfessionalExperience{}
	}
	if r.Educations == nil {
		r.Educations = []Education{}
	}
	if r.Publications == nil {
		r.Publications = []Publication{}
	}
	if r.Distinctions == nil {
		r.Distinctions = []Distinction{}
	}
	if r.Certifications == nil {
		r.Certifications = []string{}
	}
	for i := range r.ProfessionalExperiences {
		if r.ProfessionalExperiences[i].Description == nil {
			r.ProfessionalExperiences[i].Description = StringList{}
		}
	}
}

// Validate 检查必填字段
func (r *EmployeeRecord) Validate() error {
	if r.Email == "" || r.FullName == "" || r.JobTitle == "" {
		return ErrMissingRequiredFields
	}
	return nil
}

// ProfileText 返回 profile，未设置时为空串
func (r *EmployeeRecord) ProfileText() string {
	if r.Profile == nil {
		return ""
	}
	return *r.Profile
}

// StringList 接受单个字符串或字符串数组
type StringList []string

// UnmarshalJSON 实现 json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = StringList{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var items []*FlexString
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("description must be a string or a list of strings: %w", err)
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		if item != nil && item.String() != "" {
			out = append(out, item.String())
		}
	}
	*l = out
	return nil
}

// MarshalJSON 始终输出数组
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Join 以 sep 连接所有行
func (l StringList) Join(sep string) string {
	return strings.Join(l, sep)
}

// FlexString 接受字符串、数字或布尔值，统一按字符串保存。
// 模型输出的分数和年份经常是数字。
type FlexString string

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = FlexString(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number: %w", err)
		}
		*f = FlexString(n.String())
	}
	return nil
}

// String 返回字符串值
func (f *FlexString) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// NewFlexString 便捷构造
func NewFlexString(s string) *FlexString {
	f := FlexString(s)
	return &f
}

// StringPtr 便捷构造
func StringPtr(s string) *string {
	return &s
}

// FlexInt 接受整数或整数字符串 ("3"、3、3.0)
type FlexInt int

// ErrNotInteger promotion_years 等整数字段无法解析
var ErrNotInteger = errors.New("value is not an integer")

// UnmarshalJSON 实现 json.Unmarshaler，非整数返回 ErrNotInteger
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	n, ok := parseFlexInt(data)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInteger, data)
	}
	*f = FlexInt(n)
	return nil
}

func parseFlexInt(data []byte) (int, bool) {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s.String()), 64)
	if err != nil || n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return int(n), true
}

// UnmarshalJSON 模型输出中无法解析的 promotion_years 视为缺失，而不是整条记录失败
func (r *EmployeeRecord) UnmarshalJSON(data []byte) error {
	type Alias EmployeeRecord
	aux := struct {
		*Alias
		PromotionYears json.RawMessage `json:"promotion_years"`
	}{Alias: (*Alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.PromotionYears = nil
	raw := bytes.TrimSpace(aux.PromotionYears)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if n, ok := parseFlexInt(raw); ok {
		r.PromotionYears = IntPtr(n)
	}
	return nil
}

// IntPtr 便捷构造
func IntPtr(i int) *FlexInt {
	f := FlexInt(i)
	return &f
}
