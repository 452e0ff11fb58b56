package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultsListsToEmpty(t *testing.T) {
	var rec EmployeeRecord
	require.NoError(t, json.Unmarshal([]byte(`{"full_name":" Jane Doe ","email":"j@x.com","job_title":"Engineer"}`), &rec))
	rec.Normalize()

	assert.Equal(t, "Jane Doe", rec.FullName)
	assert.NotNil(t, rec.Skills)
	assert.NotNil(t, rec.ProfessionalExperiences)
	assert.NotNil(t, rec.Educations)
	assert.NotNil(t, rec.Publications)
	assert.NotNil(t, rec.Distinctions)
	assert.NotNil(t, rec.Certifications)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"skills":[]`)
	assert.Contains(t, string(out), `"certifications":[]`)
	assert.Contains(t, string(out), `"profile":null`)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		rec  EmployeeRecord
		ok   bool
	}{
		{"complete", EmployeeRecord{FullName: "A", Email: "a@x.com", JobTitle: "Dev"}, true},
		{"missing email", EmployeeRecord{FullName: "A", JobTitle: "Dev"}, false},
		{"missing name", EmployeeRecord{Email: "a@x.com", JobTitle: "Dev"}, false},
		{"missing title", EmployeeRecord{FullName: "A", Email: "a@x.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMissingRequiredFields)
			}
		})
	}
}

func TestFlexibleFieldsAcceptModelOutput(t *testing.T) {
	payload := `{
		"full_name": "Jane Doe",
		"email": "j@x.com",
		"job_title": "Engineer",
		"promotion_years": "3",
		"professional_experiences": [
			{"company": "Acme", "description": "Built things"},
			{"company": "Initech", "description": ["Led team", "Shipped v2"]}
		],
		"educations": [{"institution": "MIT", "date_start": 2010, "date_end": "2014", "score": 3.8}],
		"distinctions": [{"name": "Award", "description": null}]
	}`
	var rec EmployeeRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	require.NotNil(t, rec.PromotionYears)
	assert.Equal(t, FlexInt(3), *rec.PromotionYears)
	assert.Equal(t, StringList{"Built things"}, rec.ProfessionalExperiences[0].Description)
	assert.Equal(t, StringList{"Led team", "Shipped v2"}, rec.ProfessionalExperiences[1].Description)
	assert.Equal(t, "2010", rec.Educations[0].DateStart.String())
	assert.Equal(t, "3.8", rec.Educations[0].Score.String())
	assert.Empty(t, rec.Distinctions[0].Description)
}

func TestEmployeeRecord_PromotionYearsLeftNilWhenNotInteger(t *testing.T) {
	cases := map[string]*FlexInt{
		`"five"`: nil,
		`2.5`:    nil,
		`"2.5"`:  nil,
		`null`:   nil,
		`""`:     nil,
		`4.0`:    IntPtr(4),
		`" 7 "`:  IntPtr(7),
	}
	for raw, want := range cases {
		var rec EmployeeRecord
		require.NoError(t, json.Unmarshal([]byte(`{"email":"a@x.com","promotion_years":`+raw+`}`), &rec), raw)
		assert.Equal(t, want, rec.PromotionYears, raw)
		assert.Equal(t, "a@x.com", rec.Email, raw)
	}

	var rec EmployeeRecord
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@x.com"}`), &rec))
	assert.Nil(t, rec.PromotionYears)
}

func TestFlexInt_RejectsNonInteger(t *testing.T) {
	var f FlexInt
	assert.ErrorIs(t, json.Unmarshal([]byte(`"abc"`), &f), ErrNotInteger)
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &f))
	assert.Equal(t, FlexInt(12), f)
}
