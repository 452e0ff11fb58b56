package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosterio-go/internal/types"
)

func TestEmployeeRecordRoundTrip(t *testing.T) {
	rec := types.EmployeeRecord{
		ID:             4,
		FullName:       "Jane Doe",
		Email:          "j@x.com",
		JobTitle:       "Engineer",
		PromotionYears: types.IntPtr(2),
		Skills:         []string{"Go", "SQL"},
		ProfessionalExperiences: []types.ProfessionalExperience{
			{Company: types.StringPtr("Acme"), Description: types.StringList{"Built APIs"}},
		},
		Certifications: []string{"CKA"},
	}
	rec.Normalize()

	emp, err := EmployeeFromRecord(rec, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), emp.UserID)
	assert.JSONEq(t, `["Go","SQL"]`, string(emp.Skills))
	assert.JSONEq(t, `[]`, string(emp.Educations))

	back, err := emp.ToRecord()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), back.UserID)
	back.UserID = 0
	assert.Equal(t, rec, back)
}

func TestToRecordWithEmptyColumns(t *testing.T) {
	emp := &Employee{ID: 1, FullName: "A", Email: "a@x.com", JobTitle: "QA"}
	rec, err := emp.ToRecord()
	require.NoError(t, err)
	assert.NotNil(t, rec.Skills)
	assert.NotNil(t, rec.Distinctions)
}

func TestToRecordRejectsCorruptJSON(t *testing.T) {
	emp := &Employee{ID: 1, Skills: []byte("{not json")}
	_, err := emp.ToRecord()
	assert.Error(t, err)
}
