package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosterio-go/internal/types"
)

func janeDoe() types.EmployeeRecord {
	rec := types.EmployeeRecord{
		FullName: "Jane Doe",
		Email:    "j@x.com",
		JobTitle: "Engineer",
		Skills:   []string{"Go", "SQL"},
	}
	rec.Normalize()
	return rec
}

func TestCompileJaneDoe(t *testing.T) {
	chunks := Compile(janeDoe(), 7, 3)

	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{
		EmployeeID: 7,
		UserID:     3,
		Type:       TypeInformation,
		Text:       "INFORMATION of Jane Doe: Full Name: Jane Doe. Email: j@x.com. Job Title: Engineer",
	}, chunks[0])
	assert.Equal(t, Chunk{
		EmployeeID: 7,
		UserID:     3,
		Type:       TypeSkills,
		Text:       "SKILLS of Jane Doe: Go,SQL",
	}, chunks[1])
}

func TestCompileEmptyListsYieldsOnlyInformation(t *testing.T) {
	rec := types.EmployeeRecord{FullName: "A B", Email: "a@b.c", JobTitle: "QA"}
	rec.Normalize()

	chunks := Compile(rec, 1, 1)
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeInformation, chunks[0].Type)
}

func TestCompileInformationOptionalFields(t *testing.T) {
	rec := janeDoe()
	rec.PromotionYears = types.IntPtr(2)
	rec.Profile = types.StringPtr("Backend engineer.\nLoves databases.")

	chunks := Compile(rec, 1, 1)
	assert.Equal(t,
		"INFORMATION of Jane Doe: Full Name: Jane Doe. Email: j@x.com. Job Title: Engineer. Promotion Year(s): 2. Profile Summary: Backend engineer.. Loves databases.",
		chunks[0].Text)

	rec.Profile = types.StringPtr("")
	chunks = Compile(rec, 1, 1)
	assert.NotContains(t, chunks[0].Text, "Profile Summary")
}

func TestCompileExperiencesOnePerEntryInOrder(t *testing.T) {
	rec := janeDoe()
	rec.ProfessionalExperiences = []types.ProfessionalExperience{
		{Company: types.StringPtr("Acme"), JobTitle: types.StringPtr("Dev"), Location: types.StringPtr("Paris"),
			Description: types.StringList{"Built APIs", "Ran on-call"}},
		{Company: types.StringPtr("Initech")},
		{JobTitle: types.StringPtr("Lead"), Location: types.StringPtr("Remote")},
	}

	chunks := Compile(rec, 1, 1)
	var exps []Chunk
	for _, c := range chunks {
		if c.Type == TypeProfessionalExperience {
			exps = append(exps, c)
		}
	}
	require.Len(t, exps, 3)
	assert.Equal(t, "PROFESSIONAL_EXPERIENCE of Jane Doe: Working at Acme as Dev in Paris. Built APIs. Ran on-call", exps[0].Text)
	assert.Equal(t, "PROFESSIONAL_EXPERIENCE of Jane Doe: Working at Initech as N/A in N/A.", exps[1].Text)
	assert.Equal(t, "PROFESSIONAL_EXPERIENCE of Jane Doe: Working at N/A as Lead in Remote.", exps[2].Text)
}

func TestCompileAllSections(t *testing.T) {
	rec := janeDoe()
	rec.Educations = []types.Education{{
		Institution: types.StringPtr("MIT"),
		Title:       types.StringPtr("BSc CS"),
		DateStart:   types.NewFlexString("2010"),
		DateEnd:     types.NewFlexString("2014"),
		Score:       types.NewFlexString("3.8"),
		Description: types.StringList{"Thesis on compilers"},
	}}
	rec.Publications = []types.Publication{{Publication: types.StringPtr("ACM Queue"), Date: types.NewFlexString("Mar 2020")}}
	rec.Distinctions = []types.Distinction{{Name: types.StringPtr("Hackathon winner"), Description: types.StringList{"First place"}}}
	rec.Certifications = []string{"CKA", "AWS SA"}

	chunks := Compile(rec, 9, 4)
	require.Len(t, chunks, 6)

	assert.Equal(t, []Type{
		TypeInformation, TypeSkills, TypeEducation, TypePublication, TypeDistinction, TypeCertifications,
	}, chunkTypes(chunks))
	assert.Equal(t, "EDUCATION of Jane Doe: Learned BSc CS at MIT from 2010 to 2014 with a score of 3.8. Thesis on compilers", chunks[2].Text)
	assert.Equal(t, "PUBLICATION of Jane Doe: Published in ACM Queue in Mar 2020.", chunks[3].Text)
	assert.Equal(t, "DISTINCTION of Jane Doe: Notable Hackathon winner: First place", chunks[4].Text)
	assert.Equal(t, "CERTIFICATIONS of Jane Doe: CKA | AWS SA", chunks[5].Text)
}

func TestCompileNeverEmitsNewlines(t *testing.T) {
	rec := janeDoe()
	rec.FullName = "Jane\nDoe"
	rec.Profile = types.StringPtr("line one\r\nline two\n")
	rec.ProfessionalExperiences = []types.ProfessionalExperience{
		{Company: types.StringPtr("A\nB"), Description: types.StringList{"x\ny"}},
	}
	rec.Certifications = []string{"c1\nc2"}

	for _, c := range Compile(rec, 1, 1) {
		assert.NotContains(t, c.Text, "\n")
		assert.NotContains(t, c.Text, "\r")
	}
}

func TestCollapseNewlinesIdempotent(t *testing.T) {
	inputs := []string{"", "a", "a\nb", "a\n\nb\n", "\r\nx\ry", "already. flat"}
	for _, in := range inputs {
		once := CollapseNewlines(in)
		assert.Equal(t, once, CollapseNewlines(once), "input %q", in)
		assert.False(t, strings.ContainsAny(once, "\r\n"))
	}
}

func TestCompileDeterministic(t *testing.T) {
	rec := janeDoe()
	rec.ProfessionalExperiences = []types.ProfessionalExperience{
		{Company: types.StringPtr("Acme")}, {Company: types.StringPtr("Initech")},
	}
	first := Compile(rec, 5, 6)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compile(rec, 5, 6))
	}
}

func chunkTypes(chunks []Chunk) []Type {
	out := make([]Type, len(chunks))
	for i, c := range chunks {
		out[i] = c.Type
	}
	return out
}
