package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"prosterio-go/internal/llm"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainText struct{}

func (plainText) ExtractText(_ context.Context, _ string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoTextExtracted
	}
	return string(data), nil
}

func testExtractors() TextExtractors {
	return TextExtractors{".txt": plainText{}}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "Sure:\n```json\n{\"a\": {\"b\": 2}}\n```\nDone", `{"a": {"b": 2}}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Here you go {"a":{"b":[1,2]}} hope it helps`, `{"a":{"b":[1,2]}}`},
		{"brace in string", `x {"a":"}{"} y`, `{"a":"}{"}`},
		{"escaped quote", `{"a":"say \"}\""}`, `{"a":"say \"}\""}`},
		{"none", "Invalid JSON response", ""},
		{"unterminated", `{"a":1`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestFromText_Success(t *testing.T) {
	m := llm.NewMockChatModel("```json\n" + `{"full_name":"John Doe","email":"john@example.com","job_title":"Engineer",
"promotion_years":"2020","skills":["Go"],"professional_experiences":[{"company":"Acme","description":"Built things"}],
"id":99,"user_id":5}` + "\n```")
	r := NewResumeExtractor(m, testExtractors())

	rec, err := r.FromText(context.Background(), "John Doe CV")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", rec.FullName)
	assert.Equal(t, "john@example.com", rec.Email)
	require.NotNil(t, rec.PromotionYears)
	assert.EqualValues(t, 2020, *rec.PromotionYears)
	assert.Equal(t, []string{"Go"}, rec.Skills)
	require.Len(t, rec.ProfessionalExperiences, 1)
	assert.Equal(t, []string{"Built things"}, []string(rec.ProfessionalExperiences[0].Description))
	assert.NotNil(t, rec.Educations)
	assert.NotNil(t, rec.Certifications)
	assert.Zero(t, rec.ID)
	assert.Zero(t, rec.UserID)

	require.Len(t, m.Received, 1)
	msgs := m.Received[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "John Doe CV")
}

func TestFromText_PartialRecordIsNotValidated(t *testing.T) {
	m := llm.NewMockChatModel(`{"full_name": "John Doe", "email": "john@example.com"}`)
	rec, err := NewResumeExtractor(m, testExtractors()).FromText(context.Background(), "cv")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", rec.FullName)
	assert.Empty(t, rec.JobTitle)
}

func TestFromText_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := NewResumeExtractor(llm.NewMockChatModel("Invalid JSON response"), testExtractors()).FromText(ctx, "cv")
	assert.ErrorIs(t, err, ErrModelResponseNotJSON)

	_, err = NewResumeExtractor(llm.NewMockChatModel(`{"full_name": }`), testExtractors()).FromText(ctx, "cv")
	assert.ErrorIs(t, err, ErrModelResponseNotJSON)

	failing := &llm.MockChatModel{Responses: []llm.MockResponse{{Error: errors.New("quota exceeded")}}}
	_, err = NewResumeExtractor(failing, testExtractors()).FromText(ctx, "cv")
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorContains(t, err, "quota exceeded")

	_, err = NewResumeExtractor(nil, testExtractors()).FromText(ctx, "cv")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	unused := llm.NewMockChatModel("{}")
	_, err = NewResumeExtractor(unused, testExtractors()).FromText(ctx, "   ")
	assert.ErrorIs(t, err, ErrNoTextExtracted)
	assert.Zero(t, unused.Calls())
}

func TestFromText_Timeout(t *testing.T) {
	slow := &llm.MockChatModel{Reply: func([]*schema.Message) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "", context.DeadlineExceeded
	}}
	_, err := NewResumeExtractor(slow, testExtractors(), WithTimeout(10*time.Millisecond)).
		FromText(context.Background(), "cv")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestWithPromptTemplate(t *testing.T) {
	m := llm.NewMockChatModel(`{}`)
	r := NewResumeExtractor(m, testExtractors(), WithPromptTemplate("custom prompt"), WithPromptTemplate(" "))
	_, err := r.FromText(context.Background(), "cv")
	require.NoError(t, err)
	assert.Equal(t, "custom prompt", m.Received[0][0].Content)
}

func TestExtract_UnsupportedFile(t *testing.T) {
	_, err := NewResumeExtractor(llm.NewMockChatModel(), testExtractors()).
		Extract(context.Background(), "photo.png", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	m := &llm.MockChatModel{Reply: func(msgs []*schema.Message) (string, error) {
		user := msgs[len(msgs)-1].Content
		switch {
		case strings.Contains(user, "broken"):
			return "sorry, cannot help", nil
		case strings.Contains(user, "down"):
			return "", errors.New("503")
		}
		for _, n := range []string{"alice", "bob", "carol"} {
			if strings.Contains(user, n) {
				return fmt.Sprintf(`{"full_name":%q}`, n), nil
			}
		}
		return "{}", nil
	}}
	r := NewResumeExtractor(m, testExtractors())

	files := []File{
		{Name: "a.txt", Data: []byte("alice")},
		{Name: "b.txt", Data: []byte("broken")},
		{Name: "c.pdf", Data: []byte("bob")},
		{Name: "d.TXT", Data: []byte("bob")},
		{Name: "e.txt", Data: nil},
		{Name: "f.txt", Data: []byte("down")},
		{Name: "g.txt", Data: []byte("carol")},
	}
	results := r.Batch(context.Background(), files, 3)
	require.Len(t, results, len(files))
	for i, res := range results {
		assert.Equal(t, files[i].Name, res.Filename)
	}

	assert.Equal(t, "alice", results[0].Data.FullName)
	assert.ErrorIs(t, results[1].Err, ErrModelResponseNotJSON)
	assert.ErrorIs(t, results[2].Err, ErrUnsupportedFile)
	assert.Equal(t, "bob", results[3].Data.FullName)
	assert.ErrorIs(t, results[4].Err, ErrNoTextExtracted)
	assert.ErrorIs(t, results[5].Err, ErrModelUnavailable)
	assert.Equal(t, "carol", results[6].Data.FullName)
	assert.NotEmpty(t, results[5].Error)
	assert.Nil(t, results[5].Data)
}

func TestBatch_Empty(t *testing.T) {
	r := NewResumeExtractor(llm.NewMockChatModel(), testExtractors())
	assert.Empty(t, r.Batch(context.Background(), nil, 4))
}

func TestTextExtractors_ForFile(t *testing.T) {
	te := TextExtractors{".pdf": plainText{}, ".docx": DocxTextExtractor{}}
	e, err := te.ForFile("Resume.PDF")
	require.NoError(t, err)
	assert.IsType(t, plainText{}, e)

	_, err = te.ForFile("notes")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.True(t, te.Supports("cv.docx"))
	assert.False(t, te.Supports("cv.doc"))
}

func TestDocxPlainText(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>R&amp;D Engineer</w:t><w:br/><w:t>Go</w:t></w:r></w:p><w:p></w:p></w:body>`
	assert.Equal(t, "Jane Doe\nR&D Engineer\nGo", docxPlainText(xml))
}

func TestDocxTextExtractor_InvalidFile(t *testing.T) {
	_, err := DocxTextExtractor{}.ExtractText(context.Background(), "cv.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, ErrNoTextExtracted)
}

func TestPDFTextExtractor_InvalidFile(t *testing.T) {
	p, err := NewPDFTextExtractor(context.Background())
	require.NoError(t, err)
	_, err = p.ExtractText(context.Background(), "cv.pdf", []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrNoTextExtracted)
}
