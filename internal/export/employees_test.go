package export

import (
	"bytes"
	"testing"
	"time"

	"prosterio-go/internal/processor"
	"prosterio-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteEmployees(t *testing.T) {
	resigned := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	rows := []processor.EmployeeSummary{
		{ID: 1, FullName: "Ann", Email: "ann@x.com", JobTitle: "Engineer", FileURL: types.StringPtr("/pdfs/resumes/a.pdf")},
		{ID: 2, FullName: "Bob", Email: "bob@x.com", JobTitle: "Designer", ResignStatus: true, ResignDate: &resigned},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEmployees(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, headers, got[0])
	assert.Equal(t, []string{"1", "Ann", "ann@x.com", "Engineer", "FALSE", "", "/pdfs/resumes/a.pdf"}, got[1])
	assert.Equal(t, "TRUE", got[2][4])
	assert.Equal(t, "2025-03-14", got[2][5])
}

func TestWriteEmployees_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEmployees(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
