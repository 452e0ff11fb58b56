package export

import (
	"fmt"
	"io"
	"time"

	"prosterio-go/internal/processor"

	"github.com/xuri/excelize/v2"
)

// ContentType XLSX 响应类型
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Employees"

var headers = []string{"ID", "Full Name", "Email", "Job Title", "Resigned", "Resign Date", "File URL"}

// WriteEmployees 把员工列表写成单个工作表的 XLSX
func WriteEmployees(w io.Writer, rows []processor.EmployeeSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return err
	}
	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "D", 30)
	_ = f.SetColWidth(sheetName, "E", "F", 14)
	_ = f.SetColWidth(sheetName, "G", "G", 50)

	for i, e := range rows {
		row := i + 2
		resignDate := ""
		if e.ResignDate != nil {
			resignDate = e.ResignDate.Format(time.DateOnly)
		}
		fileURL := ""
		if e.FileURL != nil {
			fileURL = *e.FileURL
		}
		values := []any{e.ID, e.FullName, e.Email, e.JobTitle, e.ResignStatus, resignDate, fileURL}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("写入第 %d 行失败: %w", row, err)
		}
	}

	if len(rows) > 0 {
		_ = f.AutoFilter(sheetName, fmt.Sprintf("A1:%s", lastCell(len(rows)+1)), []excelize.AutoFilterOptions{})
	}
	_ = f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("写出 XLSX 失败: %w", err)
	}
	return nil
}

func lastCell(row int) string {
	cell, _ := excelize.CoordinatesToCellName(len(headers), row)
	return cell
}
